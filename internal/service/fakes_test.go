package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/media"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// The fakes below are small in-memory repositories. They are hand-written
// rather than generated so each test shows exactly what storage does. A
// non-nil *Err field makes the matching method fail.

var errDB = errors.New("database is locked")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// store is the shared state every fake repository reads, so a post can
// find its author and the feed can see follows.
type store struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*model.User
	groups   map[int64]*model.Group
	posts    map[int64]*model.Post
	comments map[int64]*model.Comment
	follows  map[[2]int64]bool
	clock    time.Time
}

func newStore() *store {
	return &store{
		users:    map[int64]*model.User{},
		groups:   map[int64]*model.Group{},
		posts:    map[int64]*model.Post{},
		comments: map[int64]*model.Comment{},
		follows:  map[[2]int64]bool{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

// tick hands out strictly increasing creation times.
func (s *store) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

// ---- users

type fakeUserRepo struct {
	*store
	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username || (u.GitHubID != 0 && existing.GitHubID == u.GitHubID) {
			return apperror.Conflict("user", u.Username)
		}
	}
	u.ID = f.id()
	u.CreatedAt = f.tick()
	c := *u
	f.users[u.ID] = &c
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", fmt.Sprint(id))
	}
	c := *u
	return &c, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if githubID != 0 && u.GitHubID == githubID {
			c := *u
			return &c, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprint(githubID))
}

func (f *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", fmt.Sprint(u.ID))
	}
	c := *u
	f.users[u.ID] = &c
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

// ---- groups

type fakeGroupRepo struct {
	*store
	listErr error
}

var _ repository.GroupRepository = (*fakeGroupRepo)(nil)

func (f *fakeGroupRepo) Create(_ context.Context, g *model.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.groups {
		if existing.Slug == g.Slug {
			return apperror.Conflict("group", g.Slug)
		}
	}
	g.ID = f.id()
	c := *g
	f.groups[g.ID] = &c
	return nil
}

func (f *fakeGroupRepo) GetByID(_ context.Context, id int64) (*model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, apperror.NotFound("group", fmt.Sprint(id))
	}
	c := *g
	return &c, nil
}

func (f *fakeGroupRepo) GetBySlug(_ context.Context, slug string) (*model.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.Slug == slug {
			c := *g
			return &c, nil
		}
	}
	return nil, apperror.NotFound("group", slug)
}

func (f *fakeGroupRepo) List(_ context.Context) ([]model.Group, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Group{}
	for _, g := range f.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeGroupRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, id)
	return nil
}

// ---- posts

type fakePostRepo struct {
	*store
	createErr error
	updateErr error
	countErr  error
}

var _ repository.PostRepository = (*fakePostRepo)(nil)

func (f *fakePostRepo) Create(_ context.Context, p *model.Post) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[p.AuthorID]; !ok {
		return fmt.Errorf("FOREIGN KEY constraint failed")
	}
	p.ID = f.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = f.tick()
	}
	c := *p
	c.Author, c.Group = nil, nil
	f.posts[p.ID] = &c
	return nil
}

func (f *fakePostRepo) GetByID(_ context.Context, id int64) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", fmt.Sprint(id))
	}
	return f.hydrate(p), nil
}

func (f *fakePostRepo) Update(_ context.Context, p *model.Post) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.posts[p.ID]
	if !ok {
		return apperror.NotFound("post", fmt.Sprint(p.ID))
	}
	stored.Text, stored.GroupID, stored.Image = p.Text, p.GroupID, p.Image
	return nil
}

func (f *fakePostRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.posts, id)
	return nil
}

func (f *fakePostRepo) List(_ context.Context, filter repository.PostFilter, opts repository.ListOptions) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := f.match(filter)
	if opts.Offset > len(matched) {
		opts.Offset = len(matched)
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (f *fakePostRepo) Count(_ context.Context, filter repository.PostFilter) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.match(filter)), nil
}

func (f *fakePostRepo) match(filter repository.PostFilter) []model.Post {
	out := []model.Post{}
	for _, p := range f.posts {
		switch {
		case filter.AuthorID != 0 && p.AuthorID != filter.AuthorID:
			continue
		case filter.GroupID != 0 && !p.InGroup(filter.GroupID):
			continue
		case filter.FollowedBy != 0 && !f.follows[[2]int64{filter.FollowedBy, p.AuthorID}]:
			continue
		case filter.Search != "" && !strings.Contains(p.Text, filter.Search):
			continue
		}
		out = append(out, *f.hydrate(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakePostRepo) hydrate(p *model.Post) *model.Post {
	c := *p
	if u, ok := f.users[p.AuthorID]; ok {
		author := *u
		c.Author = &author
	}
	if p.GroupID != nil {
		if g, ok := f.groups[*p.GroupID]; ok {
			group := *g
			c.Group = &group
		}
	}
	return &c
}

// ---- comments

type fakeCommentRepo struct {
	*store
}

var _ repository.CommentRepository = (*fakeCommentRepo)(nil)

func (f *fakeCommentRepo) Create(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	c.CreatedAt = f.tick()
	stored := *c
	f.comments[c.ID] = &stored
	return nil
}

func (f *fakeCommentRepo) GetByID(_ context.Context, id int64) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", fmt.Sprint(id))
	}
	out := *c
	return &out, nil
}

func (f *fakeCommentRepo) Update(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.comments[c.ID]
	if !ok {
		return apperror.NotFound("comment", fmt.Sprint(c.ID))
	}
	stored.Text = c.Text
	return nil
}

func (f *fakeCommentRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.comments, id)
	return nil
}

func (f *fakeCommentRepo) ListByPost(_ context.Context, postID int64) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Comment{}
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- follows

type fakeFollowRepo struct {
	*store
	// conflictOnCreate simulates a parallel request inserting the same pair
	// between Exists and Create.
	conflictOnCreate bool
	createCalls      int
}

var _ repository.FollowRepository = (*fakeFollowRepo)(nil)

func (f *fakeFollowRepo) Create(_ context.Context, fl *model.Follow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	key := [2]int64{fl.UserID, fl.AuthorID}
	if f.conflictOnCreate || f.follows[key] {
		f.follows[key] = true
		return apperror.Conflict("follow", fmt.Sprintf("%d:%d", fl.UserID, fl.AuthorID))
	}
	f.follows[key] = true
	fl.ID = f.id()
	return nil
}

func (f *fakeFollowRepo) Delete(_ context.Context, userID, authorID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{userID, authorID}
	existed := f.follows[key]
	delete(f.follows, key)
	return existed, nil
}

func (f *fakeFollowRepo) Exists(_ context.Context, userID, authorID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follows[[2]int64{userID, authorID}], nil
}

func (f *fakeFollowRepo) CountFollowers(_ context.Context, authorID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.follows {
		if k[1] == authorID {
			n++
		}
	}
	return n, nil
}

func (f *fakeFollowRepo) CountFollowing(_ context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.follows {
		if k[0] == userID {
			n++
		}
	}
	return n, nil
}

// ---- media

type fakeMediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

var _ media.Store = (*fakeMediaStore)(nil)

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{objects: map[string][]byte{}}
}

func (f *fakeMediaStore) Save(_ context.Context, key string, data []byte, _ string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeMediaStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeMediaStore) URL(key string) string { return "/media/" + key }

func (f *fakeMediaStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeMediaStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// ---- fixtures

// fixture wires every service to one shared fake store.
type fixture struct {
	st       *store
	users    *fakeUserRepo
	groups   *fakeGroupRepo
	posts    *fakePostRepo
	comments *fakeCommentRepo
	follows  *fakeFollowRepo
	media    *fakeMediaStore

	postSvc   *PostService
	followSvc *FollowService
	groupSvc  *GroupService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newStore()
	f := &fixture{
		st:       st,
		users:    &fakeUserRepo{store: st},
		groups:   &fakeGroupRepo{store: st},
		posts:    &fakePostRepo{store: st},
		comments: &fakeCommentRepo{store: st},
		follows:  &fakeFollowRepo{store: st},
		media:    newFakeMediaStore(),
	}
	f.postSvc = NewPostService(PostDeps{
		Posts:    f.posts,
		Groups:   f.groups,
		Comments: f.comments,
		Users:    f.users,
		Follows:  f.follows,
	}, media.NewImageProcessor(), f.media, 10, testLogger())
	f.followSvc = NewFollowService(f.users, f.follows, testLogger())
	f.groupSvc = NewGroupService(f.groups, testLogger())
	return f
}

func (f *fixture) user(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("creating user %q: %v", username, err)
	}
	return u
}

func (f *fixture) group(t *testing.T, slug string) *model.Group {
	t.Helper()
	g := &model.Group{Title: "Group " + slug, Slug: slug, Description: "about " + slug}
	if err := f.groups.Create(context.Background(), g); err != nil {
		t.Fatalf("creating group %q: %v", slug, err)
	}
	return g
}

func (f *fixture) post(t *testing.T, author *model.User, group *model.Group, text string) *model.Post {
	t.Helper()
	p := &model.Post{Text: text, AuthorID: author.ID}
	if group != nil {
		p.GroupID = &group.ID
	}
	if err := f.posts.Create(context.Background(), p); err != nil {
		t.Fatalf("creating post: %v", err)
	}
	return p
}

// pngBytes encodes a w×h solid image.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}
