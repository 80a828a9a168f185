package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/form"
	"github.com/sakif/yatube/internal/media"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/paginator"
	"github.com/sakif/yatube/internal/repository"
)

const msgInvalidGroup = "Select a valid choice. That choice is not one of the available choices."

// PostService owns posts, their comments and the listings built from them.
type PostService struct {
	posts    repository.PostRepository
	groups   repository.GroupRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	follows  repository.FollowRepository
	images   *media.ImageProcessor
	store    media.Store
	perPage  int
	logger   *slog.Logger
}

// PostDeps groups the repositories PostService reads and writes.
type PostDeps struct {
	Posts    repository.PostRepository
	Groups   repository.GroupRepository
	Comments repository.CommentRepository
	Users    repository.UserRepository
	Follows  repository.FollowRepository
}

func NewPostService(deps PostDeps, images *media.ImageProcessor, store media.Store, perPage int, logger *slog.Logger) *PostService {
	if perPage < 1 {
		perPage = paginator.DefaultPerPage
	}
	return &PostService{
		posts:    deps.Posts,
		groups:   deps.Groups,
		comments: deps.Comments,
		users:    deps.Users,
		follows:  deps.Follows,
		images:   images,
		store:    store,
		perPage:  perPage,
		logger:   logger,
	}
}

// Index is every post, newest first.
func (s *PostService) Index(ctx context.Context, page string) (PostPage, error) {
	p, err := listPosts(ctx, s.posts, repository.PostFilter{}, s.perPage, page)
	if err != nil {
		return PostPage{}, fmt.Errorf("service/post: listing index: %w", err)
	}
	return p, nil
}

// Search lists posts whose text contains query.
func (s *PostService) Search(ctx context.Context, query, page string) (PostPage, error) {
	p, err := listPosts(ctx, s.posts, repository.PostFilter{Search: query}, s.perPage, page)
	if err != nil {
		return PostPage{}, fmt.Errorf("service/post: searching %q: %w", query, err)
	}
	return p, nil
}

// GroupPosts resolves slug and lists the posts tagged to it.
func (s *PostService) GroupPosts(ctx context.Context, slug, page string) (*model.Group, PostPage, error) {
	group, err := s.groups.GetBySlug(ctx, slug)
	if err != nil {
		return nil, PostPage{}, fmt.Errorf("service/post: loading group %q: %w", slug, err)
	}

	p, err := listPosts(ctx, s.posts, repository.PostFilter{GroupID: group.ID}, s.perPage, page)
	if err != nil {
		return nil, PostPage{}, fmt.Errorf("service/post: listing group %q: %w", slug, err)
	}
	return group, p, nil
}

// Profile is an author page as seen by one viewer.
type Profile struct {
	Author *model.User
	Posts  PostPage
	// Following is true when the viewer follows Author. Always false for
	// anonymous viewers and on the viewer's own profile.
	Following      bool
	FollowerCount  int
	FollowingCount int
}

// IsSelf reports whether viewer is looking at their own profile.
func (p *Profile) IsSelf(viewer *model.User) bool {
	return viewer != nil && p.Author != nil && viewer.ID == p.Author.ID
}

func (s *PostService) Profile(ctx context.Context, viewer *model.User, username, page string) (*Profile, error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading author %q: %w", username, err)
	}

	posts, err := listPosts(ctx, s.posts, repository.PostFilter{AuthorID: author.ID}, s.perPage, page)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts of %q: %w", username, err)
	}

	profile := &Profile{Author: author, Posts: posts}

	if profile.Following, err = isFollowing(ctx, s.follows, viewer, author.ID); err != nil {
		return nil, fmt.Errorf("service/post: %w", err)
	}
	if profile.FollowerCount, err = s.follows.CountFollowers(ctx, author.ID); err != nil {
		return nil, fmt.Errorf("service/post: counting followers: %w", err)
	}
	if profile.FollowingCount, err = s.follows.CountFollowing(ctx, author.ID); err != nil {
		return nil, fmt.Errorf("service/post: counting following: %w", err)
	}
	return profile, nil
}

// Feed lists posts by the authors viewer follows.
func (s *PostService) Feed(ctx context.Context, viewer *model.User, page string) (PostPage, error) {
	if viewer == nil {
		return PostPage{}, apperror.Forbidden("the feed needs a logged in user")
	}
	p, err := listPosts(ctx, s.posts, repository.PostFilter{FollowedBy: viewer.ID}, s.perPage, page)
	if err != nil {
		return PostPage{}, fmt.Errorf("service/post: listing feed of %d: %w", viewer.ID, err)
	}
	return p, nil
}

// Detail returns the post and its comments, oldest comment first.
func (s *PostService) Detail(ctx context.Context, id int64) (*model.Post, []model.Comment, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("service/post: loading post %d: %w", id, err)
	}

	comments, err := s.comments.ListByPost(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("service/post: loading comments of %d: %w", id, err)
	}
	return post, comments, nil
}

// Groups lists the choices for the post form.
func (s *PostService) Groups(ctx context.Context) ([]model.Group, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing groups: %w", err)
	}
	return groups, nil
}

// ImageURL turns a stored image key into a link.
func (s *PostService) ImageURL(key string) string {
	if key == "" {
		return ""
	}
	return s.store.URL(key)
}

// Create publishes a post by author. Whatever the form says, the author is
// the logged in user.
func (s *PostService) Create(ctx context.Context, author *model.User, in form.PostInput, upload *ImageUpload) (*model.Post, error) {
	if author == nil {
		return nil, apperror.Forbidden("creating a post needs a logged in user")
	}

	in.Clean()
	groupID, img, err := s.validatePost(ctx, in, upload)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		Text:     in.Text,
		AuthorID: author.ID,
		GroupID:  groupID,
	}

	if img != nil {
		if post.Image, err = s.saveImage(ctx, img); err != nil {
			return nil, err
		}
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.discardImage(ctx, post.Image)
		s.logger.Error("failed to create post", userAttr(author), slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("id", post.ID),
		userAttr(author),
		slog.Bool("image", post.Image != ""),
	)
	return post, nil
}

// GetForEdit loads a post its author is about to edit. A missing post is
// NotFound; someone else's post is Forbidden.
func (s *PostService) GetForEdit(ctx context.Context, editor *model.User, id int64) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading post %d: %w", id, err)
	}
	if editor == nil || post.AuthorID != editor.ID {
		return nil, apperror.Forbidden("only the author can edit a post")
	}
	return post, nil
}

// Update applies an edit. A new upload replaces the old image, ClearImage
// drops it, and neither keeps it. Text and group are replaced as given.
func (s *PostService) Update(ctx context.Context, editor *model.User, id int64, in form.PostInput, upload *ImageUpload) (*model.Post, error) {
	post, err := s.GetForEdit(ctx, editor, id)
	if err != nil {
		return nil, err
	}

	in.Clean()
	groupID, img, err := s.validatePost(ctx, in, upload)
	if err != nil {
		return nil, err
	}

	oldImage := post.Image
	post.Text = in.Text
	post.GroupID = groupID
	switch {
	case img != nil:
		if post.Image, err = s.saveImage(ctx, img); err != nil {
			return nil, err
		}
	case in.ClearImage:
		post.Image = ""
	}

	if err := s.posts.Update(ctx, post); err != nil {
		if post.Image != oldImage {
			s.discardImage(ctx, post.Image)
		}
		return nil, fmt.Errorf("service/post: updating post %d: %w", id, err)
	}
	if oldImage != "" && post.Image != oldImage {
		s.discardImage(ctx, oldImage)
	}

	s.logger.Info("post updated", slog.Int64("id", post.ID), userAttr(editor))
	return post, nil
}

// AddComment attaches a comment by author to post postID.
func (s *PostService) AddComment(ctx context.Context, author *model.User, postID int64, in form.CommentInput) (*model.Comment, error) {
	if author == nil {
		return nil, apperror.Forbidden("commenting needs a logged in user")
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, fmt.Errorf("service/post: loading post %d: %w", postID, err)
	}

	in.Clean()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	comment := &model.Comment{Text: in.Text, AuthorID: author.ID, PostID: postID}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/post: creating comment on %d: %w", postID, err)
	}

	s.logger.Info("comment created",
		slog.Int64("id", comment.ID),
		slog.Int64("postID", postID),
		userAttr(author),
	)
	return comment, nil
}

// validatePost checks the form, the group choice and the upload, and
// reports every problem at once.
func (s *PostService) validatePost(ctx context.Context, in form.PostInput, upload *ImageUpload) (*int64, *media.Image, error) {
	fields := map[string]string{}
	if err := mergeFieldErrors(fields, in.Validate()); err != nil {
		return nil, nil, err
	}

	groupID := in.GroupID()
	if groupID != nil {
		if _, err := s.groups.GetByID(ctx, *groupID); err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				return nil, nil, fmt.Errorf("service/post: checking group %d: %w", *groupID, err)
			}
			fields["group"] = msgInvalidGroup
		}
	} else if in.Group != "" {
		fields["group"] = msgInvalidGroup
	}

	var img *media.Image
	if upload != nil && len(upload.Data) > 0 {
		var err error
		img, err = s.images.Prepare(upload.Data)
		if err := mergeFieldErrors(fields, err); err != nil {
			return nil, nil, fmt.Errorf("service/post: preparing image: %w", err)
		}
	}

	if len(fields) > 0 {
		return nil, nil, apperror.Invalid(fields)
	}
	return groupID, img, nil
}

func (s *PostService) saveImage(ctx context.Context, img *media.Image) (string, error) {
	key := media.NewPostImageKey(img.Ext)
	if err := s.store.Save(ctx, key, img.Data, img.ContentType); err != nil {
		return "", fmt.Errorf("service/post: saving image: %w", err)
	}
	return key, nil
}

// discardImage removes an image nothing points to any more. Failures are
// only logged; an orphaned file is not worth failing the request over.
func (s *PostService) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete image", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// ParseID reads a numeric path segment. Anything else is NotFound, the
// same answer a missing row gets.
func ParseID(resource, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(resource, raw)
	}
	return id, nil
}
