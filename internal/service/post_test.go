package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/form"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

func TestPostService_CreateForcesAuthor(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "leo")
	g := f.group(t, "cats")

	post, err := f.postSvc.Create(context.Background(), author, form.PostInput{
		Text:  "  hello world  ",
		Group: fmt.Sprint(g.ID),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, author.ID, post.AuthorID)
	assert.Equal(t, "hello world", post.Text)
	require.NotNil(t, post.GroupID)
	assert.Equal(t, g.ID, *post.GroupID)
	assert.Empty(t, post.Image)
}

func TestPostService_CreateAnonymousIsForbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.postSvc.Create(context.Background(), nil, form.PostInput{Text: "x"}, nil)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestPostService_CreateValidation(t *testing.T) {
	tests := []struct {
		name       string
		in         form.PostInput
		upload     *ImageUpload
		wantFields []string
	}{
		{name: "empty text", in: form.PostInput{Text: "   "}, wantFields: []string{"text"}},
		{name: "unknown group", in: form.PostInput{Text: "x", Group: "999"}, wantFields: []string{"group"}},
		{name: "group zero", in: form.PostInput{Text: "x", Group: "0"}, wantFields: []string{"group"}},
		{name: "group not a number", in: form.PostInput{Text: "x", Group: "cats"}, wantFields: []string{"group"}},
		{
			name:       "not an image",
			in:         form.PostInput{Text: "x"},
			upload:     &ImageUpload{Filename: "notes.txt", Data: []byte("plain text")},
			wantFields: []string{"image"},
		},
		{
			name:       "everything wrong at once",
			in:         form.PostInput{Group: "999"},
			upload:     &ImageUpload{Filename: "a.png", Data: []byte("nope")},
			wantFields: []string{"text", "group", "image"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			author := f.user(t, "leo")

			_, err := f.postSvc.Create(context.Background(), author, tt.in, tt.upload)
			require.ErrorIs(t, err, apperror.ErrValidation)

			fields := apperror.FieldErrors(err)
			for _, name := range tt.wantFields {
				assert.Contains(t, fields, name)
			}
			assert.Len(t, fields, len(tt.wantFields))

			count, _ := f.posts.Count(context.Background(), repository.PostFilter{})
			assert.Zero(t, count, "no post may be stored")
			assert.Zero(t, f.media.len(), "no image may be stored")
		})
	}
}

func TestPostService_CreateStoresImage(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "leo")

	post, err := f.postSvc.Create(context.Background(), author, form.PostInput{Text: "pic"},
		&ImageUpload{Filename: "small.png", Data: pngBytes(t, 4, 4)})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(post.Image, "posts/"))
	assert.True(t, strings.HasSuffix(post.Image, ".png"))
	assert.True(t, f.media.has(post.Image))
	assert.Equal(t, "/media/"+post.Image, f.postSvc.ImageURL(post.Image))
	assert.Equal(t, "", f.postSvc.ImageURL(""))
}

func TestPostService_CreateRepoErrorDiscardsImage(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "leo")
	f.posts.createErr = errDB

	_, err := f.postSvc.Create(context.Background(), author, form.PostInput{Text: "pic"},
		&ImageUpload{Filename: "small.png", Data: pngBytes(t, 4, 4)})
	require.ErrorIs(t, err, errDB)
	assert.Zero(t, f.media.len())
}

func TestPostService_UpdateOnlyByAuthor(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "leo")
	other := f.user(t, "mia")
	post := f.post(t, author, nil, "original")

	_, err := f.postSvc.Update(context.Background(), other, post.ID, form.PostInput{Text: "hijacked"}, nil)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.postSvc.Update(context.Background(), nil, post.ID, form.PostInput{Text: "hijacked"}, nil)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	stored, _ := f.posts.GetByID(context.Background(), post.ID)
	assert.Equal(t, "original", stored.Text)

	_, err = f.postSvc.GetForEdit(context.Background(), author, 12345)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPostService_UpdateImageLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "leo")

	post, err := f.postSvc.Create(ctx, author, form.PostInput{Text: "v1"},
		&ImageUpload{Filename: "a.png", Data: pngBytes(t, 4, 4)})
	require.NoError(t, err)
	first := post.Image

	// No upload and no clear: the image stays.
	post, err = f.postSvc.Update(ctx, author, post.ID, form.PostInput{Text: "v2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first, post.Image)
	assert.Equal(t, "v2", post.Text)

	// A new upload replaces the old file.
	post, err = f.postSvc.Update(ctx, author, post.ID, form.PostInput{Text: "v3"},
		&ImageUpload{Filename: "b.png", Data: pngBytes(t, 6, 6)})
	require.NoError(t, err)
	second := post.Image
	assert.NotEqual(t, first, second)
	assert.False(t, f.media.has(first))
	assert.True(t, f.media.has(second))

	// Clearing drops it.
	post, err = f.postSvc.Update(ctx, author, post.ID, form.PostInput{Text: "v4", ClearImage: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, post.Image)
	assert.False(t, f.media.has(second))

	stored, _ := f.posts.GetByID(ctx, post.ID)
	assert.Empty(t, stored.Image)
	assert.Equal(t, "v4", stored.Text)
}

func TestPostService_UpdateCanRemoveGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "leo")
	g := f.group(t, "cats")
	post := f.post(t, author, g, "tagged")

	updated, err := f.postSvc.Update(ctx, author, post.ID, form.PostInput{Text: "untagged"}, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.GroupID)

	_, page, err := f.postSvc.GroupPosts(ctx, "cats", "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestPostService_IndexPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "leo")
	for i := 1; i <= 13; i++ {
		f.post(t, author, nil, fmt.Sprintf("post %d", i))
	}

	tests := []struct {
		page       string
		wantNumber int
		wantLen    int
		wantFirst  string
	}{
		{page: "", wantNumber: 1, wantLen: 10, wantFirst: "post 13"},
		{page: "2", wantNumber: 2, wantLen: 3, wantFirst: "post 3"},
		{page: "99", wantNumber: 2, wantLen: 3, wantFirst: "post 3"},
		{page: "abc", wantNumber: 1, wantLen: 10, wantFirst: "post 13"},
		{page: "-4", wantNumber: 1, wantLen: 10, wantFirst: "post 13"},
	}

	for _, tt := range tests {
		t.Run("page="+tt.page, func(t *testing.T) {
			p, err := f.postSvc.Index(ctx, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNumber, p.Number)
			assert.Equal(t, 2, p.NumPages)
			assert.Equal(t, 13, p.Count)
			require.Len(t, p.Items, tt.wantLen)
			assert.Equal(t, tt.wantFirst, p.Items[0].Text)
			assert.NotNil(t, p.Items[0].Author)
		})
	}
}

func TestPostService_IndexEmpty(t *testing.T) {
	f := newFixture(t)

	p, err := f.postSvc.Index(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 1, p.NumPages)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}

func TestPostService_IndexRepoError(t *testing.T) {
	f := newFixture(t)
	f.posts.countErr = errDB

	_, err := f.postSvc.Index(context.Background(), "")
	assert.ErrorIs(t, err, errDB)
}

func TestPostService_GroupPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "leo")
	cats := f.group(t, "cats")
	dogs := f.group(t, "dogs")
	f.post(t, author, cats, "meow")
	f.post(t, author, dogs, "woof")
	f.post(t, author, nil, "plain")

	g, page, err := f.postSvc.GroupPosts(ctx, "cats", "")
	require.NoError(t, err)
	assert.Equal(t, cats.ID, g.ID)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "meow", page.Items[0].Text)

	_, _, err = f.postSvc.GroupPosts(ctx, "birds", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPostService_Profile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "leo")
	fan := f.user(t, "mia")
	f.post(t, author, nil, "by leo")
	f.post(t, fan, nil, "by mia")
	_, err := f.followSvc.Follow(ctx, fan, "leo")
	require.NoError(t, err)

	tests := []struct {
		name          string
		viewer        *model.User
		wantFollowing bool
	}{
		{name: "anonymous", viewer: nil, wantFollowing: false},
		{name: "follower", viewer: fan, wantFollowing: true},
		{name: "self", viewer: author, wantFollowing: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.postSvc.Profile(ctx, tt.viewer, "leo", "")
			require.NoError(t, err)
			assert.Equal(t, author.ID, p.Author.ID)
			assert.Equal(t, tt.wantFollowing, p.Following)
			assert.Equal(t, 1, p.FollowerCount)
			assert.Equal(t, 0, p.FollowingCount)
			require.Len(t, p.Posts.Items, 1)
			assert.Equal(t, "by leo", p.Posts.Items[0].Text)
		})
	}

	_, err = f.postSvc.Profile(ctx, nil, "nobody", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPostService_FeedOnlyFollowedAuthors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	reader := f.user(t, "reader")
	followed := f.user(t, "followed")
	stranger := f.user(t, "stranger")
	f.post(t, followed, nil, "from followed")
	f.post(t, stranger, nil, "from stranger")
	f.post(t, reader, nil, "from reader")

	_, err := f.followSvc.Follow(ctx, reader, "followed")
	require.NoError(t, err)

	feed, err := f.postSvc.Feed(ctx, reader, "")
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "from followed", feed.Items[0].Text)

	// The stranger follows nobody.
	feed, err = f.postSvc.Feed(ctx, stranger, "")
	require.NoError(t, err)
	assert.Empty(t, feed.Items)

	_, err = f.postSvc.Feed(ctx, nil, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestPostService_AddCommentAndDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "leo")
	reader := f.user(t, "mia")
	post := f.post(t, author, nil, "hello")

	_, err := f.postSvc.AddComment(ctx, reader, post.ID, form.CommentInput{Text: " first "})
	require.NoError(t, err)
	_, err = f.postSvc.AddComment(ctx, author, post.ID, form.CommentInput{Text: "second"})
	require.NoError(t, err)

	got, comments, err := f.postSvc.Detail(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, reader.ID, comments[0].AuthorID)
	assert.Equal(t, "second", comments[1].Text)
}

func TestPostService_AddCommentErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.user(t, "leo")
	post := f.post(t, author, nil, "hello")

	_, err := f.postSvc.AddComment(ctx, author, post.ID, form.CommentInput{Text: "  "})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.postSvc.AddComment(ctx, author, 999, form.CommentInput{Text: "hi"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.postSvc.AddComment(ctx, nil, post.ID, form.CommentInput{Text: "hi"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, comments, err := f.postSvc.Detail(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestPostService_Search(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "leo")
	f.post(t, author, nil, "about cats")
	f.post(t, author, nil, "about dogs")

	p, err := f.postSvc.Search(context.Background(), "cats", "")
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "about cats", p.Items[0].Text)
}

func TestParseID(t *testing.T) {
	id, err := ParseID("post", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-1", "9999999999999999999999"} {
		_, err := ParseID("post", raw)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("ParseID(%q) error = %v, want ErrNotFound", raw, err)
		}
	}
}
