// Package repository declares the storage contracts the services depend on.
//
// One interface per entity. Services and handlers only ever see these
// interfaces, never SQL; the sqlite subpackage is one implementation.
package repository

import (
	"context"

	"github.com/sakif/yatube/internal/model"
)

// ListOptions is a LIMIT/OFFSET window, usually produced by the paginator.
type ListOptions struct {
	Limit  int
	Offset int
}

// PostFilter narrows a post listing. Zero values mean "no restriction";
// the fields combine with AND.
type PostFilter struct {
	AuthorID   int64 // posts written by this user
	GroupID    int64 // posts tagged to this group
	FollowedBy int64 // posts whose author is followed by this user
	Search     string
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id int64) error
}

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id int64) (*model.Group, error)
	GetBySlug(ctx context.Context, slug string) (*model.Group, error)
	List(ctx context.Context) ([]model.Group, error)
	Delete(ctx context.Context, id int64) error
}

// PostRepository returns posts newest-first with Author (and Group, when
// set) populated.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter PostFilter, opts ListOptions) ([]model.Post, error)
	Count(ctx context.Context, filter PostFilter) (int, error)
}

// CommentRepository returns comments oldest-first with Author populated.
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	Update(ctx context.Context, comment *model.Comment) error
	Delete(ctx context.Context, id int64) error
	ListByPost(ctx context.Context, postID int64) ([]model.Comment, error)
}

type FollowRepository interface {
	// Create returns an apperror.ErrConflict error when the pair exists.
	Create(ctx context.Context, follow *model.Follow) error
	Delete(ctx context.Context, userID, authorID int64) (bool, error)
	Exists(ctx context.Context, userID, authorID int64) (bool, error)
	CountFollowers(ctx context.Context, authorID int64) (int, error)
	CountFollowing(ctx context.Context, userID int64) (int, error)
}
