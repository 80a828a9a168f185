package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// FollowService manages who follows whom. Both operations are idempotent:
// following yourself, following twice and unfollowing a stranger all
// succeed without changing anything.
type FollowService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	logger  *slog.Logger
}

func NewFollowService(users repository.UserRepository, follows repository.FollowRepository, logger *slog.Logger) *FollowService {
	return &FollowService{users: users, follows: follows, logger: logger}
}

// Follow makes follower follow the author called username.
func (s *FollowService) Follow(ctx context.Context, follower *model.User, username string) (*model.User, error) {
	if follower == nil {
		return nil, apperror.Forbidden("following needs a logged in user")
	}

	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/follow: loading author %q: %w", username, err)
	}
	exists, err := isFollowing(ctx, s.follows, follower, author.ID)
	if err != nil {
		return nil, fmt.Errorf("service/follow: %w", err)
	}
	// Already following, or following yourself.
	if exists || author.ID == follower.ID {
		return author, nil
	}

	err = s.follows.Create(ctx, &model.Follow{UserID: follower.ID, AuthorID: author.ID})
	switch {
	case err == nil:
		s.logger.Info("author followed", slog.Int64("userID", follower.ID), slog.Int64("authorID", author.ID))
	case errors.Is(err, apperror.ErrConflict):
		// A parallel request got there first; the end state is the same.
	default:
		return nil, fmt.Errorf("service/follow: creating follow: %w", err)
	}
	return author, nil
}

// Unfollow removes the relation if it exists.
func (s *FollowService) Unfollow(ctx context.Context, follower *model.User, username string) (*model.User, error) {
	if follower == nil {
		return nil, apperror.Forbidden("unfollowing needs a logged in user")
	}

	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/follow: loading author %q: %w", username, err)
	}

	deleted, err := s.follows.Delete(ctx, follower.ID, author.ID)
	if err != nil {
		return nil, fmt.Errorf("service/follow: deleting follow: %w", err)
	}
	if deleted {
		s.logger.Info("author unfollowed", slog.Int64("userID", follower.ID), slog.Int64("authorID", author.ID))
	}
	return author, nil
}

// isFollowing reports whether viewer follows authorID. Anonymous viewers
// and authors looking at themselves never follow.
func isFollowing(ctx context.Context, follows repository.FollowRepository, viewer *model.User, authorID int64) (bool, error) {
	if viewer == nil || viewer.ID == authorID {
		return false, nil
	}
	ok, err := follows.Exists(ctx, viewer.ID, authorID)
	if err != nil {
		return false, fmt.Errorf("checking follow %d -> %d: %w", viewer.ID, authorID, err)
	}
	return ok, nil
}
