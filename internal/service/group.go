package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/form"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

const msgSlugTaken = "Group with this Slug already exists."

// GroupService is the staff side of groups. Readers only ever see groups
// through PostService.
type GroupService struct {
	groups repository.GroupRepository
	logger *slog.Logger
}

func NewGroupService(groups repository.GroupRepository, logger *slog.Logger) *GroupService {
	return &GroupService{groups: groups, logger: logger}
}

func (s *GroupService) List(ctx context.Context) ([]model.Group, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/group: listing groups: %w", err)
	}
	return groups, nil
}

// Create adds a group. Only staff may do it.
func (s *GroupService) Create(ctx context.Context, actor *model.User, in form.GroupInput) (*model.Group, error) {
	if actor == nil || !actor.IsStaff {
		return nil, apperror.Forbidden("only staff can create groups")
	}

	in.Clean()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	group := &model.Group{Title: in.Title, Slug: in.Slug, Description: in.Description}
	if err := group.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, apperror.ValidationFailed(groupField(verrs[0].Field()), "Enter a valid value.")
		}
		return nil, fmt.Errorf("service/group: validating group: %w", err)
	}

	if err := s.groups.Create(ctx, group); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("slug", msgSlugTaken)
		}
		return nil, fmt.Errorf("service/group: creating group %q: %w", in.Slug, err)
	}

	s.logger.Info("group created",
		slog.Int64("id", group.ID),
		slog.String("slug", group.Slug),
		slog.Int64("userID", actor.ID),
	)
	return group, nil
}

func groupField(structField string) string {
	switch structField {
	case "Title":
		return "title"
	case "Slug":
		return "slug"
	case "Description":
		return "description"
	}
	return "__all__"
}
