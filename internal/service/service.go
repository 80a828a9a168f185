// Package service contains the business rules of the blog.
//
//	Handler (HTTP)  → parses forms, renders pages, redirects
//	Service         → validates input, checks permissions, orchestrates
//	Repository      → reads/writes the database
//
// Services never see an *http.Request. The acting user is an explicit
// parameter (nil for anonymous), and every failure is an apperror the
// handlers translate into a 404, a re-rendered form or a redirect.
package service

import (
	"context"
	"log/slog"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/paginator"
	"github.com/sakif/yatube/internal/repository"
)

// ImageUpload is a file from a multipart form, already read into memory.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// PostPage is one page of a post listing.
type PostPage = paginator.Page[model.Post]

// listPosts counts first so the requested page can be clamped, then loads
// just that window.
func listPosts(ctx context.Context, posts repository.PostRepository, filter repository.PostFilter, perPage int, page string) (PostPage, error) {
	total, err := posts.Count(ctx, filter)
	if err != nil {
		return PostPage{}, err
	}

	w := paginator.New(total, perPage, page)
	items, err := posts.List(ctx, filter, repository.ListOptions{Limit: w.Limit, Offset: w.Offset})
	if err != nil {
		return PostPage{}, err
	}
	return paginator.NewPage(w, items), nil
}

// mergeFieldErrors folds the field errors of err into fields. Errors that
// are not validation failures are returned unchanged.
func mergeFieldErrors(fields map[string]string, err error) error {
	if err == nil {
		return nil
	}
	fe := apperror.FieldErrors(err)
	if fe == nil {
		return err
	}
	for k, v := range fe {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}
	return nil
}

func userAttr(u *model.User) slog.Attr {
	if u == nil {
		return slog.String("user", "anonymous")
	}
	return slog.Int64("userID", u.ID)
}
