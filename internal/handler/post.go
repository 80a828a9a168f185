package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/form"
	"github.com/sakif/yatube/internal/media"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/service"
)

// maxUploadBody caps a post form submission: the image limit plus room for
// the text fields and multipart framing.
const maxUploadBody = media.DefaultMaxSize + 1<<20

// PostHandler serves the post listings, the post page and the post forms.
type PostHandler struct {
	*Site
	posts *service.PostService
}

func NewPostHandler(site *Site, posts *service.PostService) *PostHandler {
	return &PostHandler{Site: site, posts: posts}
}

// HandleIndex lists every post.
//
// HTTP: GET /
func (h *PostHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)

	page, err := h.posts.Index(r.Context(), r.URL.Query().Get("page"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}
	h.Render(w, req, http.StatusOK, "index", View{"Page": page})
}

// HandleGroup lists the posts of one group.
//
// HTTP: GET /group/{slug}/
func (h *PostHandler) HandleGroup(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)

	group, page, err := h.posts.GroupPosts(r.Context(), chi.URLParam(r, "slug"), r.URL.Query().Get("page"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}
	h.Render(w, req, http.StatusOK, "group", View{"Group": group, "Page": page})
}

// HandleDetail shows a post with its comments and an empty comment form.
//
// HTTP: GET /posts/{id}/
func (h *PostHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)

	id, err := service.ParseID("post", chi.URLParam(r, "id"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}

	post, comments, err := h.posts.Detail(r.Context(), id)
	if err != nil {
		h.Fail(w, req, err)
		return
	}
	h.Render(w, req, http.StatusOK, "detail", View{
		"Post":     post,
		"Comments": comments,
		"Form":     form.CommentInput{},
	})
}

// HandleCreate shows and processes the new post form.
//
// HTTP: GET, POST /create/
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)
	user := h.RequireUser(w, req)
	if user == nil {
		return
	}

	if r.Method != http.MethodPost {
		h.renderPostForm(w, req, false, nil, form.PostInput{}, nil)
		return
	}

	in, upload, err := readPostForm(w, r)
	if err != nil {
		h.renderPostForm(w, req, false, nil, in, formErrors(err))
		return
	}

	if _, err := h.posts.Create(r.Context(), user, in, upload); err != nil {
		if fields := formErrors(err); fields != nil {
			h.renderPostForm(w, req, false, nil, in, fields)
			return
		}
		h.Fail(w, req, err)
		return
	}

	http.Redirect(w, r, profileURL(user.Username), http.StatusFound)
}

// HandleEdit shows and processes the edit form. Someone else's post sends
// the visitor back to the post page without changing anything.
//
// HTTP: GET, POST /posts/{id}/edit/
func (h *PostHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)
	user := h.RequireUser(w, req)
	if user == nil {
		return
	}

	id, err := service.ParseID("post", chi.URLParam(r, "id"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}

	post, err := h.posts.GetForEdit(r.Context(), user, id)
	if err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			http.Redirect(w, r, postURL(id), http.StatusFound)
			return
		}
		h.Fail(w, req, err)
		return
	}

	if r.Method != http.MethodPost {
		in := form.PostInput{Text: post.Text}
		if post.GroupID != nil {
			in.Group = fmt.Sprint(*post.GroupID)
		}
		h.renderPostForm(w, req, true, post, in, nil)
		return
	}

	in, upload, err := readPostForm(w, r)
	if err != nil {
		h.renderPostForm(w, req, true, post, in, formErrors(err))
		return
	}

	if _, err := h.posts.Update(r.Context(), user, id, in, upload); err != nil {
		switch {
		case errors.Is(err, apperror.ErrForbidden):
			http.Redirect(w, r, postURL(id), http.StatusFound)
		case formErrors(err) != nil:
			h.renderPostForm(w, req, true, post, in, formErrors(err))
		default:
			h.Fail(w, req, err)
		}
		return
	}

	http.Redirect(w, r, postURL(id), http.StatusFound)
}

// HandleComment adds a comment and always returns to the post page.
// Anonymous visitors and empty comments are turned away silently.
//
// HTTP: POST /posts/{id}/comment/
func (h *PostHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)

	id, err := service.ParseID("post", chi.URLParam(r, "id"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}

	if req.User == nil {
		http.Redirect(w, r, postURL(id), http.StatusFound)
		return
	}

	in := form.CommentInput{Text: r.PostFormValue("text")}
	if _, err := h.posts.AddComment(r.Context(), req.User, id, in); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			h.Fail(w, req, err)
			return
		}
		if !errors.Is(err, apperror.ErrValidation) {
			h.Fail(w, req, err)
			return
		}
		h.logger.Debug("comment dropped", slog.Int64("postID", id), slog.String("requestID", req.RequestID))
	}

	http.Redirect(w, r, postURL(id), http.StatusFound)
}

func (h *PostHandler) renderPostForm(w http.ResponseWriter, req *Request, isEdit bool, post *model.Post, in form.PostInput, errs map[string]string) {
	groups, err := h.posts.Groups(req.Context())
	if err != nil {
		h.Fail(w, req, err)
		return
	}

	data := View{
		"IsEdit": isEdit,
		"Post":   post,
		"Form":   in,
		"Groups": groups,
	}
	if errs != nil {
		data["Errors"] = errs
	}
	h.Render(w, req, http.StatusOK, "create", data)
}

// readPostForm parses the multipart post form. A missing file is fine;
// an unreadable body is reported as an image error since only the upload
// can make it that large.
func readPostForm(w http.ResponseWriter, r *http.Request) (form.PostInput, *service.ImageUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return form.PostInput{}, nil, apperror.ValidationFailed("image",
			fmt.Sprintf("Image exceeds %dMB.", media.DefaultMaxSize/(1024*1024)))
	}

	in := form.PostInput{
		Text:       r.PostFormValue("text"),
		Group:      r.PostFormValue("group"),
		ClearImage: r.PostFormValue("image-clear") != "",
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return in, nil, nil
		}
		return in, nil, apperror.ValidationFailed("image", "The submitted file is empty.")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, media.DefaultMaxSize+1))
	if err != nil {
		return in, nil, apperror.ValidationFailed("image", "The submitted file could not be read.")
	}
	if len(data) == 0 && header.Filename == "" {
		return in, nil, nil
	}
	return in, &service.ImageUpload{Filename: header.Filename, Data: data}, nil
}

func postURL(id int64) string {
	return fmt.Sprintf("/posts/%d/", id)
}

func profileURL(username string) string {
	return "/profile/" + url.PathEscape(username) + "/"
}
