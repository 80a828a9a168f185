package handler

import (
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/service"
)

// LoginURL is where RequireAuth and the handlers send anonymous visitors.
const LoginURL = "/auth/login/"

// Request is the per-request context every page handler works from: the
// HTTP request plus who is asking. User is nil for anonymous visitors.
type Request struct {
	*http.Request
	User      *model.User
	RequestID string
}

// Site is what every page handler shares: the templates, the current-user
// lookup and the logger.
type Site struct {
	render   *Renderer
	accounts *service.AuthService
	logger   *slog.Logger
}

func NewSite(render *Renderer, accounts *service.AuthService, logger *slog.Logger) *Site {
	return &Site{render: render, accounts: accounts, logger: logger}
}

// Request resolves the session user. A token for a user that no longer
// exists is treated as anonymous.
func (s *Site) Request(r *http.Request) *Request {
	req := &Request{Request: r, RequestID: chimiddleware.GetReqID(r.Context())}

	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return req
	}
	user, err := s.accounts.GetUserByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to load session user",
				slog.Int64("userID", id),
				slog.String("requestID", req.RequestID),
				slog.String("error", err.Error()),
			)
		}
		return req
	}
	req.User = user
	return req
}

// RequireUser returns the logged in user, or redirects to the login page
// and returns nil.
func (s *Site) RequireUser(w http.ResponseWriter, req *Request) *model.User {
	if req.User == nil {
		http.Redirect(w, req.Request, auth.LoginRedirectURL(LoginURL, req.URL.RequestURI()), http.StatusFound)
	}
	return req.User
}

func (s *Site) Render(w http.ResponseWriter, req *Request, status int, page string, data View) {
	s.render.Render(w, req, status, page, data)
}
