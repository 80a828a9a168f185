package handler

// ERROR MAPPING:
// Services return apperror values; this file decides what each one means
// for a browser. The service layer never knows about status codes.
//
//	ErrNotFound   → 404 page
//	ErrValidation → handled by the form handlers (re-render with errors)
//	ErrForbidden  → silent redirect, chosen by the handler
//	anything else → 500 page, details only in the log
//
// Raw error text never reaches the page: it may contain SQL or file paths.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/yatube/internal/apperror"
)

// Fail renders the page matching err.
func (s *Site) Fail(w http.ResponseWriter, req *Request, err error) {
	if errors.Is(err, apperror.ErrNotFound) {
		s.renderNotFound(w, req)
		return
	}
	s.ServerError(w, req, err)
}

func (s *Site) ServerError(w http.ResponseWriter, req *Request, err error) {
	s.logger.Error("request failed",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("requestID", req.RequestID),
		slog.String("error", err.Error()),
	)
	s.Render(w, req, http.StatusInternalServerError, "500", nil)
}

// NotFound is the router's fallback for unknown paths.
func (s *Site) NotFound(w http.ResponseWriter, r *http.Request) {
	s.renderNotFound(w, s.Request(r))
}

func (s *Site) renderNotFound(w http.ResponseWriter, req *Request) {
	s.Render(w, req, http.StatusNotFound, "404", View{"Path": req.URL.Path})
}

// formErrors returns the field messages of a validation error, or nil when
// err is something else and the caller should Fail instead.
func formErrors(err error) map[string]string {
	if !errors.Is(err, apperror.ErrValidation) {
		return nil
	}
	return apperror.FieldErrors(err)
}
