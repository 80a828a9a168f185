package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/yatube/internal/service"
)

// ProfileHandler serves author pages, the follow buttons and the feed.
type ProfileHandler struct {
	*Site
	posts   *service.PostService
	follows *service.FollowService
}

func NewProfileHandler(site *Site, posts *service.PostService, follows *service.FollowService) *ProfileHandler {
	return &ProfileHandler{Site: site, posts: posts, follows: follows}
}

// HandleProfile lists an author's posts.
//
// HTTP: GET /profile/{username}/
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)

	profile, err := h.posts.Profile(r.Context(), req.User, chi.URLParam(r, "username"), r.URL.Query().Get("page"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}
	h.Render(w, req, http.StatusOK, "profile", View{
		"Profile": profile,
		"Author":  profile.Author,
		"Page":    profile.Posts,
		"IsSelf":  profile.IsSelf(req.User),
	})
}

// HandleFollow subscribes the logged in user to the author and returns to
// the profile. Following twice or following yourself changes nothing.
//
// HTTP: GET, POST /profile/{username}/follow/
func (h *ProfileHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)
	user := h.RequireUser(w, req)
	if user == nil {
		return
	}

	author, err := h.follows.Follow(r.Context(), user, chi.URLParam(r, "username"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}
	http.Redirect(w, r, profileURL(author.Username), http.StatusFound)
}

// HandleUnfollow drops the subscription, if any, and returns to the profile.
//
// HTTP: GET, POST /profile/{username}/unfollow/
func (h *ProfileHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)
	user := h.RequireUser(w, req)
	if user == nil {
		return
	}

	author, err := h.follows.Unfollow(r.Context(), user, chi.URLParam(r, "username"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}
	http.Redirect(w, r, profileURL(author.Username), http.StatusFound)
}

// HandleFeed lists posts by the authors the user follows.
//
// HTTP: GET /follow/
func (h *ProfileHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	req := h.Request(r)
	user := h.RequireUser(w, req)
	if user == nil {
		return
	}

	page, err := h.posts.Feed(r.Context(), user, r.URL.Query().Get("page"))
	if err != nil {
		h.Fail(w, req, err)
		return
	}
	h.Render(w, req, http.StatusOK, "follow", View{"Page": page})
}
