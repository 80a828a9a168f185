package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/yatube/internal/cache"
	"github.com/sakif/yatube/internal/form"
	"github.com/sakif/yatube/internal/service"
)

// AdminHandler is the small staff area: group management, a post search
// and a button that empties the page cache. Everyone else is sent home.
type AdminHandler struct {
	*Site
	groups *service.GroupService
	posts  *service.PostService
	pages  cache.Store
}

func NewAdminHandler(site *Site, groups *service.GroupService, posts *service.PostService, pages cache.Store) *AdminHandler {
	return &AdminHandler{Site: site, groups: groups, posts: posts, pages: pages}
}

// staff returns the request when the visitor is staff, otherwise redirects
// and returns nil.
func (h *AdminHandler) staff(w http.ResponseWriter, r *http.Request) *Request {
	req := h.Request(r)
	if req.User == nil || !req.User.IsStaff {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil
	}
	return req
}

// HandleDashboard shows the staff page: groups, the new group form and a
// post search.
//
// HTTP: GET /admin/?q=<search>&page=N
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	req := h.staff(w, r)
	if req == nil {
		return
	}
	h.renderDashboard(w, req, form.GroupInput{}, nil)
}

// HandleCreateGroup adds a group and returns to the dashboard, or shows the
// dashboard again with the form errors.
//
// HTTP: POST /admin/groups/
func (h *AdminHandler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	req := h.staff(w, r)
	if req == nil {
		return
	}

	in := form.GroupInput{
		Title:       r.PostFormValue("title"),
		Slug:        r.PostFormValue("slug"),
		Description: r.PostFormValue("description"),
	}

	group, err := h.groups.Create(r.Context(), req.User, in)
	if err != nil {
		if fields := formErrors(err); fields != nil {
			h.renderDashboard(w, req, in, fields)
			return
		}
		h.Fail(w, req, err)
		return
	}

	http.Redirect(w, r, "/admin/?created="+url.QueryEscape(group.Slug), http.StatusFound)
}

// HandleClearCache drops every cached page.
//
// HTTP: POST /admin/cache/clear/
func (h *AdminHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	req := h.staff(w, r)
	if req == nil {
		return
	}

	if err := h.pages.Clear(r.Context()); err != nil {
		h.Fail(w, req, err)
		return
	}
	h.logger.Info("page cache cleared", slog.Int64("userID", req.User.ID))
	http.Redirect(w, r, "/admin/?cleared=1", http.StatusFound)
}

func (h *AdminHandler) renderDashboard(w http.ResponseWriter, req *Request, in form.GroupInput, errs map[string]string) {
	groups, err := h.groups.List(req.Context())
	if err != nil {
		h.Fail(w, req, err)
		return
	}

	query := strings.TrimSpace(req.URL.Query().Get("q"))
	data := View{
		"Groups": groups,
		"Form":   in,
		"Query":  query,
	}
	if errs != nil {
		data["Errors"] = errs
	}

	switch {
	case req.URL.Query().Get("cleared") != "":
		data["Notice"] = "Page cache cleared."
	case req.URL.Query().Get("created") != "":
		data["Notice"] = "Group " + req.URL.Query().Get("created") + " created."
	}

	if query != "" {
		page, err := h.posts.Search(req.Context(), query, req.URL.Query().Get("page"))
		if err != nil {
			h.Fail(w, req, err)
			return
		}
		data["Page"] = page
		data["PageQuery"] = url.Values{"q": {query}}.Encode()
	}

	h.Render(w, req, http.StatusOK, "admin", data)
}
