// Package handler contains the HTML page handlers of the blog.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path values, query, form fields, uploads)
//  2. Call the service layer with the acting user
//  3. Render a page, redirect, or map the error to a 404/500 page
//
// Handlers never hold business rules; a rule that matters belongs in
// internal/service where it can be tested without HTTP.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/yatube/internal/model"
)

// View is the data a template receives. Render fills in the keys every
// page needs (User, RequestURI, Errors) so handlers only add their own.
type View map[string]any

// Renderer holds one parsed template set per page.
//
// Each page is parsed together with the base layout and the partials:
//   - base.html defines the page frame with a {{template "content" .}} hole
//   - <page>.html defines "content" (and optionally "title")
//
// Parsing happens once at startup; executing a parsed set is cheap.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses every templates/*.html page in fsys except the layout.
// imageURL turns a stored image key into a link.
func NewRenderer(fsys fs.FS, imageURL func(string) string, logger *slog.Logger) (*Renderer, error) {
	funcs := templateFuncs(imageURL)

	names, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("handler: listing templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		page := strings.TrimSuffix(path.Base(name), ".html")
		if page == "base" {
			continue
		}

		tmpl, err := template.New(page).Funcs(funcs).ParseFS(fsys,
			"templates/base.html",
			"templates/partials/*.html",
			name,
		)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s: %w", name, err)
		}
		pages[page] = tmpl
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render executes page into a buffer first, so a template error becomes a
// clean 500 instead of half a page.
func (rd *Renderer) Render(w http.ResponseWriter, req *Request, status int, page string, data View) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = View{}
	}
	data["User"] = req.User
	data["RequestURI"] = req.URL.RequestURI()
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("requestID", req.RequestID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func templateFuncs(imageURL func(string) string) template.FuncMap {
	return template.FuncMap{
		"imageURL": imageURL,
		"date": func(t time.Time) string {
			return t.Format("2 January 2006")
		},
		"datetime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"dict":         dict,
		"linebreaksbr": linebreaksbr,
		"owns": func(u *model.User, authorID int64) bool {
			return u != nil && u.ID == authorID
		},
		"pageURL": pageURL,
		"preview": func(p model.Post) string {
			return p.String()
		},
		"selected": func(groupID *int64, id int64) bool {
			return groupID != nil && *groupID == id
		},
	}
}

// dict builds a map from key/value pairs so a partial can receive more
// than one value: {{template "post" (dict "Post" . "User" $.User)}}.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

// linebreaksbr escapes s and turns newlines into <br>.
func linebreaksbr(s string) template.HTML {
	escaped := template.HTMLEscapeString(strings.ReplaceAll(s, "\r\n", "\n"))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

// pageURL links to page n, keeping any extra query (a search term). extra
// may be missing from the view, in which case it is nil.
func pageURL(extra any, n int) string {
	q := url.Values{}
	if s, ok := extra.(string); ok && s != "" {
		if parsed, err := url.ParseQuery(s); err == nil {
			q = parsed
		}
	}
	q.Set("page", strconv.Itoa(n))
	return "?" + q.Encode()
}
