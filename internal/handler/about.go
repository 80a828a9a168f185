package handler

import "net/http"

// HandleAboutAuthor renders the static page about the site author.
//
// HTTP: GET /about/author/
func (s *Site) HandleAboutAuthor(w http.ResponseWriter, r *http.Request) {
	s.Render(w, s.Request(r), http.StatusOK, "about_author", nil)
}

// HandleAboutTech renders the static page listing the technologies used.
//
// HTTP: GET /about/tech/
func (s *Site) HandleAboutTech(w http.ResponseWriter, r *http.Request) {
	s.Render(w, s.Request(r), http.StatusOK, "about_tech", nil)
}
