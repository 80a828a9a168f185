package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/yatube/internal/auth"
)

// entry is what the store holds for one page.
type entry struct {
	ContentType string `json:"ct"`
	Body        []byte `json:"body"`
}

// Page caches successful GET responses of the wrapped handler for ttl.
//
// The key is prefix + viewer + request URI: the viewer part keeps a
// logged-in user's navigation bar away from everybody else, and the URI
// (query included) keeps ?page=2 apart from page 1. HEAD requests are
// answered from a cached GET but never populate the cache. Only 200
// responses that do not set cookies are stored.
func Page(store Store, ttl time.Duration, prefix string, logger *slog.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxAge := "private, max-age=" + strconv.Itoa(int(ttl.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := pageKey(prefix, r)

			raw, ok, err := store.Get(r.Context(), key)
			if err != nil {
				logger.Warn("page cache read failed", slog.String("key", key), slog.String("error", err.Error()))
			}
			if ok {
				var e entry
				if err := json.Unmarshal(raw, &e); err == nil {
					w.Header().Set("Content-Type", e.ContentType)
					w.Header().Set("Cache-Control", maxAge)
					w.Header().Set("X-Cache", "HIT")
					w.WriteHeader(http.StatusOK)
					if r.Method == http.MethodGet {
						w.Write(e.Body)
					}
					return
				}
				logger.Warn("page cache entry unreadable", slog.String("key", key))
			}

			if r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK, cacheControl: maxAge}
			next.ServeHTTP(rec, r)

			if rec.status != http.StatusOK || w.Header().Get("Set-Cookie") != "" {
				return
			}

			value, err := json.Marshal(entry{
				ContentType: w.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err != nil {
				return
			}
			if err := store.Set(r.Context(), key, value, ttl); err != nil {
				logger.Warn("page cache write failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}
}

func pageKey(prefix string, r *http.Request) string {
	viewer := "anon"
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		viewer = "u" + strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s%s:%s", prefix, viewer, r.URL.RequestURI())
}

// recorder copies everything written to the client into body and marks
// cacheable responses on the way out.
type recorder struct {
	http.ResponseWriter
	status       int
	wroteHeader  bool
	cacheControl string
	body         bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	if code == http.StatusOK {
		r.Header().Set("Cache-Control", r.cacheControl)
		r.Header().Set("X-Cache", "MISS")
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
