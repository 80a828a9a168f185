// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: New builds every dependency
// (database, caches, media storage, services, handlers) from the config
// and wires the routes, so nothing else in the tree constructs its own
// collaborators.
//
//	config → sqlite.DB → services → handlers → chi router
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/cache"
	"github.com/sakif/yatube/internal/config"
	"github.com/sakif/yatube/internal/handler"
	"github.com/sakif/yatube/internal/media"
	"github.com/sakif/yatube/internal/middleware"
	sqliteRepo "github.com/sakif/yatube/internal/repository/sqlite"
	"github.com/sakif/yatube/internal/service"
	"github.com/sakif/yatube/web"
)

// indexCachePrefix namespaces the home page entries in the page cache.
const indexCachePrefix = "page:index:"

// Server represents the HTTP server and everything it owns. The database
// and the page cache are closed when Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db     *sqliteRepo.DB
	pages  cache.Store
	tokens *auth.TokenService
}

// Option adjusts a Server before the routes are built.
type Option func(*options)

type options struct {
	passwords *auth.PasswordService
	media     media.Store
}

// WithPasswordService replaces the default bcrypt cost; tests use it to
// keep hashing fast.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(o *options) { o.passwords = p }
}

// WithMediaStore replaces the store chosen by MEDIA_BACKEND.
func WithMediaStore(s media.Store) Option {
	return func(o *options) { o.media = s }
}

// New creates a Server from cfg.
//
// IMPORT ALIAS:
// repository/sqlite is imported as sqliteRepo so it cannot be confused
// with the modernc.org/sqlite driver.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	pages, err := newPageStore(ctx, cfg.Cache)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating page cache: %w", err)
	}

	if o.media == nil {
		if o.media, err = newMediaStore(ctx, cfg.Media); err != nil {
			pages.Close()
			db.Close()
			return nil, fmt.Errorf("creating media store: %w", err)
		}
	}
	if o.passwords == nil {
		o.passwords = auth.NewPasswordService()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		pages:  pages,
		tokens: tokens,
	}

	if err := s.setupRoutes(o); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func newPageStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "redis":
		return cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return cache.NewMemoryStore(cfg.MaxBytes)
	}
}

func newMediaStore(ctx context.Context, cfg config.MediaConfig) (media.Store, error) {
	switch cfg.Backend {
	case "minio":
		return media.NewMinIOStore(ctx, media.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
	default:
		return media.NewLocalStore(cfg.Root, cfg.URL)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTES:
//
//	GET       /                              index (page cached)
//	GET       /group/{slug}/                 group posts
//	GET       /profile/{username}/           author posts
//	GET       /posts/{id}/                   post + comments
//	POST      /posts/{id}/comment/           add comment
//	GET       /about/author/, /about/tech/   static pages
//	GET,POST  /create/                       login required
//	GET,POST  /posts/{id}/edit/              login required, author only
//	GET,POST  /profile/{username}/follow/    login required
//	GET,POST  /profile/{username}/unfollow/  login required
//	GET       /follow/                       login required
//	          /auth/...                      signup, login, logout, GitHub
//	GET,POST  /auth/password_change/         login required
//	          /admin/...                     staff only
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request
//  2. RealIP: extracts the client IP from proxy headers
//  3. Logger: logs each request with timing info and the request ID
//  4. Recoverer: turns a panic into a 500 instead of crashing
//  5. OptionalAuth: puts the session user ID into the context
func (s *Server) setupRoutes(o options) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.OptionalAuth(s.tokens))

	// === Services ===
	users := s.db.Users()
	postService := service.NewPostService(service.PostDeps{
		Posts:    s.db.Posts(),
		Groups:   s.db.Groups(),
		Comments: s.db.Comments(),
		Users:    users,
		Follows:  s.db.Follows(),
	}, media.NewImageProcessor(), o.media, s.config.PostsPerPage, s.logger)
	followService := service.NewFollowService(users, s.db.Follows(), s.logger)
	authService := service.NewAuthService(users, s.tokens, o.passwords, s.logger)
	groupService := service.NewGroupService(s.db.Groups(), s.logger)

	// === Handlers ===
	renderer, err := handler.NewRenderer(web.FS, postService.ImageURL, s.logger)
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	site := handler.NewSite(renderer, authService, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	posts := handler.NewPostHandler(site, postService)
	profiles := handler.NewProfileHandler(site, postService, followService)
	accounts := handler.NewAuthHandler(site, authService, s.tokens, github, s.config.SecureCookies)
	admin := handler.NewAdminHandler(site, groupService, postService, s.pages)

	// === Static files and media ===
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return fmt.Errorf("opening static files: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	if local, ok := o.media.(*media.LocalStore); ok && strings.HasPrefix(s.config.Media.URL, "/") {
		prefix := strings.TrimSuffix(s.config.Media.URL, "/") + "/"
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(local.Root()))))
	}

	// === Pages ===
	s.router.With(cache.Page(s.pages, s.config.Cache.TTL, indexCachePrefix, s.logger)).Get("/", posts.HandleIndex)
	s.router.Get("/group/{slug}/", posts.HandleGroup)
	s.router.Get("/profile/{username}/", profiles.HandleProfile)
	s.router.Get("/posts/{id}/", posts.HandleDetail)
	s.router.Post("/posts/{id}/comment/", posts.HandleComment)
	s.router.Get("/about/author/", site.HandleAboutAuthor)
	s.router.Get("/about/tech/", site.HandleAboutTech)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(handler.LoginURL))

		r.Get("/create/", posts.HandleCreate)
		r.Post("/create/", posts.HandleCreate)
		r.Get("/posts/{id}/edit/", posts.HandleEdit)
		r.Post("/posts/{id}/edit/", posts.HandleEdit)
		r.Get("/profile/{username}/follow/", profiles.HandleFollow)
		r.Post("/profile/{username}/follow/", profiles.HandleFollow)
		r.Get("/profile/{username}/unfollow/", profiles.HandleUnfollow)
		r.Post("/profile/{username}/unfollow/", profiles.HandleUnfollow)
		r.Get("/follow/", profiles.HandleFeed)
	})

	// === Accounts ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/signup/", accounts.HandleSignup)
		r.Post("/signup/", accounts.HandleSignup)
		r.Get("/login/", accounts.HandleLogin)
		r.Post("/login/", accounts.HandleLogin)
		r.Get("/logout/", accounts.HandleLogout)
		r.Post("/logout/", accounts.HandleLogout)
		r.Get("/github/login", accounts.HandleGitHubLogin)
		r.Get("/github/callback", accounts.HandleGitHubCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(handler.LoginURL))

			r.Get("/password_change/", accounts.HandlePasswordChange)
			r.Post("/password_change/", accounts.HandlePasswordChange)
			r.Get("/password_change/done/", accounts.HandlePasswordChangeDone)
		})
	})

	// === Staff ===
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAuth(handler.LoginURL))

		r.Get("/", admin.HandleDashboard)
		r.Post("/groups/", admin.HandleCreateGroup)
		r.Post("/cache/clear/", admin.HandleClearCache)
	})

	s.router.NotFound(site.NotFound)

	return nil
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the page cache and the database.
func (s *Server) Close() error {
	return errors.Join(s.pages.Close(), s.db.Close())
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the page cache and the database (flushes the WAL)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("cache", s.config.Cache.Backend),
			slog.String("media", s.config.Media.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
