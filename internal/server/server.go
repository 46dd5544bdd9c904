// Package server wires storage, locks, events, services and handlers into
// one chi router, and runs it with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/social-graph/internal/auth"
	"github.com/sakif/social-graph/internal/config"
	"github.com/sakif/social-graph/internal/events"
	"github.com/sakif/social-graph/internal/handler"
	"github.com/sakif/social-graph/internal/middleware"
	"github.com/sakif/social-graph/internal/pairlock"
	sqliteRepo "github.com/sakif/social-graph/internal/repository/sqlite"
	"github.com/sakif/social-graph/internal/service"
	"github.com/sakif/social-graph/internal/upload"
)

// Server owns every long-lived resource and closes them on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db     *sqliteRepo.DB
	redis  *redis.Client      // nil when locks are in process
	broker *events.NatsBroker // nil when events are disabled
}

// New opens storage and the optional Redis and NATS connections, then builds
// the router. Anything opened before a failure is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	if cfg.Storage.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.Storage.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	s.db, err = sqliteRepo.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	uploads, err := upload.NewStore(cfg.Storage.UploadDir, cfg.Storage.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	passwords := auth.NewPasswordService(cfg.Auth.BcryptCost)

	var locks pairlock.Locker
	if cfg.Redis.Enabled() {
		s.redis, err = pairlock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		locks = pairlock.NewRedis(pairlock.NewRedisAdapter(s.redis), cfg.Redis.LockTTL, logger)
		logger.Info("pair locks backed by redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		locks = pairlock.NewLocal()
		logger.Info("pair locks in process; run a single instance")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.Enabled() {
		s.broker, err = events.NewNatsBroker(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, err
		}
		publisher = s.broker
		logger.Info("publishing events to NATS", slog.String("url", cfg.NATS.URL))
	}

	authService := service.NewAuthService(s.db, tokens, passwords, publisher, logger)
	userService := service.NewUserService(s.db, passwords, locks, publisher, logger)
	friendService := service.NewFriendService(s.db, locks, publisher, logger)
	postService := service.NewPostService(s.db, locks, publisher, logger)

	s.setupRoutes(routes{
		tokens:  tokens,
		uploads: uploads,
		users:   handler.NewUserHandler(authService, userService, uploads, logger),
		friends: handler.NewFriendHandler(friendService, logger),
		posts:   handler.NewPostHandler(postService, logger),
		auth:    s.authHandler(authService),
	})

	return s, nil
}

type routes struct {
	tokens  *auth.TokenService
	uploads *upload.Store
	users   *handler.UserHandler
	friends *handler.FriendHandler
	posts   *handler.PostHandler
	auth    *handler.AuthHandler // nil without GitHub credentials
}

func (s *Server) authHandler(authService *service.AuthService) *handler.AuthHandler {
	gh := s.config.GitHub
	if !gh.Enabled() {
		s.logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set; GitHub sign-in disabled")
		return nil
	}
	provider := auth.NewGitHubProvider(gh.ClientID, gh.ClientSecret, gh.CallbackURL)
	return handler.NewAuthHandler(provider, authService, s.logger)
}

// setupRoutes mounts every endpoint.
//
//	POST   /api/users/register                     register
//	POST   /api/users/login                        login
//	GET    /api/users                              list users
//	GET    /api/users/me                           current user          (auth)
//	GET    /api/users/{userId}                     get user              (auth)
//	PUT    /api/users/{userId}                     update profile        (auth, self)
//	DELETE /api/users/{userId}                     delete account        (auth, self)
//	POST   /api/users/{userId}/request/{friendId}  send friend request   (auth, self)
//	POST   /api/users/{userId}/pending/{friendId}  accept friend request (auth, self)
//	DELETE /api/users/{userId}/remove/{friendId}   deny friend request   (auth, self)
//	DELETE /api/users/{userId}/friends/{friendId}  unfriend              (auth, self)
//	GET    /api/users/{userId}/posts               list posts
//	GET    /api/users/{userId}/posts/date          list posts, newest-modified first
//	GET    /api/users/{userId}/posts/{postId}      get post
//	POST   /api/users/{userId}/posts               create post           (auth, self)
//	PUT    /api/users/{userId}/posts/{postId}      edit post             (auth, self)
//	DELETE /api/users/{userId}/posts/{postId}      delete post           (auth, self)
func (s *Server) setupRoutes(rt routes) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	fileServer := http.FileServer(http.Dir(rt.uploads.Dir()))
	s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if rt.auth != nil {
		s.router.Get("/auth/github/login", rt.auth.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", rt.auth.HandleGitHubCallback)
		s.router.Post("/auth/logout", rt.auth.HandleLogout)
	}

	requireAuth := auth.RequireAuth(rt.tokens)

	s.router.Route("/api/users", func(r chi.Router) {
		r.Post("/register", rt.users.HandleRegister)
		r.Post("/login", rt.users.HandleLogin)
		r.Get("/", rt.users.HandleList)

		r.Route("/{userId}/posts", func(r chi.Router) {
			r.Get("/", rt.posts.HandleList)
			r.Get("/date", rt.posts.HandleListByDate)
			r.Get("/{postId}", rt.posts.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", rt.posts.HandleCreate)
				r.Put("/{postId}", rt.posts.HandleEdit)
				r.Delete("/{postId}", rt.posts.HandleDelete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", rt.users.HandleMe)
			r.Get("/{userId}", rt.users.HandleGet)
			r.Put("/{userId}", rt.users.HandleUpdate)
			r.Delete("/{userId}", rt.users.HandleDelete)

			r.Post("/{userId}/request/{friendId}", rt.friends.HandleSendRequest)
			r.Post("/{userId}/pending/{friendId}", rt.friends.HandleAccept)
			r.Delete("/{userId}/remove/{friendId}", rt.friends.HandleDeny)
			r.Delete("/{userId}/friends/{friendId}", rt.friends.HandleUnfriend)
		})
	})
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database, Redis and NATS connections.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Storage.DBPath),
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

func (s *Server) close() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn("failed to drain NATS connection", slog.String("error", err.Error()))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("failed to close database", slog.String("error", err.Error()))
		}
	}
}
