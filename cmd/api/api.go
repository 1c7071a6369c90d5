package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/config"
	"github.com/KAsare1/pesb-server/logging"
	"github.com/KAsare1/pesb-server/metrics"
	"github.com/KAsare1/pesb-server/service/auth"
	"github.com/KAsare1/pesb-server/service/forum"
	"github.com/KAsare1/pesb-server/service/tags"
	"github.com/KAsare1/pesb-server/service/upload"
	"github.com/KAsare1/pesb-server/service/user"
)

type APIServer struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewApiServer(cfg *config.Config, db *gorm.DB) *APIServer {
	return &APIServer{
		cfg: cfg,
		db:  db,
	}
}

// Handler builds the router with every service mounted and wraps it in
// the middleware chain: recovery, access log, CORS, then per-route
// metrics and the request deadline.
func (s *APIServer) Handler() (http.Handler, error) {
	issuer := auth.NewIssuer(s.cfg.Auth.SecretKey, s.cfg.Auth.TokenTTL)
	authMiddleware := auth.NewMiddleware(issuer, s.cfg.Auth.CookieName)

	store, err := user.NewStore(s.db, issuer, s.cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	authz, err := auth.NewAuthorizer(store.RoleOf)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Use(metrics.Middleware)
	router.Use(requestTimeout(s.cfg.Server.RequestTimeout))

	userHandler := user.NewHandler(store, authMiddleware, authz, user.Options{
		CookieName: s.cfg.Auth.CookieName,
		TokenTTL:   s.cfg.Auth.TokenTTL,
		RateLimit:  s.authRateLimit(),
	})
	userHandler.RegisterRoutes(router)

	images := utils.NewImageStore(s.cfg.Storage.UploadDir, s.cfg.Storage.PublicPrefix, s.cfg.Storage.MaxUploadBytes)
	uploadHandler := upload.NewHandler(
		upload.NewIngest(s.db, images),
		authMiddleware,
		s.cfg.Server.UploadRedirect,
		s.cfg.Storage.MaxUploadBytes,
	)
	uploadHandler.RegisterRoutes(router)

	tagHandler := tags.NewHandler(tags.NewIndex(s.db))
	tagHandler.RegisterRoutes(router)

	forumHandler := forum.NewPostHandler(forum.NewFeed(s.db), forum.NewEngagement(s.db), authMiddleware)
	forumHandler.RegisterRoutes(router)

	if s.cfg.Metrics.Enabled {
		router.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	prefix := "/" + strings.Trim(s.cfg.Storage.PublicPrefix, "/") + "/"
	router.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(s.cfg.Storage.UploadDir)))).Methods("GET")

	var h http.Handler = router
	h = handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Server.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", auth.AccessTokenHeader}),
		handlers.AllowCredentials(),
	)(h)
	h = handlers.CustomLoggingHandler(os.Stderr, h, logging.AccessLog)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(logging.RecoveryLogger{}))(h)
	return h, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the configured shutdown timeout.
func (s *APIServer) Run(ctx context.Context) error {
	h, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Server.RequestTimeout + 5*time.Second,
		WriteTimeout:      s.cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *APIServer) authRateLimit() func(http.Handler) http.Handler {
	if s.cfg.Server.AuthRateLimit <= 0 {
		return nil
	}
	return httprate.Limit(
		s.cfg.Server.AuthRateLimit,
		s.cfg.Server.AuthRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			utils.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"message": "too many requests"})
		}),
	)
}

// requestTimeout bounds every request's context. Queries and transactions
// run with that context, so an overrunning transaction is rolled back.
func requestTimeout(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
