package user

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/logging"
	"github.com/KAsare1/pesb-server/metrics"
	"github.com/KAsare1/pesb-server/service/auth"
)

type Handler struct {
	store      *Store
	auth       *auth.Middleware
	authz      *auth.Authorizer
	limit      func(http.Handler) http.Handler
	cookieName string
	tokenTTL   time.Duration
}

type Options struct {
	CookieName string
	TokenTTL   time.Duration
	// RateLimit wraps the credential endpoints; nil means unlimited.
	RateLimit func(http.Handler) http.Handler
}

func NewHandler(store *Store, mw *auth.Middleware, authz *auth.Authorizer, opts Options) *Handler {
	limit := opts.RateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		store:      store,
		auth:       mw,
		authz:      authz,
		limit:      limit,
		cookieName: opts.CookieName,
		tokenTTL:   opts.TokenTTL,
	}
}

// RegisterRoutes sets up all user-related routes
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Handle("/api/register", h.limit(http.HandlerFunc(h.handleRegister))).Methods("POST")
	router.Handle("/api/login", h.limit(http.HandlerFunc(h.handleLogin))).Methods("POST")
	router.HandleFunc("/api/status", h.handleStatus).Methods("GET")
	router.HandleFunc("/api/admin/users/{id}/role", h.auth.RequireAuth(h.authz.RequireRole(h.handleSetRole))).Methods("PUT")
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	id, err := h.store.Register(r.Context(), req)
	if err != nil {
		metrics.RecordRegistration(utils.KindOf(err).String())
		utils.WriteError(w, r, err)
		return
	}
	metrics.RecordRegistration("success")
	logging.Info().Uint("user_id", id).Msg("user registered")

	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{"userId": id})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	res, err := h.store.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if utils.KindOf(err) == utils.KindAuth {
			logging.Info().Str("remote", r.RemoteAddr).Msg("failed login")
		}
		utils.WriteError(w, r, err)
		return
	}

	if h.cookieName != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookieName,
			Value:    res.Token,
			Path:     "/",
			MaxAge:   int(h.tokenTTL.Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	unauthenticated := map[string]interface{}{"authenticated": false}

	id, err := h.auth.Authenticate(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, unauthenticated)
		return
	}
	user, err := h.store.FindByID(r.Context(), id.UserID)
	if err != nil {
		if utils.KindOf(err) == utils.KindNotFound {
			utils.WriteJSON(w, http.StatusUnauthorized, unauthenticated)
			return
		}
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          user,
	})
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	user, err := h.store.SetRole(r.Context(), id, req.Role)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	actor, _ := utils.GetUserIDFromContext(r.Context())
	logging.Info().Uint("actor", actor).Uint("user_id", id).Str("role", req.Role).Msg("role changed")

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
