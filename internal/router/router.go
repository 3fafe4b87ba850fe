package router

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manabi-dev/manabi/internal/domain"
	mw "github.com/manabi-dev/manabi/internal/middleware"
	"github.com/manabi-dev/manabi/internal/middleware/metrics"
	"github.com/manabi-dev/manabi/internal/setup"
)

// New creates and configures a new mux router with all the routes.
func New(deps *setup.Dependencies) *mux.Router {
	r := mux.NewRouter()

	// Enable gzip compression for all responses
	r.Use(handlers.CompressHandler)

	// setup CORS for the web client; credentials are required because auth
	// rides on cookies
	r.Use(handlers.CORS(
		handlers.AllowedOrigins(deps.Config.Public.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	))

	// JSON API only, no scripts/styles needed
	apiCSP := "default-src 'none'; frame-ancestors 'none'"
	r.Use(mw.SecurityHeadersWithCSP(deps.Config.Public.SecureCookies, apiCSP))

	r.Use(metrics.Middleware)

	// Add a wildcard OPTIONS handler to avoid 404s for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := deps.Handler
	authMw := deps.AuthMiddleware

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// Auth routes (no token required). The credential endpoints are rate
	// limited per client IP to slow online guessing.
	auth := v1.PathPrefix("/auth").Subrouter()
	if deps.AuthLimiter != nil {
		auth.Use(mw.RateLimit(deps.AuthLimiter, mw.ClientIP))
	}
	auth.HandleFunc("/register", h.Register).Methods("POST")
	auth.HandleFunc("/verify_email", h.VerifyEmail).Methods("POST")
	auth.HandleFunc("/login", h.Login).Methods("POST")
	auth.HandleFunc("/logout", h.Logout).Methods("POST")
	auth.HandleFunc("/refresh", h.Refresh).Methods("POST")
	auth.HandleFunc("/request_password_reset", h.RequestPasswordReset).Methods("POST")
	auth.HandleFunc("/reset_password", h.ResetPassword).Methods("POST")

	// Account routes (authenticated)
	account := v1.PathPrefix("/account").Subrouter()
	account.Use(authMw.Authenticate())
	account.HandleFunc("/password", h.ChangePassword).Methods("PUT")
	account.HandleFunc("", h.DeleteAccount).Methods("DELETE")
	account.HandleFunc("/email/change_request", h.RequestEmailChange).Methods("POST")
	account.HandleFunc("/email/verify", h.VerifyEmailChange).Methods("GET")

	users := v1.PathPrefix("/users").Subrouter()
	users.Use(authMw.Authenticate())
	users.HandleFunc("/me", h.Me).Methods("GET")

	// Admin routes
	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(authMw.Authenticate())
	admin.Use(mw.RequireRoles(domain.RoleAdmin))
	admin.HandleFunc("/users/{userId}/role", h.UpdateUserRole).Methods("PUT")
	admin.HandleFunc("/users/{userId}/active", h.SetUserActive).Methods("PUT")

	return r
}
