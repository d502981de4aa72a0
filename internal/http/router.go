package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/vantage/server/internal/http/handlers"
	"github.com/vantage/server/internal/middleware"
)

// RouterConfig bundles what the router needs beyond the handlers.
type RouterConfig struct {
	SessionResolver middleware.SessionResolver
	CookieName      string
	RateLimitRPS    float64
	RateLimitBurst  int
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	authHandler *handlers.AuthHandler,
	diagHandler *handlers.DiagHandler,
	feedbackHandler *handlers.FeedbackHandler,
	cfg RouterConfig,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	rateLimit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	sessionAuth := middleware.SessionAuth(cfg.SessionResolver, cfg.CookieName)

	r.Route("/api", func(r chi.Router) {
		// Auth-sensitive public endpoints, all behind the abuse guard.
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/verify-otp", authHandler.HandleVerifyOtp)
			r.Post("/resend-otp", authHandler.HandleResendOtp)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/forgot-password", authHandler.HandleForgotPassword)
			r.Post("/reset-password", authHandler.HandleResetPassword)
			r.Post("/contact", feedbackHandler.HandleContact)
		})

		r.Get("/check_session", authHandler.HandleCheckSession)

		// Session-gated endpoints.
		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/change-password", authHandler.HandleChangePassword)
			r.Post("/change-email", authHandler.HandleChangeEmail)
			r.Patch("/profile", authHandler.HandleUpdateProfile)
			r.Delete("/account", authHandler.HandleDeleteAccount)

			r.Get("/tool-guidance", diagHandler.HandleToolGuidance)

			// Diagnostics are rate-limited too; they make outbound network calls.
			r.Group(func(r chi.Router) {
				r.Use(rateLimit)
				r.Post("/whois", diagHandler.HandleWhois)
				r.Post("/dns", diagHandler.HandleDNS)
				r.Post("/geoip", diagHandler.HandleGeoIP)
				r.Post("/port_scan", diagHandler.HandlePortScan)
				r.Post("/speed", diagHandler.HandleSpeed)
				r.Post("/domain", diagHandler.HandleDomain)
			})
		})
	})

	return r
}
