package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AnshRaj112/echoes-backend/internal/config"
	"github.com/AnshRaj112/echoes-backend/internal/handlers"
	"github.com/AnshRaj112/echoes-backend/internal/metrics"
	"github.com/AnshRaj112/echoes-backend/internal/middleware"
)

// NewRouter builds the full HTTP surface with the middleware stack for cfg's environment.
func NewRouter(cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check and metrics sit outside the rate limits
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		// Production: SecurityHeaders → HostCheck → GlobalRateLimit → AuthRateLimit
		// Non-production: Redis-based rate limit only
		if cfg.IsProduction() {
			for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost) {
				r.Use(mw)
			}
		} else {
			r.Use(middleware.RateLimitMiddleware)
		}

		SetupRoutes(r)
	})

	return r
}

// SetupRoutes registers the application routes on r.
func SetupRoutes(r chi.Router) {
	r.Get("/", handlers.Home)

	// Auth routes
	r.Get("/login", handlers.LoginPage)
	r.Post("/login", handlers.Login)
	r.Get("/signup", handlers.SignupPage)
	r.Post("/signup", handlers.Signup)
	r.Get("/forgot-password", handlers.ForgotPasswordPage)
	r.Post("/forgot-password", handlers.ForgotPassword)
	r.Get("/reset-password/{email}", handlers.ResetPasswordPage)
	r.Post("/reset-password/{email}", handlers.ResetPassword)
	r.Get("/logout", handlers.Logout)

	// Journal routes (session required)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)

		r.Get("/dashboard", handlers.Dashboard)
		r.Get("/add", handlers.AddMemoryPage)
		r.Post("/add", handlers.AddMemory)
		r.Get("/edit/{id}", handlers.EditMemoryPage)
		r.Post("/edit/{id}", handlers.EditMemory)
		r.Get("/delete/{id}", handlers.DeleteMemory)
		r.Get("/uploads/{filename}", handlers.ServeUpload)
	})
}
