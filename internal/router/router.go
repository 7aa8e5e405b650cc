// Package router sets up all HTTP routes and middleware chains for the
// Inkpress API. Authentication runs on every request; individual groups
// add RequireAuth or RequireAdmin.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inkpress/internal/handlers"
	"inkpress/internal/middleware"
	"inkpress/internal/models"
)

// Handlers bundles the handler groups the router dispatches to.
type Handlers struct {
	Health     http.Handler
	Users      *handlers.Users
	Auth       *handlers.Auth
	Articles   *handlers.Articles
	Reactions  *handlers.Reactions
	Comments   *handlers.Comments
	Categories *handlers.Categories
	Images     *handlers.Images
}

// New creates and returns the configured Chi router. limiter guards the
// credential endpoints and may be nil to disable rate limiting. Forwarding
// headers are honoured only from proxies.
func New(authn middleware.Authenticator, limiter *middleware.RateLimiter, proxies middleware.TrustedProxies, h Handlers) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.RealIP(proxies))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.Authenticate(authn))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Method(http.MethodGet, "/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	limited := func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
	}

	r.Route("/users", func(r chi.Router) {
		// Credential endpoints, rate limited per client IP.
		r.Group(func(r chi.Router) {
			limited(r)
			r.Post("/create", h.Users.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/verify/resend", h.Users.ResendVerification)
			r.Post("/password/forgot", h.Users.ForgotPassword)
			r.Post("/password/reset", h.Users.ResetPassword)
		})
		r.Get("/verify", h.Users.Verify)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/me", h.Users.Me)
			r.Put("/me", h.Users.UpdateProfile)
			r.Post("/logout", h.Auth.Logout)
			r.Get("/sessions", h.Auth.Sessions)
			r.Delete("/sessions/{id}", h.Auth.RevokeSession)

			r.Route("/me/2fa", func(r chi.Router) {
				limited(r)
				r.Post("/setup", h.Users.SetupTOTP)
				r.Post("/enable", h.Users.EnableTOTP)
				r.Post("/disable", h.Users.DisableTOTP)
			})
		})
	})

	// Social login.
	r.Route("/auth/{provider}", func(r chi.Router) {
		limited(r)
		r.Get("/login", h.Auth.SocialLogin)
		r.Get("/callback", h.Auth.SocialCallback)
	})

	r.Route("/articles", func(r chi.Router) {
		r.Get("/", h.Articles.List)
		r.Get("/{slug}", h.Articles.Get)
		r.Get("/{slug}/comments", h.Comments.List)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/", h.Articles.Create)
			r.Put("/{slug}", h.Articles.Update)
			r.Delete("/{slug}", h.Articles.Delete)
			r.Post("/{slug}/archive", h.Articles.Archive)
			r.Post("/{slug}/unarchive", h.Articles.Unarchive)
			r.Post("/{slug}/comments", h.Comments.Create)

			for _, kind := range []models.ReactionKind{models.ReactionLike, models.ReactionDislike} {
				r.Post("/{slug}/"+string(kind), h.Reactions.Article(kind, false))
				r.Delete("/{slug}/"+string(kind), h.Reactions.Article(kind, true))
			}
		})
	})

	r.Route("/comments/{id}", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Delete("/", h.Comments.Delete)
		for _, kind := range []models.ReactionKind{models.ReactionLike, models.ReactionDislike} {
			r.Post("/"+string(kind), h.Reactions.Comment(kind, false))
			r.Delete("/"+string(kind), h.Reactions.Comment(kind, true))
		}
	})

	r.Get("/tags", h.Articles.Tags)
	r.Get("/tags/{name}/articles", h.Articles.TagArticles)

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.Categories.List)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/", h.Categories.Create)
			r.Delete("/{slug}", h.Categories.Delete)
		})
	})

	r.Route("/images", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.Images.List)
		r.Post("/", h.Images.Upload)
		r.Delete("/{id}", h.Images.Delete)
	})

	return r
}
