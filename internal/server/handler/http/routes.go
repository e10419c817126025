package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/atinyakov/GlycoKeeper/internal/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Auth      *AuthHandler
	Glycemia  *GlycemiaHandler
	Dashboard *DashboardHandler
	Profile   *ProfileHandler
}

// RouterOptions tunes the middleware chain.
type RouterOptions struct {
	// AuthRateLimit is the number of /auth requests allowed per IP per minute.
	// Zero disables the limit.
	AuthRateLimit int
}

// NewRouter builds the API router.
//
// Routes:
//
//	POST   /auth/register, /auth/login, /auth/refresh    (rate limited per IP)
//	GET    /glycemia?period=    POST /glycemia
//	POST   /glycemia/cgm
//	GET    /glycemia/latest     GET /glycemia/stats?period=
//	GET    /dashboard/{module}  PUT, DELETE /dashboard/{module}
//	GET    /users/me            PUT /users/me
//	GET    /users/me/contacts   POST /users/me/contacts   DELETE /users/me/contacts/{id}
//	GET    /users/me/doctor     PUT /users/me/doctor
//
// Everything outside /auth and /healthz requires a bearer access token.
func NewRouter(h Handlers, auth middleware.Authenticator, opts RouterOptions, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	// Only allow bodies with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		if opts.AuthRateLimit > 0 {
			r.Use(httprate.Limit(
				opts.AuthRateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
				}),
			))
		}
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/refresh", h.Auth.Refresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(auth))

		r.Route("/glycemia", func(r chi.Router) {
			r.Get("/", h.Glycemia.List)
			r.Post("/", h.Glycemia.Create)
			r.Post("/cgm", h.Glycemia.Import)
			r.Get("/latest", h.Glycemia.Latest)
			r.Get("/stats", h.Glycemia.Stats)
		})

		r.Route("/dashboard/{module}", func(r chi.Router) {
			r.Get("/", h.Dashboard.Get)
			r.Put("/", h.Dashboard.Put)
			r.Delete("/", h.Dashboard.Delete)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", h.Profile.GetProfile)
			r.Put("/", h.Profile.UpdateProfile)
			r.Get("/contacts", h.Profile.ListContacts)
			r.Post("/contacts", h.Profile.AddContact)
			r.Delete("/contacts/{id}", h.Profile.DeleteContact)
			r.Get("/doctor", h.Profile.GetDoctor)
			r.Put("/doctor", h.Profile.UpdateDoctor)
		})
	})

	return r
}
