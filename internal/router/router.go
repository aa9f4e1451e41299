package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"callcenter-ops/internal/config"
	"callcenter-ops/internal/handler"
	"callcenter-ops/internal/metrics"
	"callcenter-ops/internal/middleware"
	"callcenter-ops/internal/model"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metrics.Instrument)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", authHandler.Login)
			auth.Post("/refresh", authHandler.Refresh)
			auth.Post("/logout", authHandler.Logout)
			auth.Post("/forgot-password", authHandler.ForgotPassword)
			auth.Post("/reset-password", authHandler.ResetPassword)
			auth.Post("/check-reset-token", authHandler.CheckResetToken)
			auth.With(authMiddleware.RequireAuth).Get("/session", authHandler.Session)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
			auth.With(authMiddleware.RequireAuth).Post("/change-password", authHandler.ChangePassword)
			auth.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleManager)).
				Post("/register", authHandler.Register)
		})

		api.Route("/team-leaders", func(tl chi.Router) {
			tl.Use(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleManager))
			tl.Get("/", userHandler.ListTeamLeaders)
			tl.Post("/", userHandler.CreateTeamLeader)
			tl.Delete("/{id}", userHandler.DeleteTeamLeader)
		})
	})

	return r
}
