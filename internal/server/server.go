package server

import (
	"net/http"

	"github.com/abdusco/shorty/internal/auth"
	"github.com/abdusco/shorty/internal/handler"
	"github.com/abdusco/shorty/internal/metrics"
	"github.com/abdusco/shorty/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Auth          *service.AuthService
	Links         *service.LinkService
	Authenticator *auth.Authenticator
	// BaseURL prefixes short URLs in responses. Empty derives it per request.
	BaseURL string
}

// New builds the echo instance with every route registered.
func New(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(metrics.Middleware())

	authMiddleware := auth.NewAuthMiddleware(opts.Authenticator)
	authHandler := handler.NewAuthHandler(opts.Auth, opts.Authenticator)
	linkHandler := handler.NewLinkHandler(opts.Links, opts.BaseURL)

	api := e.Group("/api")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", authHandler.Me, authMiddleware)

	api.POST("/shorten", linkHandler.CreateLink, authMiddleware)
	api.POST("/links", linkHandler.CreateLink, authMiddleware)
	api.GET("/links", linkHandler.ListLinks, authMiddleware)
	api.PUT("/links/:id", linkHandler.UpdateLink, authMiddleware)
	api.PUT("/links/:id/toggle", linkHandler.ToggleLink, authMiddleware)
	api.PATCH("/links/:id/toggle", linkHandler.ToggleLink, authMiddleware)
	api.DELETE("/links/:id", linkHandler.DeleteLink, authMiddleware)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Parameterized route (must be last)
	e.GET("/:shortCode", linkHandler.Redirect)

	return e
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
