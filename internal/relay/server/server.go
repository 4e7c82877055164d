package server

import (
	"github.com/labstack/echo/v4"

	"github.com/avolkov/farview/internal/application/config"
	"github.com/avolkov/farview/internal/relay/handlers"
	"github.com/avolkov/farview/internal/relay/middleware"
)

// New собирает echo-сервер relay: реестр хостов, выдача токенов и
// сигнальный websocket.
func New(
	cfg *config.Config,
	hostHandler *handlers.HostHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	api := e.Group("/api")
	{
		api.POST("/hosts", hostHandler.Register)
		api.POST("/auth", hostHandler.Token)
	}

	ws := e.Group("/ws")
	if cfg.Relay.JWTSecret != "" {
		ws.Use(middleware.JWTAuthMiddleware(cfg.Relay.JWTSecret))
	}
	ws.GET("", wsHandler.Handle)

	return e
}
