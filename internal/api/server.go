// Package api mounts the HTTP surface: health, metrics, REST and the
// websocket upgrade path.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/maulanarifai114/research-chat-backend/internal/handlers"
	"github.com/maulanarifai114/research-chat-backend/internal/metrics"
	"github.com/maulanarifai114/research-chat-backend/internal/models"
	"github.com/maulanarifai114/research-chat-backend/internal/ws"
)

func NewServer(h *handlers.Handlers, wsSrv *ws.Server, jwtSecret string) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := app.Group("/v1")
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(wsSrv.HandleWS()))

	authed := v1.Group("", JWTAuth(jwtSecret))
	authed.Get("/user/list", RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), h.ListUsers)
	authed.Get("/conversation/list", RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), h.ListConversations)
	authed.Post("/conversation/save", h.SaveConversation)
	authed.Post("/member/save", h.AddMember)
	authed.Post("/member/remove", h.RemoveMember)
	authed.Get("/message/conversation/:idConversation", h.ListMessages)
	authed.Get("/presence/:id", h.GetPresence)

	return app
}
