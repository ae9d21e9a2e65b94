// Package httpapi exposes the relay over HTTP: the WebSocket endpoint for
// real-time messaging and the bearer-authenticated query endpoints for
// history, chat lists and presence.
package httpapi

import (
	"errors"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sealdm/sealdm/internal/common"
	"github.com/sealdm/sealdm/internal/logging"
	"github.com/sealdm/sealdm/internal/server/auth"
	"github.com/sealdm/sealdm/internal/server/history"
	"github.com/sealdm/sealdm/internal/server/models"
	"github.com/sealdm/sealdm/internal/server/relay"
)

type Server struct {
	relay     *relay.Relay
	history   *history.Service
	registry  *relay.Registry
	logger    logging.Logger
	jwtSecret []byte
}

func New(r *relay.Relay, h *history.Service, registry *relay.Registry,
	logger logging.Logger, secretKey string) *Server {
	return &Server{
		relay:     r,
		history:   h,
		registry:  registry,
		logger:    logger.With("module", "httpapi"),
		jwtSecret: []byte(secretKey),
	}
}

// Router registers every route on app. The WebSocket endpoint carries its
// own in-band auth; the query endpoints require a bearer session token.
func (s *Server) Router(app *fiber.App) {
	app.Get("/api/ping", s.handlePing)

	app.Use("/api/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/api/ws", websocket.New(func(conn *websocket.Conn) {
		s.relay.Serve(conn)
	}))

	api := app.Group("/api", s.requireSession)
	api.Get("/history/:otherId", s.handleHistory)
	api.Get("/chats", s.handleChatList)
	api.Get("/online", s.handleOnline)
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// requireSession verifies the Authorization bearer token and stores the
// authenticated identity in the request locals.
func (s *Server) requireSession(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}

	userID, err := auth.ParseUserID(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return fiber.NewError(fiber.StatusUnauthorized, "token expired")
		}
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}

	c.Locals("userID", userID)
	return c.Next()
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	viewerID := c.Locals("userID").(string)
	otherID := c.Params("otherId")
	if otherID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing chat partner id")
	}

	items, err := s.history.GetHistory(c.UserContext(), viewerID, otherID)
	if err != nil {
		s.logger.Error(c.UserContext(), "history request failed", "error", err, "viewerID", viewerID)
		return fiber.ErrInternalServerError
	}
	if items == nil {
		items = []models.HistoryItem{}
	}
	return c.JSON(items)
}

func (s *Server) handleChatList(c *fiber.Ctx) error {
	viewerID := c.Locals("userID").(string)

	previews, err := s.history.GetChatList(c.UserContext(), viewerID)
	if err != nil {
		s.logger.Error(c.UserContext(), "chat list request failed", "error", err, "viewerID", viewerID)
		return fiber.ErrInternalServerError
	}
	if previews == nil {
		previews = []models.ChatPreview{}
	}
	return c.JSON(previews)
}

func (s *Server) handleOnline(c *fiber.Ctx) error {
	online := s.registry.Online()
	if online == nil {
		online = []string{}
	}
	return c.JSON(online)
}
