package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"ripple/internal/auth"
	"ripple/internal/featureflags"
	"ripple/internal/models"
	"ripple/internal/notifications"
	"ripple/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// liveFrame is the envelope of control frames on the live channel.
type liveFrame struct {
	Type     string          `json:"type"`
	Payload  string          `json:"payload,omitempty"`
	UserID   uint            `json:"user_id,omitempty"`
	Username string          `json:"username,omitempty"`
	Flags    map[string]bool `json:"flags,omitempty"`
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue WebSocket ticket
// @Description Returns a single-use ticket valid for 30 seconds, passed as ?ticket= on upgrade
// @Tags websocket
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.resolver.IssueTicket(c.UserContext(), currentUserID(c))
	if errors.Is(err, auth.ErrTicketsUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "WebSocket tickets are unavailable",
		})
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(auth.TicketTTL.Seconds()),
	})
}

// WebsocketHandler returns the live channel handler. The identity was resolved by
// AuthRequired before the upgrade.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}
		username, _ := conn.Locals("username").(string)

		client := notifications.NewClient(conn, uid)
		client.OnActivity = s.registry.Touch

		if err := s.registry.Connect(uid, client); err != nil {
			observability.Logger.Warn("live channel rejected",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			msg, _ := json.Marshal(models.ErrorResponse{Error: err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}

		// The connection must stay open until the write pump has flushed and closed it.
		done := make(chan struct{})
		go func() {
			defer close(done)
			client.WritePump()
		}()

		s.sendFrame(client, liveFrame{
			Type:     "connected",
			UserID:   uid,
			Username: username,
			Flags:    s.featureFlags.Snapshot(uid),
		})

		client.ReadPump(s.handleLiveFrame)

		s.registry.Release(uid, client)
		_ = client.Close()
		<-done
	})
}

// handleLiveFrame answers pings and echoes anything else to its sender.
func (s *Server) handleLiveFrame(client *notifications.Client, message []byte) {
	var in liveFrame
	if err := json.Unmarshal(message, &in); err == nil && strings.EqualFold(in.Type, "ping") {
		s.sendFrame(client, liveFrame{Type: "pong"})
		return
	}
	if !s.featureFlags.Enabled(featureflags.LiveEcho, client.UserID) {
		return
	}
	s.sendFrame(client, liveFrame{Type: "echo", Payload: "You wrote: " + string(message)})
}

func (s *Server) sendFrame(client *notifications.Client, frame liveFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := client.Send(payload); err != nil {
		observability.Logger.Debug("live frame dropped",
			slog.Uint64("user_id", uint64(client.UserID)),
			slog.String("type", frame.Type),
			slog.String("error", err.Error()),
		)
	}
}
