package server

import (
	"strings"

	"ripple/internal/auth"
	"ripple/internal/models"
	"ripple/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// AuthRequired resolves the request's credential into a user.
// A WebSocket ticket is tried first, then the Authorization header, then the
// token query parameter and finally a :token route segment.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if ticket := c.Query("ticket"); ticket != "" {
			user, err := s.resolver.RedeemTicket(ctx, ticket)
			if err != nil {
				return models.RespondWithAppError(c, err)
			}
			setIdentity(c, user, nil)
			return c.Next()
		}

		credential := bearerToken(c.Get(fiber.HeaderAuthorization))
		if credential == "" {
			credential = c.Query("token")
		}
		if credential == "" {
			credential = c.Params("token")
		}
		if credential == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		user, claims, err := s.resolver.Authenticate(ctx, credential)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		setIdentity(c, user, claims)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, user *models.User, claims *auth.Claims) {
	c.Locals("userID", user.ID)
	c.Locals("username", user.Username)
	if claims != nil {
		c.Locals("claims", claims)
	}
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(observability.WithUserID(c.UserContext(), user.ID))
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// optionalUserID returns the caller's id when a valid bearer token is present and 0 otherwise.
// Public routes use it to fill viewer-specific fields such as liked.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	credential := bearerToken(c.Get(fiber.HeaderAuthorization))
	if credential == "" {
		return 0
	}
	user, _, err := s.resolver.Authenticate(c.UserContext(), credential)
	if err != nil {
		return 0
	}
	return user.ID
}

func currentUserID(c *fiber.Ctx) uint {
	uid, _ := c.Locals("userID").(uint)
	return uid
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
