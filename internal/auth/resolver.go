package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ripple/internal/models"
	"ripple/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TicketTTL bounds how long a WebSocket ticket can be redeemed.
const TicketTTL = 30 * time.Second

// ErrTicketsUnavailable is returned when tickets are requested without Redis.
var ErrTicketsUnavailable = errors.New("websocket tickets require redis")

// UserLookup loads users by id.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Resolver turns a presented credential into the user it identifies.
type Resolver struct {
	tokens *Tokens
	users  UserLookup
	rdb    *redis.Client
}

// NewResolver wires the resolver. rdb may be nil, which disables revocation and tickets.
func NewResolver(tokens *Tokens, users UserLookup, rdb *redis.Client) *Resolver {
	return &Resolver{tokens: tokens, users: users, rdb: rdb}
}

// Tokens returns the token codec used by the resolver.
func (r *Resolver) Tokens() *Tokens {
	return r.tokens
}

// Resolve validates the credential and returns its user. Any failure is an UNAUTHORIZED AppError.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*models.User, error) {
	user, _, err := r.Authenticate(ctx, credential)
	return user, err
}

// Authenticate is Resolve that also returns the token claims.
func (r *Resolver) Authenticate(ctx context.Context, credential string) (*models.User, *Claims, error) {
	raw := strings.TrimSpace(credential)
	if after, ok := strings.CutPrefix(raw, "Bearer "); ok {
		raw = strings.TrimSpace(after)
	}
	if raw == "" {
		return nil, nil, models.NewUnauthorizedError("Authorization required")
	}

	claims, err := r.tokens.Parse(raw)
	if err != nil {
		return nil, nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	if claims.JTI != "" && r.isRevoked(ctx, claims.JTI) {
		return nil, nil, models.NewUnauthorizedError("Token has been revoked")
	}

	user, err := r.loadUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (r *Resolver) loadUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("User no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// isRevoked fails open when Redis is unavailable.
func (r *Resolver) isRevoked(ctx context.Context, jti string) bool {
	if r.rdb == nil {
		return false
	}
	n, err := r.rdb.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		observability.Logger.WarnContext(ctx, "token revocation check failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}

// Revoke blacklists the token until it would have expired anyway.
func (r *Resolver) Revoke(ctx context.Context, claims *Claims) error {
	if r.rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKey(claims.JTI), "1", ttl).Err()
}

// IssueTicket stores a short-lived single-use ticket for the user's WebSocket upgrade.
func (r *Resolver) IssueTicket(ctx context.Context, userID uint) (string, error) {
	if r.rdb == nil {
		return "", ErrTicketsUnavailable
	}
	ticket := uuid.NewString()
	if err := r.rdb.Set(ctx, ticketKey(ticket), strconv.FormatUint(uint64(userID), 10), TicketTTL).Err(); err != nil {
		return "", fmt.Errorf("store ticket: %w", err)
	}
	return ticket, nil
}

// RedeemTicket consumes the ticket and returns its user.
func (r *Resolver) RedeemTicket(ctx context.Context, ticket string) (*models.User, error) {
	if r.rdb == nil || ticket == "" {
		return nil, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	val, err := r.rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	userID, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	return r.loadUser(ctx, uint(userID))
}

func revokedKey(jti string) string {
	return "blacklist:" + jti
}

func ticketKey(ticket string) string {
	return fmt.Sprintf("ws_ticket:%s", ticket)
}
