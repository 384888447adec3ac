package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"ripple/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceOnlineSetKey  = "ws:online_users"
	defaultPresenceLastSeenKeyNS = "ws:last_seen:"
	defaultPresenceTTL           = 90 * time.Second
	defaultReaperInterval        = 60 * time.Second
)

// PresenceConfig controls the Redis keys and timings of the presence mirror.
type PresenceConfig struct {
	OnlineSetKey      string
	LastSeenKeyPrefix string
	LastSeenTTL       time.Duration
	ReaperInterval    time.Duration
}

// Presence mirrors locally connected users into Redis so other processes can see them.
// Every user has a last-seen key with a TTL; the online set is pruned of users whose key expired.
// Without Redis every method is a no-op.
type Presence struct {
	rdb *redis.Client

	onlineSetKey      string
	lastSeenKeyPrefix string
	lastSeenTTL       time.Duration
	reaperInterval    time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence creates the mirror and starts its reaper when Redis is available.
func NewPresence(rdb *redis.Client, cfg PresenceConfig) *Presence {
	p := &Presence{
		rdb:               rdb,
		onlineSetKey:      defaultPresenceOnlineSetKey,
		lastSeenKeyPrefix: defaultPresenceLastSeenKeyNS,
		lastSeenTTL:       defaultPresenceTTL,
		reaperInterval:    defaultReaperInterval,
		stopCh:            make(chan struct{}),
	}
	if cfg.OnlineSetKey != "" {
		p.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		p.lastSeenKeyPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		p.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.ReaperInterval > 0 {
		p.reaperInterval = cfg.ReaperInterval
	}

	if p.rdb != nil {
		go p.reaperLoop()
	}
	return p
}

// Register marks the user online.
func (p *Presence) Register(ctx context.Context, userID uint) {
	p.Touch(ctx, userID)
}

// Touch refreshes the user's last-seen key.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p == nil || p.rdb == nil {
		return
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, p.onlineSetKey, formatID(userID))
		pipe.SetEx(ctx, p.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), p.lastSeenTTL)
		return nil
	})
	if err != nil {
		observability.Logger.WarnContext(ctx, "presence touch failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// Unregister marks the user offline immediately.
func (p *Presence) Unregister(ctx context.Context, userID uint) {
	if p == nil || p.rdb == nil {
		return
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, p.onlineSetKey, formatID(userID))
		pipe.Del(ctx, p.lastSeenKey(userID))
		return nil
	})
	if err != nil {
		observability.Logger.WarnContext(ctx, "presence unregister failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// IsOnline reports whether any process has seen the user recently.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	if p == nil || p.rdb == nil {
		return false
	}
	n, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	return err == nil && n > 0
}

// OnlineUserIDs returns users with a live last-seen key, pruning stale set members.
func (p *Presence) OnlineUserIDs(ctx context.Context) []uint {
	if p == nil || p.rdb == nil {
		return nil
	}
	members, err := p.rdb.SMembers(ctx, p.onlineSetKey).Result()
	if err != nil {
		return nil
	}

	out := make([]uint, 0, len(members))
	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		if !p.IsOnline(ctx, userID) {
			_ = p.rdb.SRem(ctx, p.onlineSetKey, raw).Err()
			continue
		}
		out = append(out, userID)
	}
	return out
}

// Stop ends the reaper loop.
func (p *Presence) Stop() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// reapOnce removes set members whose last-seen key has expired and returns how many it removed.
func (p *Presence) reapOnce(ctx context.Context) int {
	if p.rdb == nil {
		return 0
	}
	members, err := p.rdb.SMembers(ctx, p.onlineSetKey).Result()
	if err != nil {
		return 0
	}

	removed := 0
	for _, raw := range members {
		exists, err := p.rdb.Exists(ctx, p.lastSeenKeyPrefix+raw).Result()
		if err != nil || exists > 0 {
			continue
		}
		if err := p.rdb.SRem(ctx, p.onlineSetKey, raw).Err(); err == nil {
			removed++
		}
	}
	return removed
}

func (p *Presence) reaperLoop() {
	ticker := time.NewTicker(p.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

func (p *Presence) lastSeenKey(userID uint) string {
	return p.lastSeenKeyPrefix + formatID(userID)
}

func formatID(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}
