package notifications

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"ripple/internal/observability"
)

// DefaultMaxConnections caps live channels per process.
const DefaultMaxConnections = 10000

// ErrConnectionLimit is returned by Connect when the process is full.
var ErrConnectionLimit = errors.New("server connection limit reached")

type entry struct {
	ch  Channel
	seq uint64
}

// Registry maps each identity to at most one live channel. Connecting again replaces
// the previous channel, which is closed.
type Registry struct {
	mu       sync.RWMutex
	conns    map[uint]*entry
	nextSeq  uint64
	maxConns int

	presenceMu sync.Mutex
	presence   *Presence
}

// NewRegistry creates an empty registry. presence may be nil.
func NewRegistry(maxConns int, presence *Presence) *Registry {
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	return &Registry{
		conns:    make(map[uint]*entry),
		maxConns: maxConns,
		presence: presence,
	}
}

// Connect registers ch for userID, closing any channel it replaces.
func (r *Registry) Connect(userID uint, ch Channel) error {
	r.mu.Lock()
	old, replacing := r.conns[userID]
	if !replacing && len(r.conns) >= r.maxConns {
		r.mu.Unlock()
		observability.WebSocketEventsTotal.WithLabelValues("rejected").Inc()
		return ErrConnectionLimit
	}
	r.nextSeq++
	r.conns[userID] = &entry{ch: ch, seq: r.nextSeq}
	r.mu.Unlock()

	if replacing {
		observability.WebSocketEventsTotal.WithLabelValues("replaced").Inc()
		if old.ch != ch {
			closeChannel(userID, old.ch)
		}
	} else {
		observability.ActiveWebSockets.Inc()
		observability.WebSocketEventsTotal.WithLabelValues("connected").Inc()
	}
	r.syncPresence(userID)
	return nil
}

// Disconnect removes and closes the user's channel. It is a no-op when the user has none.
func (r *Registry) Disconnect(userID uint) {
	r.mu.Lock()
	e, ok := r.conns[userID]
	if ok {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	if ok {
		r.dropped(userID, e.ch)
	}
}

// Release removes ch only while it is still the user's registered channel, so a
// connection that was replaced cannot evict its successor. It reports whether ch was removed.
func (r *Registry) Release(userID uint, ch Channel) bool {
	r.mu.Lock()
	e, ok := r.conns[userID]
	ok = ok && e.ch == ch
	if ok {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	if ok {
		r.dropped(userID, ch)
	}
	return ok
}

func (r *Registry) dropped(userID uint, ch Channel) {
	observability.ActiveWebSockets.Dec()
	observability.WebSocketEventsTotal.WithLabelValues("disconnected").Inc()
	closeChannel(userID, ch)
	r.syncPresence(userID)
}

// syncPresence writes the user's current local state to presence. Writes are serialized
// and read the map at write time, so the last one reflects the final state.
func (r *Registry) syncPresence(userID uint) {
	if r.presence == nil {
		return
	}
	r.presenceMu.Lock()
	defer r.presenceMu.Unlock()

	if r.IsOnline(userID) {
		r.presence.Register(context.Background(), userID)
	} else {
		r.presence.Unregister(context.Background(), userID)
	}
}

// SendTo delivers payload to the user's channel. It returns false when the user has no
// channel or the send fails; failures are logged, never returned.
func (r *Registry) SendTo(userID uint, payload []byte) bool {
	r.mu.RLock()
	e, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if err := e.ch.Send(payload); err != nil {
		observability.WebSocketEventsTotal.WithLabelValues("send_failed").Inc()
		observability.Logger.Warn("live send failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Broadcast sends payload to every channel in connection order and returns how many accepted it.
// A failing channel does not stop delivery to the rest.
func (r *Registry) Broadcast(payload []byte) int {
	type target struct {
		userID uint
		e      *entry
	}

	r.mu.RLock()
	targets := make([]target, 0, len(r.conns))
	for uid, e := range r.conns {
		targets = append(targets, target{userID: uid, e: e})
	}
	r.mu.RUnlock()

	slices.SortFunc(targets, func(a, b target) int {
		return cmp.Compare(a.e.seq, b.e.seq)
	})

	delivered := 0
	for _, t := range targets {
		if err := t.e.ch.Send(payload); err != nil {
			observability.WebSocketEventsTotal.WithLabelValues("send_failed").Inc()
			observability.Logger.Warn("broadcast send failed",
				slog.Uint64("user_id", uint64(t.userID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// Count returns the number of open channels in this process.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// IsOnline reports whether the user has a channel in this process.
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Touch records inbound activity for presence.
func (r *Registry) Touch(userID uint) {
	r.presence.Touch(context.Background(), userID)
}

// ClusterCount returns the number of users seen online by any process, falling back
// to the local count without Redis.
func (r *Registry) ClusterCount(ctx context.Context) int {
	ids := r.presence.OnlineUserIDs(ctx)
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[uint]struct{}, len(ids)+len(r.conns))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for id := range r.conns {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// Shutdown closes every channel and stops presence tracking.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[uint]*entry)
	r.mu.Unlock()

	for userID, e := range conns {
		observability.ActiveWebSockets.Dec()
		closeChannel(userID, e.ch)
		r.presence.Unregister(ctx, userID)
	}
	r.presence.Stop()
	return nil
}

func closeChannel(userID uint, ch Channel) {
	if err := ch.Close(); err != nil {
		observability.Logger.Warn("failed to close live channel",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}
