package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ripple/internal/models"
	"ripple/internal/notifications"
	"ripple/internal/repository"
	"ripple/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memChannel is an in-memory live channel.
type memChannel struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (c *memChannel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, payload)
	return nil
}

func (c *memChannel) Close() error { return nil }

func (c *memChannel) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.msgs...)
}

// failingNotifier fails every Persist call.
type failingNotifier struct {
	err    error
	pushed int
}

func (f *failingNotifier) Persist(context.Context, *repository.Store, models.Event) (*models.Notification, error) {
	return nil, f.err
}

func (f *failingNotifier) Push(models.Event, *models.Notification) bool {
	f.pushed++
	return true
}

// countingNotifier counts pushes and forwards to next.
type countingNotifier struct {
	Notifier
	mu     sync.Mutex
	pushed int
}

func (c *countingNotifier) Push(ev models.Event, n *models.Notification) bool {
	c.mu.Lock()
	c.pushed++
	c.mu.Unlock()
	return c.Notifier.Push(ev, n)
}

type fixture struct {
	db         *gorm.DB
	store      *repository.Store
	registry   *notifications.Registry
	dispatcher *notifications.Dispatcher
	engagement *EngagementService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	store := repository.NewStore(db)
	registry := notifications.NewRegistry(0, nil)
	dispatcher := notifications.NewDispatcher(store, registry, nil, notifications.DispatcherConfig{Workers: 2})
	dispatcher.Start()
	t.Cleanup(func() { _ = dispatcher.Shutdown(context.Background()) })

	return &fixture{
		db:         db,
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		engagement: NewEngagementService(store, dispatcher),
	}
}

// drain waits until every queued push has been delivered.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.dispatcher.Shutdown(ctx))
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}
