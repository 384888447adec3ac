package service

import (
	"context"

	"ripple/internal/models"
	"ripple/internal/repository"
)

// NotificationService reads and acknowledges a recipient's notifications.
type NotificationService struct {
	store *repository.Store
}

func NewNotificationService(store *repository.Store) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the recipient's notifications newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	out, err := s.store.Notifications.ListForUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*models.Notification{}
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.store.Notifications.CountUnread(ctx, userID)
}

// MarkRead marks one of the recipient's notifications as read. Other users'
// notifications are reported as NotFound.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	return s.store.Notifications.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.store.Notifications.MarkAllRead(ctx, userID)
}
