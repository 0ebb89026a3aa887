package services

import (
	"context"

	"github.com/Aidana2201/Connection_Hub/internal/models"
	"github.com/Aidana2201/Connection_Hub/pkg/apperrors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationReader is the read/update side of the notification log used by
// the notification endpoints.
type NotificationReader interface {
	List(ctx context.Context, userID primitive.ObjectID, limit, skip int64) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) (bool, error)
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type NotificationService struct {
	repo NotificationReader
}

func NewNotificationService(repo NotificationReader) *NotificationService {
	return &NotificationService{repo: repo}
}

// GetUserNotifications returns the user's notifications, newest first.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, limit, skip int64) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}

	notifications, err := s.repo.List(ctx, userID, limit, skip)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return notifications, nil
}

// GetUnreadCount returns how many unread notifications the user has.
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return count, nil
}

// MarkNotificationAsRead flags a single notification, enforcing ownership.
func (s *NotificationService) MarkNotificationAsRead(ctx context.Context, notifID, userID primitive.ObjectID) error {
	found, err := s.repo.MarkRead(ctx, notifID, userID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !found {
		return apperrors.NotFound("notification not found")
	}
	return nil
}

// MarkAllAsRead flags every unread notification of the user and returns the
// number affected.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return count, nil
}
