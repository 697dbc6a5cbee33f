package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"walletcore.backend/internal/domain/entities"
)

// NotificationRepository defines notification data operations
type NotificationRepository interface {
	Create(ctx context.Context, n *entities.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Notification, error)
	MarkChannelSent(ctx context.Context, id uuid.UUID, channel entities.Channel, at time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*entities.Notification, int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
