package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/infrastructure/models"
)

// NotificationRepository implements notification data operations
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *entities.Notification) error {
	m := notificationToModel(n)
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return mapError(err)
	}
	n.CreatedAt = m.CreatedAt
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Notification, error) {
	var m models.Notification
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapError(err)
	}
	return notificationToEntity(&m), nil
}

var sentColumns = map[entities.Channel][2]string{
	entities.ChannelInApp: {"sent_via_in_app", "in_app_sent_at"},
	entities.ChannelPush:  {"sent_via_push", "push_sent_at"},
	entities.ChannelEmail: {"sent_via_email", "email_sent_at"},
	entities.ChannelSMS:   {"sent_via_sms", "sms_sent_at"},
}

// MarkChannelSent records a successful delivery on one channel.
func (r *NotificationRepository) MarkChannelSent(ctx context.Context, id uuid.UUID, channel entities.Channel, at time.Time) error {
	cols, ok := sentColumns[channel]
	if !ok {
		return fmt.Errorf("unknown channel %q", channel)
	}
	return affected(GetDB(ctx, r.db).Model(&models.Notification{}).Where("id = ?", id).
		Updates(map[string]interface{}{cols[0]: true, cols[1]: at}))
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*entities.Notification, int64, error) {
	q := GetDB(ctx, r.db).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapError(err)
	}
	var rows []models.Notification
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, mapError(err)
	}
	out := make([]*entities.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, notificationToEntity(&rows[i]))
	}
	return out, total, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, mapError(err)
}

// MarkRead marks one of the user's notifications read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	res := GetDB(ctx, r.db).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return affected(res)
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, mapError(res.Error)
}

// DeleteReadBefore reclaims read notifications older than the cutoff.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Where("is_read = ? AND read_at < ?", true, before).Delete(&models.Notification{})
	return res.RowsAffected, mapError(res.Error)
}

// DeleteExpired reclaims notifications past their expiry.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&models.Notification{})
	return res.RowsAffected, mapError(res.Error)
}

func notificationToModel(n *entities.Notification) *models.Notification {
	channels := make(pq.StringArray, 0, len(n.ChannelsAttempted))
	for _, c := range n.ChannelsAttempted {
		channels = append(channels, string(c))
	}
	return &models.Notification{
		ID:                n.ID,
		UserID:            n.UserID,
		Type:              string(n.Type),
		Priority:          string(n.Priority),
		Title:             n.Title,
		Body:              n.Body,
		IsRead:            n.IsRead,
		ReadAt:            n.ReadAt.Ptr(),
		ChannelsAttempted: channels,
		SentViaInApp:      n.SentViaInApp,
		SentViaPush:       n.SentViaPush,
		SentViaEmail:      n.SentViaEmail,
		SentViaSMS:        n.SentViaSMS,
		InAppSentAt:       n.InAppSentAt.Ptr(),
		PushSentAt:        n.PushSentAt.Ptr(),
		EmailSentAt:       n.EmailSentAt.Ptr(),
		SMSSentAt:         n.SMSSentAt.Ptr(),
		ActionURL:         n.ActionURL.Ptr(),
		RelatedEntityType: n.RelatedEntityType.Ptr(),
		RelatedEntityID:   n.RelatedEntityID.Ptr(),
		ExpiresAt:         n.ExpiresAt.Ptr(),
		Metadata:          encodeJSON(n.Metadata),
		CreatedAt:         n.CreatedAt,
	}
}

func notificationToEntity(m *models.Notification) *entities.Notification {
	channels := make([]entities.Channel, 0, len(m.ChannelsAttempted))
	for _, c := range m.ChannelsAttempted {
		channels = append(channels, entities.Channel(c))
	}
	return &entities.Notification{
		ID:                m.ID,
		UserID:            m.UserID,
		Type:              entities.NotificationType(m.Type),
		Priority:          entities.Priority(m.Priority),
		Title:             m.Title,
		Body:              m.Body,
		IsRead:            m.IsRead,
		ReadAt:            null.TimeFromPtr(m.ReadAt),
		ChannelsAttempted: channels,
		SentViaInApp:      m.SentViaInApp,
		SentViaPush:       m.SentViaPush,
		SentViaEmail:      m.SentViaEmail,
		SentViaSMS:        m.SentViaSMS,
		InAppSentAt:       null.TimeFromPtr(m.InAppSentAt),
		PushSentAt:        null.TimeFromPtr(m.PushSentAt),
		EmailSentAt:       null.TimeFromPtr(m.EmailSentAt),
		SMSSentAt:         null.TimeFromPtr(m.SMSSentAt),
		ActionURL:         null.StringFromPtr(m.ActionURL),
		RelatedEntityType: null.StringFromPtr(m.RelatedEntityType),
		RelatedEntityID:   null.StringFromPtr(m.RelatedEntityID),
		ExpiresAt:         null.TimeFromPtr(m.ExpiresAt),
		Metadata:          decodeMap(m.Metadata),
		CreatedAt:         m.CreatedAt,
	}
}
