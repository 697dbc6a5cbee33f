package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/providers"
	"walletcore.backend/internal/domain/repositories"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/metrics"
	"walletcore.backend/pkg/utils"
)

// EventNotification is the websocket event carrying a new in-app notification.
const EventNotification = "notification"

// DeliveryPayload is the queued task body for one channel of one notification.
// SealedContext carries values, like OTP codes, that are never persisted or
// queued in plaintext.
type DeliveryPayload struct {
	NotificationID uuid.UUID        `json:"notification_id"`
	Channel        entities.Channel `json:"channel"`
	SealedContext  string           `json:"sealed_context,omitempty"`
}

// errSkipChannel marks a delivery that can never succeed, so it is not retried.
var errSkipChannel = errors.New("channel not deliverable")

// NotificationUsecase stores inbox entries and fans them out per channel.
type NotificationUsecase struct {
	repo      repositories.NotificationRepository
	userRepo  repositories.UserRepository
	queue     TaskQueue
	publisher EventPublisher
	channels  MessagingProviders
	sealer    Sealer
	retention time.Duration
}

// NewNotificationUsecase creates a new notification usecase
func NewNotificationUsecase(
	repo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	queue TaskQueue,
	publisher EventPublisher,
	channels MessagingProviders,
	sealer Sealer,
	retentionDays int,
) *NotificationUsecase {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &NotificationUsecase{
		repo:      repo,
		userRepo:  userRepo,
		queue:     queue,
		publisher: publisher,
		channels:  channels,
		sealer:    sealer,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Notify creates the inbox entry and schedules delivery on every selected
// channel the user has enabled. Disabled channels are recorded as attempted
// but never sent.
func (u *NotificationUsecase) Notify(ctx context.Context, input *entities.NotifyInput) (*entities.Notification, error) {
	user, err := u.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	selected := input.Channels
	if len(selected) == 0 {
		selected = entities.DefaultChannels(input.Type)
	}
	attempted := make([]entities.Channel, 0, len(selected))
	for _, c := range selected {
		if c.IsValid() {
			attempted = append(attempted, c)
		}
	}
	sealed, err := u.sealContext(input.Context)
	if err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = entities.PriorityNormal
	}

	n := &entities.Notification{
		ID:                utils.GenerateUUIDv7(),
		UserID:            user.ID,
		Type:              input.Type,
		Priority:          priority,
		Title:             input.Title,
		Body:              input.Body,
		ChannelsAttempted: attempted,
		ExpiresAt:         input.ExpiresAt,
		Metadata:          Sanitize(input.Context),
		CreatedAt:         nowFunc(),
	}
	if input.ActionURL != "" {
		n.ActionURL = null.StringFrom(input.ActionURL)
	}
	if input.RelatedEntityType != "" {
		n.RelatedEntityType = null.StringFrom(input.RelatedEntityType)
		n.RelatedEntityID = null.StringFrom(input.RelatedEntityID)
	}
	if err := u.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	for _, c := range attempted {
		if !channelEnabled(user, input.Type, c) {
			metrics.NotificationDeliveries.WithLabelValues(string(c), "disabled").Inc()
			continue
		}
		payload := DeliveryPayload{NotificationID: n.ID, Channel: c, SealedContext: sealed}
		if _, err := u.queue.Enqueue(ctx, TaskDeliverNotification, payload); err != nil {
			logger.Error(ctx, "Failed to enqueue notification delivery",
				zap.String("notification_id", n.ID.String()),
				zap.String("channel", string(c)),
				zap.Error(err),
			)
		}
	}
	return n, nil
}

func (u *NotificationUsecase) sealContext(values map[string]interface{}) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode delivery context: %w", err)
	}
	sealed, err := u.sealer.Seal(raw)
	if err != nil {
		return "", fmt.Errorf("seal delivery context: %w", err)
	}
	return sealed, nil
}

func (u *NotificationUsecase) openContext(sealed string) (map[string]interface{}, error) {
	if sealed == "" {
		return nil, nil
	}
	raw, err := u.sealer.Open(sealed)
	if err != nil {
		return nil, err
	}
	var values map[string]interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// channelEnabled applies the user's preferences. OTP codes and security
// alerts ignore them.
func channelEnabled(user *entities.User, t entities.NotificationType, c entities.Channel) bool {
	if t == entities.NotificationOTPCode || t == entities.NotificationSecurityAlert {
		return true
	}
	switch c {
	case entities.ChannelInApp:
		return user.InAppEnabled
	case entities.ChannelPush:
		return user.PushEnabled
	case entities.ChannelEmail:
		return user.EmailEnabled
	case entities.ChannelSMS:
		return user.SMSEnabled
	}
	return false
}

// Deliver sends one channel of a notification. A returned error makes the
// queue retry with backoff; undeliverable channels return nil.
func (u *NotificationUsecase) Deliver(ctx context.Context, payload DeliveryPayload) error {
	n, err := u.repo.GetByID(ctx, payload.NotificationID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if n.SentVia(payload.Channel) {
		return nil
	}
	user, err := u.userRepo.GetByID(ctx, n.UserID)
	if err != nil {
		return err
	}

	values, err := u.openContext(payload.SealedContext)
	if err != nil {
		err = fmt.Errorf("%w: unreadable context: %v", errSkipChannel, err)
	} else {
		err = u.send(ctx, user, n, payload.Channel, values)
	}
	if errors.Is(err, errSkipChannel) {
		metrics.NotificationDeliveries.WithLabelValues(string(payload.Channel), "skipped").Inc()
		logger.Info(ctx, "Notification channel skipped",
			zap.String("notification_id", n.ID.String()),
			zap.String("channel", string(payload.Channel)),
			zap.Error(err),
		)
		return nil
	}
	metrics.NotificationDeliveries.WithLabelValues(string(payload.Channel), metrics.Outcome(err)).Inc()
	if err != nil {
		return err
	}
	return u.repo.MarkChannelSent(ctx, n.ID, payload.Channel, nowFunc())
}

func (u *NotificationUsecase) send(ctx context.Context, user *entities.User, n *entities.Notification, channel entities.Channel, values map[string]interface{}) error {
	switch channel {
	case entities.ChannelInApp:
		return u.publisher.Publish(ctx, user.ID, EventNotification, n)
	case entities.ChannelPush:
		if !user.DeviceToken.Valid || user.DeviceToken.String == "" {
			return fmt.Errorf("%w: no device token", errSkipChannel)
		}
		data := map[string]string{"notification_id": n.ID.String(), "type": string(n.Type)}
		_, err := u.channels.Push().SendPush(ctx, user.DeviceToken.String, n.Title, n.Body, data)
		return err
	case entities.ChannelEmail:
		if !user.Email.Valid {
			return fmt.Errorf("%w: no email address", errSkipChannel)
		}
		msg := providers.EmailMessage{
			Subject:      n.Title,
			Recipients:   []string{user.Email.String},
			TemplateName: "notification",
			Context:      map[string]interface{}{"message": n.Body},
		}
		if n.Type == entities.NotificationOTPCode {
			msg.TemplateName = "otp"
			msg.Context = values
		}
		return u.channels.Email().SendEmail(ctx, msg)
	case entities.ChannelSMS:
		if !user.Phone.Valid {
			return fmt.Errorf("%w: no phone number", errSkipChannel)
		}
		body := n.Body
		if code, ok := values["code"].(string); ok && n.Type == entities.NotificationOTPCode {
			body = "Your verification code is " + code
		}
		_, err := u.channels.SMS().SendSMS(ctx, user.Phone.String, body)
		return err
	}
	return fmt.Errorf("%w: unknown channel %q", errSkipChannel, channel)
}

// List returns the user's inbox newest first.
func (u *NotificationUsecase) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]*entities.Notification, int64, error) {
	_, limit, offset := pageOffset(page, limit)
	return u.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

// CountUnread answers the websocket get_unread_count command.
func (u *NotificationUsecase) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return u.repo.CountUnread(ctx, userID)
}

// MarkRead marks one of the user's notifications read.
func (u *NotificationUsecase) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return u.repo.MarkRead(ctx, notificationID, userID, nowFunc())
}

// MarkAllRead marks the whole inbox read.
func (u *NotificationUsecase) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return u.repo.MarkAllRead(ctx, userID, nowFunc())
}

// UpdatePreferences changes the per-channel switches and the push token.
func (u *NotificationUsecase) UpdatePreferences(ctx context.Context, userID uuid.UUID, input *entities.NotificationPreferencesInput) (*entities.User, error) {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.PushEnabled != nil {
		user.PushEnabled = *input.PushEnabled
	}
	if input.InAppEnabled != nil {
		user.InAppEnabled = *input.InAppEnabled
	}
	if input.EmailEnabled != nil {
		user.EmailEnabled = *input.EmailEnabled
	}
	if input.SMSEnabled != nil {
		user.SMSEnabled = *input.SMSEnabled
	}
	if input.DeviceToken != "" {
		user.DeviceToken = null.StringFrom(input.DeviceToken)
	}
	user.UpdatedAt = nowFunc()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Purge deletes expired notifications and read ones past retention.
func (u *NotificationUsecase) Purge(ctx context.Context) (int64, error) {
	now := nowFunc()
	expired, err := u.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	old, err := u.repo.DeleteReadBefore(ctx, now.Add(-u.retention))
	if err != nil {
		return expired, err
	}
	return expired + old, nil
}
