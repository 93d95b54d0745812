package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/pkg/events"
)

// NotificationMessage is the payload handed to the notification sink.
type NotificationMessage struct {
	Title    string
	Message  string
	Priority models.NotificationPriority
	Channels []string
}

// Notifier delivers notifications without surfacing failures to callers.
type Notifier interface {
	NotifyPromoteur(ctx context.Context, promoteurID string, msg NotificationMessage)
	NotifyRoles(ctx context.Context, roles []models.UserRole, msg NotificationMessage)
}

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type recipientResolver interface {
	ListActiveIDsByRole(ctx context.Context, roles ...models.UserRole) ([]string, error)
	PromoteurUserID(ctx context.Context, promoteurID string) (string, error)
}

// Outbound event types published for external channels.
const (
	EventNotificationEmail    = "notification.email"
	EventNotificationWhatsApp = "notification.whatsapp"
)

type outboundNotification struct {
	NotificationID string                      `json:"notificationId"`
	RecipientID    string                      `json:"recipientId"`
	Title          string                      `json:"title"`
	Message        string                      `json:"message"`
	Priority       models.NotificationPriority `json:"priority"`
}

// NotificationService persists in-app notifications and publishes external channel events.
type NotificationService struct {
	store     notificationStore
	users     recipientResolver
	publisher events.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService constructs the service. A nil publisher disables external channels.
func NewNotificationService(store notificationStore, users recipientResolver, publisher events.Publisher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationService{store: store, users: users, publisher: publisher, metrics: metrics, logger: logger, now: defaultNow}
}

// NotifyPromoteur resolves the account owner of a promoteur and notifies them.
func (s *NotificationService) NotifyPromoteur(ctx context.Context, promoteurID string, msg NotificationMessage) {
	userID, err := s.users.PromoteurUserID(ctx, promoteurID)
	if err != nil {
		s.logger.Warn("failed to resolve promoteur recipient", zap.String("promoteur_id", promoteurID), zap.Error(err))
		return
	}
	s.Notify(ctx, userID, msg)
}

// NotifyRoles notifies every active user holding one of roles.
func (s *NotificationService) NotifyRoles(ctx context.Context, roles []models.UserRole, msg NotificationMessage) {
	ids, err := s.users.ListActiveIDsByRole(ctx, roles...)
	if err != nil {
		s.logger.Warn("failed to resolve role recipients", zap.Any("roles", roles), zap.Error(err))
		return
	}
	for _, id := range ids {
		s.Notify(ctx, id, msg)
	}
}

// Notify delivers msg to a single recipient.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, msg NotificationMessage) {
	channels := msg.Channels
	if len(channels) == 0 {
		channels = []string{models.ChannelInApp}
	}
	if msg.Priority == "" {
		msg.Priority = models.PriorityNormal
	}
	notification := &models.Notification{
		RecipientID: recipientID,
		Title:       msg.Title,
		Message:     msg.Message,
		Priority:    msg.Priority,
		Channels:    channels,
		CreatedAt:   s.now(),
	}
	if err := s.store.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to persist notification", zap.String("recipient_id", recipientID), zap.Error(err))
	}

	for _, channel := range channels {
		var eventType string
		switch channel {
		case models.ChannelEmail:
			eventType = EventNotificationEmail
		case models.ChannelWhatsApp:
			eventType = EventNotificationWhatsApp
		default:
			continue
		}
		payload := outboundNotification{
			NotificationID: notification.ID,
			RecipientID:    recipientID,
			Title:          msg.Title,
			Message:        msg.Message,
			Priority:       msg.Priority,
		}
		err := s.publisher.Publish(ctx, eventType, recipientID, payload)
		s.metrics.RecordNotification(channel, err == nil)
		if err != nil {
			s.logger.Warn("failed to publish notification",
				zap.String("recipient_id", recipientID), zap.String("channel", channel), zap.Error(err))
		}
	}
}
