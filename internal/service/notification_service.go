package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/youth-governance-backend/internal/goroutine"
	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/notify"
)

// NotificationRepository is the storage of in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// ContactDirectory resolves recipients' phone numbers and emails.
type ContactDirectory interface {
	GetContacts(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Pusher delivers realtime events to connected clients.
type Pusher interface {
	SendToUser(userID uuid.UUID, event string, data any) error
}

// Notifier is what workflow services use to announce events.
type Notifier interface {
	Notify(ctx context.Context, userIDs []uuid.UUID, event string, data map[string]any)
}

// NotificationPayload is the stored JSON of a notification.
type NotificationPayload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// NotificationService stores in-app notifications, pushes them over the
// websocket hub and forwards them to SMS and email in the background.
type NotificationService struct {
	repo     NotificationRepository
	contacts ContactDirectory
	pusher   Pusher
	sms      notify.SMSSender
	email    notify.EmailSender
	metrics  *metrics.Metrics
	// deliveryTimeout bounds each background SMS/email attempt.
	deliveryTimeout time.Duration
}

func NewNotificationService(
	repo NotificationRepository,
	contacts ContactDirectory,
	pusher Pusher,
	sms notify.SMSSender,
	email notify.EmailSender,
	m *metrics.Metrics,
) *NotificationService {
	if sms == nil {
		sms = notify.NoopSMS{}
	}
	if email == nil {
		email = notify.NoopEmail{}
	}
	return &NotificationService{
		repo:            repo,
		contacts:        contacts,
		pusher:          pusher,
		sms:             sms,
		email:           email,
		metrics:         m,
		deliveryTimeout: 30 * time.Second,
	}
}

// Notify records the event for every recipient. Delivery problems are logged
// and counted; they never fail the workflow that triggered them.
func (s *NotificationService) Notify(ctx context.Context, userIDs []uuid.UUID, event string, data map[string]any) {
	userIDs = uniqueIDs(userIDs)
	if len(userIDs) == 0 {
		return
	}

	raw, err := json.Marshal(NotificationPayload{Event: event, Data: data})
	if err != nil {
		logger.WithFields(logrus.Fields{"event": event}).Errorf("notification service: marshal payload: %v", err)
		return
	}

	for _, userID := range userIDs {
		n := &models.Notification{UserID: userID, Payload: raw}
		err := s.repo.Create(ctx, n)
		s.metrics.IncrementDelivery("db", err)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"event":   event,
				"user_id": userID,
			}).Errorf("notification service: store: %v", err)
			continue
		}

		if s.pusher != nil {
			err := s.pusher.SendToUser(userID, "notification", n)
			s.metrics.IncrementDelivery("ws", err)
		}
	}

	msg, external := notify.Render(event, data)
	if !external || s.contacts == nil {
		return
	}

	// SMS and email outlive the request.
	goroutine.SafeGoWithContext(context.WithoutCancel(ctx), func(bg context.Context) {
		bg, cancel := context.WithTimeout(bg, s.deliveryTimeout*time.Duration(len(userIDs)))
		defer cancel()
		s.deliverExternal(bg, userIDs, event, msg)
	})
}

func (s *NotificationService) deliverExternal(ctx context.Context, userIDs []uuid.UUID, event string, msg notify.Message) {
	users, err := s.contacts.GetContacts(ctx, userIDs)
	if err != nil {
		logger.WithFields(logrus.Fields{"event": event}).Errorf("notification service: load contacts: %v", err)
		return
	}

	for _, u := range users {
		if !u.IsActive {
			continue
		}
		if u.Phone != nil && *u.Phone != "" {
			s.report(event, "sms", u.ID, s.sms.SendSMS(ctx, *u.Phone, msg.SMS))
		}
		if u.Email != "" {
			s.report(event, "email", u.ID, s.email.SendEmail(ctx, u.Email, msg.Subject, msg.Body))
		}
	}
}

func (s *NotificationService) report(event, channel string, userID uuid.UUID, err error) {
	if errors.Is(err, notify.ErrDisabled) {
		return
	}
	s.metrics.IncrementDelivery(channel, err)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"event":     event,
			"channel":   channel,
			"recipient": userID,
		}).Warnf("notification service: delivery failed: %v", err)
	}
}

// GetNotification returns one of the user's notifications.
func (s *NotificationService) GetNotification(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, id, userID)
	return n, mapRepoError(err)
}

// ListNotifications returns the user's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.repo.List(ctx, userID, limit, offset, unreadOnly)
	if list == nil {
		list = []models.Notification{}
	}
	return list, mapRepoError(err)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	return mapRepoError(s.repo.MarkAsRead(ctx, id, userID))
}

// MarkAllAsRead returns how many notifications changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllAsRead(ctx, userID)
	return n, mapRepoError(err)
}

func (s *NotificationService) DeleteNotification(ctx context.Context, id, userID uuid.UUID) error {
	return mapRepoError(s.repo.Delete(ctx, id, userID))
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	return n, mapRepoError(err)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
