package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/pkg/id"
)

const maxPageSize = 100

// Event describes a notification to raise for one user.
type Event struct {
	UserID      string
	Category    domain.NotificationCategory
	Title       string
	Message     string
	ReferenceID string
	Metadata    map[string]any
	Links       *domain.NotificationLinks
}

// Result reports what Notify did. A nil error with Delivered false means the
// notification was stored but the user had no live connection.
type Result struct {
	Notification *domain.Notification
	Delivered    bool
}

type Page struct {
	Notifications []domain.Notification
	Total         int
	Page          int
	Pages         int
}

type Service interface {
	Notify(ctx context.Context, e Event) (*Result, error)
	List(ctx context.Context, userID string, page, size int) (*Page, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, notificationID string) error
	Broadcast(title, message string)
	PushTransactionUpdate(userID string, tx *domain.Transaction)
}

type store interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, userID string, page, size int) ([]domain.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, notificationID, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, notificationID, userID string) (bool, error)
}

type dispatcher interface {
	SendToUser(userID string, payload any) bool
	Broadcast(payload any)
}

type service struct {
	repo       store
	dispatcher dispatcher
	log        *slog.Logger
	now        func() time.Time
}

type ServiceDeps struct {
	Repo       store
	Dispatcher dispatcher
	Logger     *slog.Logger
	Clock      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:       deps.Repo,
		dispatcher: deps.Dispatcher,
		log:        deps.Logger,
		now:        deps.Clock,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Notify(ctx context.Context, e Event) (*Result, error) {
	if e.UserID == "" {
		return nil, fmt.Errorf("user id is required: %w", domain.ErrBadRequest)
	}
	if !e.Category.Valid() {
		return nil, fmt.Errorf("unknown category %q: %w", e.Category, domain.ErrBadRequest)
	}
	if strings.TrimSpace(e.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrBadRequest)
	}
	now := s.now().UTC()
	n := &domain.Notification{
		NotificationID: id.NewAt(now),
		UserID:         e.UserID,
		Category:       e.Category,
		Title:          e.Title,
		Message:        e.Message,
		ReferenceID:    e.ReferenceID,
		Metadata:       e.Metadata,
		Links:          e.Links,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	delivered := s.dispatcher.SendToUser(n.UserID, domain.RealtimeMessage{
		Type: domain.RealtimeNotification,
		Notification: &domain.RealtimeNotificationBody{
			ID:          n.NotificationID,
			Type:        n.Category,
			Title:       n.Title,
			Message:     n.Message,
			Timestamp:   n.CreatedAt,
			ReferenceID: n.ReferenceID,
			Metadata:    n.Metadata,
		},
	})
	if !delivered {
		s.log.Debug("notification stored for offline user", "user_id", n.UserID, "notification_id", n.NotificationID)
	}
	return &Result{Notification: n, Delivered: delivered}, nil
}

func (s *service) List(ctx context.Context, userID string, page, size int) (*Page, error) {
	if page < 1 || size < 1 || size > maxPageSize {
		return nil, fmt.Errorf("page must be >= 1 and limit between 1 and %d: %w", maxPageSize, domain.ErrBadRequest)
	}
	items, total, err := s.repo.ListForUser(ctx, userID, page, size)
	if err != nil {
		return nil, err
	}
	return &Page{
		Notifications: items,
		Total:         total,
		Page:          page,
		Pages:         (total + size - 1) / size,
	}, nil
}

func (s *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead is idempotent. An unknown or foreign id is a silent no-op; an
// already read notification is pushed again so other sessions converge.
func (s *service) MarkRead(ctx context.Context, userID, notificationID string) error {
	ok, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil || !ok {
		return err
	}
	read := true
	s.dispatcher.SendToUser(userID, domain.RealtimeMessage{
		Type:           domain.RealtimeUpdateNotification,
		NotificationID: notificationID,
		Read:           &read,
	})
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.dispatcher.SendToUser(userID, domain.RealtimeMessage{Type: domain.RealtimeMarkAllRead})
	return n, nil
}

func (s *service) Delete(ctx context.Context, userID, notificationID string) error {
	ok, err := s.repo.Delete(ctx, notificationID, userID)
	if err != nil || !ok {
		return err
	}
	s.dispatcher.SendToUser(userID, domain.RealtimeMessage{
		Type:           domain.RealtimeDeleteNotification,
		NotificationID: notificationID,
	})
	return nil
}

// Broadcast pushes a system message to every live connection. Nothing is stored.
func (s *service) Broadcast(title, message string) {
	s.dispatcher.Broadcast(domain.RealtimeMessage{
		Type: domain.RealtimeNotification,
		Notification: &domain.RealtimeNotificationBody{
			Type:      domain.CategorySystem,
			Title:     title,
			Message:   message,
			Timestamp: s.now().UTC(),
		},
	})
}

func (s *service) PushTransactionUpdate(userID string, tx *domain.Transaction) {
	s.dispatcher.SendToUser(userID, domain.RealtimeMessage{
		Type: domain.RealtimeTransactionUpdate,
		Transaction: &domain.TransactionUpdate{
			Reference: tx.Reference,
			Type:      tx.Type,
			Status:    tx.Status,
			Amount:    domain.FormatAmount(tx.AmountCents),
		},
	})
}
