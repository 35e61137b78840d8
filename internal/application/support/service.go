package support

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/application/webhook"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/pkg/eventbus"
	"github.com/lendi-api/internal/pkg/id"
)

const (
	maxAttachments   = 5
	attachmentURLTTL = 15 * time.Minute
)

// Attachment is a file uploaded alongside a ticket.
type Attachment struct {
	Filename string
	Body     io.Reader
}

type Service interface {
	Create(ctx context.Context, userID string, req domain.CreateTicketRequest, files []Attachment) (*domain.Ticket, error)
	List(ctx context.Context, userID string) ([]domain.Ticket, error)
	Get(ctx context.Context, userID, ticketID string) (*domain.Ticket, error)
	Reply(ctx context.Context, userID, ticketID string, req domain.ReplyTicketRequest) (*domain.Ticket, error)
	AdminReply(ctx context.Context, adminID, ticketID string, req domain.ReplyTicketRequest) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error)
	AttachmentURLs(ctx context.Context, userID, ticketID string) ([]string, error)
}

type ticketStore interface {
	Create(ctx context.Context, t *domain.Ticket) error
	Get(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Ticket, error)
	AppendReply(ctx context.Context, ticketID string, reply domain.TicketReply) error
	UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error
}

type attachmentStore interface {
	Upload(ctx context.Context, ticketID, filename string, r io.Reader) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type notifier interface {
	Notify(ctx context.Context, e notification.Event) (*notification.Result, error)
}

type publisher interface {
	Publish(ctx context.Context, topic eventbus.Topic, payload any) error
}

type service struct {
	repo        ticketStore
	attachments attachmentStore
	notifier    notifier
	bus         publisher
	log         *slog.Logger
}

type ServiceDeps struct {
	Repo        ticketStore
	Attachments attachmentStore
	Notifier    notifier
	Bus         publisher
	Logger      *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:        deps.Repo,
		attachments: deps.Attachments,
		notifier:    deps.Notifier,
		bus:         deps.Bus,
		log:         deps.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) Create(ctx context.Context, userID string, req domain.CreateTicketRequest, files []Attachment) (*domain.Ticket, error) {
	if len(files) > maxAttachments {
		return nil, fmt.Errorf("at most %d attachments: %w", maxAttachments, domain.ErrBadRequest)
	}
	if len(files) > 0 && s.attachments == nil {
		return nil, fmt.Errorf("attachments are not enabled: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	t := &domain.Ticket{
		TicketID:    id.NewAt(now),
		UserID:      userID,
		Subject:     req.Subject,
		Message:     req.Message,
		Status:      domain.TicketOpen,
		Attachments: []string{},
		Replies:     []domain.TicketReply{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, f := range files {
		key, err := s.attachments.Upload(ctx, t.TicketID, f.Filename, f.Body)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Filename, err)
		}
		t.Attachments = append(t.Attachments, key)
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.notify(ctx, t, "Support Ticket Created", fmt.Sprintf("Your ticket %q has been received", t.Subject))
	return t, nil
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Ticket, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Get returns a ticket owned by userID. Tickets of other users are reported
// as not found.
func (s *service) Get(ctx context.Context, userID, ticketID string) (*domain.Ticket, error) {
	t, err := s.repo.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, domain.ErrNotFound)
	}
	return t, nil
}

func (s *service) Reply(ctx context.Context, userID, ticketID string, req domain.ReplyTicketRequest) (*domain.Ticket, error) {
	t, err := s.Get(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TicketClosed {
		return nil, fmt.Errorf("ticket is closed: %w", domain.ErrConflict)
	}
	reply := domain.TicketReply{UserID: userID, Message: req.Message, Timestamp: time.Now().UTC()}
	if err := s.repo.AppendReply(ctx, ticketID, reply); err != nil {
		return nil, err
	}
	t.Replies = append(t.Replies, reply)
	s.notify(ctx, t, "Ticket Updated", fmt.Sprintf("Your reply to %q was added", t.Subject))
	return t, nil
}

// AdminReply hands a staff reply to the support event handler, which
// appends it and notifies the ticket owner.
func (s *service) AdminReply(ctx context.Context, adminID, ticketID string, req domain.ReplyTicketRequest) (*domain.Ticket, error) {
	if err := s.bus.Publish(ctx, eventbus.TopicSupport, webhook.SupportEvent{
		TicketID:   ticketID,
		Message:    req.Message,
		FromUserID: adminID,
	}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ticketID)
}

func (s *service) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if err := s.repo.UpdateStatus(ctx, ticketID, status); err != nil {
		return nil, err
	}
	t, err := s.repo.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, t, "Ticket Updated", fmt.Sprintf("Your ticket %q is now %s", t.Subject, status))
	return t, nil
}

func (s *service) notify(ctx context.Context, t *domain.Ticket, title, msg string) {
	_, err := s.notifier.Notify(ctx, notification.Event{
		UserID:      t.UserID,
		Category:    domain.CategorySupport,
		Title:       title,
		Message:     msg,
		ReferenceID: t.TicketID,
		Links:       &domain.NotificationLinks{TicketID: t.TicketID},
	})
	if err != nil {
		s.log.Error("support notification failed", "ticket_id", t.TicketID, "err", err)
	}
}

// AttachmentURLs returns short-lived download links for the caller's own
// ticket attachments, in upload order.
func (s *service) AttachmentURLs(ctx context.Context, userID, ticketID string) ([]string, error) {
	t, err := s.Get(ctx, userID, ticketID)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(t.Attachments))
	for _, key := range t.Attachments {
		u, err := s.attachments.PresignedURL(ctx, key, attachmentURLTTL)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}
