// Package webhook holds the canonical event bus handlers. Each handler
// performs one domain state transition and then raises the matching
// notification. A failed transition never produces a notification.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/infrastructure/nowpayments"
	"github.com/lendi-api/internal/pkg/eventbus"
)

// TransactionEvent asks for a pending transaction to be settled.
type TransactionEvent struct {
	TransactionID string
	Status        domain.TransactionStatus
	Details       string
}

// SupportEvent carries a reply written by staff to a ticket owner.
type SupportEvent struct {
	TicketID    string
	Message     string
	FromUserID  string
	Attachments []string
}

// InvestmentEvent reports a lifecycle change of an investment.
type InvestmentEvent struct {
	Investment domain.Investment
	Status     string
}

// ProfileEvent reports a change to a user's profile.
type ProfileEvent struct {
	UserID string
	Action string
	Status string
}

const InvestmentMatured = "matured"

type notifier interface {
	Notify(ctx context.Context, e notification.Event) (*notification.Result, error)
	PushTransactionUpdate(userID string, tx *domain.Transaction)
}

type transactionStore interface {
	Get(ctx context.Context, transactionID string) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	Settle(ctx context.Context, tx *domain.Transaction, status domain.TransactionStatus, credit int64) error
}

type ticketStore interface {
	Get(ctx context.Context, ticketID string) (*domain.Ticket, error)
	AppendReply(ctx context.Context, ticketID string, reply domain.TicketReply) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type Handlers struct {
	notifier     notifier
	transactions transactionStore
	tickets      ticketStore
	users        userStore
	sms          smsSender
	symbol       string
	log          *slog.Logger
}

type Deps struct {
	Notifier      notifier
	Transactions  transactionStore
	Tickets       ticketStore
	Users         userStore
	SMS           smsSender
	BalanceSymbol string
	Logger        *slog.Logger
}

func New(deps Deps) *Handlers {
	h := &Handlers{
		notifier:     deps.Notifier,
		transactions: deps.Transactions,
		tickets:      deps.Tickets,
		users:        deps.Users,
		sms:          deps.SMS,
		symbol:       deps.BalanceSymbol,
		log:          deps.Logger,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

// Register subscribes every handler to its topic.
func (h *Handlers) Register(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.TopicNowPaymentsIPN, h.HandlePaymentIPN)
	bus.Subscribe(eventbus.TopicTransaction, h.HandleTransaction)
	bus.Subscribe(eventbus.TopicSupport, h.HandleSupport)
	bus.Subscribe(eventbus.TopicInvestment, h.HandleInvestment)
	bus.Subscribe(eventbus.TopicProfile, h.HandleProfile)
}

// HandlePaymentIPN settles the deposit referenced by a verified gateway
// callback. Repeated deliveries of a finished payment credit once.
func (h *Handlers) HandlePaymentIPN(ctx context.Context, e eventbus.Event) error {
	ipn, ok := e.Payload.(nowpayments.IPN)
	if !ok {
		return payloadError(e)
	}
	tx, err := h.transactions.GetByReference(ctx, string(ipn.PaymentID))
	if errors.Is(err, domain.ErrNotFound) {
		h.log.Warn("ipn for unknown payment", "payment_id", ipn.PaymentID, "status", ipn.PaymentStatus)
		return nil
	}
	if err != nil {
		return err
	}
	if tx.Type != domain.TxDeposit {
		h.log.Warn("ipn references non-deposit transaction", "reference", tx.Reference, "type", tx.Type)
		return nil
	}

	switch {
	case ipn.PaymentStatus == nowpayments.StatusFinished:
		_, err := h.settle(ctx, tx, domain.TxCompleted, tx.AmountCents, notification.Event{
			Category: domain.CategoryTransaction,
			Title:    "Deposit Successful",
			Message:  fmt.Sprintf("Your deposit of %s %s has been confirmed", domain.FormatAmount(tx.AmountCents), h.symbol),
		})
		return err
	case nowpayments.IsTerminalFailure(ipn.PaymentStatus):
		_, err := h.settle(ctx, tx, domain.TxFailed, 0, notification.Event{
			Category: domain.CategoryTransaction,
			Title:    "Transaction failed",
			Message:  fmt.Sprintf("Your deposit of %s %s was not completed. Payment %s.", domain.FormatAmount(tx.AmountCents), h.symbol, ipn.PaymentStatus),
		})
		return err
	default:
		h.log.Debug("ipn interim status", "reference", tx.Reference, "status", ipn.PaymentStatus)
		return nil
	}
}

// HandleTransaction settles a pending transaction. A failed or cancelled
// withdrawal returns its amount to the owner in the same write.
func (h *Handlers) HandleTransaction(ctx context.Context, e eventbus.Event) error {
	p, ok := e.Payload.(TransactionEvent)
	if !ok {
		return payloadError(e)
	}
	tx, err := h.transactions.Get(ctx, p.TransactionID)
	if err != nil {
		return err
	}
	var credit int64
	if tx.Type == domain.TxWithdrawal && (p.Status == domain.TxFailed || p.Status == domain.TxCancelled) {
		credit = tx.AmountCents
	}
	category := domain.CategoryTransaction
	if tx.Type == domain.TxWithdrawal {
		category = domain.CategoryWithdrawal
	}
	msg := strings.TrimSpace(fmt.Sprintf("Your %s transaction has %s. %s", tx.Type, p.Status, p.Details))
	applied, err := h.settle(ctx, tx, p.Status, credit, notification.Event{
		Category: category,
		Title:    "Transaction " + string(p.Status),
		Message:  msg,
	})
	if err != nil {
		return err
	}
	if applied {
		h.textOwner(ctx, tx.UserID, msg)
	}
	return nil
}

// HandleSupport appends a staff reply to a ticket and tells its owner.
func (h *Handlers) HandleSupport(ctx context.Context, e eventbus.Event) error {
	p, ok := e.Payload.(SupportEvent)
	if !ok {
		return payloadError(e)
	}
	ticket, err := h.tickets.Get(ctx, p.TicketID)
	if err != nil {
		return err
	}
	reply := domain.TicketReply{
		UserID:      p.FromUserID,
		Message:     p.Message,
		Attachments: p.Attachments,
		Timestamp:   time.Now().UTC(),
	}
	if err := h.tickets.AppendReply(ctx, ticket.TicketID, reply); err != nil {
		return err
	}
	_, err = h.notifier.Notify(ctx, notification.Event{
		UserID:      ticket.UserID,
		Category:    domain.CategorySupport,
		Title:       "New Support Message",
		Message:     p.Message,
		ReferenceID: ticket.TicketID,
		Links:       &domain.NotificationLinks{TicketID: ticket.TicketID},
	})
	return err
}

// HandleInvestment tells the owner about an investment state change. The
// balance side of maturity is already settled by the publisher.
func (h *Handlers) HandleInvestment(ctx context.Context, e eventbus.Event) error {
	p, ok := e.Payload.(InvestmentEvent)
	if !ok {
		return payloadError(e)
	}
	inv := p.Investment
	msg := fmt.Sprintf("Your %d-day investment of %s %s has %s", inv.DurationDays, domain.FormatAmount(inv.AmountCents), h.symbol, p.Status)
	if p.Status == InvestmentMatured {
		msg = fmt.Sprintf("%s. %s %s was credited to your balance.", msg, domain.FormatAmount(inv.AmountCents+inv.Profit()), h.symbol)
	}
	_, err := h.notifier.Notify(ctx, notification.Event{
		UserID:      inv.UserID,
		Category:    domain.CategoryInvestment,
		Title:       "Investment " + capitalize(p.Status),
		Message:     msg,
		ReferenceID: inv.Reference,
		Metadata: map[string]any{
			"duration": inv.DurationDays,
			"amount":   domain.FormatAmount(inv.AmountCents),
		},
		Links: &domain.NotificationLinks{InvestmentID: inv.InvestmentID},
	})
	return err
}

func (h *Handlers) HandleProfile(ctx context.Context, e eventbus.Event) error {
	p, ok := e.Payload.(ProfileEvent)
	if !ok {
		return payloadError(e)
	}
	_, err := h.notifier.Notify(ctx, notification.Event{
		UserID:   p.UserID,
		Category: domain.CategoryProfile,
		Title:    "Profile Update",
		Message:  fmt.Sprintf("Profile %s has %s", p.Action, p.Status),
	})
	return err
}

// settle applies the conditional pending transition and, only when this call
// won it, notifies the owner and pushes the new transaction state.
func (h *Handlers) settle(ctx context.Context, tx *domain.Transaction, status domain.TransactionStatus, credit int64, n notification.Event) (bool, error) {
	err := h.transactions.Settle(ctx, tx, status, credit)
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		h.log.Info("transaction already settled", "reference", tx.Reference, "status", status)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	tx.Status = status
	n.UserID = tx.UserID
	n.ReferenceID = tx.Reference
	n.Links = &domain.NotificationLinks{TransactionID: tx.TransactionID}
	if _, err := h.notifier.Notify(ctx, n); err != nil {
		return true, err
	}
	h.notifier.PushTransactionUpdate(tx.UserID, tx)
	return true, nil
}

func (h *Handlers) textOwner(ctx context.Context, userID, msg string) {
	if h.sms == nil || h.users == nil {
		return
	}
	u, err := h.users.Get(ctx, userID)
	if err != nil || u.Phone == nil || *u.Phone == "" {
		return
	}
	if err := h.sms.SendSMS(ctx, *u.Phone, msg); err != nil {
		h.log.Warn("sms delivery failed", "user_id", userID, "err", err)
	}
}

func payloadError(e eventbus.Event) error {
	return fmt.Errorf("unexpected %T payload on %s: %w", e.Payload, e.Topic, domain.ErrBadRequest)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
