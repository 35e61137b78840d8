package withdrawal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/application/webhook"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/pkg/eventbus"
	"github.com/lendi-api/internal/pkg/id"
)

type Service interface {
	Request(ctx context.Context, userID string, req domain.WithdrawalRequest) (*domain.Transaction, error)
	Settle(ctx context.Context, transactionID string, status domain.TransactionStatus) (*domain.Transaction, error)
}

type transactionStore interface {
	CreateWithDebit(ctx context.Context, tx *domain.Transaction) error
	Get(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

type notifier interface {
	Notify(ctx context.Context, e notification.Event) (*notification.Result, error)
}

type publisher interface {
	Publish(ctx context.Context, topic eventbus.Topic, payload any) error
}

type service struct {
	repo     transactionStore
	notifier notifier
	bus      publisher
	symbol   string
	log      *slog.Logger
}

type ServiceDeps struct {
	Repo          transactionStore
	Notifier      notifier
	Bus           publisher
	BalanceSymbol string
	Logger        *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.Repo,
		notifier: deps.Notifier,
		bus:      deps.Bus,
		symbol:   deps.BalanceSymbol,
		log:      deps.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Request reserves the amount by debiting it together with the pending
// withdrawal record. Staff later settle it through Settle.
func (s *service) Request(ctx context.Context, userID string, req domain.WithdrawalRequest) (*domain.Transaction, error) {
	cents := domain.ToCents(req.Amount)
	if cents <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	txID := id.NewAt(now)
	tx := &domain.Transaction{
		TransactionID: txID,
		UserID:        userID,
		Type:          domain.TxWithdrawal,
		AmountCents:   cents,
		Status:        domain.TxPending,
		Reference:     "WD-" + txID,
		Crypto: &domain.CryptoDetails{
			Currency:      req.CryptoType,
			WalletAddress: req.WalletAddress,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateWithDebit(ctx, tx); err != nil {
		return nil, err
	}
	_, err := s.notifier.Notify(ctx, notification.Event{
		UserID:   userID,
		Category: domain.CategoryWithdrawal,
		Title:    "Withdrawal Update",
		Message: fmt.Sprintf("Your withdrawal of %s %s to your %s wallet is being processed",
			domain.FormatAmount(cents), s.symbol, req.CryptoType),
		ReferenceID: tx.Reference,
		Metadata:    map[string]any{"crypto_type": req.CryptoType, "amount": domain.FormatAmount(cents)},
		Links:       &domain.NotificationLinks{TransactionID: tx.TransactionID},
	})
	if err != nil {
		s.log.Error("withdrawal notification failed", "transaction_id", tx.TransactionID, "err", err)
	}
	return tx, nil
}

// Settle completes or fails a pending withdrawal. The transition, refund and
// owner notification happen in the transaction event handler.
func (s *service) Settle(ctx context.Context, transactionID string, status domain.TransactionStatus) (*domain.Transaction, error) {
	if status != domain.TxCompleted && status != domain.TxFailed {
		return nil, fmt.Errorf("status must be completed or failed: %w", domain.ErrBadRequest)
	}
	tx, err := s.repo.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Type != domain.TxWithdrawal {
		return nil, fmt.Errorf("transaction %s is a %s: %w", transactionID, tx.Type, domain.ErrBadRequest)
	}
	if tx.Status != domain.TxPending {
		return nil, fmt.Errorf("transaction is %s: %w", tx.Status, domain.ErrConflict)
	}
	if err := s.bus.Publish(ctx, eventbus.TopicTransaction, webhook.TransactionEvent{
		TransactionID: transactionID,
		Status:        status,
	}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, transactionID)
}
