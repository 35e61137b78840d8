package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/infrastructure/nowpayments"
	"github.com/lendi-api/internal/pkg/eventbus"
	"github.com/lendi-api/internal/pkg/id"
)

const maxPageSize = 100

// Quote is the price of a token amount in USD and in the pay currency.
type Quote struct {
	Tokens          float64 `json:"tokens"`
	USD             float64 `json:"usd"`
	PayCurrency     string  `json:"pay_currency"`
	EstimatedAmount float64 `json:"estimated_amount"`
}

type DepositResult struct {
	Transaction *domain.Transaction
	Payment     *nowpayments.Payment
}

type TransactionPage struct {
	Transactions []domain.Transaction
	Total        int
	Page         int
	Pages        int
}

type Service interface {
	Calculate(ctx context.Context, tokens float64) (*Quote, error)
	Deposit(ctx context.Context, userID string, req domain.DepositRequest) (*DepositResult, error)
	HandleIPN(ctx context.Context, body []byte, signature string) error
	Verify(ctx context.Context, userID, paymentID string) (*domain.Transaction, error)
	Cancel(ctx context.Context, userID, paymentID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID string, page, size int) (*TransactionPage, error)
	GetTransaction(ctx context.Context, userID, reference string) (*domain.Transaction, error)
}

type gateway interface {
	Estimate(ctx context.Context, usd float64) (*nowpayments.Estimate, error)
	CreatePayment(ctx context.Context, usd float64, orderID, description string) (*nowpayments.Payment, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*nowpayments.Payment, error)
	VerifySignature(body []byte, signature string) bool
}

type transactionStore interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ListForUser(ctx context.Context, userID string, page, size int) ([]domain.Transaction, int, error)
	Transition(ctx context.Context, transactionID string, from, to domain.TransactionStatus) error
}

type notifier interface {
	Notify(ctx context.Context, e notification.Event) (*notification.Result, error)
}

type publisher interface {
	Publish(ctx context.Context, topic eventbus.Topic, payload any) error
}

type service struct {
	gateway      gateway
	repo         transactionStore
	notifier     notifier
	bus          publisher
	tokensPerUSD int64
	symbol       string
	log          *slog.Logger
}

type ServiceDeps struct {
	Gateway       gateway
	Repo          transactionStore
	Notifier      notifier
	Bus           publisher
	TokensPerUSD  int64
	BalanceSymbol string
	Logger        *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		gateway:      deps.Gateway,
		repo:         deps.Repo,
		notifier:     deps.Notifier,
		bus:          deps.Bus,
		tokensPerUSD: deps.TokensPerUSD,
		symbol:       deps.BalanceSymbol,
		log:          deps.Logger,
	}
	if s.tokensPerUSD <= 0 {
		s.tokensPerUSD = 1
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) usd(tokens float64) float64 {
	return tokens / float64(s.tokensPerUSD)
}

func (s *service) Calculate(ctx context.Context, tokens float64) (*Quote, error) {
	if tokens <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrBadRequest)
	}
	usd := s.usd(tokens)
	est, err := s.gateway.Estimate(ctx, usd)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Tokens:          tokens,
		USD:             usd,
		PayCurrency:     est.CurrencyTo,
		EstimatedAmount: est.EstimatedAmount,
	}, nil
}

// Deposit opens a gateway payment and records it as a pending deposit whose
// reference is the gateway payment id. The balance moves only when the
// gateway later reports the payment finished.
func (s *service) Deposit(ctx context.Context, userID string, req domain.DepositRequest) (*DepositResult, error) {
	cents := domain.ToCents(req.Amount)
	if cents <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrBadRequest)
	}
	orderID := id.New()
	pay, err := s.gateway.CreatePayment(ctx, s.usd(req.Amount), orderID,
		fmt.Sprintf("Purchase of %s %s", domain.FormatAmount(cents), s.symbol))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	tx := &domain.Transaction{
		TransactionID: orderID,
		UserID:        userID,
		Type:          domain.TxDeposit,
		AmountCents:   cents,
		Status:        domain.TxPending,
		Reference:     string(pay.PaymentID),
		Crypto: &domain.CryptoDetails{
			Currency:      strings.ToUpper(pay.PayCurrency),
			Amount:        pay.PayAmount,
			WalletAddress: pay.PayAddress,
			PaymentURL:    pay.PaymentURL,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}
	s.notify(ctx, tx, "Transaction Initiated",
		fmt.Sprintf("Send %g %s to complete your purchase of %s %s", pay.PayAmount, tx.Crypto.Currency, domain.FormatAmount(cents), s.symbol))
	return &DepositResult{Transaction: tx, Payment: pay}, nil
}

// HandleIPN authenticates a gateway callback and hands it to the event bus.
// Nothing is read or written before the signature checks out.
func (s *service) HandleIPN(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifySignature(body, signature) {
		return domain.ErrInvalidSignature
	}
	var ipn nowpayments.IPN
	if err := json.Unmarshal(body, &ipn); err != nil {
		return fmt.Errorf("decode ipn: %w", domain.ErrBadRequest)
	}
	if ipn.PaymentID == "" {
		return fmt.Errorf("ipn has no payment_id: %w", domain.ErrBadRequest)
	}
	return s.bus.Publish(ctx, eventbus.TopicNowPaymentsIPN, ipn)
}

// Verify polls the gateway for a pending deposit and feeds the answer through
// the same path as a callback, so a finished payment still credits once.
func (s *service) Verify(ctx context.Context, userID, paymentID string) (*domain.Transaction, error) {
	tx, err := s.owned(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxPending {
		return tx, nil
	}
	pay, err := s.gateway.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	err = s.bus.Publish(ctx, eventbus.TopicNowPaymentsIPN, nowpayments.IPN{
		PaymentID:     nowpayments.ID(paymentID),
		PaymentStatus: pay.PaymentStatus,
		PayAddress:    pay.PayAddress,
		PayAmount:     pay.PayAmount,
		PayCurrency:   pay.PayCurrency,
		OrderID:       pay.OrderID,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByReference(ctx, paymentID)
}

func (s *service) Cancel(ctx context.Context, userID, paymentID string) (*domain.Transaction, error) {
	tx, err := s.owned(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if tx.Type != domain.TxDeposit {
		return nil, fmt.Errorf("only deposits can be cancelled: %w", domain.ErrBadRequest)
	}
	err = s.repo.Transition(ctx, tx.TransactionID, domain.TxPending, domain.TxCancelled)
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		return nil, fmt.Errorf("transaction is %s: %w", tx.Status, domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	tx.Status = domain.TxCancelled
	s.notify(ctx, tx, "Transaction Cancelled",
		fmt.Sprintf("Your deposit of %s %s was cancelled", domain.FormatAmount(tx.AmountCents), s.symbol))
	return tx, nil
}

func (s *service) ListTransactions(ctx context.Context, userID string, page, size int) (*TransactionPage, error) {
	if page < 1 || size < 1 || size > maxPageSize {
		return nil, fmt.Errorf("page must be >= 1 and limit between 1 and %d: %w", maxPageSize, domain.ErrBadRequest)
	}
	txs, total, err := s.repo.ListForUser(ctx, userID, page, size)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{Transactions: txs, Total: total, Page: page, Pages: (total + size - 1) / size}, nil
}

func (s *service) GetTransaction(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	return s.owned(ctx, userID, reference)
}

// owned hides transactions of other users behind ErrNotFound.
func (s *service) owned(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	tx, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", reference, domain.ErrNotFound)
	}
	return tx, nil
}

// notify records a transaction notification. The transaction is already
// stored, so a notification failure is not reported to the caller.
func (s *service) notify(ctx context.Context, tx *domain.Transaction, title, msg string) {
	_, err := s.notifier.Notify(ctx, notification.Event{
		UserID:      tx.UserID,
		Category:    domain.CategoryTransaction,
		Title:       title,
		Message:     msg,
		ReferenceID: tx.Reference,
		Metadata:    map[string]any{"amount": domain.FormatAmount(tx.AmountCents), "status": string(tx.Status)},
		Links:       &domain.NotificationLinks{TransactionID: tx.TransactionID},
	})
	if err != nil {
		s.log.Error("transaction notification failed", "reference", tx.Reference, "err", err)
	}
}
