package investment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/application/webhook"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/pkg/eventbus"
	"github.com/lendi-api/internal/pkg/id"
)

// returnBps maps a plan duration in days to its return in basis points.
var returnBps = map[int]int64{
	30:  2500,
	60:  5000,
	90:  10000,
	180: 20000,
}

type Plan struct {
	DurationDays int    `json:"duration"`
	ReturnRate   string `json:"return_rate"`
}

// Plans lists the available plans ordered by duration.
func Plans() []Plan {
	out := make([]Plan, 0, len(returnBps))
	for d, bps := range returnBps {
		out = append(out, Plan{DurationDays: d, ReturnRate: fmt.Sprintf("%d%%", bps/100)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationDays < out[j].DurationDays })
	return out
}

type Service interface {
	Create(ctx context.Context, userID string, req domain.CreateInvestmentRequest) (*domain.Investment, error)
	List(ctx context.Context, userID string) ([]domain.Investment, error)
	CheckMatured(ctx context.Context, now time.Time) (int, error)
}

type investmentStore interface {
	CreateWithDebit(ctx context.Context, inv *domain.Investment, ledger *domain.Transaction) error
	ListForUser(ctx context.Context, userID string) ([]domain.Investment, error)
	ListDue(ctx context.Context, now time.Time) ([]domain.Investment, error)
	Settle(ctx context.Context, inv *domain.Investment, ledger *domain.Transaction) error
}

type notifier interface {
	Notify(ctx context.Context, e notification.Event) (*notification.Result, error)
}

type publisher interface {
	Publish(ctx context.Context, topic eventbus.Topic, payload any) error
}

type service struct {
	repo     investmentStore
	notifier notifier
	bus      publisher
	symbol   string
	log      *slog.Logger
}

type ServiceDeps struct {
	Repo          investmentStore
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

// Create stakes part of the user's balance. The debit and the investment are
// written together, so a balance that is too low leaves nothing behind.
func (s *service) Create(ctx context.Context, userID string, req domain.CreateInvestmentRequest) (*domain.Investment, error) {
	bps, ok := returnBps[req.Duration]
	if !ok {
		return nil, fmt.Errorf("no plan for %d days: %w", req.Duration, domain.ErrBadRequest)
	}
	cents := domain.ToCents(req.Amount)
	if cents <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	invID := id.NewAt(now)
	inv := &domain.Investment{
		InvestmentID: invID,
		UserID:       userID,
		AmountCents:  cents,
		DurationDays: req.Duration,
		ReturnBps:    bps,
		Status:       domain.InvestmentActive,
		Reference:    "INV-" + invID,
		StartDate:    now,
		EndDate:      now.AddDate(0, 0, req.Duration),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	inv.TotalReturnCents = cents + inv.Profit()
	ledger := &domain.Transaction{
		TransactionID: id.NewAt(now),
		UserID:        userID,
		Type:          domain.TxInvestment,
		AmountCents:   cents,
		Status:        domain.TxCompleted,
		Reference:     inv.Reference,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateWithDebit(ctx, inv, ledger); err != nil {
		return nil, err
	}
	_, err := s.notifier.Notify(ctx, notification.Event{
		UserID:   userID,
		Category: domain.CategoryInvestment,
		Title:    "Investment Created",
		Message: fmt.Sprintf("Your %d-day investment of %s %s is active until %s",
			inv.DurationDays, domain.FormatAmount(cents), s.symbol, inv.EndDate.Format("2006-01-02")),
		ReferenceID: inv.Reference,
		Links:       &domain.NotificationLinks{InvestmentID: inv.InvestmentID},
	})
	if err != nil {
		s.log.Error("investment notification failed", "investment_id", inv.InvestmentID, "err", err)
	}
	return inv, nil
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Investment, error) {
	return s.repo.ListForUser(ctx, userID)
}

// CheckMatured settles every active investment whose end date has passed.
// Each settlement is conditional on the investment still being active, so
// overlapping sweeps on any number of instances pay out once. It returns the
// number of investments this call settled.
func (s *service) CheckMatured(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}
	settled := 0
	var errs []error
	for i := range due {
		inv := &due[i]
		payout := inv.AmountCents + inv.Profit()
		ledger := &domain.Transaction{
			TransactionID: id.New(),
			UserID:        inv.UserID,
			Type:          domain.TxReturn,
			AmountCents:   payout,
			Status:        domain.TxCompleted,
			Reference:     "RET-" + inv.InvestmentID,
			CreatedAt:     now.UTC(),
			UpdatedAt:     now.UTC(),
		}
		err := s.repo.Settle(ctx, inv, ledger)
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			continue
		}
		if err != nil {
			s.log.Error("investment settlement failed", "investment_id", inv.InvestmentID, "err", err)
			errs = append(errs, err)
			continue
		}
		settled++
		inv.Status = domain.InvestmentCompleted
		inv.TotalReturnCents = payout
		if err := s.bus.Publish(ctx, eventbus.TopicInvestment, webhook.InvestmentEvent{
			Investment: *inv,
			Status:     webhook.InvestmentMatured,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	if settled > 0 {
		s.log.Info("investments matured", "count", settled)
	}
	return settled, errors.Join(errs...)
}
