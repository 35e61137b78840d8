package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/application/notification/notificationtest"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/infrastructure/nowpayments"
	"github.com/lendi-api/internal/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

// ledger applies Settle with the same conditional semantics as DynamoDB.
type ledger struct {
	mu       sync.Mutex
	txs      map[string]*domain.Transaction
	balances map[string]int64
}

func newLedger(txs ...*domain.Transaction) *ledger {
	l := &ledger{txs: make(map[string]*domain.Transaction), balances: make(map[string]int64)}
	for _, tx := range txs {
		l.txs[tx.TransactionID] = tx
	}
	return l
}

func (l *ledger) Get(_ context.Context, id string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.txs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (l *ledger) GetByReference(_ context.Context, ref string) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tx := range l.txs {
		if tx.Reference == ref {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (l *ledger) Settle(_ context.Context, tx *domain.Transaction, status domain.TransactionStatus, credit int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := l.txs[tx.TransactionID]
	if stored.Status != domain.TxPending {
		return domain.ErrAlreadyProcessed
	}
	stored.Status = status
	l.balances[stored.UserID] += credit
	return nil
}

func (l *ledger) status(id string) domain.TransactionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txs[id].Status
}

func (l *ledger) balance(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

type mockTicketStore struct{ mock.Mock }

func (m *mockTicketStore) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID)
	if t, _ := args.Get(0).(*domain.Ticket); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTicketStore) AppendReply(ctx context.Context, ticketID string, reply domain.TicketReply) error {
	return m.Called(ctx, ticketID, reply).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

// --- helpers ---

type fixture struct {
	handlers *Handlers
	ledger   *ledger
	store    *notificationtest.Store
	pushes   *notificationtest.Dispatcher
	tickets  *mockTicketStore
	users    *mockUserStore
	sms      *mockSMS
}

func newFixture(txs ...*domain.Transaction) *fixture {
	f := &fixture{
		ledger:  newLedger(txs...),
		store:   notificationtest.NewStore(),
		pushes:  notificationtest.NewDispatcher("u1"),
		tickets: &mockTicketStore{},
		users:   &mockUserStore{},
		sms:     &mockSMS{},
	}
	n := notification.NewService(notification.ServiceDeps{Repo: f.store, Dispatcher: f.pushes})
	f.handlers = New(Deps{
		Notifier:      n,
		Transactions:  f.ledger,
		Tickets:       f.tickets,
		Users:         f.users,
		SMS:           f.sms,
		BalanceSymbol: "LENDI",
	})
	return f
}

func pendingDeposit() *domain.Transaction {
	return &domain.Transaction{
		TransactionID: "tx-1",
		UserID:        "u1",
		Type:          domain.TxDeposit,
		AmountCents:   10000,
		Status:        domain.TxPending,
		Reference:     "5077125051",
	}
}

func pendingWithdrawal() *domain.Transaction {
	return &domain.Transaction{
		TransactionID: "tx-2",
		UserID:        "u1",
		Type:          domain.TxWithdrawal,
		AmountCents:   5000,
		Status:        domain.TxPending,
		Reference:     "WD-1",
	}
}

func ipn(status string) eventbus.Event {
	return eventbus.Event{
		Topic:   eventbus.TopicNowPaymentsIPN,
		Payload: nowpayments.IPN{PaymentID: "5077125051", PaymentStatus: status},
	}
}

func titles(ns []domain.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Title)
	}
	return out
}

// --- nowpayments_ipn ---

func TestHandlePaymentIPN_FinishedCreditsOnce(t *testing.T) {
	f := newFixture(pendingDeposit())
	ctx := context.Background()

	require.NoError(t, f.handlers.HandlePaymentIPN(ctx, ipn(nowpayments.StatusFinished)))
	require.NoError(t, f.handlers.HandlePaymentIPN(ctx, ipn(nowpayments.StatusFinished)))

	assert.Equal(t, domain.TxCompleted, f.ledger.status("tx-1"))
	assert.Equal(t, int64(10000), f.ledger.balance("u1"))
	assert.Equal(t, []string{"Deposit Successful"}, titles(f.store.All("u1")))
	assert.Equal(t, []string{domain.RealtimeNotification, domain.RealtimeTransactionUpdate}, f.pushes.Types())
}

func TestHandlePaymentIPN_ConcurrentDuplicatesCreditOnce(t *testing.T) {
	f := newFixture(pendingDeposit())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.handlers.HandlePaymentIPN(context.Background(), ipn(nowpayments.StatusFinished)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10000), f.ledger.balance("u1"))
	assert.Len(t, f.store.All("u1"), 1)
}

func TestHandlePaymentIPN_TerminalFailureMarksFailed(t *testing.T) {
	f := newFixture(pendingDeposit())

	require.NoError(t, f.handlers.HandlePaymentIPN(context.Background(), ipn(nowpayments.StatusExpired)))

	assert.Equal(t, domain.TxFailed, f.ledger.status("tx-1"))
	assert.Zero(t, f.ledger.balance("u1"))
	assert.Equal(t, []string{"Transaction failed"}, titles(f.store.All("u1")))
}

func TestHandlePaymentIPN_InterimStatusIsIgnored(t *testing.T) {
	f := newFixture(pendingDeposit())

	require.NoError(t, f.handlers.HandlePaymentIPN(context.Background(), ipn(nowpayments.StatusConfirming)))

	assert.Equal(t, domain.TxPending, f.ledger.status("tx-1"))
	assert.Empty(t, f.store.All("u1"))
}

func TestHandlePaymentIPN_UnknownPaymentIsIgnored(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.handlers.HandlePaymentIPN(context.Background(), ipn(nowpayments.StatusFinished)))

	assert.Empty(t, f.pushes.Pushes())
}

func TestHandlePaymentIPN_FinishedAfterFailureDoesNotCredit(t *testing.T) {
	f := newFixture(pendingDeposit())
	ctx := context.Background()

	require.NoError(t, f.handlers.HandlePaymentIPN(ctx, ipn(nowpayments.StatusFailed)))
	require.NoError(t, f.handlers.HandlePaymentIPN(ctx, ipn(nowpayments.StatusFinished)))

	assert.Equal(t, domain.TxFailed, f.ledger.status("tx-1"))
	assert.Zero(t, f.ledger.balance("u1"))
}

// --- transaction ---

func TestHandleTransaction_FailedWithdrawalRefundsAndTexts(t *testing.T) {
	f := newFixture(pendingWithdrawal())
	phone := "+15550100"
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Phone: &phone}, nil)
	f.sms.On("SendSMS", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)
	e := eventbus.Event{Topic: eventbus.TopicTransaction, Payload: TransactionEvent{TransactionID: "tx-2", Status: domain.TxFailed}}

	require.NoError(t, f.handlers.HandleTransaction(context.Background(), e))
	require.NoError(t, f.handlers.HandleTransaction(context.Background(), e))

	assert.Equal(t, int64(5000), f.ledger.balance("u1"))
	all := f.store.All("u1")
	require.Len(t, all, 1)
	assert.Equal(t, "Transaction failed", all[0].Title)
	assert.Equal(t, domain.CategoryWithdrawal, all[0].Category)
	f.sms.AssertNumberOfCalls(t, "SendSMS", 1)
}

func TestHandleTransaction_CompletedWithdrawalDoesNotRefund(t *testing.T) {
	f := newFixture(pendingWithdrawal())
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	e := eventbus.Event{Topic: eventbus.TopicTransaction, Payload: TransactionEvent{TransactionID: "tx-2", Status: domain.TxCompleted}}

	require.NoError(t, f.handlers.HandleTransaction(context.Background(), e))

	assert.Zero(t, f.ledger.balance("u1"))
	assert.Equal(t, domain.TxCompleted, f.ledger.status("tx-2"))
	f.sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleTransaction_SMSFailureIsSwallowed(t *testing.T) {
	f := newFixture(pendingWithdrawal())
	phone := "+15550100"
	f.users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Phone: &phone}, nil)
	f.sms.On("SendSMS", mock.Anything, phone, mock.Anything).Return(errors.New("throttled"))
	e := eventbus.Event{Topic: eventbus.TopicTransaction, Payload: TransactionEvent{TransactionID: "tx-2", Status: domain.TxCompleted}}

	assert.NoError(t, f.handlers.HandleTransaction(context.Background(), e))
}

// --- support / investment / profile ---

func TestHandleSupport_AppendsReplyAndNotifiesOwner(t *testing.T) {
	f := newFixture()
	f.tickets.On("Get", mock.Anything, "t-1").Return(&domain.Ticket{TicketID: "t-1", UserID: "u1"}, nil)
	f.tickets.On("AppendReply", mock.Anything, "t-1", mock.MatchedBy(func(r domain.TicketReply) bool {
		return r.UserID == "admin-1" && r.Message == "We are on it"
	})).Return(nil)
	e := eventbus.Event{Topic: eventbus.TopicSupport, Payload: SupportEvent{TicketID: "t-1", Message: "We are on it", FromUserID: "admin-1"}}

	require.NoError(t, f.handlers.HandleSupport(context.Background(), e))

	all := f.store.All("u1")
	require.Len(t, all, 1)
	assert.Equal(t, "New Support Message", all[0].Title)
	assert.Equal(t, "t-1", all[0].Links.TicketID)
}

func TestHandleSupport_AppendFailureSkipsNotification(t *testing.T) {
	f := newFixture()
	f.tickets.On("Get", mock.Anything, "t-1").Return(&domain.Ticket{TicketID: "t-1", UserID: "u1"}, nil)
	f.tickets.On("AppendReply", mock.Anything, "t-1", mock.Anything).Return(errors.New("boom"))
	e := eventbus.Event{Topic: eventbus.TopicSupport, Payload: SupportEvent{TicketID: "t-1", Message: "hi", FromUserID: "admin-1"}}

	require.Error(t, f.handlers.HandleSupport(context.Background(), e))
	assert.Empty(t, f.store.All("u1"))
}

func TestHandleInvestment_Matured(t *testing.T) {
	f := newFixture()
	inv := domain.Investment{
		InvestmentID: "inv-1",
		UserID:       "u1",
		AmountCents:  10000,
		DurationDays: 30,
		ReturnBps:    2500,
		Reference:    "INV-1",
		EndDate:      time.Now(),
	}
	e := eventbus.Event{Topic: eventbus.TopicInvestment, Payload: InvestmentEvent{Investment: inv, Status: InvestmentMatured}}

	require.NoError(t, f.handlers.HandleInvestment(context.Background(), e))

	all := f.store.All("u1")
	require.Len(t, all, 1)
	assert.Equal(t, "Investment Matured", all[0].Title)
	assert.Contains(t, all[0].Message, "125.00 LENDI")
	assert.Equal(t, domain.CategoryInvestment, all[0].Category)
}

func TestHandleProfile(t *testing.T) {
	f := newFixture()
	e := eventbus.Event{Topic: eventbus.TopicProfile, Payload: ProfileEvent{UserID: "u1", Action: "update", Status: "completed"}}

	require.NoError(t, f.handlers.HandleProfile(context.Background(), e))

	all := f.store.All("u1")
	require.Len(t, all, 1)
	assert.Equal(t, "Profile update has completed", all[0].Message)
}

func TestHandlers_RejectWrongPayload(t *testing.T) {
	f := newFixture()
	e := eventbus.Event{Topic: eventbus.TopicProfile, Payload: "nope"}

	err := f.handlers.HandleProfile(context.Background(), e)

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRegister_RoutesThroughBus(t *testing.T) {
	f := newFixture(pendingDeposit())
	bus := eventbus.New(nil)
	f.handlers.Register(bus)

	require.NoError(t, bus.Publish(context.Background(), eventbus.TopicNowPaymentsIPN,
		nowpayments.IPN{PaymentID: "5077125051", PaymentStatus: nowpayments.StatusFinished}))

	assert.Equal(t, int64(10000), f.ledger.balance("u1"))
}
