package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lendi-api/internal/application/payment"
	"github.com/lendi-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPaymentSvc struct{ mock.Mock }

func (m *mockPaymentSvc) Calculate(ctx context.Context, tokens float64) (*payment.Quote, error) {
	args := m.Called(ctx, tokens)
	if q, _ := args.Get(0).(*payment.Quote); q != nil {
		return q, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentSvc) Deposit(ctx context.Context, userID string, req domain.DepositRequest) (*payment.DepositResult, error) {
	args := m.Called(ctx, userID, req)
	if r, _ := args.Get(0).(*payment.DepositResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentSvc) HandleIPN(ctx context.Context, body []byte, signature string) error {
	return m.Called(ctx, body, signature).Error(0)
}

func (m *mockPaymentSvc) Verify(ctx context.Context, userID, paymentID string) (*domain.Transaction, error) {
	args := m.Called(ctx, userID, paymentID)
	if tx, _ := args.Get(0).(*domain.Transaction); tx != nil {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentSvc) Cancel(ctx context.Context, userID, paymentID string) (*domain.Transaction, error) {
	args := m.Called(ctx, userID, paymentID)
	if tx, _ := args.Get(0).(*domain.Transaction); tx != nil {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentSvc) ListTransactions(ctx context.Context, userID string, page, size int) (*payment.TransactionPage, error) {
	args := m.Called(ctx, userID, page, size)
	if p, _ := args.Get(0).(*payment.TransactionPage); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentSvc) GetTransaction(ctx context.Context, userID, reference string) (*domain.Transaction, error) {
	args := m.Called(ctx, userID, reference)
	if tx, _ := args.Get(0).(*domain.Transaction); tx != nil {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

const ipnBody = `{"payment_id":5077125051,"payment_status":"finished","price_amount":50,"order_id":"o1"}`

func webhookReq(sig string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook/nowpayments", bytes.NewBufferString(ipnBody))
	r.Header.Set(SignatureHeader, sig)
	return r
}

// --- Webhook ---

func TestWebhook_PassesRawBodyAndSignature(t *testing.T) {
	svc := &mockPaymentSvc{}
	svc.On("HandleIPN", mock.Anything, []byte(ipnBody), "abc123").Return(nil)
	rr := httptest.NewRecorder()

	NewPaymentHandler(svc).Webhook(rr, webhookReq("abc123"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestWebhook_BadSignatureIsUnauthorized(t *testing.T) {
	svc := &mockPaymentSvc{}
	svc.On("HandleIPN", mock.Anything, mock.Anything, "forged").Return(domain.ErrInvalidSignature)
	rr := httptest.NewRecorder()

	NewPaymentHandler(svc).Webhook(rr, webhookReq("forged"))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWebhook_HandlerFailureAsksForRetry(t *testing.T) {
	svc := &mockPaymentSvc{}
	svc.On("HandleIPN", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("settle: %w", assert.AnError))
	rr := httptest.NewRecorder()

	NewPaymentHandler(svc).Webhook(rr, webhookReq("abc123"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

// --- Deposit / history ---

func TestDeposit_ValidationFailure(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockPaymentSvc{}
	rr := httptest.NewRecorder()
	r := bearerReq(t, p, http.MethodPost, "/v1/payments/crypto/deposit", "u1", domain.RoleUser, []byte(`{"amount":-5}`))

	serveAuthed(p, NewPaymentHandler(svc).Deposit, rr, r)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeposit_Created(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockPaymentSvc{}
	tx := &domain.Transaction{TransactionID: "t1", UserID: "u1", Type: domain.TxDeposit, AmountCents: 10050, Status: domain.TxPending, Reference: "5077125051"}
	svc.On("Deposit", mock.Anything, "u1", domain.DepositRequest{Amount: 100.5}).Return(&payment.DepositResult{Transaction: tx}, nil)
	rr := httptest.NewRecorder()
	r := bearerReq(t, p, http.MethodPost, "/v1/payments/crypto/deposit", "u1", domain.RoleUser, []byte(`{"amount":100.5}`))

	serveAuthed(p, NewPaymentHandler(svc).Deposit, rr, r)

	require.Equal(t, http.StatusCreated, rr.Code)
	var body struct {
		Transaction struct {
			Amount    string `json:"amount"`
			Reference string `json:"reference"`
		} `json:"transaction"`
	}
	decodeBody(t, rr, &body)
	assert.Equal(t, "100.50", body.Transaction.Amount)
	assert.Equal(t, "5077125051", body.Transaction.Reference)
}

func TestCancel_AlreadySettledIsConflict(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockPaymentSvc{}
	svc.On("Cancel", mock.Anything, "u1", "pay-1").Return(nil, fmt.Errorf("deposit settled: %w", domain.ErrConflict))
	rr := httptest.NewRecorder()
	r := withChiParam(bearerReq(t, p, http.MethodPost, "/v1/payments/crypto/cancel/pay-1", "u1", domain.RoleUser, nil), "paymentId", "pay-1")

	serveAuthed(p, NewPaymentHandler(svc).Cancel, rr, r)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestGetTransaction_ForeignIsNotFound(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockPaymentSvc{}
	svc.On("GetTransaction", mock.Anything, "u1", "ref-9").Return(nil, domain.ErrNotFound)
	rr := httptest.NewRecorder()
	r := withChiParam(bearerReq(t, p, http.MethodGet, "/v1/payments/transaction/ref-9", "u1", domain.RoleUser, nil), "reference", "ref-9")

	serveAuthed(p, NewPaymentHandler(svc).GetTransaction, rr, r)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListTransactions_UsesPaging(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockPaymentSvc{}
	svc.On("ListTransactions", mock.Anything, "u1", 2, 5).Return(&payment.TransactionPage{
		Transactions: []domain.Transaction{{TransactionID: "t6", AmountCents: 700}},
		Total:        6, Page: 2, Pages: 2,
	}, nil)
	rr := httptest.NewRecorder()
	r := bearerReq(t, p, http.MethodGet, "/v1/payments/transactions?page=2&limit=5", "u1", domain.RoleUser, nil)

	serveAuthed(p, NewPaymentHandler(svc).ListTransactions, rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var body transactionListEnvelope
	decodeBody(t, rr, &body)
	require.Len(t, body.Transactions, 1)
	assert.Equal(t, "7.00", body.Transactions[0].Amount)
	assert.Equal(t, Pagination{Total: 6, Page: 2, Pages: 2}, body.Pagination)
}
