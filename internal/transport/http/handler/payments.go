package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lendi-api/internal/application/payment"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/infrastructure/nowpayments"
)

// SignatureHeader carries the gateway's HMAC of the callback body.
const SignatureHeader = "x-nowpayments-sig"

const maxIPNBody = 64 << 10

// PaymentHandler handles crypto deposits, the gateway webhook and the
// transaction history.
type PaymentHandler struct {
	svc payment.Service
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler { return &PaymentHandler{svc: svc} }

type depositEnvelope struct {
	Transaction transactionView      `json:"transaction"`
	Payment     *nowpayments.Payment `json:"payment"`
}

type transactionListEnvelope struct {
	Transactions []transactionView `json:"transactions"`
	Pagination   Pagination        `json:"pagination"`
}

func (h *PaymentHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	q, err := h.svc.Calculate(r.Context(), req.Amount)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *PaymentHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req domain.DepositRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.svc.Deposit(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, depositEnvelope{
		Transaction: toTransactionView(res.Transaction),
		Payment:     res.Payment,
	})
}

// Webhook receives gateway callbacks. The raw body is passed through
// untouched because the signature covers its exact content.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIPNBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := h.svc.HandleIPN(r.Context(), body, r.Header.Get(SignatureHeader)); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.Verify(r.Context(), claims.UserID, chi.URLParam(r, "paymentId"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(tx))
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.Cancel(r.Context(), claims.UserID, chi.URLParam(r, "paymentId"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(tx))
}

func (h *PaymentHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	page, limit, err := parsePagination(r)
	if err != nil {
		httpError(w, r, err)
		return
	}
	p, err := h.svc.ListTransactions(r.Context(), claims.UserID, page, limit)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionListEnvelope{
		Transactions: toTransactionViews(p.Transactions),
		Pagination:   Pagination{Total: p.Total, Page: p.Page, Pages: p.Pages},
	})
}

func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.GetTransaction(r.Context(), claims.UserID, chi.URLParam(r, "reference"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(tx))
}
