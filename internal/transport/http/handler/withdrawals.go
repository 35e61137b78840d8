package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lendi-api/internal/application/withdrawal"
	"github.com/lendi-api/internal/domain"
)

// WithdrawalHandler handles withdrawal requests and their admin settlement.
type WithdrawalHandler struct {
	svc withdrawal.Service
}

func NewWithdrawalHandler(svc withdrawal.Service) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc}
}

func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req domain.WithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tx, err := h.svc.Request(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionView(tx))
}

// Settle is admin-only.
func (h *WithdrawalHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req domain.SettleWithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	tx, err := h.svc.Settle(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(tx))
}
