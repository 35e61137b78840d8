package handler

import (
	"fmt"
	"net/http"

	"github.com/lendi-api/internal/application/investment"
	"github.com/lendi-api/internal/domain"
)

// InvestmentHandler handles plan listing and the caller's investments.
type InvestmentHandler struct {
	svc investment.Service
}

func NewInvestmentHandler(svc investment.Service) *InvestmentHandler {
	return &InvestmentHandler{svc: svc}
}

type investmentView struct {
	domain.Investment
	Amount      string `json:"amount"`
	ReturnRate  string `json:"return_rate"`
	TotalReturn string `json:"total_return"`
}

func toInvestmentView(inv *domain.Investment) investmentView {
	return investmentView{
		Investment:  *inv,
		Amount:      domain.FormatAmount(inv.AmountCents),
		ReturnRate:  fmt.Sprintf("%d%%", inv.ReturnBps/100),
		TotalReturn: domain.FormatAmount(inv.TotalReturnCents),
	}
}

func (h *InvestmentHandler) Plans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]investment.Plan{"plans": investment.Plans()})
}

func (h *InvestmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req domain.CreateInvestmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	inv, err := h.svc.Create(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvestmentView(inv))
}

func (h *InvestmentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	invs, err := h.svc.List(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	out := make([]investmentView, 0, len(invs))
	for i := range invs {
		out = append(out, toInvestmentView(&invs[i]))
	}
	writeJSON(w, http.StatusOK, map[string][]investmentView{"investments": out})
}
