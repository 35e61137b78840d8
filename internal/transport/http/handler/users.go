package handler

import (
	"net/http"

	"github.com/lendi-api/internal/application/user"
	"github.com/lendi-api/internal/domain"
)

// UserHandler handles registration and the caller's own profile.
type UserHandler struct {
	svc    user.Service
	symbol string
}

func NewUserHandler(svc user.Service, balanceSymbol string) *UserHandler {
	return &UserHandler{svc: svc, symbol: balanceSymbol}
}

type profileView struct {
	*domain.User
	Balance       string `json:"balance"`
	BalanceSymbol string `json:"balance_symbol"`
}

func (h *UserHandler) profile(u *domain.User) profileView {
	return profileView{User: u, Balance: domain.FormatAmount(u.BalanceCents), BalanceSymbol: h.symbol}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	sess, bearer, refreshToken, err := h.svc.RegisterWithSession(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{
		Bearer:       bearer,
		RefreshToken: refreshToken,
		Session:      sess,
	})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.profile(u))
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req domain.UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.profile(u))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password changed"})
}
