package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lendi-api/internal/application/admin"
	"github.com/lendi-api/internal/domain"
)

type broadcaster interface {
	Broadcast(title, message string)
}

// AdminHandler holds staff endpoints: broadcasts and admin onboarding.
type AdminHandler struct {
	notices broadcaster
	admins  admin.Service
}

func NewAdminHandler(notices broadcaster, admins admin.Service) *AdminHandler {
	return &AdminHandler{notices: notices, admins: admins}
}

type broadcastRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=2000"`
}

// InviteView is what a valid invite token reveals to its holder.
type InviteView struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
}

// AdminsEnvelope wraps the admin listing.
type AdminsEnvelope struct {
	Admins []domain.User `json:"admins"`
}

// Broadcast pushes a system message to every live connection. It is not
// stored.
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.notices.Broadcast(req.Title, req.Message)
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "broadcast sent"})
}

// Invite answers with the invite including its token, which the super admin
// forwards to the invitee.
func (h *AdminHandler) Invite(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req domain.CreateAdminInviteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	inv, err := h.admins.Invite(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *AdminHandler) VerifyInvite(w http.ResponseWriter, r *http.Request) {
	inv, err := h.admins.VerifyInvite(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InviteView{Email: inv.Email, Role: inv.Role, ExpiresAt: inv.ExpiresAt})
}

func (h *AdminHandler) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req domain.CompleteAdminRegistrationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.admins.CompleteRegistration(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *AdminHandler) CreateSuperAdmin(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSuperAdminRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.admins.CreateSuperAdmin(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.ListAdmins(r.Context())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AdminsEnvelope{Admins: admins})
}

func (h *AdminHandler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if err := h.admins.RemoveAdmin(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "admin removed"})
}
