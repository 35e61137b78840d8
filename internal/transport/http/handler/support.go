package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lendi-api/internal/application/support"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/pkg/validate"
)

const maxTicketForm = 32 << 20

// SupportHandler handles support tickets for users and staff.
type SupportHandler struct {
	svc support.Service
}

func NewSupportHandler(svc support.Service) *SupportHandler { return &SupportHandler{svc: svc} }

// Create accepts multipart/form-data with subject, message and up to five
// "attachments" files.
func (h *SupportHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxTicketForm); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	req := domain.CreateTicketRequest{
		Subject: r.FormValue("subject"),
		Message: r.FormValue("message"),
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["attachments"]
	}
	files := make([]support.Attachment, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable attachment")
			return
		}
		defer f.Close()
		files = append(files, support.Attachment{Filename: fh.Filename, Body: f})
	}
	t, err := h.svc.Create(r.Context(), claims.UserID, req, files)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *SupportHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	ts, err := h.svc.List(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Ticket{"tickets": ts})
}

func (h *SupportHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Get(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *SupportHandler) Attachments(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	urls, err := h.svc.AttachmentURLs(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"urls": urls})
}

func (h *SupportHandler) Reply(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req domain.ReplyTicketRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	t, err := h.svc.Reply(r.Context(), claims.UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// AdminReply is admin-only.
func (h *SupportHandler) AdminReply(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req domain.ReplyTicketRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	t, err := h.svc.AdminReply(r.Context(), claims.UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateStatus is admin-only.
func (h *SupportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateTicketStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	t, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
