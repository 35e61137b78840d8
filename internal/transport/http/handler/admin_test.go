package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAdminSvc struct{ mock.Mock }

func (m *mockAdminSvc) Invite(ctx context.Context, inviterID string, req domain.CreateAdminInviteRequest) (*domain.AdminInvite, error) {
	args := m.Called(ctx, inviterID, req)
	if inv, _ := args.Get(0).(*domain.AdminInvite); inv != nil {
		return inv, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAdminSvc) VerifyInvite(ctx context.Context, token string) (*domain.AdminInvite, error) {
	args := m.Called(ctx, token)
	if inv, _ := args.Get(0).(*domain.AdminInvite); inv != nil {
		return inv, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAdminSvc) CompleteRegistration(ctx context.Context, req domain.CompleteAdminRegistrationRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAdminSvc) CreateSuperAdmin(ctx context.Context, req domain.CreateSuperAdminRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAdminSvc) EnsureSuperAdmin(ctx context.Context, username, email, password string) error {
	return m.Called(ctx, username, email, password).Error(0)
}
func (m *mockAdminSvc) ListAdmins(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	us, _ := args.Get(0).([]domain.User)
	return us, args.Error(1)
}
func (m *mockAdminSvc) RemoveAdmin(ctx context.Context, callerID, adminID string) error {
	return m.Called(ctx, callerID, adminID).Error(0)
}

func TestAdminInvite_SuperAdminOnly(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockAdminSvc{}
	svc.On("Invite", mock.Anything, "sa-1", domain.CreateAdminInviteRequest{Email: "ops@lendi.example"}).
		Return(&domain.AdminInvite{InviteID: "inv-1", Email: "ops@lendi.example", Role: domain.RoleAdmin, Token: "tok-1"}, nil)
	h := NewAdminHandler(nil, svc)
	gated := middleware.Auth(p)(middleware.RequireRole(domain.RoleSuperAdmin)(http.HandlerFunc(h.Invite)))
	body := []byte(`{"email":"ops@lendi.example"}`)

	rr := httptest.NewRecorder()
	gated.ServeHTTP(rr, bearerReq(t, p, http.MethodPost, "/v1/admin/invites", "a-1", domain.RoleAdmin, body))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	gated.ServeHTTP(rr, bearerReq(t, p, http.MethodPost, "/v1/admin/invites", "sa-1", domain.RoleSuperAdmin, body))
	assert.Equal(t, http.StatusCreated, rr.Code)
	var inv domain.AdminInvite
	decodeBody(t, rr, &inv)
	assert.Equal(t, "tok-1", inv.Token)
	svc.AssertNumberOfCalls(t, "Invite", 1)
}

func TestAdminInvite_InvalidEmail(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockAdminSvc{}
	rr := httptest.NewRecorder()

	serveAuthed(p, NewAdminHandler(nil, svc).Invite, rr,
		bearerReq(t, p, http.MethodPost, "/v1/admin/invites", "sa-1", domain.RoleSuperAdmin, []byte(`{"email":"nope"}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "Invite", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyInvite(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("VerifyInvite", mock.Anything, "good").
		Return(&domain.AdminInvite{Email: "ops@lendi.example", Role: domain.RoleAdmin, Token: "good", ExpiresAt: 1700000000}, nil)
	svc.On("VerifyInvite", mock.Anything, "stale").
		Return(nil, fmt.Errorf("invalid or expired invitation: %w", domain.ErrBadRequest))
	h := NewAdminHandler(nil, svc)

	rr := httptest.NewRecorder()
	h.VerifyInvite(rr, httptest.NewRequest(http.MethodGet, "/v1/admin-invites/verify?token=good", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	var view map[string]any
	decodeBody(t, rr, &view)
	assert.Equal(t, "ops@lendi.example", view["email"])
	assert.NotContains(t, view, "token")

	rr = httptest.NewRecorder()
	h.VerifyInvite(rr, httptest.NewRequest(http.MethodGet, "/v1/admin-invites/verify?token=stale", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestCompleteAdminRegistration_Created(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("CompleteRegistration", mock.Anything, mock.MatchedBy(func(req domain.CompleteAdminRegistrationRequest) bool {
		return req.Token == "tok-1" && req.Username == "opsuser"
	})).Return(&domain.User{UserID: "a-1", Username: "opsuser", Role: domain.RoleAdmin, PasswordHash: "hash"}, nil)
	r := httptest.NewRequest(http.MethodPost, "/v1/admin-invites/complete",
		bytes.NewBufferString(`{"token":"tok-1","username":"opsuser","password":"password123"}`))
	rr := httptest.NewRecorder()

	NewAdminHandler(nil, svc).CompleteRegistration(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "hash")
	assert.Contains(t, rr.Body.String(), `"role":"admin"`)
}

func TestCreateSuperAdmin_WrongKeyIsForbidden(t *testing.T) {
	svc := &mockAdminSvc{}
	svc.On("CreateSuperAdmin", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("invalid admin secret key: %w", domain.ErrForbidden))
	r := httptest.NewRequest(http.MethodPost, "/v1/super-admin",
		bytes.NewBufferString(`{"username":"root","email":"root@lendi.example","password":"password123","admin_secret_key":"guess"}`))
	rr := httptest.NewRecorder()

	NewAdminHandler(nil, svc).CreateSuperAdmin(rr, r)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestListAdmins(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockAdminSvc{}
	svc.On("ListAdmins", mock.Anything).Return([]domain.User{{UserID: "sa-1", Role: domain.RoleSuperAdmin}}, nil)
	rr := httptest.NewRecorder()

	serveAuthed(p, NewAdminHandler(nil, svc).ListAdmins, rr,
		bearerReq(t, p, http.MethodGet, "/v1/admin/admins", "a-1", domain.RoleAdmin, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env AdminsEnvelope
	decodeBody(t, rr, &env)
	assert.Len(t, env.Admins, 1)
}

func TestRemoveAdmin_Self(t *testing.T) {
	p := newTestJWTProvider(t)
	svc := &mockAdminSvc{}
	svc.On("RemoveAdmin", mock.Anything, "sa-1", "sa-1").Return(fmt.Errorf("cannot remove yourself: %w", domain.ErrBadRequest))
	rr := httptest.NewRecorder()

	r := withChiParam(bearerReq(t, p, http.MethodDelete, "/v1/admin/admins/sa-1", "sa-1", domain.RoleSuperAdmin, nil), "id", "sa-1")
	serveAuthed(p, NewAdminHandler(nil, svc).RemoveAdmin, rr, r)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertExpectations(t)
}
