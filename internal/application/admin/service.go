// Package admin onboards and offboards platform administrators: the first
// super admin, e-mail invitations redeemed into admin accounts, and removal of
// admin rights.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/pkg/id"
	pkgtoken "github.com/lendi-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultInviteTTL = 24 * time.Hour
	fieldRole        = "role"
)

var errInvalidInvite = fmt.Errorf("invalid or expired invitation: %w", domain.ErrBadRequest)

type Service interface {
	Invite(ctx context.Context, inviterID string, req domain.CreateAdminInviteRequest) (*domain.AdminInvite, error)
	VerifyInvite(ctx context.Context, token string) (*domain.AdminInvite, error)
	CompleteRegistration(ctx context.Context, req domain.CompleteAdminRegistrationRequest) (*domain.User, error)
	CreateSuperAdmin(ctx context.Context, req domain.CreateSuperAdminRequest) (*domain.User, error)
	EnsureSuperAdmin(ctx context.Context, username, email, password string) error
	ListAdmins(ctx context.Context) ([]domain.User, error)
	RemoveAdmin(ctx context.Context, callerID, adminID string) error
}

type inviteStore interface {
	Put(ctx context.Context, inv *domain.AdminInvite) error
	GetByToken(ctx context.Context, token string) (*domain.AdminInvite, error)
	Redeem(ctx context.Context, inviteID string, u *domain.User, now time.Time) error
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	ListByRole(ctx context.Context, role string) ([]domain.User, error)
}

type sessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type notifier interface {
	Notify(ctx context.Context, e notification.Event) (*notification.Result, error)
}

type service struct {
	invites   inviteStore
	users     userStore
	sessions  sessionStore
	notifier  notifier
	secretKey string
	inviteTTL time.Duration
	now       func() time.Time
	log       *slog.Logger
}

type ServiceDeps struct {
	Invites  inviteStore
	Users    userStore
	Sessions sessionStore
	Notifier notifier

	// SecretKey authorises CreateSuperAdmin; empty disables it.
	SecretKey string
	InviteTTL time.Duration
	Clock     func() time.Time
	Logger    *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		invites:   deps.Invites,
		users:     deps.Users,
		sessions:  deps.Sessions,
		notifier:  deps.Notifier,
		secretKey: deps.SecretKey,
		inviteTTL: deps.InviteTTL,
		now:       deps.Clock,
		log:       deps.Logger,
	}
	if s.inviteTTL <= 0 {
		s.inviteTTL = defaultInviteTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Invite issues a single-use admin invitation for req.Email. Only super
// admins may invite.
func (s *service) Invite(ctx context.Context, inviterID string, req domain.CreateAdminInviteRequest) (*domain.AdminInvite, error) {
	inviter, err := s.users.Get(ctx, inviterID)
	if err != nil {
		return nil, err
	}
	if inviter.Role != domain.RoleSuperAdmin {
		return nil, fmt.Errorf("only super admins can invite: %w", domain.ErrForbidden)
	}
	email := normalizeEmail(req.Email)
	if err := s.emailFree(ctx, email); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tok, err := pkgtoken.NewRefresh(now, s.inviteTTL)
	if err != nil {
		return nil, err
	}
	inv := &domain.AdminInvite{
		InviteID:  id.NewAt(now),
		Email:     email,
		Role:      domain.RoleAdmin,
		Token:     tok.Value,
		InvitedBy: inviterID,
		ExpiresAt: tok.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.invites.Put(ctx, inv); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "admin invite issued", "invite_id", inv.InviteID, "invited_by", inviterID)
	s.notify(ctx, inviterID, inv.InviteID, "Admin Invitation Sent",
		fmt.Sprintf("Invitation for %s expires %s", email, time.Unix(inv.ExpiresAt, 0).UTC().Format(time.RFC3339)))
	return inv, nil
}

// VerifyInvite returns the invite behind token while it is still redeemable.
func (s *service) VerifyInvite(ctx context.Context, token string) (*domain.AdminInvite, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errInvalidInvite
	}
	inv, err := s.invites.GetByToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errInvalidInvite
	}
	if err != nil {
		return nil, err
	}
	if !inv.Redeemable(s.now()) {
		return nil, errInvalidInvite
	}
	return inv, nil
}

// CompleteRegistration redeems an invite into a new account with the invited
// role. The invite is consumed in the same write that creates the user.
func (s *service) CompleteRegistration(ctx context.Context, req domain.CompleteAdminRegistrationRequest) (*domain.User, error) {
	inv, err := s.VerifyInvite(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if err := s.usernameFree(ctx, req.Username); err != nil {
		return nil, err
	}
	if err := s.emailFree(ctx, inv.Email); err != nil {
		return nil, err
	}
	u, err := s.newUser(req.Username, inv.Email, req.Password, inv.Role)
	if err != nil {
		return nil, err
	}
	u.FullName = req.FullName
	if err := s.invites.Redeem(ctx, inv.InviteID, u, s.now()); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "admin invite redeemed", "invite_id", inv.InviteID, "user_id", u.UserID)
	s.notify(ctx, inv.InvitedBy, inv.InviteID, "Admin Invitation Accepted",
		fmt.Sprintf("%s joined as %s", u.Username, u.Role))
	return u, nil
}

// CreateSuperAdmin creates a super admin when req carries the configured
// secret key.
func (s *service) CreateSuperAdmin(ctx context.Context, req domain.CreateSuperAdminRequest) (*domain.User, error) {
	if s.secretKey == "" {
		return nil, fmt.Errorf("super admin creation is disabled: %w", domain.ErrForbidden)
	}
	if subtle.ConstantTimeCompare([]byte(req.SecretKey), []byte(s.secretKey)) != 1 {
		return nil, fmt.Errorf("invalid admin secret key: %w", domain.ErrForbidden)
	}
	return s.createSuperAdmin(ctx, req.Username, req.Email, req.Password)
}

// EnsureSuperAdmin creates the configured super admin on first start. An
// existing account with the same e-mail is left untouched.
func (s *service) EnsureSuperAdmin(ctx context.Context, username, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	existing, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	switch {
	case err == nil:
		if existing.Role != domain.RoleSuperAdmin {
			s.log.WarnContext(ctx, "configured super admin e-mail belongs to a non super admin", "user_id", existing.UserID)
		}
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	u, err := s.createSuperAdmin(ctx, username, email, password)
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "super admin created", "user_id", u.UserID)
	return nil
}

// ListAdmins returns admins and super admins, newest first.
func (s *service) ListAdmins(ctx context.Context) ([]domain.User, error) {
	out := []domain.User{}
	for _, role := range []string{domain.RoleSuperAdmin, domain.RoleAdmin} {
		users, err := s.users.ListByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		out = append(out, users...)
	}
	slices.SortFunc(out, func(a, b domain.User) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// RemoveAdmin demotes adminID to a regular user and signs them out. Callers
// cannot remove themselves, and only a super admin can remove a super admin.
func (s *service) RemoveAdmin(ctx context.Context, callerID, adminID string) error {
	if callerID == adminID {
		return fmt.Errorf("cannot remove yourself: %w", domain.ErrBadRequest)
	}
	target, err := s.users.Get(ctx, adminID)
	if err != nil {
		return err
	}
	if target.Role != domain.RoleAdmin && target.Role != domain.RoleSuperAdmin {
		return fmt.Errorf("admin not found: %w", domain.ErrNotFound)
	}
	if target.Role == domain.RoleSuperAdmin {
		caller, err := s.users.Get(ctx, callerID)
		if err != nil {
			return err
		}
		if caller.Role != domain.RoleSuperAdmin {
			return fmt.Errorf("only super admins can remove super admins: %w", domain.ErrForbidden)
		}
	}
	if err := s.users.Update(ctx, adminID, map[string]interface{}{fieldRole: domain.RoleUser}); err != nil {
		return err
	}
	if err := s.sessions.DisableByUser(ctx, adminID); err != nil {
		s.log.WarnContext(ctx, "failed to disable sessions of removed admin", "user_id", adminID, "err", err)
	}
	s.log.InfoContext(ctx, "admin removed", "user_id", adminID, "removed_by", callerID)
	s.notify(ctx, adminID, "", "Admin Access Removed", "Your administrator access has been revoked")
	return nil
}

func (s *service) createSuperAdmin(ctx context.Context, username, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if err := s.usernameFree(ctx, username); err != nil {
		return nil, err
	}
	if err := s.emailFree(ctx, email); err != nil {
		return nil, err
	}
	u, err := s.newUser(username, email, password, domain.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) newUser(username, email, password, role string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return &domain.User{
		UserID:       id.NewAt(now),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *service) usernameFree(ctx context.Context, username string) error {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return fmt.Errorf("username already taken: %w", domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *service) emailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

// notify is best effort.
func (s *service) notify(ctx context.Context, userID, inviteID, title, message string) {
	e := notification.Event{
		UserID:   userID,
		Category: domain.CategorySystem,
		Title:    title,
		Message:  message,
	}
	if inviteID != "" {
		e.ReferenceID = inviteID
		e.Links = &domain.NotificationLinks{AdminInviteID: inviteID}
	}
	if _, err := s.notifier.Notify(ctx, e); err != nil {
		s.log.WarnContext(ctx, "admin notification failed", "user_id", userID, "title", title, "err", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
