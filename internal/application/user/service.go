package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lendi-api/internal/application/webhook"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/pkg/eventbus"
	"github.com/lendi-api/internal/pkg/id"
	pkgtoken "github.com/lendi-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldFullName     = "full_name"
	fieldPhone        = "phone"
	fieldAddress      = "address"
	fieldWallets      = "crypto_wallets"
	fieldPasswordHash = "password_hash"
)

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	RegisterWithSession(ctx context.Context, req domain.CreateUserRequest) (*domain.Session, string, string, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	DisableByUser(ctx context.Context, userID string) error
}

type jwtSigner interface {
	Sign(userID, role, sessionID string) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, topic eventbus.Topic, payload any) error
}

type service struct {
	repo            userStore
	sessionRepo     sessionStore
	jwtProvider     jwtSigner
	bus             publisher
	refreshTokenDur time.Duration
	log             *slog.Logger
}

type ServiceDeps struct {
	UserRepo        userStore
	SessionRepo     sessionStore
	JWTProvider     jwtSigner
	Bus             publisher
	RefreshTokenDur time.Duration
	Logger          *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:            deps.UserRepo,
		sessionRepo:     deps.SessionRepo,
		jwtProvider:     deps.JWTProvider,
		bus:             deps.Bus,
		refreshTokenDur: deps.RefreshTokenDur,
		log:             deps.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		FullName:     req.FullName,
		Phone:        req.Phone,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) RegisterWithSession(ctx context.Context, req domain.CreateUserRequest) (*domain.Session, string, string, error) {
	u, err := s.Register(ctx, req)
	if err != nil {
		return nil, "", "", err
	}
	now := time.Now().UTC()
	refresh, err := pkgtoken.NewRefresh(now, s.refreshTokenDur)
	if err != nil {
		return nil, "", "", err
	}
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		Enable:           true,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, "", "", err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return nil, "", "", err
	}
	sess.User = u
	return sess, bearer, refresh.Value, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

// UpdateProfile writes the fields present in req and announces the change on
// the profile topic.
func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates[fieldFullName] = *req.FullName
	}
	if req.Phone != nil {
		updates[fieldPhone] = *req.Phone
	}
	if req.Address != nil {
		updates[fieldAddress] = *req.Address
	}
	if req.Wallets != nil {
		updates[fieldWallets] = *req.Wallets
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	if err := s.bus.Publish(ctx, eventbus.TopicProfile, webhook.ProfileEvent{
		UserID: userID,
		Action: "update",
		Status: "completed",
	}); err != nil {
		s.log.Warn("profile event failed", "user_id", userID, "err", err)
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return err
	}
	// Sign out everywhere; the caller's bearer stays valid until it expires.
	if err := s.sessionRepo.DisableByUser(ctx, userID); err != nil {
		s.log.Warn("failed to disable sessions after password change", "user_id", userID, "err", err)
	}
	return nil
}
