package http

import (
	"log/slog"
	"time"

	"github.com/lendi-api/internal/application/admin"
	"github.com/lendi-api/internal/application/investment"
	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/application/payment"
	"github.com/lendi-api/internal/application/session"
	"github.com/lendi-api/internal/application/support"
	"github.com/lendi-api/internal/application/user"
	"github.com/lendi-api/internal/application/webhook"
	"github.com/lendi-api/internal/application/withdrawal"
	"github.com/lendi-api/internal/config"
	"github.com/lendi-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/lendi-api/internal/infrastructure/jwt"
	"github.com/lendi-api/internal/infrastructure/nowpayments"
	s3infra "github.com/lendi-api/internal/infrastructure/s3"
	"github.com/lendi-api/internal/infrastructure/sns"
	"github.com/lendi-api/internal/pkg/eventbus"
	"github.com/lendi-api/internal/transport/ws"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	SessionRepo      *dynamo.SessionRepo
	NotificationRepo *dynamo.NotificationRepo
	TransactionRepo  *dynamo.TransactionRepo
	InvestmentRepo   *dynamo.InvestmentRepo
	TicketRepo       *dynamo.TicketRepo
	AdminInviteRepo  *dynamo.AdminInviteRepo
	Attachments      *s3infra.AttachmentStore
	SMSSender        sns.SMSSender
	Gateway          *nowpayments.Client
	JWTProvider      *jwtinfra.Provider
	Bus              *eventbus.Bus
	Registry         *ws.Registry
	Dispatcher       *ws.Dispatcher
	Logger           *slog.Logger
}

// Services are the application services built from Deps.
type Services struct {
	Notification notification.Service
	Payment      payment.Service
	Investment   investment.Service
	Withdrawal   withdrawal.Service
	Support      support.Service
	User         user.Service
	Session      session.Service
	Admin        admin.Service
}

// NewServices builds every application service and subscribes the canonical
// event handlers on deps.Bus.
func NewServices(cfg *config.Config, deps *Deps) *Services {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	refreshTTL := time.Duration(cfg.RefreshTokenExpiryDays) * 24 * time.Hour

	notifSvc := notification.NewService(notification.ServiceDeps{
		Repo:       deps.NotificationRepo,
		Dispatcher: deps.Dispatcher,
		Logger:     log.With("component", "notification"),
	})

	hooks := webhook.New(webhook.Deps{
		Notifier:      notifSvc,
		Transactions:  deps.TransactionRepo,
		Tickets:       deps.TicketRepo,
		Users:         deps.UserRepo,
		SMS:           deps.SMSSender,
		BalanceSymbol: cfg.BalanceSymbol,
		Logger:        log.With("component", "webhook"),
	})
	hooks.Register(deps.Bus)

	supportDeps := support.ServiceDeps{
		Repo:     deps.TicketRepo,
		Notifier: notifSvc,
		Bus:      deps.Bus,
		Logger:   log.With("component", "support"),
	}
	if deps.Attachments != nil {
		supportDeps.Attachments = deps.Attachments
	}

	return &Services{
		Notification: notifSvc,
		Payment: payment.NewService(payment.ServiceDeps{
			Gateway:       deps.Gateway,
			Repo:          deps.TransactionRepo,
			Notifier:      notifSvc,
			Bus:           deps.Bus,
			TokensPerUSD:  cfg.TokensPerUSD,
			BalanceSymbol: cfg.BalanceSymbol,
			Logger:        log.With("component", "payment"),
		}),
		Investment: investment.NewService(investment.ServiceDeps{
			Repo:          deps.InvestmentRepo,
			Notifier:      notifSvc,
			Bus:           deps.Bus,
			BalanceSymbol: cfg.BalanceSymbol,
			Logger:        log.With("component", "investment"),
		}),
		Withdrawal: withdrawal.NewService(withdrawal.ServiceDeps{
			Repo:          deps.TransactionRepo,
			Notifier:      notifSvc,
			Bus:           deps.Bus,
			BalanceSymbol: cfg.BalanceSymbol,
			Logger:        log.With("component", "withdrawal"),
		}),
		Support: support.NewService(supportDeps),
		User: user.NewService(user.ServiceDeps{
			UserRepo:        deps.UserRepo,
			SessionRepo:     deps.SessionRepo,
			JWTProvider:     deps.JWTProvider,
			Bus:             deps.Bus,
			RefreshTokenDur: refreshTTL,
			Logger:          log.With("component", "user"),
		}),
		Session: session.NewService(session.ServiceDeps{
			UserRepo:        deps.UserRepo,
			SessionRepo:     deps.SessionRepo,
			JWTProvider:     deps.JWTProvider,
			RefreshTokenDur: refreshTTL,
		}),
		Admin: admin.NewService(admin.ServiceDeps{
			Invites:   deps.AdminInviteRepo,
			Users:     deps.UserRepo,
			Sessions:  deps.SessionRepo,
			Notifier:  notifSvc,
			SecretKey: cfg.Admin.SecretKey,
			InviteTTL: cfg.Admin.InviteTTL,
			Logger:    log.With("component", "admin"),
		}),
	}
}
