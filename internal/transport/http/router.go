package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lendi-api/internal/config"
	"github.com/lendi-api/internal/domain"
	"github.com/lendi-api/internal/transport/http/handler"
	appmiddleware "github.com/lendi-api/internal/transport/http/middleware"
	"github.com/lendi-api/internal/transport/ws"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// background goroutines of the rate limiters.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps, svcs *Services) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	adminOnly := appmiddleware.AdminOnly()
	superAdminOnly := appmiddleware.RequireRole(domain.RoleSuperAdmin)

	// 5 requests/second, burst of 10, on public credential endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, appmiddleware.ByIP)
	// The gateway retries in bursts; allow more headroom.
	webhookRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(20), 40, appmiddleware.ByIP)
	// Balance-moving calls are charged per account.
	moneyRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(1), 5, appmiddleware.ByUser)

	healthH := handler.NewHealthHandler(deps.Registry)
	sessionH := handler.NewSessionHandler(svcs.Session)
	userH := handler.NewUserHandler(svcs.User, cfg.BalanceSymbol)
	notifH := handler.NewNotificationHandler(svcs.Notification)
	payH := handler.NewPaymentHandler(svcs.Payment)
	invH := handler.NewInvestmentHandler(svcs.Investment)
	wdH := handler.NewWithdrawalHandler(svcs.Withdrawal)
	supportH := handler.NewSupportHandler(svcs.Support)
	adminH := handler.NewAdminHandler(svcs.Notification, svcs.Admin)
	wsH := ws.NewHandler(deps.JWTProvider, deps.Registry, cfg.AllowedOrigins, deps.Logger)

	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.Get("/investments/plans", invH.Plans)
		r.Post("/payments/crypto/calculate", payH.Calculate)
		r.With(webhookRL.Limit).Post("/payments/webhook/nowpayments", payH.Webhook)
		r.With(sensitiveRL.Limit).Post("/super-admin", adminH.CreateSuperAdmin)
		r.With(sensitiveRL.Limit).Get("/admin-invites/verify", adminH.VerifyInvite)
		r.With(sensitiveRL.Limit).Post("/admin-invites/complete", adminH.CompleteRegistration)

		// The WebSocket handshake authenticates itself (query token or header).
		r.Get("/ws", wsH.ServeHTTP)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/me", userH.Me)
			r.Put("/me/profile", userH.UpdateProfile)
			r.Put("/me/password", userH.ChangePassword)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread", notifH.UnreadCount)
			r.Put("/notifications/mark-all-read", notifH.MarkAllRead)
			r.Put("/notifications/{id}/read", notifH.MarkRead)
			r.Delete("/notifications/{id}", notifH.Delete)

			r.With(moneyRL.Limit).Post("/payments/crypto/deposit", payH.Deposit)
			r.Post("/payments/crypto/verify/{paymentId}", payH.Verify)
			r.Post("/payments/crypto/cancel/{paymentId}", payH.Cancel)
			r.Get("/payments/transactions", payH.ListTransactions)
			r.Get("/payments/transaction/{reference}", payH.GetTransaction)

			r.With(moneyRL.Limit).Post("/investments", invH.Create)
			r.Get("/investments", invH.List)

			r.With(moneyRL.Limit).Post("/withdrawals", wdH.Request)

			r.Post("/support/tickets", supportH.Create)
			r.Get("/support/tickets", supportH.List)
			r.Get("/support/tickets/{id}", supportH.Get)
			r.Get("/support/tickets/{id}/attachments", supportH.Attachments)
			r.Post("/support/tickets/{id}/replies", supportH.Reply)

			// Admin-only routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(adminOnly)

				r.Post("/broadcast", adminH.Broadcast)
				r.Put("/withdrawals/{id}", wdH.Settle)
				r.Post("/support/tickets/{id}/replies", supportH.AdminReply)
				r.Put("/support/tickets/{id}/status", supportH.UpdateStatus)

				r.Get("/admins", adminH.ListAdmins)
				r.With(superAdminOnly).Post("/invites", adminH.Invite)
				r.With(superAdminOnly).Delete("/admins/{id}", adminH.RemoveAdmin)
			})
		})
	})

	return r
}
