package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lendi-api/internal/application/scheduler"
	"github.com/lendi-api/internal/config"
	"github.com/lendi-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/lendi-api/internal/infrastructure/jwt"
	"github.com/lendi-api/internal/infrastructure/nowpayments"
	"github.com/lendi-api/internal/infrastructure/redisrelay"
	s3infra "github.com/lendi-api/internal/infrastructure/s3"
	"github.com/lendi-api/internal/infrastructure/sns"
	"github.com/lendi-api/internal/pkg/eventbus"
	"github.com/lendi-api/internal/pkg/logger"
	transporthttp "github.com/lendi-api/internal/transport/http"
	"github.com/lendi-api/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dynamodb client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg.JWTSecret, time.Duration(cfg.JWTExpiryDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	var attachments *s3infra.AttachmentStore
	if s3Client, err := s3infra.NewClient(ctx, cfg); err == nil {
		attachments = s3infra.NewAttachmentStore(s3Client, cfg.S3BucketName)
	} else {
		log.Warn("s3 not available, ticket attachments disabled", "err", err)
	}

	// SNS SMS sender (optional, graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(ctx, cfg); err == nil {
		smsSender = sender
	} else {
		log.Warn("sns sender not available", "err", err)
	}

	registry := ws.NewRegistry()
	dispatcher := ws.NewDispatcher(registry, log.With("component", "realtime"))
	if cfg.RedisURL != "" {
		client, err := redisrelay.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis relay: %w", err)
		}
		defer client.Close()
		relay := redisrelay.New(client, log.With("component", "relay"))
		dispatcher.StartRelay(ctx, relay)
		go func() {
			if err := relay.Run(ctx, dispatcher.DeliverLocal); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("redis relay stopped", "err", err)
			}
		}()
	}

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:      dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		TransactionRepo:  dynamo.NewTransactionRepo(dynamoClient, cfg.DynamoTables.Transactions, cfg.DynamoTables.Users),
		InvestmentRepo: dynamo.NewInvestmentRepo(dynamoClient, cfg.DynamoTables.Investments,
			cfg.DynamoTables.Users, cfg.DynamoTables.Transactions),
		TicketRepo: dynamo.NewTicketRepo(dynamoClient, cfg.DynamoTables.SupportTickets),
		AdminInviteRepo: dynamo.NewAdminInviteRepo(dynamoClient, cfg.DynamoTables.AdminInvites,
			cfg.DynamoTables.Users),
		Attachments: attachments,
		SMSSender:   smsSender,
		Gateway:     nowpayments.NewClient(cfg.NowPayments),
		JWTProvider: jwtProvider,
		Bus:         eventbus.New(log.With("component", "eventbus")),
		Registry:    registry,
		Dispatcher:  dispatcher,
		Logger:      log,
	}
	svcs := transporthttp.NewServices(cfg, deps)

	if err := svcs.Admin.EnsureSuperAdmin(ctx, cfg.Admin.SuperAdminUsername,
		cfg.Admin.SuperAdminEmail, cfg.Admin.SuperAdminPassword); err != nil {
		return fmt.Errorf("ensure super admin: %w", err)
	}

	sched, err := scheduler.New(scheduler.Deps{
		Sweeper:  svcs.Investment,
		Schedule: cfg.MaturitySchedule,
		Logger:   log.With("component", "scheduler"),
	})
	if err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps, svcs),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
