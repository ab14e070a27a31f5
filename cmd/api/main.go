package main

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/cors"

	"github.com/tasklift/backend/internal/accounts"
	"github.com/tasklift/backend/internal/auth"
	"github.com/tasklift/backend/internal/config"
	"github.com/tasklift/backend/internal/events"
	"github.com/tasklift/backend/internal/handlers"
	"github.com/tasklift/backend/internal/ledger"
	"github.com/tasklift/backend/internal/middleware"
	"github.com/tasklift/backend/internal/payout"
	"github.com/tasklift/backend/internal/referrals"
	"github.com/tasklift/backend/internal/repository"
	"github.com/tasklift/backend/internal/router"
	"github.com/tasklift/backend/internal/tasks"
	"github.com/tasklift/backend/internal/withdrawals"
)

//go:embed schema.sql
var schemaSQL string

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Config load failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	claimRepo := repository.NewClaimRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)
	referralRepo := repository.NewReferralRepo(pool)
	withdrawalRepo := repository.NewWithdrawalRepo(pool)
	packageRepo := repository.NewPackageRepo(pool)

	// Events: fall back to a no-op publisher when the broker is unreachable so
	// the API still serves.
	var publisher events.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err = events.NewProducer(cfg.RabbitMQURL, logger)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, events disabled", "error", err)
			publisher = events.NewNoopProducer(logger)
		}
	} else {
		publisher = events.NewNoopProducer(logger)
	}
	defer publisher.Close()

	// Services
	ledgerSvc := ledger.NewService(ledgerRepo, accountRepo)
	accountsSvc := accounts.NewService(accountRepo, ledgerSvc)
	tasksSvc := tasks.NewService(taskRepo, claimRepo, ledgerSvc, publisher)
	referralsSvc := referrals.NewService(referralRepo, ledgerSvc, packageRepo, publisher)

	// Withdrawals: the job insert func is set after the River client exists
	// (breaks the init cycle between service and worker).
	var insertMu sync.Mutex
	var insertFn jobInsertFunc
	jobs := jobInserterFunc(func(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args, opts)
	})
	withdrawalsSvc := withdrawals.NewService(withdrawalRepo, ledgerSvc, jobs, publisher)

	workers := river.NewWorkers()
	river.AddWorker(workers, payout.NewWorker(withdrawalsSvc, cfg.PayoutURL))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = riverClient.InsertTx
	insertMu.Unlock()

	authSvc := auth.NewService(accountsSvc, referralsSvc, cfg.JWTSecret, logger)

	if cfg.SeedData {
		if err := seed(ctx, packageRepo, taskRepo, logger); err != nil {
			slog.Error("Seeding failed", "error", err)
			os.Exit(1)
		}
	}

	apiRouter := router.New(router.Deps{
		Auth:        auth.NewHandler(authSvc, logger),
		Tasks:       &handlers.TaskHandler{Tasks: tasksSvc, Logger: logger},
		User:        &handlers.UserHandler{Accounts: accountsSvc, Tasks: tasksSvc, ReferralSvc: referralsSvc, LedgerSvc: ledgerSvc, Logger: logger},
		Withdrawals: &handlers.WithdrawalHandler{Withdrawals: withdrawalsSvc, Logger: logger},
		Packages:    &handlers.PackageHandler{Packages: packageRepo, Logger: logger},
		AuthMW:      middleware.Auth(authSvc, accountsSvc),
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	// Claim expiry sweeper
	sweeper := tasks.NewSweeper(claimRepo, logger)
	if err := sweeper.Start(cfg.SweepSpec); err != nil {
		slog.Error("Failed to start claim sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	// Start River client (processes payout jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.ServerPort
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

type jobInsertFunc func(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)

type jobInserterFunc jobInsertFunc

func (f jobInserterFunc) InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	return f(ctx, tx, args, opts)
}
