package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/senyabanana/tender-platform/internal/authz"
	"github.com/senyabanana/tender-platform/internal/clock"
	"github.com/senyabanana/tender-platform/internal/db"
	"github.com/senyabanana/tender-platform/internal/handlers"
	"github.com/senyabanana/tender-platform/internal/notify"
	"github.com/senyabanana/tender-platform/internal/repository"
	"github.com/senyabanana/tender-platform/internal/router"
	"github.com/senyabanana/tender-platform/internal/router/config"
	"github.com/senyabanana/tender-platform/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logrus.Fatalf("cannot load config: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		logrus.Fatalf("cannot configure logger: %v", err)
	}
	log := logger.WithField("service", "tender-platform")

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	dbSource, err := db.ConnString(cfg)
	if err != nil {
		log.Fatalf("invalid database config: %v", err)
	}
	runDBMigration(log, cfg.MigrationURL, dbSource)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.InitDb(ctx, cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	store := repository.NewPostgresStore(dbPool)

	queue := notify.NewQueue(repository.NewOutboxFanout(dbPool), log.WithField("component", "notify"), cfg.NotifyWorkers, cfg.NotifyQueueSize)
	queue.Start(context.Background())
	defer queue.Stop()

	engine := services.NewEngine(store, authz.NewGuard(authz.DefaultTable), clock.Real(), queue, log.WithField("component", "lifecycle"))
	tenderService := services.NewTenderService(engine)
	offerService := services.NewOfferService(engine)
	equityLogService := services.NewEquityLogService(engine)
	paymentHook := services.NewPaymentHook(tenderService, offerService, log.WithField("component", "payment_hook"))

	actors := handlers.NewActorResolver(cfg.JWTSecret, store)
	routes := router.InitRoutes(router.Handlers{
		Ping:      handlers.NewPingHandler(log),
		Tenders:   handlers.NewTenderHandler(tenderService, actors, log, cfg.RequestTimeout),
		Offers:    handlers.NewOfferHandler(offerService, actors, log, cfg.RequestTimeout),
		EquityLog: handlers.NewEquityLogHandler(equityLogService, actors, log, cfg.RequestTimeout),
		Payments:  handlers.NewPaymentHandler(paymentHook, cfg.WebhookSecret, log, cfg.RequestTimeout),
	})

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Очередь и пул закрываются только после того, как Shutdown дождался обработчиков.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithField("error", err.Error()).Error("server shutdown failed")
		}
	}()

	log.Infof("server is listening on %s...", cfg.ServerAddress)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
	<-shutdownDone
	log.Info("server stopped")
}

func runDBMigration(log *logrus.Entry, migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatalf("cannot create a new migrate instance: %v", err)
	}

	if err = migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("failed to run migrate up: %v", err)
	}
	log.Info("db migrated successfully")
}
