package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/invario/invario/internal/audit"
	"github.com/invario/invario/internal/config"
	"github.com/invario/invario/internal/events/kafka"
	"github.com/invario/invario/internal/ingest"
	"github.com/invario/invario/internal/interfaces"
	"github.com/invario/invario/internal/ledger"
	"github.com/invario/invario/internal/server"
	"github.com/invario/invario/internal/storage/memory"
	"github.com/invario/invario/internal/storage/postgres"
	"github.com/invario/invario/internal/storage/sqlite"
	"github.com/invario/invario/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("store", cfg.StoreDriver).Msg("starting invario ledger")

	store, cleanup, err := openStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ledger store")
	}
	defer cleanup()

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("event publishing enabled")
	}

	ledgerService := ledger.NewService(store, publisher, log)
	pipeline := ingest.NewPipeline(cfg.MaxSettlementAgeDays)

	if cfg.AuditSchedule != "" {
		auditor := audit.New(ledgerService, publisher, log)
		if err := auditor.Start(cfg.AuditSchedule); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.AuditSchedule).Msg("failed to schedule integrity audit")
		}
		defer auditor.Stop()
	}

	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		Ledger:   ledgerService,
		Pipeline: pipeline,
		DevMode:  cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openStore builds the configured LedgerStore and returns a cleanup
// function closing any underlying handle.
func openStore(cfg *config.Config, log zerolog.Logger) (interfaces.LedgerStore, func(), error) {
	lockTimeout := time.Duration(cfg.AppendLockTimeoutMS) * time.Millisecond

	switch cfg.StoreDriver {
	case "memory":
		return memory.NewStore(lockTimeout), func() {}, nil

	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath, lockTimeout)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store opened")
		return store, func() { store.Close() }, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		store, err := postgres.NewStore(db, lockTimeout)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().Msg("postgres store opened")
		return store, func() { db.Close() }, nil
	}

	return nil, nil, errors.New("unknown store driver: " + cfg.StoreDriver)
}
