package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/catalog"
	"github.com/njrgourav11/service-buddy-sub000/internal/config"
	"github.com/njrgourav11/service-buddy-sub000/internal/database"
	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/export"
	"github.com/njrgourav11/service-buddy-sub000/internal/google"
	"github.com/njrgourav11/service-buddy-sub000/internal/logging"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"
	"github.com/njrgourav11/service-buddy-sub000/internal/mongostore"
	"github.com/njrgourav11/service-buddy-sub000/internal/repository"
	"github.com/njrgourav11/service-buddy-sub000/internal/service"
	"github.com/njrgourav11/service-buddy-sub000/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	resync         = flag.Bool("resync", false, "rewrite the whole bookings sheet from the store before consuming")
	exportInterval = flag.Duration("export-interval", 0, "write an xlsx snapshot to the exports directory at this interval (0 disables)")
	requeueFailed  = flag.Bool("requeue-failed", false, "move dead-lettered sync tasks back to pending on startup")
)

const (
	outboxRetention     = 7 * 24 * time.Hour
	outboxPurgeInterval = 6 * time.Hour
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Path == "" {
		return fmt.Errorf("database path is required for the sync outbox")
	}
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	var (
		bookingStore domain.BookingStore = db
		profileStore domain.ProfileStore = db
	)
	if cfg.Database.Backend == config.BackendMongo {
		store, err := mongostore.Connect(ctx, cfg.Database.Mongo, logger)
		if err != nil {
			logger.Error().Err(err).Msg("connect mongo")
			return err
		}
		defer (func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		})()
		bookingStore, profileStore = store, store
	}

	sheetsService, err := initGoogleSheets(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if *resync {
		if err := resyncSheet(ctx, bookingStore, sheetsService, logger); err != nil {
			return err
		}
	}

	if *requeueFailed {
		n, err := db.RequeueFailedSyncTasks(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int64("tasks", n).Msg("failed sync tasks requeued")
	} else if failed, err := db.GetFailedSyncTasks(ctx); err == nil && len(failed) > 0 {
		logger.Warn().Int("tasks", len(failed)).Str("latest_booking_id", failed[0].BookingID).
			Msg("dead-lettered sync tasks present, run with -requeue-failed to retry them")
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	retry, pollInterval, err := workerSettings(cfg.Worker)
	if err != nil {
		return err
	}
	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, retry, logger,
		worker.WithBookingSource(bookingStore),
		worker.WithQueueKeys(cfg.Worker.QueueKey, cfg.Worker.QueueKey+":deadletter"),
		worker.WithPollInterval(pollInterval),
	)

	go database.NewBackupService(db, cfg.Backup, logger).Start(ctx)
	go purgeOutbox(ctx, db, logger)

	if *exportInterval > 0 {
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		bookings := service.NewBookingService(bookingStore, profileStore, cat, service.Policy{}, logger)
		go runExports(ctx, bookings, cfg.Exports.Path, *exportInterval, logger)
	}

	logger.Info().Str("queue", cfg.Worker.QueueKey).Dur("poll_interval", pollInterval).Msg("sync worker started")
	sheetsWorker.Start(ctx)
	logger.Info().Msg("sync worker stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "worker-main").Logger()

	return cfg, &logger, closer, nil
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*google.SheetsService, error) {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil, fmt.Errorf("google credentials file and bookings spreadsheet id are required")
	}

	if email, err := google.ServiceAccountEmail(cfg.Google.GoogleCredentialsFile); err == nil {
		logger.Info().Str("service_account", email).Msg("share the spreadsheet with this account")
	}

	sheetsService, err := google.NewSheetsService(ctx,
		cfg.Google.GoogleCredentialsFile,
		cfg.Google.BookingSpreadSheetID,
		cfg.Google.SheetName,
	)
	if err != nil {
		logger.Error().Err(err).Msg("init google sheets")
		return nil, err
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("google sheets connection test failed")
		return nil, err
	}
	if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("warm up sheet row cache")
	}

	logger.Info().Str("spreadsheet_id", cfg.Google.BookingSpreadSheetID).Msg("google sheets connected")
	return sheetsService, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, consuming from outbox only")
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, consuming from outbox only")
		_ = client.Close()
		return nil
	}
	return client
}

func workerSettings(cfg config.WorkerConfig) (worker.RetryPolicy, time.Duration, error) {
	poll, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		return worker.RetryPolicy{}, 0, fmt.Errorf("parse worker poll interval: %w", err)
	}
	base, err := time.ParseDuration(cfg.BaseRetryDelay)
	if err != nil {
		return worker.RetryPolicy{}, 0, fmt.Errorf("parse worker base retry delay: %w", err)
	}
	return worker.RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  base,
		BackoffFactor: 2,
	}, poll, nil
}

func resyncSheet(ctx context.Context, store domain.BookingStore, sheetsService *google.SheetsService, logger *zerolog.Logger) error {
	bookings, err := store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	if err := sheetsService.ReplaceBookingsSheet(ctx, bookings); err != nil {
		return fmt.Errorf("replace bookings sheet: %w", err)
	}
	logger.Info().Int("bookings", len(bookings)).Msg("bookings sheet rebuilt")
	return nil
}

var exportActor = models.Actor{UserID: "system:exporter", Role: models.RoleAdmin}

func runExports(ctx context.Context, bookings *service.BookingService, dir string, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			list, err := bookings.ListAllBookings(ctx, exportActor)
			if err != nil {
				logger.Error().Err(err).Msg("export: list bookings")
				continue
			}
			stats, err := bookings.Stats(ctx, exportActor)
			if err != nil {
				logger.Error().Err(err).Msg("export: stats")
				continue
			}
			path, err := export.SaveToDir(dir, list, stats, now)
			if err != nil {
				logger.Error().Err(err).Msg("export: save workbook")
				continue
			}
			logger.Info().Str("path", path).Int("bookings", len(list)).Msg("bookings exported")
		}
	}
}

func purgeOutbox(ctx context.Context, db *database.DB, logger *zerolog.Logger) {
	ticker := time.NewTicker(outboxPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := db.PurgeSyncTasks(ctx, now.Add(-outboxRetention))
			if err != nil {
				logger.Error().Err(err).Msg("purge sync outbox")
				continue
			}
			if n > 0 {
				logger.Info().Int64("tasks", n).Msg("sync outbox purged")
			}
		}
	}
}
