package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/api"
	"github.com/njrgourav11/service-buddy-sub000/internal/catalog"
	"github.com/njrgourav11/service-buddy-sub000/internal/config"
	"github.com/njrgourav11/service-buddy-sub000/internal/database"
	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/events"
	"github.com/njrgourav11/service-buddy-sub000/internal/identity"
	"github.com/njrgourav11/service-buddy-sub000/internal/logging"
	"github.com/njrgourav11/service-buddy-sub000/internal/metrics"
	"github.com/njrgourav11/service-buddy-sub000/internal/mongostore"
	"github.com/njrgourav11/service-buddy-sub000/internal/notify"
	"github.com/njrgourav11/service-buddy-sub000/internal/repository"
	"github.com/njrgourav11/service-buddy-sub000/internal/service"
	"github.com/njrgourav11/service-buddy-sub000/internal/worker"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// stores groups the persistence backends chosen by config.
type stores struct {
	bookings      domain.BookingStore
	profiles      domain.ProfileStore
	notifications domain.NotificationStore
	// outbox is the local SQLite file holding queued sheet syncs.
	outbox *database.DB
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
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

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", cfg.Catalog.Path).Msg("load catalog")
		return err
	}
	logger.Info().Int("services", len(cat.Services())).Msg("catalog loaded")

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	sessions := initSessions(redisClient, logger)

	var fbApp *firebase.App
	if cfg.Identity.Provider == config.IdentityFirebase || cfg.Notifications.PushEnabled {
		fbApp, err = identity.NewFirebaseApp(ctx, cfg.Identity.Firebase)
		if err != nil {
			if cfg.Identity.Provider == config.IdentityFirebase {
				logger.Error().Err(err).Msg("init firebase")
				return err
			}
			logger.Warn().Err(err).Msg("firebase unavailable, push notifications disabled")
		}
	}

	authenticator, err := initAuthenticator(ctx, cfg, fbApp, st.profiles, sessions, logger)
	if err != nil {
		return err
	}

	dispatcher := initNotifier(ctx, cfg, fbApp, st, logger)

	eventBus := events.NewEventBus()
	if st.outbox != nil && cfg.Google.BookingSpreadSheetID != "" {
		producer := worker.NewSheetsWorker(st.outbox, nil, redisClient, worker.RetryPolicy{}, logger,
			worker.WithQueueKeys(cfg.Worker.QueueKey, cfg.Worker.QueueKey+":deadletter"))
		worker.SubscribeBookingEvents(eventBus, producer)
		logger.Info().Msg("sheet sync enabled")
	}

	policy := service.Policy{
		DeferredPaymentMethods: cfg.Booking.DeferredPaymentMethods,
		ClaimRateLimit:         cfg.Booking.ClaimRateLimit,
		ClaimRateWindow:        time.Duration(cfg.Booking.ClaimRateWindowSeconds) * time.Second,
	}
	bookings := service.NewBookingService(st.bookings, st.profiles, cat, policy, logger,
		service.WithNotifier(dispatcher),
		service.WithEventPublisher(eventBus),
		service.WithClaimLimiter(sessions),
	)
	technicians := service.NewTechnicianService(st.profiles, dispatcher, logger)
	users := service.NewUserService(st.profiles, st.notifications, logger)

	if err := users.EnsureAdmins(ctx, cfg.Admins); err != nil {
		logger.Error().Err(err).Msg("ensure admins")
		return err
	}

	endpoints := api.NewEndpoints(authenticator, bookings, technicians, users, cat, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, endpoints, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}
	httpServer := api.NewHTTPServer(cfg.API, endpoints, logger)

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
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
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	st := &stores{}

	if cfg.Database.Path != "" {
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, err
		}
		st.outbox = db
		st.closers = append(st.closers, func() { _ = db.Close() })
		st.bookings, st.profiles, st.notifications = db, db, db
	}

	if cfg.Database.Backend == config.BackendMongo {
		store, err := mongostore.Connect(ctx, cfg.Database.Mongo, logger)
		if err != nil {
			st.Close()
			logger.Error().Err(err).Msg("connect mongo")
			return nil, err
		}
		st.closers = append(st.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		})
		st.bookings, st.profiles, st.notifications = store, store, store
	}

	logger.Info().Str("backend", cfg.Database.Backend).Msg("store ready")
	return st, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initSessions(client *redis.Client, logger *zerolog.Logger) domain.SessionRepository {
	memory := repository.NewMemorySessionRepository()
	if client == nil {
		return memory
	}
	return repository.NewFailoverSessionRepository(repository.NewRedisSessionRepository(client), memory, logger)
}

func initAuthenticator(
	ctx context.Context,
	cfg *config.Config,
	app *firebase.App,
	profiles domain.ProfileStore,
	sessions domain.SessionRepository,
	logger *zerolog.Logger,
) (*identity.Authenticator, error) {
	var verifier domain.TokenVerifier
	switch cfg.Identity.Provider {
	case config.IdentityFirebase:
		v, err := identity.NewFirebaseVerifier(ctx, app)
		if err != nil {
			return nil, err
		}
		verifier = v
	case config.IdentityStatic:
		logger.Warn().Int("tokens", len(cfg.Identity.StaticTokens)).Msg("static identity provider in use")
		verifier = identity.NewStaticVerifier(cfg.Identity.StaticTokens)
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Identity.Provider)
	}

	opts := []identity.Option{
		identity.WithSessionCache(sessions, time.Duration(cfg.Identity.CacheTTLSeconds)*time.Second),
	}
	if cfg.Identity.AutoProvision {
		opts = append(opts, identity.WithAutoProvision())
	}
	return identity.NewAuthenticator(verifier, profiles, logger, opts...), nil
}

func initNotifier(ctx context.Context, cfg *config.Config, app *firebase.App, st *stores, logger *zerolog.Logger) *notify.Dispatcher {
	var opts []notify.Option

	if cfg.Notifications.PushEnabled && app != nil {
		push, err := notify.NewFirebasePushChannel(ctx, app)
		if err != nil {
			logger.Warn().Err(err).Msg("push channel init failed, continuing without push")
		} else {
			opts = append(opts, notify.WithPush(push))
		}
	}

	if tg := cfg.Notifications.Telegram; tg.BotToken != "" {
		bot, err := notify.NewBotAPI(tg.BotToken, tg.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		} else {
			opts = append(opts, notify.WithTelegram(notify.NewTelegramChannel(bot, tg.AdminChatIDs, logger)))
		}
	}

	return notify.NewDispatcher(st.notifications, st.profiles, logger, opts...)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
