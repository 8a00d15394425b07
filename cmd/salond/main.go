package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/api"
	"salonbook/internal/audit"
	"salonbook/internal/booking"
	"salonbook/internal/bot"
	"salonbook/internal/cache"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/google"
	"salonbook/internal/health"
	"salonbook/internal/metrics"
	"salonbook/internal/pgstore"
	"salonbook/internal/reminders"
	"salonbook/internal/store"
)

// catalogSyncer is implemented by both persistence backends.
type catalogSyncer interface {
	SyncCatalog(ctx context.Context, cfg *config.CatalogConfig) error
}

type flusher interface {
	Flush(ctx context.Context) error
}

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SALON_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil && cfg.App.LogLevel != "" {
		logger = logger.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	var (
		backend store.Store
		syncer  catalogSyncer
		sqlite  *database.DB
	)
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := pgstore.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate postgres schema")
		}
		backend, syncer = pg, pg
	default:
		sqlite, err = database.NewDB(cfg.Database.Path, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite database")
		}
		backend, syncer = sqlite, sqlite
	}
	defer backend.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	st := cache.New(backend, rdb, cfg.CacheTTL(), &logger)

	err = config.WatchCatalog(ctx, cfg.Catalog.Path, cfg.CatalogWatchInterval(), func(cat *config.CatalogConfig) {
		for i := range cat.Salons {
			if cat.Salons[i].Timezone == "" {
				cat.Salons[i].Timezone = cfg.App.Timezone
			}
		}
		if err := syncer.SyncCatalog(ctx, cat); err != nil {
			logger.Error().Err(err).Msg("salon catalog sync failed")
			return
		}
		if f, ok := st.(flusher); ok {
			if err := f.Flush(ctx); err != nil {
				logger.Warn().Err(err).Msg("cache flush after catalog sync failed")
			}
		}
		logger.Info().Int("salons", len(cat.Salons)).Msg("salon catalog synced")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load salon catalog")
	}

	bus := events.NewEventBus(&logger)
	if cfg.Kafka.Enabled {
		fwd := events.NewKafkaForwarder(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.KafkaTopic()), &logger)
		fwd.Attach(bus)
		defer fwd.Close()
	}

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if cfg.Sheets.Enabled {
		sheets, err := google.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("Google Sheets log disabled")
		} else {
			sheets.Attach(bus)
			goRun(func() { sheets.Run(ctx) })
		}
	}

	svc := booking.NewService(st, bus, cfg.SlotStep(), booking.Horizon{
		MinAdvance: cfg.BookingMinAdvance(),
		MaxAdvance: cfg.BookingMaxAdvance(),
	}, &logger)

	if cfg.AutoComplete.Enabled {
		goRun(func() { svc.StartAutoComplete(ctx, cfg.AutoCompleteInterval()) })
	}

	if sqlite != nil && cfg.Backup.Enabled {
		backup := database.NewBackupService(sqlite, database.BackupConfig{
			Enabled:       true,
			Interval:      cfg.BackupInterval(),
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		goRun(func() { backup.Start(ctx) })
	}

	var tgBot *bot.Bot
	if cfg.Telegram.BotToken != "" {
		tgBot, err = bot.New(cfg.Telegram.BotToken, svc, cfg.Telegram.TenantCode, cfg.BookingMaxAdvance(), cfg.Telegram.Managers, cfg.Telegram.Debug, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create telegram bot")
		}
		goRun(func() { tgBot.Start(ctx) })

		if cfg.Reminders.Enabled {
			rem := reminders.NewService(reminders.Config{
				Lead:          cfg.ReminderLead(),
				Interval:      cfg.ReminderInterval(),
				RatePerSecond: cfg.Reminders.RatePerSecond,
			}, st, tgBot, &logger)
			goRun(func() { rem.Start(ctx) })
		}

		reports := audit.NewService(svc, audit.NewExcelizeWriter, tgBot, &logger)
		reports.Start()
		defer reports.Stop()
	} else {
		logger.Warn().Msg("telegram.bot_token is empty: bot, reminders and monthly reports are off")
	}

	checks := []health.Check{{Name: "database", Check: backend.Ping}}
	if rdb != nil {
		checks = append(checks, health.Check{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}
	healthPort := cfg.Monitoring.HealthCheckPort
	if healthPort == 0 {
		healthPort = 8090
	}
	goRun(func() { health.ServeHTTP(ctx, fmt.Sprintf(":%d", healthPort), health.NewMux(checks...), &logger) })
	if cfg.Monitoring.GRPCHealthPort != 0 {
		grpcHealth := health.NewGRPCServer(&logger, checks...)
		goRun(func() {
			if err := grpcHealth.Serve(ctx, fmt.Sprintf(":%d", cfg.Monitoring.GRPCHealthPort)); err != nil {
				logger.Error().Err(err).Msg("gRPC health server error")
			}
		})
	}

	if cfg.Monitoring.PrometheusEnabled {
		port := cfg.Monitoring.PrometheusPort
		if port == 0 {
			port = 9090
		}
		metrics.Register()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		goRun(func() { health.ServeHTTP(ctx, fmt.Sprintf(":%d", port), mux, &logger) })
	}

	server := api.NewServer(svc, cfg.HTTP.AdminAPIKey, &logger)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("salonbook started")
	if err := server.Serve(ctx, cfg.HTTPAddress()); err != nil {
		logger.Error().Err(err).Msg("HTTP API stopped")
		stop()
	}

	wg.Wait()
	logger.Info().Msg("salonbook stopped")
}
