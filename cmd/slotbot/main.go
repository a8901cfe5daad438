package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ledassalon/slotbot/internal/booking"
	"github.com/ledassalon/slotbot/internal/bot"
	"github.com/ledassalon/slotbot/internal/cache"
	"github.com/ledassalon/slotbot/internal/catchqueue"
	"github.com/ledassalon/slotbot/internal/config"
	"github.com/ledassalon/slotbot/internal/events"
	"github.com/ledassalon/slotbot/internal/health"
	"github.com/ledassalon/slotbot/internal/notify"
	"github.com/ledassalon/slotbot/internal/otelx"
	"github.com/ledassalon/slotbot/internal/slot"
	"github.com/ledassalon/slotbot/internal/store"
	"github.com/ledassalon/slotbot/internal/store/memory"
	"github.com/ledassalon/slotbot/internal/store/sheets"
	"github.com/ledassalon/slotbot/internal/sweep"
)

const serviceName = "slotbot"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", serviceName)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	clock, err := slot.NewClock(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "tz", cfg.Timezone, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var rows store.RowStore
	if cfg.SpreadsheetKey != "" {
		sheetRows, err := sheets.New(ctx, sheets.Config{
			SpreadsheetKey:  cfg.SpreadsheetKey,
			CredentialsFile: cfg.CredentialsFile,
			Retries:         cfg.StoreRetries,
			Backoff:         cfg.StoreBackoff,
		}, logger)
		if err != nil {
			logger.Error("spreadsheet connection failed", "err", err)
			os.Exit(1)
		}
		rows = sheetRows
	} else {
		logger.Warn("SPREADSHEET_KEY not set, using in-memory store")
		rows = memory.New()
	}

	var backend cache.Backend
	var redisCache *cache.Redis
	if cfg.RedisAddr != "" {
		redisCache = cache.NewRedis(cfg.RedisAddr, logger)
		backend = redisCache
	} else {
		backend = cache.NewMemory()
	}
	rows = cache.NewRows(rows, backend, cache.DefaultTTLs())

	st := store.New(rows, clock.Location(), logger)

	var api *tgbotapi.BotAPI
	var messenger notify.Messenger = notify.NewNoop()
	if cfg.TelegramToken != "" {
		api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logger.Error("telegram connection failed", "err", err)
			os.Exit(1)
		}
		messenger = notify.NewTelegram(api)
	} else {
		logger.Warn("TELEGRAM_TOKEN not set, messages disabled")
	}

	admin := notify.NewAdmin(st, messenger, logger)

	var pub events.Publisher = events.NewNoop()
	if cfg.KafkaBrokers != "" {
		kafkaPub := events.NewKafka(events.SplitBrokers(cfg.KafkaBrokers), cfg.KafkaTopic, logger)
		defer func() { _ = kafkaPub.Close() }()
		pub = kafkaPub
	}

	mgr := booking.NewManager(st, admin, pub, logger, clock.Now, booking.Config{
		UnavailableBefore: cfg.UnavailableBefore(),
		DisplayMin:        cfg.DisplayMin(),
		CatchMin:          cfg.CatchMin(),
	})
	arbiter := catchqueue.NewArbiter(st, mgr, messenger, logger, clock.Now, cfg.CatchWindow())

	sweeper := sweep.New(mgr, arbiter, st, messenger, admin, logger, cfg.SweepInterval, cfg.ReminderLead())
	go sweeper.Run(ctx)

	checks := []health.Check{
		{Name: "store", Probe: func(ctx context.Context) error {
			_, _, err := st.Setting(ctx, store.SettingAdminChat)
			return err
		}},
	}
	if redisCache != nil {
		checks = append(checks, health.Check{Name: "redis", Probe: redisCache.Ping})
	}
	if api != nil {
		checks = append(checks, health.Check{Name: "telegram", Probe: func(context.Context) error {
			_, err := api.GetMe()
			return err
		}})
	}
	srv := &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           health.NewMux(checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("health server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "err", err)
		}
	}()

	if api != nil {
		b := bot.New(api, messenger, st, mgr, arbiter, admin, logger, clock, cfg.AdminPasswordHash)
		go b.Run(ctx)
	} else {
		logger.Info("running headless, sweep only")
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", "err", err)
	}
	logger.Info("stopped")
}
