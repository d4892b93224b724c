package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/api"
	"github.com/Checker-Finance/capitol-watch/internal/archive"
	"github.com/Checker-Finance/capitol-watch/internal/jobs"
	"github.com/Checker-Finance/capitol-watch/internal/notify"
	"github.com/Checker-Finance/capitol-watch/internal/scraper"
	internalsecrets "github.com/Checker-Finance/capitol-watch/internal/secrets"
	"github.com/Checker-Finance/capitol-watch/internal/snapshot"
	"github.com/Checker-Finance/capitol-watch/internal/watcher"
	"github.com/Checker-Finance/capitol-watch/pkg/config"
	"github.com/Checker-Finance/capitol-watch/pkg/logger"
	"github.com/Checker-Finance/capitol-watch/pkg/secrets"
	"github.com/Checker-Finance/capitol-watch/pkg/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Error("config.invalid", zap.Error(err))
		return 1
	}
	log.Info("starting [capitol-watch]",
		zap.String("source", cfg.SourceURL),
		zap.String("backend", cfg.SnapshotBackend),
		zap.Int("limit", cfg.FetchLimit),
		zap.Duration("interval", cfg.RunInterval))
	if cfg.SnapshotBackend == config.BackendPostgres {
		log.Info("snapshot.dsn", zap.String("dsn", utils.MaskDSN(cfg.DatabaseURL)))
	}

	// --- Snapshot store ---
	st, err := snapshot.Open(ctx, cfg, logger.Named("snapshot"))
	if err != nil {
		log.Error("snapshot.open_failed", zap.String("backend", cfg.SnapshotBackend), zap.Error(err))
		return 1
	}
	defer func() { _ = st.Close() }()

	// --- Notifiers ---
	notifier, closeNotifiers := buildNotifier(ctx, cfg, log)
	defer closeNotifiers()

	// --- Source + watcher ---
	fetcher := scraper.NewFetcher(cfg.SourceURL, cfg.UserAgent, cfg.FetchTimeout, logger.Named("scraper"))
	source := scraper.NewSource(fetcher, logger.Named("scraper"))
	w := watcher.New(source, st, notifier, watcher.Config{
		Limit:     cfg.FetchLimit,
		Retention: cfg.SnapshotRetention,
	}, logger.Named("watcher"))

	if !cfg.Daemon() {
		return runOnce(ctx, w, log)
	}
	runDaemon(ctx, cfg, w, st, log)
	return 0
}

func runOnce(ctx context.Context, w *watcher.Watcher, log *zap.Logger) int {
	res, err := w.Run(ctx)
	switch {
	case errors.Is(err, watcher.ErrRunInProgress):
		log.Warn("capitol-watch.skipped", zap.String("reason", "another run holds the lock"))
		return 0
	case errors.Is(err, watcher.ErrPersistFailed):
		log.Error("capitol-watch.failed", zap.String("run_id", res.RunID), zap.Error(err))
		return 1
	case err != nil:
		log.Error("capitol-watch.failed", zap.Error(err))
		return 1
	}
	log.Info("capitol-watch.done",
		zap.String("status", res.Status),
		zap.Int("new", res.New))
	return 0
}

func runDaemon(ctx context.Context, cfg *config.Config, w *watcher.Watcher, st snapshot.Store, log *zap.Logger) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api.RegisterRoutes(app, st, w)

	go func() {
		log.Info("http.listening", zap.Int("port", cfg.MetricsPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.MetricsPort)); err != nil {
			log.Error("fiber.listen_failed", zap.Error(err))
		}
	}()

	sched := jobs.NewScheduler(logger.Named("scheduler"), w, cfg.RunInterval)
	sched.Start(ctx)

	log.Info("shutting down [capitol-watch]...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Warn("fiber.shutdown_failed", zap.Error(err))
	}
}

// buildNotifier assembles every configured channel. It returns a nil notifier
// when none is configured.
func buildNotifier(ctx context.Context, cfg *config.Config, log *zap.Logger) (notify.Notifier, func()) {
	var (
		channels []notify.Notifier
		closers  []func()
	)

	if cfg.TelegramSecretName != "" && !cfg.TelegramEnabled() {
		resolveTelegram(ctx, cfg, log)
	}
	tg, err := notify.NewTelegram(notify.TelegramConfig{
		APIURL:         cfg.TelegramAPIURL,
		BotToken:       cfg.TelegramBotToken,
		ChatID:         cfg.TelegramChatID,
		DisablePreview: cfg.TelegramDisablePreview,
		Timeout:        cfg.NotifyTimeout,
		Retries:        cfg.NotifyRetries,
	}, logger.Named("telegram"))
	if err != nil {
		log.Warn("notify.telegram_disabled", zap.Error(err))
	} else {
		log.Info("notify.telegram_enabled", zap.String("token", utils.MaskToken(cfg.TelegramBotToken)))
		channels = append(channels, tg)
	}

	if cfg.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(cfg.NATSURL, cfg.NATSStream, cfg.NATSSubject, cfg.ServiceName, logger.Named("nats"))
		if err != nil {
			log.Warn("notify.nats_disabled", zap.Error(err))
		} else {
			channels = append(channels, pub)
			closers = append(closers, pub.Close)
		}
	}

	if cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPRoutingKey, logger.Named("amqp"))
		if err != nil {
			log.Warn("notify.amqp_disabled", zap.Error(err))
		} else {
			channels = append(channels, pub)
			closers = append(closers, func() { _ = pub.Close() })
		}
	}

	if cfg.ArchiveEnabled {
		w, err := archive.Open(ctx, cfg.DatabaseURL, logger.Named("archive"))
		if err != nil {
			log.Warn("notify.archive_disabled", zap.Error(err))
		} else {
			channels = append(channels, w)
			closers = append(closers, w.Close)
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(channels) == 0 {
		log.Warn("notify.no_channels")
		return nil, closeAll
	}
	return notify.NewMulti(logger.Named("notify"), channels...), closeAll
}

func resolveTelegram(ctx context.Context, cfg *config.Config, log *zap.Logger) {
	provider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
	if err != nil {
		log.Warn("secrets.provider_failed", zap.Error(err))
		return
	}
	resolver := internalsecrets.NewResolver(logger.Named("secrets"), provider,
		secrets.NewCache[internalsecrets.TelegramCredentials](cfg.CacheTTL))
	if err := internalsecrets.FillTelegram(ctx, cfg, resolver); err != nil {
		log.Warn("secrets.telegram_unresolved", zap.String("secret", cfg.TelegramSecretName), zap.Error(err))
	}
}
