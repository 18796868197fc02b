package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/heartmarshall/brandkit/internal/adapter/archive"
	"github.com/heartmarshall/brandkit/internal/adapter/asset"
	"github.com/heartmarshall/brandkit/internal/adapter/postgres"
	"github.com/heartmarshall/brandkit/internal/adapter/postgres/customer"
	"github.com/heartmarshall/brandkit/internal/config"
	"github.com/heartmarshall/brandkit/internal/document"
	"github.com/heartmarshall/brandkit/internal/ledger"
	"github.com/heartmarshall/brandkit/internal/notify"
	"github.com/heartmarshall/brandkit/internal/service/pipeline"
	"github.com/heartmarshall/brandkit/internal/transport/middleware"
	"github.com/heartmarshall/brandkit/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, wires the
// adapters and the pipeline, and serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("ledger", cfg.Ledger.Backend),
		slog.Bool("customer_store", cfg.Database.Enabled()),
		slog.Bool("archive", cfg.Archive.Enabled()),
	)

	// Ledger.
	events, closeLedger, err := newLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	deps := pipeline.Deps{Ledger: events}
	// Stays a nil interface when no database is configured.
	var db interface {
		Ping(ctx context.Context) error
	}

	// Customer store (optional).
	if cfg.Database.Enabled() {
		if err := postgres.Migrate(ctx, cfg.Database.DSN, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()

		deps.Customers = customer.New(pool)
		deps.Tx = postgres.NewTxManager(pool)
		db = pool
	}

	// Archive (optional).
	if cfg.Archive.Enabled() {
		store, err := archive.NewS3Store(ctx, archive.Config{
			Bucket:   cfg.Archive.Bucket,
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
			Prefix:   cfg.Archive.Prefix,
		}, logger)
		if err != nil {
			return err
		}
		deps.Archive = store
	}

	// Assets, documents and mail.
	deps.Assets = asset.NewFetcher(logger, asset.Options{
		Timeout:  cfg.Asset.Timeout,
		MaxBytes: cfg.Asset.MaxBytes,
	})
	deps.Documents = document.NewCustomizer(logger, document.Options{
		TempDir:  cfg.Pipeline.TempDir,
		Password: cfg.Pipeline.ProtectionPassword,
	})

	smtp, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		Timeout:  cfg.Mail.Timeout,
	}, logger)
	if err != nil {
		return err
	}
	deps.Delivery = notify.NewNotifier(logger, smtp, notify.Config{
		From:       cfg.Mail.From,
		SenderName: cfg.Mail.SenderName,
		CTAURL:     cfg.Mail.CTAURL,
		Attempts:   cfg.Mail.Attempts,
		RetryBase:  cfg.Mail.RetryBase,
	})

	svc := pipeline.NewService(logger, pipeline.Config{
		TemplatePath:    cfg.Pipeline.TemplatePath,
		WatermarkPath:   cfg.Pipeline.WatermarkPath,
		StaleAfter:      cfg.Pipeline.StaleAfter,
		Tolerance:       cfg.Pipeline.Tolerance,
		MaxLogoPixels:   cfg.Pipeline.MaxLogoPixels,
		PendingInterval: cfg.Pipeline.PendingInterval,
	}, deps)

	// The manual re-run is signed like the webhooks; it stays unmounted
	// without a signing secret or a customer store.
	var admin *rest.AdminHandler
	if cfg.Webhook.SigningSecret != "" && cfg.Database.Enabled() {
		admin = rest.NewAdminHandler(svc, logger)
	}

	// HTTP.
	limiter := middleware.NewRateLimiter(time.Minute)
	defer limiter.Stop()

	handler := rest.NewRouter(rest.Router{
		Webhook: rest.NewWebhookHandler(svc, logger, cfg.Webhook.MaxBody),
		Health:  rest.NewHealthHandler(events, db, BuildVersion()),
		Admin:   admin,
		Common: middleware.Chain(
			middleware.RequestID(),
			middleware.Recovery(logger),
			middleware.Logger(logger),
		),
		WebhookOnly: middleware.Chain(
			limiter.Limit(cfg.Webhook.RateLimitPerMinute),
			middleware.VerifySignature(cfg.Webhook.SigningSecret, cfg.Webhook.MaxBody, logger),
		),
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return serve(ctx, srv, cfg.Server.ShutdownTimeout, logger)
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newLedger(ctx context.Context, cfg *config.Config) (ledger.Ledger, func(), error) {
	if cfg.Ledger.Backend != config.LedgerRedis {
		return ledger.NewMemory(cfg.Ledger.MaxEntries), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis: ping: %w", err)
	}

	l := ledger.NewRedis(client, ledger.RedisOptions{
		Prefix:     cfg.Ledger.Prefix,
		MaxEntries: cfg.Ledger.MaxEntries,
		ClaimLease: claimLease(cfg),
	})
	return l, func() { _ = client.Close() }, nil
}

// claimLeaseMargin covers decoding, templating and ledger round trips.
const claimLeaseMargin = 30 * time.Second

// claimLease returns the configured claim lease, raised when needed so that
// a claim cannot expire before the slowest run the asset and mail timeouts
// allow.
func claimLease(cfg *config.Config) time.Duration {
	need := asset.Options{Timeout: cfg.Asset.Timeout}.MaxDuration() +
		notify.Config{Attempts: cfg.Mail.Attempts, RetryBase: cfg.Mail.RetryBase}.MaxSendDuration(cfg.Mail.Timeout) +
		claimLeaseMargin
	if cfg.Ledger.ClaimLease >= need {
		return cfg.Ledger.ClaimLease
	}
	return need
}
