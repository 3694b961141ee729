package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/gitlab-telegram-bot/internal/config"
	httpapi "github.com/tbourn/gitlab-telegram-bot/internal/http"
	"github.com/tbourn/gitlab-telegram-bot/internal/observability"
	"github.com/tbourn/gitlab-telegram-bot/internal/repo"
	"github.com/tbourn/gitlab-telegram-bot/internal/services"
	"github.com/tbourn/gitlab-telegram-bot/internal/telegram"
)

// purgeInterval is how often expired delivery keys are deleted.
const purgeInterval = time.Hour

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := cfg.RequireTelegram(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, version)
		},
	}
}

// serve runs until ctx is cancelled, then drains the HTTP server within
// cfg.ShutdownTimeout.
func serve(ctx context.Context, cfg config.Config, version string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return fmt.Errorf("gorm tracing: %w", err)
		}
	}
	if _, err := repo.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}

	tg, err := telegram.NewClient(telegram.Options{
		Token:   cfg.Telegram.Token,
		APIBase: cfg.Telegram.APIBase,
		RPS:     cfg.Telegram.SendRPS,
		Burst:   cfg.Telegram.SendBurst,
	})
	if err != nil {
		return err
	}
	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	log.Info().Str("bot", me.Username).Msg("telegram bot authenticated")

	store := repo.Store{}
	registrar := services.NewRegistrationService(db, store, services.NewHTTPProbe(cfg.Probe.Timeout, cfg.Probe.Marker), me.Username)
	binder := services.NewBindingService(db, store)
	hooks := services.NewWebhookService(db, store, tg)
	hooks.DedupeTTL = cfg.Webhook.DedupeTTL

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Registrar:   registrar,
		Dispatcher:  hooks,
		DB:          sqlDB,
		BotUsername: me.Username,
	}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	poller := telegram.NewPoller(tg, tg, telegram.NewBot(binder, me.Username), cfg.Telegram.PollTimeout)
	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("telegram poller exited")
		}
	}()

	go purgeLoop(ctx, db, purgeInterval)

	if _, err := telegram.Broadcast(ctx, db, store, tg, cfg.Telegram.Greeting); err != nil {
		log.Warn().Err(err).Msg("startup broadcast")
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// purgeLoop deletes expired delivery keys every interval until ctx ends.
func purgeLoop(ctx context.Context, db *gorm.DB, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeDeliveries(ctx, db, now)
			if err != nil {
				log.Warn().Err(err).Msg("purging deliveries")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("expired deliveries purged")
			}
		}
	}
}
