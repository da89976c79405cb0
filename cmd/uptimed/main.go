package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/uptimeworker/internal/auditlog"
	"github.com/hamed0406/uptimeworker/internal/config"
	"github.com/hamed0406/uptimeworker/internal/httpapi"
	apimw "github.com/hamed0406/uptimeworker/internal/httpapi/middleware"
	"github.com/hamed0406/uptimeworker/internal/logging"
	"github.com/hamed0406/uptimeworker/internal/metrics"
	"github.com/hamed0406/uptimeworker/internal/notify"
	"github.com/hamed0406/uptimeworker/internal/probe"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/repo/filestore"
	"github.com/hamed0406/uptimeworker/internal/repo/postgres"
	"github.com/hamed0406/uptimeworker/internal/scheduler"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}
	defer closeStore()

	audit, err := auditlog.New(cfg.CheckLogDir, auditlog.Options{
		MaxSizeMB:  cfg.CheckLogMaxSizeMB,
		MaxBackups: cfg.CheckLogMaxBackups,
		Compress:   cfg.CheckLogCompress,
	})
	if err != nil {
		logger.Fatal("check_log_open_error", zap.Error(err))
	}
	defer audit.Close()

	m := metrics.New()
	sched := scheduler.New(
		logger,
		store,
		probe.NewHTTPProber(),
		notifiers(cfg, logger),
		audit,
		audit,
		m,
		scheduler.Config{
			SweepInterval:  cfg.SweepInterval,
			RotateInterval: cfg.RotateInterval,
			NotifyTimeout:  cfg.NotifyTimeout,
		},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })

	if cfg.Addr != "" {
		api := httpapi.NewServer(logger, store, sched, m)
		keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("api_listen", zap.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	logger.Info("worker_started",
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Duration("rotate_interval", cfg.RotateInterval),
	)
	if err := g.Wait(); err != nil {
		logger.Error("worker_exit", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("worker_stopped")
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.RecordStore, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		logger.Info("store_postgres")
		return pg, pg.Close, nil
	}
	fs, err := filestore.New(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("store_files", zap.String("dir", cfg.DataDir))
	return fs, func() {}, nil
}

func notifiers(cfg config.Config, logger *zap.Logger) notify.Notifier {
	var sinks notify.Multi
	if tw := notify.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromPhone, cfg.TwilioBaseURL); tw != nil {
		sinks = append(sinks, tw)
	}
	if sl := notify.NewSlack(cfg.SlackWebhook); sl != nil {
		sinks = append(sinks, sl)
	}
	if len(sinks) == 0 {
		logger.Warn("no_alert_sink_configured")
		return notify.Log{Logger: logger}
	}
	return sinks
}
