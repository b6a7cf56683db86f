package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rentdesk/config"
	"rentdesk/db"
	"rentdesk/db/migrations"
	"rentdesk/internal/handlers"
	"rentdesk/internal/maintenance"
	"rentdesk/internal/realtime"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	dbConn, err := db.Connect(ctx, cfg.Database.ConnString, db.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if cfg.Database.MigrateOnStart {
		if err := migrations.Run(ctx, dbConn.DB, logger); err != nil {
			return err
		}
	}

	feed, err := newFeed(cfg, logger)
	if err != nil {
		return err
	}
	if err := feed.Start(ctx); err != nil {
		return errors.Wrap(err, "start change feed")
	}
	defer feed.Close()

	if cfg.Realtime.Relay {
		relayCtx, stopRelay := context.WithCancel(ctx)
		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			if err := runRelay(relayCtx, cfg, logger); err != nil {
				logger.Error("change relay failed", zap.Error(err))
			}
		}()
		defer func() {
			stopRelay()
			<-relayDone
		}()
	}

	store := db.NewStorage(dbConn, logger)
	svc := maintenance.NewService(store, logger)
	views := handlers.NewViews(feed, svc, maintenance.ViewOptions{
		InsertDelay: cfg.Realtime.InsertDelay,
		UpdateDelay: cfg.Realtime.UpdateDelay,
	}, logger)
	h := handlers.NewHandler(svc, views, logger)

	r := handlers.Routes(h, logger)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.ServerAddress),
			zap.String("realtime_driver", cfg.Realtime.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newFeed выбирает источник изменений по REALTIME_DRIVER
func newFeed(cfg *config.Config, logger *zap.Logger) (realtime.Source, error) {
	rt := cfg.Realtime
	switch rt.Driver {
	case config.RealtimePostgres:
		return realtime.NewPostgresFeed(cfg.Database.ConnString, rt.Channel, logger), nil
	case config.RealtimeRedis:
		return realtime.NewRedisFeed(realtime.RedisOptions{
			Addr:     rt.Redis.Addr,
			Password: rt.Redis.Password,
			DB:       rt.Redis.DB,
		}, rt.Channel, logger), nil
	case config.RealtimeKafka:
		return realtime.NewKafkaFeed(realtime.KafkaOptions{
			Brokers: rt.Kafka.Brokers,
			Topic:   rt.Kafka.Topic,
			GroupID: rt.Kafka.GroupID,
		}, logger)
	case config.RealtimeNone:
		// без внешней ленты живые списки обновляются только своей первой загрузкой
		return realtime.NewHub(logger), nil
	default:
		return nil, errors.Errorf("unknown realtime driver %q", rt.Driver)
	}
}
