package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rentdesk/config"
	"rentdesk/internal/realtime"
)

func newRelayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Forward Postgres change notifications to Redis or Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRelay(ctx, cfg, logger)
		},
	}
}

// runRelay слушает NOTIFY и публикует события в транспорт REALTIME_DRIVER
func runRelay(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pub, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	source := realtime.NewPostgresFeed(cfg.Database.ConnString, cfg.Realtime.Channel, logger)
	logger = logger.With(zap.String("target", cfg.Realtime.Driver))
	return realtime.NewRelay(source, pub, logger).Run(ctx)
}

func newPublisher(cfg *config.Config) (realtime.Publisher, error) {
	rt := cfg.Realtime
	switch rt.Driver {
	case config.RealtimeRedis:
		return realtime.NewRedisPublisher(realtime.RedisOptions{
			Addr:     rt.Redis.Addr,
			Password: rt.Redis.Password,
			DB:       rt.Redis.DB,
		}, rt.Channel), nil
	case config.RealtimeKafka:
		return realtime.NewKafkaPublisher(realtime.KafkaOptions{
			Brokers: rt.Kafka.Brokers,
			Topic:   rt.Kafka.Topic,
		})
	default:
		return nil, errors.Errorf("relay needs REALTIME_DRIVER redis or kafka, got %q", rt.Driver)
	}
}
