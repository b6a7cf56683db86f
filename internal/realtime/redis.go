package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisFeed читает события из pub/sub канала Redis. Формат сообщений тот же, что у NOTIFY.
type RedisFeed struct {
	*Hub
	client  *redis.Client
	channel string
	logger  *zap.Logger

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

func NewRedisFeed(opts RedisOptions, channel string, logger *zap.Logger) *RedisFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisFeed{
		Hub: NewHub(logger),
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		channel: channel,
		logger:  logger,
	}
}

func (f *RedisFeed) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.client.Ping(pingCtx).Err(); err != nil {
		return errors.Wrapf(err, "failed to connect to Redis at %s", f.client.Options().Addr)
	}

	f.pubsub = f.client.Subscribe(ctx, f.channel)
	if _, err := f.pubsub.Receive(ctx); err != nil {
		_ = f.pubsub.Close()
		return errors.Wrapf(err, "subscribe %s", f.channel)
	}

	f.wg.Add(1)
	go f.loop(f.pubsub.Channel())

	f.logger.Info("redis change feed started", zap.String("channel", f.channel))
	return nil
}

// loop завершается, когда Close закрывает pubsub и канал сообщений
func (f *RedisFeed) loop(messages <-chan *redis.Message) {
	defer f.wg.Done()
	for msg := range messages {
		ev, err := ParseEvent([]byte(msg.Payload))
		if err != nil {
			f.logger.Warn("skipping malformed message", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		f.Publish(ev)
	}
}

func (f *RedisFeed) Close() error {
	if f.pubsub != nil {
		if err := f.pubsub.Close(); err != nil {
			f.logger.Warn("failed to close redis subscription", zap.Error(err))
		}
	}
	f.wg.Wait()
	f.logger.Info("redis change feed stopped")
	return f.client.Close()
}
