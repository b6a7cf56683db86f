package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultChannel = "table_changes"

	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

// PostgresFeed слушает LISTEN/NOTIFY канал, в который пишет триггер notify_table_change
type PostgresFeed struct {
	*Hub
	listener *pq.Listener
	channel  string
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPostgresFeed(connString, channel string, logger *zap.Logger) *PostgresFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	listener := pq.NewListener(connString, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
			}
		})
	return &PostgresFeed{
		Hub:      NewHub(logger),
		listener: listener,
		channel:  channel,
		logger:   logger,
	}
}

func (f *PostgresFeed) Start(ctx context.Context) error {
	if err := f.listener.Listen(f.channel); err != nil {
		return errors.Wrapf(err, "listen %s", f.channel)
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	go f.loop(ctx)

	f.logger.Info("postgres change feed started", zap.String("channel", f.channel))
	return nil
}

func (f *PostgresFeed) loop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// nil приходит после переподключения: уведомления могли потеряться
			if n == nil {
				f.logger.Info("postgres listener reconnected, requesting resync")
				f.Resync()
				continue
			}
			ev, err := ParseEvent([]byte(n.Extra))
			if err != nil {
				f.logger.Warn("skipping malformed notification", zap.String("channel", n.Channel), zap.Error(err))
				continue
			}
			f.Publish(ev)
		case <-ticker.C:
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn("postgres listener ping failed", zap.Error(err))
			}
		}
	}
}

func (f *PostgresFeed) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	if err := f.listener.Close(); err != nil {
		return errors.Wrap(err, "close listener")
	}
	f.logger.Info("postgres change feed stopped")
	return nil
}
