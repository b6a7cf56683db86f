package realtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rentdesk/internal/metrics"
)

const relaySendTimeout = 5 * time.Second

// Relay пересылает события из источника (обычно PostgresFeed) в Redis или Kafka,
// чтобы экземпляры с REALTIME_DRIVER=redis|kafka получали изменения.
type Relay struct {
	source Source
	pub    Publisher
	logger *zap.Logger

	// lost: после неудачной отправки подписчикам нужна перезагрузка
	lost atomic.Bool
}

func NewRelay(source Source, pub Publisher, logger *zap.Logger) *Relay {
	return &Relay{source: source, pub: pub, logger: logger}
}

// Run работает до отмены ctx, затем закрывает источник и транспорт
func (r *Relay) Run(ctx context.Context) error {
	unsubscribe, err := r.source.Subscribe(AnyTable, nil, nil, func(ev Event) {
		r.forward(ctx, ev)
	})
	if err != nil {
		return errors.Wrap(err, "subscribe relay")
	}
	defer unsubscribe()

	if err := r.source.Start(ctx); err != nil {
		return errors.Wrap(err, "start relay source")
	}
	r.logger.Info("change relay started")

	<-ctx.Done()

	if err := r.source.Close(); err != nil {
		r.logger.Warn("failed to close relay source", zap.Error(err))
	}
	if err := r.pub.Close(); err != nil {
		r.logger.Warn("failed to close relay publisher", zap.Error(err))
	}
	r.logger.Info("change relay stopped")
	return nil
}

// forward вызывается синхронно из цикла источника, поэтому отправка ограничена по времени.
// После потери события первая удачная отправка сопровождается RESYNC.
func (r *Relay) forward(ctx context.Context, ev Event) {
	if !r.send(ctx, ev) {
		r.lost.Store(true)
		return
	}
	if r.lost.Swap(false) && ev.Type != EventResync {
		r.logger.Info("transport recovered, requesting resync")
		if !r.send(ctx, Event{Table: AnyTable, Type: EventResync}) {
			r.lost.Store(true)
		}
	}
}

func (r *Relay) send(ctx context.Context, ev Event) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relaySendTimeout)
	defer cancel()

	if err := r.pub.Send(ctx, ev); err != nil {
		metrics.RelayEvents.WithLabelValues(ev.Table, "error").Inc()
		r.logger.Error("failed to relay change event",
			zap.String("table", ev.Table), zap.String("type", string(ev.Type)), zap.Error(err))
		return false
	}
	metrics.RelayEvents.WithLabelValues(ev.Table, "ok").Inc()
	return true
}
