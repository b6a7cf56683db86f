package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	readRetryMin = 500 * time.Millisecond
	readRetryMax = 10 * time.Second
)

// messageReader: часть kafka.Reader, которой пользуется KafkaFeed
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaOptions struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaFeed потребляет CDC-топик. Каждое сообщение: JSON события изменения.
type KafkaFeed struct {
	*Hub
	reader messageReader
	opts   KafkaOptions
	logger *zap.Logger

	retryMin, retryMax time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaFeed(opts KafkaOptions, logger *zap.Logger) (*KafkaFeed, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if opts.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if opts.GroupID == "" {
		// каждому экземпляру нужны все события, поэтому группа своя
		opts.GroupID = "rentdesk-realtime-" + uuid.NewString()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     opts.Brokers,
		Topic:       opts.Topic,
		GroupID:     opts.GroupID,
		StartOffset: kafka.LastOffset,
	})

	return &KafkaFeed{
		Hub:      NewHub(logger),
		reader:   reader,
		opts:     opts,
		logger:   logger,
		retryMin: readRetryMin,
		retryMax: readRetryMax,
	}, nil
}

func (f *KafkaFeed) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(1)
	go f.consumeLoop(ctx)

	f.logger.Info("kafka change feed started",
		zap.String("topic", f.opts.Topic), zap.String("group", f.opts.GroupID))
	return nil
}

func (f *KafkaFeed) consumeLoop(ctx context.Context) {
	defer f.wg.Done()

	delay := f.retryMin
	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Error("failed to read message", zap.Duration("retry_in", delay), zap.Error(err))
			// брокер недоступен: пауза растёт до retryMax
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, f.retryMax)
			continue
		}
		delay = f.retryMin

		ev, err := ParseEvent(msg.Value)
		if err != nil {
			f.logger.Warn("skipping malformed message",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		f.Publish(ev)
	}
}

func (f *KafkaFeed) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	if err := f.reader.Close(); err != nil {
		return errors.Wrap(err, "failed to close reader")
	}
	f.logger.Info("kafka change feed stopped")
	return nil
}
