package realtime

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Publisher отправляет событие во внешний транспорт, откуда его читают RedisFeed и KafkaFeed
type Publisher interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// redisPublishClient: часть redis.Client, нужная для публикации
type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher пишет события в pub/sub канал в том же JSON, что и NOTIFY
type RedisPublisher struct {
	client  redisPublishClient
	channel string
}

func NewRedisPublisher(opts RedisOptions, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		channel: channel,
	}
}

func (p *RedisPublisher) Send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode change event")
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return errors.Wrapf(err, "publish to %s", p.channel)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// messageWriter: часть kafka.Writer, нужная для публикации
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher пишет события в CDC-топик. Ключ сообщения: id строки,
// поэтому изменения одной строки попадают в одну партицию по порядку.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(opts KafkaOptions) (*KafkaPublisher, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if opts.Topic == "" {
		return nil, errors.New("topic is required")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(opts.Brokers...),
			Topic:                  opts.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: opts.Topic,
	}, nil
}

func (p *KafkaPublisher) Send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode change event")
	}
	msg := kafka.Message{
		Key:   []byte(ev.Table + ":" + ev.RowID()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "table", Value: []byte(ev.Table)},
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write to %s", p.topic)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return errors.Wrap(err, "failed to close writer")
	}
	return nil
}
