package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var DefaultEnvFiles = []string{".env", ".env.local"}

const (
	RealtimePostgres = "postgres"
	RealtimeRedis    = "redis"
	RealtimeKafka    = "kafka"
	RealtimeNone     = "none"
)

type DatabaseOptions struct {
	ConnString      string        `env:"POSTGRES_CONN,required"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"10m"`
	MigrateOnStart  bool          `env:"MIGRATE_ON_START" envDefault:"false"`
}

type RedisOptions struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type KafkaOptions struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"rentdesk.table_changes"`
	GroupID string   `env:"KAFKA_GROUP_ID"`
}

type RealtimeOptions struct {
	// postgres | redis | kafka | none
	Driver      string        `env:"REALTIME_DRIVER" envDefault:"postgres"`
	Channel     string        `env:"REALTIME_CHANNEL" envDefault:"table_changes"`
	InsertDelay time.Duration `env:"REALTIME_INSERT_DELAY" envDefault:"100ms"`
	UpdateDelay time.Duration `env:"REALTIME_UPDATE_DELAY" envDefault:"400ms"`
	// serve сам пересылает NOTIFY в Redis/Kafka; при нескольких экземплярах лучше отдельный relay
	Relay bool `env:"REALTIME_RELAY" envDefault:"false"`
	Redis       RedisOptions
	Kafka       KafkaOptions
}

type MetricsOptions struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	PrettyLogs    bool   `env:"PRETTY_LOGS" envDefault:"false"`

	Database DatabaseOptions
	Realtime RealtimeOptions
	Metrics  MetricsOptions
}

// LoadEnv загружает существующие из envFiles; переменные окружения не перезаписываются
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load читает .env файлы и разбирает конфигурацию из окружения
func Load() (*Config, error) {
	if _, err := LoadEnv(DefaultEnvFiles); err != nil {
		return nil, errors.Wrap(err, "load env files")
	}
	return Parse()
}

// Parse разбирает конфигурацию только из окружения
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Realtime.Driver = strings.ToLower(strings.TrimSpace(c.Realtime.Driver))
	switch c.Realtime.Driver {
	case RealtimePostgres, RealtimeRedis, RealtimeNone:
	case RealtimeKafka:
		if len(c.Realtime.Kafka.Brokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when REALTIME_DRIVER is kafka")
		}
	default:
		return errors.Errorf("unknown REALTIME_DRIVER %q", c.Realtime.Driver)
	}
	if c.Realtime.Relay && c.Realtime.Driver != RealtimeRedis && c.Realtime.Driver != RealtimeKafka {
		return errors.New("REALTIME_RELAY requires REALTIME_DRIVER redis or kafka")
	}
	if c.Realtime.InsertDelay <= 0 || c.Realtime.UpdateDelay <= 0 {
		return errors.New("realtime delays must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "LOG_LEVEL")
	}
	return nil
}

// NewLogger: production-конфиг zap, development при PRETTY_LOGS
func NewLogger(c *Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}

	zc := zap.NewProductionConfig()
	if c.PrettyLogs {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
