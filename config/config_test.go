package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// unsetenv убирает переменную на время теста; t.Setenv вернёт прежнее значение
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://localhost/rentdesk?sslmode=disable")
	for _, key := range []string{"REALTIME_DRIVER", "SERVER_ADDRESS", "LOG_LEVEL", "KAFKA_BROKERS", "REALTIME_INSERT_DELAY", "REALTIME_UPDATE_DELAY", "REALTIME_RELAY"} {
		unsetenv(t, key)
	}

	cfg, err := Parse()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
	require.Equal(t, RealtimePostgres, cfg.Realtime.Driver)
	require.Equal(t, 100*time.Millisecond, cfg.Realtime.InsertDelay)
	require.Equal(t, 400*time.Millisecond, cfg.Realtime.UpdateDelay)
	require.Equal(t, "rentdesk.table_changes", cfg.Realtime.Kafka.Topic)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.True(t, cfg.Metrics.Enabled)
	require.False(t, cfg.Realtime.Relay)
}

func TestParseRequiresConnString(t *testing.T) {
	unsetenv(t, "POSTGRES_CONN")

	_, err := Parse()
	require.Error(t, err)
	require.Contains(t, err.Error(), "POSTGRES_CONN")
}

func TestParseKafkaBrokers(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://localhost/rentdesk")
	t.Setenv("REALTIME_DRIVER", "Kafka")
	unsetenv(t, "KAFKA_BROKERS")

	_, err := Parse()
	require.Error(t, err)

	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	cfg, err := Parse()
	require.NoError(t, err)
	require.Equal(t, RealtimeKafka, cfg.Realtime.Driver)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Realtime.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LogLevel: "info",
			Realtime: RealtimeOptions{Driver: "none", InsertDelay: time.Millisecond, UpdateDelay: time.Millisecond},
		}
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.Realtime.Driver = "nats"
	require.Error(t, c.Validate())

	c = valid()
	c.Realtime.UpdateDelay = 0
	require.Error(t, c.Validate())

	c = valid()
	c.Realtime.Relay = true
	require.Error(t, c.Validate())
	c.Realtime.Driver = "redis"
	require.NoError(t, c.Validate())

	c = valid()
	c.LogLevel = "loud"
	require.Error(t, c.Validate())
}

func TestLoadEnvKeepsExistingVariables(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("RENTDESK_TEST_A=from-file\nRENTDESK_TEST_B=from-file\n"), 0o600))

	unsetenv(t, "RENTDESK_TEST_A")
	t.Setenv("RENTDESK_TEST_B", "from-env")

	n, err := LoadEnv([]string{file, filepath.Join(dir, ".env.local")})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "from-file", os.Getenv("RENTDESK_TEST_A"))
	require.Equal(t, "from-env", os.Getenv("RENTDESK_TEST_B"))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{LogLevel: "debug", PrettyLogs: true})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(&Config{LogLevel: "loud"})
	require.Error(t, err)
}
