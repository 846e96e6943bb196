package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
kafka:
  brokers: ["localhost:9092"]
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "kafka", c.Sink.Type)
	assert.Equal(t, "finchat.tool_results", c.Kafka.ToolResultsTopic)
	assert.Equal(t, 10*time.Minute, c.Cache.ParsedTTL)
	assert.Equal(t, int64(5<<20), c.Uploads.MaxBytes)
	assert.Contains(t, c.Uploads.AllowedTypes, "application/pdf")
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.True(t, c.KafkaEnabled())
	assert.False(t, c.QueueEnabled())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
sink:
  type: clickhouse
clickhouse:
  host: ch
queue:
  enabled: false
redis:
  addr: redis:6379
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", c.Sink.Type)
	assert.Equal(t, "ch", c.ClickHouse.Host)
	assert.Equal(t, 9000, c.ClickHouse.Port)
	assert.False(t, c.QueueEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"kafka sink without brokers", func(c *Config) {}, "kafka.brokers"},
		{"unknown sink", func(c *Config) { c.Sink.Type = "s3" }, "sink.type"},
		{"clickhouse without host", func(c *Config) { c.Sink.Type = "clickhouse" }, "clickhouse.host"},
		{"empty base url", func(c *Config) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.FastAPI.BaseURL = ""
		}, "fastapi.base_url"},
		{"valid", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FASTAPI_API_URL": "http://analytics:8000",
		"KAFKA_BROKERS":   "a:9092,b:9092",
		"POSTGRES_DSN":    "postgres://u:p@db/finchat?sslmode=disable",
		"SINK":            "clickhouse",
		"LOG_LEVEL":       "debug",
	}
	c := Default()
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://analytics:8000", c.FastAPI.BaseURL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "postgres://u:p@db/finchat?sslmode=disable", c.Postgres.DSN)
	assert.Equal(t, "clickhouse", c.Sink.Type)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "", c.Redis.Addr)
}
