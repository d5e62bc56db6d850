package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "STORAGE_BACKEND", "STORAGE_REQUIRED", "MONGO_URI", "MONGO_DATABASE", "MONGO_COLLECTION",
	"INFLUXDB_URL", "INFLUXDB_TOKEN", "INFLUXDB_ORG", "INFLUXDB_BUCKET", "SQLITE_PATH",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_TOPIC",
	"QUERY_MAX_LIMIT", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every variable LoadConfig reads; empty counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, BackendMongoDB, cfg.StorageBackend)
	assert.False(t, cfg.StorageRequired)
	assert.Equal(t, "test", cfg.MongoDatabase)
	assert.Equal(t, "sensordatas", cfg.MongoCollection)
	assert.Equal(t, "sensors", cfg.InfluxDBBucket)
	assert.Equal(t, "webnode.db", cfg.SQLitePath)
	assert.Empty(t, cfg.RedisAddr)
	assert.Zero(t, cfg.RedisDB)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, "webnode", cfg.MQTTClientID)
	assert.Equal(t, "sensors/readings", cfg.MQTTTopic)
	assert.Zero(t, cfg.QueryMaxLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("STORAGE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/readings.db")
	t.Setenv("STORAGE_REQUIRED", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("QUERY_MAX_LIMIT", "500")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, "/tmp/readings.db", cfg.SQLitePath)
	assert.True(t, cfg.StorageRequired)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 500, cfg.QueryMaxLimit)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "cassandra"}},
		{"incomplete influx", map[string]string{"STORAGE_BACKEND": "influxdb", "INFLUXDB_URL": "http://localhost:8086"}},
		{"bad bool", map[string]string{"STORAGE_REQUIRED": "maybe"}},
		{"bad int", map[string]string{"REDIS_DB": "one"}},
		{"negative max limit", map[string]string{"QUERY_MAX_LIMIT": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestValidate_InfluxComplete(t *testing.T) {
	cfg := Config{
		Port:           "3000",
		StorageBackend: BackendInfluxDB,
		InfluxDBURL:    "http://localhost:8086",
		InfluxDBToken:  "token",
		InfluxDBOrg:    "org",
	}
	assert.NoError(t, cfg.Validate())
}
