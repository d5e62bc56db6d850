package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends understood by repository.Open.
const (
	BackendMongoDB  = "mongodb"
	BackendInfluxDB = "influxdb"
	BackendSQLite   = "sqlite"
)

// Config holds the application's configuration.
type Config struct {
	Port string

	StorageBackend  string
	StorageRequired bool

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	InfluxDBURL    string
	InfluxDBToken  string
	InfluxDBOrg    string
	InfluxDBBucket string

	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	// QueryMaxLimit clamps the limit of GET /data. Zero means unbounded.
	QueryMaxLimit int

	LogLevel  string
	LogFormat string

	// EnvFileLoaded reports whether a .env file was found. Logged by the caller
	// once the logger exists.
	EnvFileLoaded bool
}

// LoadConfig loads the configuration from a .env file (if any) and the environment.
func LoadConfig() (Config, error) {
	envErr := godotenv.Load()

	cfg := Config{
		Port:            getEnv("PORT", "3000"),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", BackendMongoDB)),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "test"),
		MongoCollection: getEnv("MONGO_COLLECTION", "sensordatas"),
		InfluxDBURL:     os.Getenv("INFLUXDB_URL"),
		InfluxDBToken:   os.Getenv("INFLUXDB_TOKEN"),
		InfluxDBOrg:     os.Getenv("INFLUXDB_ORG"),
		InfluxDBBucket:  getEnv("INFLUXDB_BUCKET", "sensors"),
		SQLitePath:      getEnv("SQLITE_PATH", "webnode.db"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "webnode"),
		MQTTTopic:       getEnv("MQTT_TOPIC", "sensors/readings"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "json")),
		EnvFileLoaded:   envErr == nil,
	}

	var err error
	if cfg.StorageRequired, err = getBool("STORAGE_REQUIRED", false); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.QueryMaxLimit, err = getInt("QUERY_MAX_LIMIT", 0); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail much later.
// A missing MONGO_URI is not an error: the store is then reported unavailable at startup.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case BackendMongoDB:
	case BackendInfluxDB:
		if c.InfluxDBURL == "" || c.InfluxDBToken == "" || c.InfluxDBOrg == "" {
			return fmt.Errorf("InfluxDB configuration is incomplete. Please set INFLUXDB_URL, INFLUXDB_TOKEN, and INFLUXDB_ORG environment variables")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %s, %s or %s)", c.StorageBackend, BackendMongoDB, BackendInfluxDB, BackendSQLite)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.QueryMaxLimit < 0 {
		return fmt.Errorf("QUERY_MAX_LIMIT must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
