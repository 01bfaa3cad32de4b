package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ticketera/internal/database"
	"ticketera/internal/external"
	"ticketera/internal/messaging"
	"ticketera/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port      string `validate:"required,numeric"`
	GinMode   string `validate:"oneof=debug release test"`
	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogFormat string `validate:"oneof=json text"`

	SessionCheckInterval time.Duration `validate:"gt=0"`

	Backend external.BackendConfig
	Storage StorageConfig
	NATS    messaging.Config

	DatabaseEnabled bool
	Database        database.Config
}

// StorageConfig - где устройство хранит токен, профиль и выбранное событие
type StorageConfig struct {
	Driver  string `validate:"oneof=memory valkey"`
	Valkey  storage.ValkeyConfig
	SealKey string
}

// Load загружает конфигурацию: .env, затем YAML из CONFIG_FILE, переменные окружения важнее файла
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:      src.getEnv("PORT", "8081"),
		GinMode:   src.getEnv("GIN_MODE", "release"),
		LogLevel:  src.getEnv("LOG_LEVEL", "info"),
		LogFormat: src.getEnv("LOG_FORMAT", "json"),

		SessionCheckInterval: time.Duration(src.getEnvInt("SESSION_CHECK_INTERVAL_SEC", 30)) * time.Second,

		Backend: external.BackendConfig{
			BaseURL: src.getEnv("BACKEND_URL", "http://localhost:3000"),
			Timeout: time.Duration(src.getEnvInt("BACKEND_TIMEOUT_SEC", 10)) * time.Second,
		},

		Storage: StorageConfig{
			Driver: src.getEnv("STORAGE_DRIVER", "memory"),
			Valkey: storage.ValkeyConfig{
				Addr:      src.getEnv("VALKEY_ADDR", "localhost:6379"),
				Password:  src.getEnv("VALKEY_PASSWORD", ""),
				DB:        src.getEnvInt("VALKEY_DB", 0),
				KeyPrefix: src.getEnv("VALKEY_KEY_PREFIX", "ticketera:session"),
				DeviceID:  src.getEnv("DEVICE_ID", "default"),
			},
			SealKey: src.getEnv("STORAGE_SEAL_KEY", ""),
		},

		NATS: messaging.Config{
			Enabled:   src.getEnvBool("NATS_ENABLED", false),
			URL:       src.getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: src.getEnv("NATS_CLUSTER_ID", "ticketera"),
			ClientID:  src.getEnv("NATS_CLIENT_ID", "ticketera-api"),
		},

		DatabaseEnabled: src.getEnvBool("DB_ENABLED", false),
		Database: database.Config{
			Host:               src.getEnv("DB_HOST", "localhost"),
			Port:               src.getEnvInt("DB_PORT", 5432),
			User:               src.getEnv("DB_USER", "ticketera"),
			Password:           src.getEnv("DB_PASSWORD", "ticketera"),
			DBName:             src.getEnv("DB_NAME", "ticketera"),
			SSLMode:            src.getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       src.getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       src.getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeMin: src.getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: src.getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения по тегам validate
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// source - переменные окружения поверх значений из YAML-файла
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	src := &source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for key, value := range values {
		if value == nil {
			continue
		}
		src.file[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return src, nil
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func (s *source) getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func (s *source) getEnvInt(key string, defaultValue int) int {
	if value := s.getEnv(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool получает булево значение переменной окружения
func (s *source) getEnvBool(key string, defaultValue bool) bool {
	if value := s.getEnv(key, ""); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
