package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type API struct {
	BaseURL        string        `yaml:"base_url"`
	CSRFCookieName string        `yaml:"csrf_cookie_name"`
	CSRFHeaderName string        `yaml:"csrf_header_name"`
	SessionCookie  string        `yaml:"session_cookie"`
	SessionID      string        `yaml:"session_id"`
	CSRFToken      string        `yaml:"csrf_token"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

type Cache struct {
	StaleTime   time.Duration `yaml:"stale_time"`
	Persist     string        `yaml:"persist"`
	RedisURL    string        `yaml:"redis_url"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

type DB struct {
	DbHOST     string `yaml:"host"`
	DbPORT     string `yaml:"port"`
	DbUSER     string `yaml:"user"`
	DbPASSWORD string `yaml:"password"`
	DbNAME     string `yaml:"name"`
	DbSSLMODE  string `yaml:"sslmode"`
}

type MinIO struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
}

type Toast struct {
	AutoDismiss time.Duration `yaml:"auto_dismiss"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	API   API   `yaml:"api"`
	Cache Cache `yaml:"cache"`
	DB    DB    `yaml:"db"`
	MinIO MinIO `yaml:"minio"`
	Toast Toast `yaml:"toast"`
	Log   Log   `yaml:"log"`
}

const (
	PersistNone     = "none"
	PersistPostgres = "postgres"
	PersistRedis    = "redis"
)

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		return parseDuration(value, fallback)
	}
	return fallback
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return duration
}

// Default returns the configuration used when neither a YAML file nor the
// environment say otherwise.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL:        "http://localhost:8000",
			CSRFCookieName: "csrftoken",
			CSRFHeaderName: "X-CSRFToken",
			SessionCookie:  "sessionid",
			UserAgent:      "network-client/1.0",
		},
		Cache: Cache{
			Persist:     PersistNone,
			RedisURL:    "redis://localhost:6379",
			SnapshotTTL: 24 * time.Hour,
		},
		DB: DB{
			DbHOST:     "localhost",
			DbPORT:     "5432",
			DbUSER:     "postgres",
			DbPASSWORD: "password",
			DbNAME:     "network",
			DbSSLMODE:  "disable",
		},
		MinIO: MinIO{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Region:    "us-east-1",
		},
		Toast: Toast{AutoDismiss: 5 * time.Second},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.API = API{
		BaseURL:        getEnv("NETWORK_BASE_URL", cfg.API.BaseURL),
		CSRFCookieName: getEnv("NETWORK_CSRF_COOKIE", cfg.API.CSRFCookieName),
		CSRFHeaderName: getEnv("NETWORK_CSRF_HEADER", cfg.API.CSRFHeaderName),
		SessionCookie:  getEnv("NETWORK_SESSION_COOKIE", cfg.API.SessionCookie),
		SessionID:      getEnv("NETWORK_SESSION_ID", cfg.API.SessionID),
		CSRFToken:      getEnv("NETWORK_CSRF_TOKEN", cfg.API.CSRFToken),
		Timeout:        getEnvDuration("NETWORK_TIMEOUT", cfg.API.Timeout),
		UserAgent:      getEnv("NETWORK_USER_AGENT", cfg.API.UserAgent),
	}

	cfg.Cache = Cache{
		StaleTime:   getEnvDuration("CACHE_STALE_TIME", cfg.Cache.StaleTime),
		Persist:     getEnv("CACHE_PERSIST", cfg.Cache.Persist),
		RedisURL:    getEnv("REDIS_URL", cfg.Cache.RedisURL),
		SnapshotTTL: getEnvDuration("CACHE_SNAPSHOT_TTL", cfg.Cache.SnapshotTTL),
	}

	cfg.DB = DB{
		DbHOST:     getEnv("DB_HOST", cfg.DB.DbHOST),
		DbPORT:     getEnv("DB_PORT", cfg.DB.DbPORT),
		DbUSER:     getEnv("DB_USER", cfg.DB.DbUSER),
		DbPASSWORD: getEnv("DB_PASSWORD", cfg.DB.DbPASSWORD),
		DbNAME:     getEnv("DB_NAME", cfg.DB.DbNAME),
		DbSSLMODE:  getEnv("DB_SSLMODE", cfg.DB.DbSSLMODE),
	}

	cfg.MinIO = MinIO{
		Endpoint:  getEnv("MINIO_ENDPOINT", cfg.MinIO.Endpoint),
		AccessKey: getEnv("MINIO_ACCESS_KEY", cfg.MinIO.AccessKey),
		SecretKey: getEnv("MINIO_SECRET_KEY", cfg.MinIO.SecretKey),
		UseSSL:    getEnvBool("MINIO_USE_SSL", cfg.MinIO.UseSSL),
		Region:    getEnv("MINIO_REGION", cfg.MinIO.Region),
	}

	cfg.Toast.AutoDismiss = getEnvDuration("TOAST_AUTO_DISMISS", cfg.Toast.AutoDismiss)

	cfg.Log = Log{
		Level:  getEnv("LOG_LEVEL", cfg.Log.Level),
		Format: getEnv("LOG_FORMAT", cfg.Log.Format),
	}
}

// LoadConfig reads .env, then the optional YAML file named by
// NETWORK_CONFIG_FILE, then environment variables. Later sources win.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(os.Getenv("NETWORK_CONFIG_FILE"))
}

// LoadConfigFile is LoadConfig with the YAML file given by path instead of
// NETWORK_CONFIG_FILE. An empty path skips the file.
func LoadConfigFile(path string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := Default()

	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	switch cfg.Cache.Persist {
	case PersistNone, PersistPostgres, PersistRedis:
	default:
		return nil, fmt.Errorf("unknown cache persist backend %q", cfg.Cache.Persist)
	}

	return cfg, nil
}
