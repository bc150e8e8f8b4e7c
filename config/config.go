package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	JWTSecret      string   `envconfig:"JWT_SECRET"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	HierarchyMode string `envconfig:"HIERARCHY_MODE" default:"flat"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"mongo"`
	MongoURI     string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	DatabaseName string `envconfig:"DATABASE_NAME" default:"nanodrive"`
	SQLDriver    string `envconfig:"SQL_DRIVER" default:"sqlite"`
	SQLDSN       string `envconfig:"SQL_DSN" default:"file:nanodrive.db"`

	BlobBackend        string        `envconfig:"BLOB_BACKEND" default:"b2"`
	B2ApplicationKeyID string        `envconfig:"B2_APPLICATION_KEY_ID"`
	B2ApplicationKey   string        `envconfig:"B2_APPLICATION_KEY"`
	B2BucketName       string        `envconfig:"B2_BUCKET_NAME"`
	S3Region           string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey        string        `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey        string        `envconfig:"S3_SECRET_KEY"`
	S3Endpoint         string        `envconfig:"S3_ENDPOINT"`
	S3Bucket           string        `envconfig:"S3_BUCKET"`
	URLTTL             time.Duration `envconfig:"URL_TTL" default:"24h"`
	PublicURL          string        `envconfig:"PUBLIC_URL"`

	MaxFileSize int64 `envconfig:"MAX_FILE_SIZE" default:"104857600"`

	TransformEndpoint string        `envconfig:"TRANSFORM_ENDPOINT"`
	TransformAPIKey   string        `envconfig:"TRANSFORM_API_KEY"`
	TransformTimeout  time.Duration `envconfig:"TRANSFORM_TIMEOUT" default:"2m"`
	TransformRPS      float64       `envconfig:"TRANSFORM_RPS" default:"1"`

	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"0"`
	SweepGrace    time.Duration `envconfig:"SWEEP_GRACE" default:"24h"`
}

// Load reads the environment into a Config. Older B2 variable names are
// still honoured when the canonical ones are unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.B2ApplicationKeyID == "" {
		cfg.B2ApplicationKeyID = firstEnv("B2_KEY_ID", "BACKBLAZE_KEY_ID")
	}
	if cfg.B2ApplicationKey == "" {
		cfg.B2ApplicationKey = firstEnv("B2_APP_KEY", "BACKBLAZE_APP_KEY")
	}
	if cfg.B2BucketName == "" {
		cfg.B2BucketName = firstEnv("B2_BUCKET", "BACKBLAZE_BUCKET")
	}
	cfg.AllowedOrigins = parseStringSlice(cfg.AllowedOrigins)
	return &cfg, nil
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	var missingVars []string
	required := map[string]string{"JWT_SECRET": c.JWTSecret}

	switch c.StoreBackend {
	case "mongo":
		required["MONGO_URI"] = c.MongoURI
		required["DATABASE_NAME"] = c.DatabaseName
	case "sql":
		required["SQL_DSN"] = c.SQLDSN
		if c.SQLDriver != "sqlite" && c.SQLDriver != "pgx" {
			return fmt.Errorf("SQL_DRIVER must be sqlite or pgx, got %q", c.SQLDriver)
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be mongo, sql or memory, got %q", c.StoreBackend)
	}

	switch c.BlobBackend {
	case "b2":
		required["B2_APPLICATION_KEY_ID"] = c.B2ApplicationKeyID
		required["B2_APPLICATION_KEY"] = c.B2ApplicationKey
		required["B2_BUCKET_NAME"] = c.B2BucketName
	case "s3":
		required["S3_ACCESS_KEY"] = c.S3AccessKey
		required["S3_SECRET_KEY"] = c.S3SecretKey
		required["S3_BUCKET"] = c.S3Bucket
	case "memory":
	default:
		return fmt.Errorf("BLOB_BACKEND must be b2, s3 or memory, got %q", c.BlobBackend)
	}

	for key, value := range required {
		if value == "" {
			missingVars = append(missingVars, key)
		}
	}
	if len(missingVars) > 0 {
		sort.Strings(missingVars)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	if c.MaxFileSize < 0 {
		return fmt.Errorf("MAX_FILE_SIZE must not be negative")
	}
	if c.TransformEndpoint != "" && c.TransformRPS <= 0 {
		return fmt.Errorf("TRANSFORM_RPS must be positive")
	}
	if c.SweepInterval < 0 || c.SweepGrace < 0 {
		return fmt.Errorf("SWEEP_INTERVAL and SWEEP_GRACE must not be negative")
	}
	return nil
}

// Log writes the effective configuration with secrets masked.
func (c *Config) Log(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("port", c.Port),
		zap.String("env", c.Env),
		zap.String("hierarchy_mode", c.HierarchyMode),
		zap.String("store_backend", c.StoreBackend),
		zap.String("mongo_uri", maskConnectionString(c.MongoURI)),
		zap.String("database", c.DatabaseName),
		zap.String("sql_driver", c.SQLDriver),
		zap.String("sql_dsn", maskConnectionString(c.SQLDSN)),
		zap.String("blob_backend", c.BlobBackend),
		zap.String("public_url", c.PublicURL),
		zap.String("b2_key_id", maskSecret(c.B2ApplicationKeyID)),
		zap.String("b2_bucket", c.B2BucketName),
		zap.String("s3_access_key", maskSecret(c.S3AccessKey)),
		zap.String("s3_endpoint", c.S3Endpoint),
		zap.String("s3_bucket", c.S3Bucket),
		zap.String("jwt_secret", maskSecret(c.JWTSecret)),
		zap.Int64("max_file_size", c.MaxFileSize),
		zap.Strings("allowed_origins", c.AllowedOrigins),
		zap.Bool("transform_full", c.TransformEndpoint != ""),
		zap.String("transform_api_key", maskSecret(c.TransformAPIKey)),
		zap.Duration("sweep_interval", c.SweepInterval),
	)
}

// LoadEnvFile loads the first .env found near the working directory. A
// missing file is not an error; the process environment is used as is.
func LoadEnvFile(logger *zap.Logger) {
	pwd, _ := os.Getwd()
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
		filepath.Join(pwd, ".env"),
		filepath.Join(filepath.Dir(pwd), ".env"),
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		absPath, _ := filepath.Abs(envPath)
		if err := godotenv.Load(envPath); err != nil {
			logger.Warn("Failed to load .env", zap.String("path", absPath), zap.Error(err))
			continue
		}
		logger.Info("Loaded environment variables", zap.String("path", absPath))
		return
	}
	logger.Info("No .env file found, using system environment variables")
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func maskSecret(secret string) string {
	if secret == "" {
		return "[NOT SET]"
	}
	if len(secret) <= 8 {
		return "[HIDDEN]"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

func maskConnectionString(uri string) string {
	if uri == "" {
		return "[NOT SET]"
	}
	if strings.Contains(uri, "@") {
		parts := strings.Split(uri, "@")
		return "[CREDENTIALS_HIDDEN]@" + parts[len(parts)-1]
	}
	return uri
}

func parseStringSlice(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
