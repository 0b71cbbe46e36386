package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Identity IdentityConfig
	Roles    RolesConfig
	Review   ReviewConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// IdentityConfig controls how the caller identity is resolved from a request.
type IdentityConfig struct {
	Headers   []string
	JWTSecret string
}

// RolesConfig holds the membership lists used for role lookup.
type RolesConfig struct {
	Admins           []string
	Makers           []string
	Checkers         []string
	AdminDefaultRole string
}

// ReviewConfig tunes the review workflow and lists the reviewable tables.
type ReviewConfig struct {
	TablesFile   string
	Tables       []TableConfig
	RowLimit     int
	QueryTimeout time.Duration
	SessionTTL   time.Duration
	Timezone     string
}

// TableConfig describes one reviewable table.
type TableConfig struct {
	Key            string        `yaml:"key"`
	Label          string        `yaml:"label"`
	Name           string        `yaml:"name"`
	IdentityColumn string        `yaml:"identity_column"`
	RowLimit       int           `yaml:"row_limit"`
	Columns        ColumnsConfig `yaml:"columns"`
}

// ColumnsConfig overrides review column names. Empty entries keep the defaults.
type ColumnsConfig struct {
	PendingSize   string `yaml:"pending_size"`
	PendingGender string `yaml:"pending_gender"`
	FinalSize     string `yaml:"final_size"`
	FinalGender   string `yaml:"final_gender"`
	Status        string `yaml:"status"`
	SubmittedBy   string `yaml:"submitted_by"`
	SubmittedAt   string `yaml:"submitted_at"`
	ReviewedBy    string `yaml:"reviewed_by"`
	ReviewedAt    string `yaml:"reviewed_at"`
	Comments      string `yaml:"comments"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

type tablesFile struct {
	Tables []TableConfig `yaml:"tables"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Identity = IdentityConfig{
		Headers:   splitAndTrim(v.GetString("IDENTITY_HEADERS")),
		JWTSecret: v.GetString("IDENTITY_JWT_SECRET"),
	}

	cfg.Roles = RolesConfig{
		Admins:           splitAndTrim(v.GetString("AUTH_ADMINS")),
		Makers:           splitAndTrim(v.GetString("AUTH_MAKERS")),
		Checkers:         splitAndTrim(v.GetString("AUTH_CHECKERS")),
		AdminDefaultRole: strings.ToUpper(strings.TrimSpace(v.GetString("REVIEW_ADMIN_DEFAULT_ROLE"))),
	}

	cfg.Review = ReviewConfig{
		TablesFile:   v.GetString("REVIEW_TABLES_FILE"),
		RowLimit:     v.GetInt("REVIEW_ROW_LIMIT"),
		QueryTimeout: parseDuration(v.GetString("REVIEW_QUERY_TIMEOUT"), 30*time.Second),
		SessionTTL:   parseDuration(v.GetString("REVIEW_SESSION_TTL"), time.Hour),
		Timezone:     v.GetString("REVIEW_TIMEZONE"),
	}
	if cfg.Review.RowLimit <= 0 {
		cfg.Review.RowLimit = 1000
	}

	tables, err := loadTables(cfg.Review.TablesFile)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		if name := strings.TrimSpace(v.GetString("REVIEW_TABLE_NAME")); name != "" {
			tables = append(tables, TableConfig{
				Key:            "default",
				Label:          v.GetString("REVIEW_TABLE_LABEL"),
				Name:           name,
				IdentityColumn: v.GetString("REVIEW_IDENTITY_COLUMN"),
			})
		}
	}
	cfg.Review.Tables = tables

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
	}

	return cfg, nil
}

// ParseTables decodes a YAML table registry document.
func ParseTables(raw []byte) ([]TableConfig, error) {
	var doc tablesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse review tables: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Tables))
	for i := range doc.Tables {
		table := &doc.Tables[i]
		table.Key = strings.TrimSpace(table.Key)
		table.Name = strings.TrimSpace(table.Name)
		table.IdentityColumn = strings.TrimSpace(table.IdentityColumn)
		if table.Key == "" || table.Name == "" {
			return nil, fmt.Errorf("review table #%d: key and name are required", i+1)
		}
		if table.IdentityColumn == "" {
			return nil, fmt.Errorf("review table %q: identity_column is required", table.Key)
		}
		if _, dup := seen[table.Key]; dup {
			return nil, fmt.Errorf("review table %q declared twice", table.Key)
		}
		seen[table.Key] = struct{}{}
	}
	return doc.Tables, nil
}

func loadTables(path string) ([]TableConfig, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read review tables file: %w", err)
	}
	return ParseTables(raw)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "merchant_review")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("IDENTITY_HEADERS", "X-Forwarded-Preferred-Username,X-Forwarded-Email")
	v.SetDefault("IDENTITY_JWT_SECRET", "")

	v.SetDefault("AUTH_ADMINS", "")
	v.SetDefault("AUTH_MAKERS", "")
	v.SetDefault("AUTH_CHECKERS", "")
	v.SetDefault("REVIEW_ADMIN_DEFAULT_ROLE", "MAKER")

	v.SetDefault("REVIEW_TABLES_FILE", "")
	v.SetDefault("REVIEW_TABLE_NAME", "")
	v.SetDefault("REVIEW_TABLE_LABEL", "")
	v.SetDefault("REVIEW_IDENTITY_COLUMN", "")
	v.SetDefault("REVIEW_ROW_LIMIT", 1000)
	v.SetDefault("REVIEW_QUERY_TIMEOUT", "30s")
	v.SetDefault("REVIEW_SESSION_TTL", "1h")
	v.SetDefault("REVIEW_TIMEZONE", "Asia/Manila")

	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
