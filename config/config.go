package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries every environment-driven setting of the API.
type Config struct {
	Environment string
	GinMode     string
	ServerPort  string

	Database DatabaseConfig
	Storage  StorageConfig
	Redis    RedisConfig
	SMTP     SMTPConfig

	JWTSecret      string
	JWTExpireHours int

	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int

	MaxUploadBytes int64
	// EnforceRequiredFields blocks the wizard from leaving the details
	// step while required custom fields are empty.
	EnforceRequiredFields bool
}

// DatabaseConfig selects the gorm dialector and its connection settings.
type DatabaseConfig struct {
	Driver   string // mysql, postgres or sqlite
	Host     string
	Port     string
	Name     string
	Username string
	Password string
	SSLMode  string
	Path     string // sqlite file path
	DebugSQL bool
}

// StorageConfig selects the object store backend.
type StorageConfig struct {
	Backend            string // local or supabase
	Bucket             string
	UploadPath         string
	PublicBaseURL      string
	SupabaseURL        string
	SupabaseServiceKey string
}

// RedisConfig enables the shared wizard draft store when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SMTPConfig configures outgoing status notification mail.
type SMTPConfig struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string
	SkipTLSVerify bool
}

// LoadEnv reads .env into the process environment when present.
func LoadEnv(log logrus.FieldLogger) {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}
}

// Load builds a Config from the process environment.
func Load() Config {
	return Config{
		Environment: strings.ToLower(os.Getenv("ENVIRONMENT")),
		GinMode:     os.Getenv("GIN_MODE"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			Name:     os.Getenv("DB_DATABASE"),
			Username: os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
			Path:     getEnv("DB_PATH", "taxforms.db"),
			DebugSQL: strings.ToLower(os.Getenv("DEBUG_SQL")) == "true",
		},
		Storage: StorageConfig{
			Backend:            strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			Bucket:             getEnv("STORAGE_BUCKET", "application-files"),
			UploadPath:         getEnv("UPLOAD_PATH", "./uploads"),
			PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			SupabaseURL:        os.Getenv("SUPABASE_URL"),
			SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:          os.Getenv("SMTP_HOST"),
			Port:          getEnvInt("SMTP_PORT", 587),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			From:          os.Getenv("SMTP_FROM"),
			SkipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
		},
		JWTSecret:             os.Getenv("JWT_SECRET"),
		JWTExpireHours:        getEnvInt("JWT_EXPIRE_HOURS", 24),
		AllowedOrigins:        splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		RateLimitRPS:          getEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst:        getEnvInt("RATE_LIMIT_BURST", 10),
		MaxUploadBytes:        int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		EnforceRequiredFields: strings.ToLower(os.Getenv("REQUIRE_FIELDS_BEFORE_REVIEW")) == "true",
	}
}

// IsProduction reports whether ENVIRONMENT=production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
