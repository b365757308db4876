package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendGitHub   = "github"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Password modes.
const (
	PasswordModePlaintext = "plaintext"
	PasswordModeBcrypt    = "bcrypt"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Logger       LoggerConfig
	Store        StoreConfig
	GitHub       GitHubConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Accounts     AccountsConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSAllowOrigins      string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// StoreConfig selects and tunes the account store.
type StoreConfig struct {
	Backend          string
	DegradeOnError   bool
	MaxWriteAttempts int
	FilePath         string
}

// GitHubConfig points the remote store at a file in a repository.
type GitHubConfig struct {
	APIURL         string
	Owner          string
	Repo           string
	Path           string
	Branch         string
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	CommitMessage  string
	TimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	DocumentName   string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// AccountsConfig holds account policy.
type AccountsConfig struct {
	PrimaryAdmin string
	PasswordMode string
	BcryptCost   int
}

// NotificationConfig holds notification endpoints.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
	WebhookQueueSize      int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	appID, err := getEnvAsInt64("GITHUB_APP_ID")
	if err != nil {
		return nil, err
	}
	installationID, err := getEnvAsInt64("GITHUB_INSTALLATION_ID")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "account-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", getEnv("PORT", "3000")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSAllowOrigins:      getEnv("CORS_ALLOW_ORIGINS", "*"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend:          strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
			DegradeOnError:   getEnvAsBool("STORE_DEGRADE_ON_ERROR", false),
			MaxWriteAttempts: getEnvAsInt("STORE_MAX_WRITE_ATTEMPTS", 3),
			FilePath:         getEnv("STORE_FILE_PATH", "data/users.json"),
		},
		GitHub: GitHubConfig{
			APIURL:         getEnv("GITHUB_API_URL", "https://api.github.com"),
			Owner:          os.Getenv("GITHUB_OWNER"),
			Repo:           os.Getenv("GITHUB_REPO"),
			Path:           getEnv("GITHUB_FILE_PATH", "data/users.json"),
			Branch:         os.Getenv("GITHUB_BRANCH"),
			Token:          os.Getenv("GITHUB_TOKEN"),
			AppID:          appID,
			InstallationID: installationID,
			PrivateKeyPath: os.Getenv("GITHUB_APP_PRIVATE_KEY_PATH"),
			CommitMessage:  getEnv("GITHUB_COMMIT_MESSAGE", "Update users"),
			TimeoutSeconds: getEnvAsInt("GITHUB_TIMEOUT_SECONDS", 10),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			DocumentName:   getEnv("POSTGRES_DOCUMENT_NAME", "users"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Key:      getEnv("REDIS_KEY", "accounts:users"),
		},
		Accounts: AccountsConfig{
			PrimaryAdmin: getEnv("ACCOUNTS_PRIMARY_ADMIN", "DG143"),
			PasswordMode: strings.ToLower(getEnv("AUTH_PASSWORD_MODE", PasswordModePlaintext)),
			BcryptCost:   getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			WebhookURL:            os.Getenv("NOTIFY_WEBHOOK_URL"),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
			WebhookQueueSize:      getEnvAsInt("NOTIFY_WEBHOOK_QUEUE_SIZE", 256),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.FilePath == "" {
			errs = append(errs, errors.New("STORE_FILE_PATH is required for the file backend"))
		}
	case BackendGitHub:
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" || c.GitHub.Path == "" {
			errs = append(errs, errors.New("GITHUB_OWNER, GITHUB_REPO and GITHUB_FILE_PATH are required for the github backend"))
		}
		if c.GitHub.Token == "" && !c.GitHub.UsesApp() {
			errs = append(errs, errors.New("either GITHUB_TOKEN or GITHUB_APP_ID, GITHUB_INSTALLATION_ID and GITHUB_APP_PRIVATE_KEY_PATH must be set"))
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" || c.Redis.Key == "" {
			errs = append(errs, errors.New("REDIS_ADDR and REDIS_KEY are required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	switch c.Accounts.PasswordMode {
	case PasswordModePlaintext, PasswordModeBcrypt:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_PASSWORD_MODE %q", c.Accounts.PasswordMode))
	}
	if c.Store.MaxWriteAttempts < 1 {
		errs = append(errs, errors.New("STORE_MAX_WRITE_ATTEMPTS must be at least 1"))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// UsesApp reports whether GitHub App credentials are configured.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID > 0 && g.InstallationID > 0 && g.PrivateKeyPath != ""
}

// Timeout returns the HTTP client timeout for GitHub calls.
func (g GitHubConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsInt64(key string) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
