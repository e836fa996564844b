package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type GatewayProvider string

const (
	GatewayProviderStripe GatewayProvider = "stripe"
	GatewayProviderFake   GatewayProvider = "fake" // Deterministic in-process gateway for local runs
)

type BlobBackend string

const (
	BlobBackendLocal BlobBackend = "local"
	BlobBackendMinio BlobBackend = "minio"
)

type (
	Config struct {
		HTTP
		Global
		Log
		Database
		Auth
		Payment
		Blob
		Lock
		Tasks
		Reconcile
		Audit
	}

	HTTP struct {
		Port    int32
		Host    string
		BaseURL string // Prefix for follow-up URLs returned to clients
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Log struct {
		Level string
		Dev   bool
	}
	Database struct {
		Driver DatabaseDriver
		Path   string // sqlite file path
		DSN    string // postgres connection string
	}
	Auth struct {
		JWTSecret   string
		TokenExpiry time.Duration
		BcryptCost  int
	}
	Payment struct {
		Provider        GatewayProvider
		StripeSecretKey string
		Currency        string
		GatewayTimeout  time.Duration // Upper bound for the whole customer/card/charge sequence
		MaxInFlight     int           // Concurrent gateway sequences allowed
	}
	Blob struct {
		Backend        BlobBackend
		Dir            string
		MinioEndpoint  string
		MinioAccessKey string
		MinioSecretKey string
		MinioBucket    string
		MinioUseSSL    bool
	}
	Lock struct {
		RedisAddr     string // Empty means in-process locking
		RedisPassword string
		TTL           time.Duration
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Reconcile struct {
		Enabled     bool
		Schedule    string        // Cron format: "*/15 * * * *" = every 15 minutes
		IntentTTL   time.Duration // Unverified intents older than this are pruned (0 disables)
		MaxAttempts int           // Settlement attempts before a reconciliation is marked failed
		BatchSize   int           // Pending reconciliations enqueued per sweep
	}
	Audit struct {
		RetentionDays int // Audit events older than this are deleted by the sweep (0 disables)
	}
)

func NewConfig() *Config {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8000)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("public_base_url", "http://localhost:8000")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_dev", false)

	v.SetDefault("database_driver", string(DatabaseDriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	// Auth defaults
	v.SetDefault("auth_jwt_secret", "")  // Required outside of local runs
	v.SetDefault("auth_token_expiry", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)

	// Payment defaults
	v.SetDefault("payment_provider", string(GatewayProviderStripe))
	v.SetDefault("stripe_secret_key", "")
	v.SetDefault("payment_currency", DefaultCurrency)
	v.SetDefault("payment_gateway_timeout", "30s")
	v.SetDefault("payment_max_in_flight", 16)

	// Blob store defaults
	v.SetDefault("blob_backend", string(BlobBackendLocal))
	v.SetDefault("blob_dir", DefaultBlobDir)
	v.SetDefault("minio_endpoint", "localhost:9000")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "ebookstore")
	v.SetDefault("minio_use_ssl", false)

	v.SetDefault("lock_redis_addr", "")
	v.SetDefault("lock_redis_password", "")
	v.SetDefault("lock_ttl", "2m")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("reconcile_enabled", true)
	v.SetDefault("reconcile_schedule", "*/15 * * * *")
	v.SetDefault("reconcile_intent_ttl", "168h") // 7 days
	v.SetDefault("reconcile_max_attempts", 5)
	v.SetDefault("reconcile_batch_size", 100)

	v.SetDefault("audit_retention_days", 90)

	return &Config{
		HTTP: HTTP{
			Port:    v.GetInt32("PORT"),
			Host:    v.GetString("HOST"),
			BaseURL: v.GetString("PUBLIC_BASE_URL"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Log: Log{
			Level: v.GetString("LOG_LEVEL"),
			Dev:   v.GetBool("LOG_DEV"),
		},
		Database: Database{
			Driver: DatabaseDriver(v.GetString("DATABASE_DRIVER")),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			JWTSecret:   v.GetString("AUTH_JWT_SECRET"),
			TokenExpiry: v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:  v.GetInt("AUTH_BCRYPT_COST"),
		},
		Payment: Payment{
			Provider:        GatewayProvider(v.GetString("PAYMENT_PROVIDER")),
			StripeSecretKey: v.GetString("STRIPE_SECRET_KEY"),
			Currency:        v.GetString("PAYMENT_CURRENCY"),
			GatewayTimeout:  v.GetDuration("PAYMENT_GATEWAY_TIMEOUT"),
			MaxInFlight:     v.GetInt("PAYMENT_MAX_IN_FLIGHT"),
		},
		Blob: Blob{
			Backend:        BlobBackend(v.GetString("BLOB_BACKEND")),
			Dir:            v.GetString("BLOB_DIR"),
			MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
			MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
			MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
			MinioBucket:    v.GetString("MINIO_BUCKET"),
			MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Lock: Lock{
			RedisAddr:     v.GetString("LOCK_REDIS_ADDR"),
			RedisPassword: v.GetString("LOCK_REDIS_PASSWORD"),
			TTL:           v.GetDuration("LOCK_TTL"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Reconcile: Reconcile{
			Enabled:     v.GetBool("RECONCILE_ENABLED"),
			Schedule:    v.GetString("RECONCILE_SCHEDULE"),
			IntentTTL:   v.GetDuration("RECONCILE_INTENT_TTL"),
			MaxAttempts: v.GetInt("RECONCILE_MAX_ATTEMPTS"),
			BatchSize:   v.GetInt("RECONCILE_BATCH_SIZE"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
	}
}
