package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Redis    RedisConfig    `yaml:"redis"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Mail     MailConfig     `yaml:"mail"`
	Asset    AssetConfig    `yaml:"asset"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"2m"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
// An empty DSN disables the customer store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.DSN != "" }

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

// LedgerConfig selects and sizes the event ledger.
type LedgerConfig struct {
	Backend    string        `yaml:"backend"     env:"LEDGER_BACKEND"     env-default:"memory"`
	MaxEntries int           `yaml:"max_entries" env:"LEDGER_MAX_ENTRIES" env-default:"1000"`
	ClaimLease time.Duration `yaml:"claim_lease" env:"LEDGER_CLAIM_LEASE" env-default:"2m"`
	Prefix     string        `yaml:"prefix"      env:"LEDGER_PREFIX"      env-default:"brandkit:ledger:"`
}

// RedisConfig holds the Redis connection used by the redis ledger backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"     env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"       env-default:"0"`
}

// PipelineConfig holds document generation settings.
type PipelineConfig struct {
	TemplatePath       string        `yaml:"template_path"       env:"PIPELINE_TEMPLATE_PATH"       env-required:"true"`
	WatermarkPath      string        `yaml:"watermark_path"      env:"PIPELINE_WATERMARK_PATH"`
	StaleAfter         time.Duration `yaml:"stale_after"         env:"PIPELINE_STALE_AFTER"         env-default:"5m"`
	TempDir            string        `yaml:"temp_dir"            env:"PIPELINE_TEMP_DIR"`
	// Tolerance 0 must come from PIPELINE_TOLERANCE: a zero in YAML is
	// indistinguishable from an absent key and gets the default.
	Tolerance          int           `yaml:"tolerance"           env:"PIPELINE_TOLERANCE"           env-default:"50"`
	MaxLogoPixels      int           `yaml:"max_logo_pixels"     env:"PIPELINE_MAX_LOGO_PIXELS"     env-default:"16777216"`
	ProtectionPassword string        `yaml:"protection_password" env:"PIPELINE_PROTECTION_PASSWORD"`
	TempRetention      time.Duration `yaml:"temp_retention"      env:"PIPELINE_TEMP_RETENTION"      env-default:"1h"`
	PendingInterval    time.Duration `yaml:"pending_interval"    env:"PIPELINE_PENDING_INTERVAL"    env-default:"1s"`
}

// MailConfig holds the SMTP relay and sender identity.
type MailConfig struct {
	Host       string        `yaml:"host"        env:"MAIL_HOST"        env-default:"smtp.gmail.com"`
	Port       int           `yaml:"port"        env:"MAIL_PORT"        env-default:"587"`
	Username   string        `yaml:"username"    env:"MAIL_USERNAME"`
	Password   string        `yaml:"password"    env:"MAIL_PASSWORD"`
	From       string        `yaml:"from"        env:"MAIL_FROM"        env-required:"true"`
	SenderName string        `yaml:"sender_name" env:"MAIL_SENDER_NAME" env-default:"Invoice Templates"`
	CTAURL     string        `yaml:"cta_url"     env:"MAIL_CTA_URL"`
	Attempts   int           `yaml:"attempts"    env:"MAIL_ATTEMPTS"    env-default:"3"`
	RetryBase  time.Duration `yaml:"retry_base"  env:"MAIL_RETRY_BASE"  env-default:"2s"`
	Timeout    time.Duration `yaml:"timeout"     env:"MAIL_TIMEOUT"     env-default:"30s"`
}

// AssetConfig bounds logo downloads.
type AssetConfig struct {
	Timeout  time.Duration `yaml:"timeout"   env:"ASSET_TIMEOUT"   env-default:"15s"`
	MaxBytes int64         `yaml:"max_bytes" env:"ASSET_MAX_BYTES" env-default:"10485760"`
}

// ArchiveConfig configures the optional S3 copy of delivered documents.
// An empty Bucket disables archiving.
type ArchiveConfig struct {
	Bucket   string `yaml:"bucket"   env:"ARCHIVE_BUCKET"`
	Region   string `yaml:"region"   env:"ARCHIVE_REGION"   env-default:"us-east-1"`
	Endpoint string `yaml:"endpoint" env:"ARCHIVE_ENDPOINT"`
	Prefix   string `yaml:"prefix"   env:"ARCHIVE_PREFIX"`
}

// Enabled reports whether archiving is configured.
func (c ArchiveConfig) Enabled() bool { return c.Bucket != "" }

// WebhookConfig holds inbound webhook settings.
type WebhookConfig struct {
	SigningSecret      string `yaml:"signing_secret"        env:"WEBHOOK_SIGNING_SECRET"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" env:"WEBHOOK_RATE_LIMIT_PER_MINUTE" env-default:"60"`
	MaxBody            int64  `yaml:"max_body"              env:"WEBHOOK_MAX_BODY"              env-default:"1048576"`
}
