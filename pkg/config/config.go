package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Budget       BudgetConfig
	Escalation   EscalationConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Budget.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SPPG_APP_ENV" required:"true"`
	Port         string `envconfig:"SPPG_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SPPG_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SPPG_LOG_WARN_STACK" default:"false"`
	// MetricsPort serves /metrics from the worker binaries. Empty disables it.
	MetricsPort string `envconfig:"SPPG_METRICS_PORT" default:"9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SPPG_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"SPPG_DB_DSN"`

	Host     string `envconfig:"SPPG_DB_HOST"`
	Port     int    `envconfig:"SPPG_DB_PORT" default:"5432"`
	User     string `envconfig:"SPPG_DB_USER"`
	Password string `envconfig:"SPPG_DB_PASSWORD"`
	Name     string `envconfig:"SPPG_DB_NAME"`
	SSLMode  string `envconfig:"SPPG_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SPPG_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SPPG_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SPPG_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SPPG_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SPPG_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SPPG_REDIS_URL"`
	Address      string        `envconfig:"SPPG_REDIS_ADDR"`
	Password     string        `envconfig:"SPPG_REDIS_PASSWORD"`
	DB           int           `envconfig:"SPPG_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SPPG_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SPPG_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SPPG_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SPPG_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SPPG_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig carries the verification settings for tokens minted by the session provider.
type JWTConfig struct {
	Secret            string `envconfig:"SPPG_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SPPG_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SPPG_JWT_EXPIRATION_MINUTES" default:"60"`
}

type BudgetConfig struct {
	// BreakdownTolerancePct bounds how far a cost breakdown total may drift from the requested amount.
	BreakdownTolerancePct string `envconfig:"SPPG_BUDGET_BREAKDOWN_TOLERANCE_PCT" default:"1"`
}

// BreakdownTolerance returns the tolerance as a fraction (1% -> 0.01).
func (b BudgetConfig) BreakdownTolerance() decimal.Decimal {
	pct, err := decimal.NewFromString(strings.TrimSpace(b.BreakdownTolerancePct))
	if err != nil || pct.IsNegative() {
		return decimal.NewFromInt(DefaultBreakdownTolerancePct).Div(decimal.NewFromInt(100))
	}
	return pct.Div(decimal.NewFromInt(100))
}

func (b BudgetConfig) validate() error {
	raw := strings.TrimSpace(b.BreakdownTolerancePct)
	if raw == "" {
		return nil
	}
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%s must be numeric: %w", EnvBreakdownTolerancePct, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvBreakdownTolerancePct)
	}
	return nil
}

type EscalationConfig struct {
	SweepInterval time.Duration `envconfig:"SPPG_ESCALATION_SWEEP_INTERVAL" default:"1h"`
	TenantTimeout time.Duration `envconfig:"SPPG_ESCALATION_TENANT_TIMEOUT" default:"30s"`
	LockTTL       time.Duration `envconfig:"SPPG_ESCALATION_LOCK_TTL" default:"55m"`
	JobTimeout    time.Duration `envconfig:"SPPG_CRON_JOB_TIMEOUT" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SPPG_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SPPG_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"SPPG_PUBSUB_DOMAIN_TOPIC" default:"sppg-budget-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SPPG_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SPPG_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SPPG_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// parked rows are kept longer for audit
	PublishedRetentionDays int `envconfig:"SPPG_OUTBOX_PUBLISHED_RETENTION_DAYS" default:"30"`
	ParkedRetentionDays    int `envconfig:"SPPG_OUTBOX_PARKED_RETENTION_DAYS" default:"90"`
	PruneBatchSize         int `envconfig:"SPPG_OUTBOX_PRUNE_BATCH_SIZE" default:"500"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
