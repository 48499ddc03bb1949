package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Dispatch     DispatchConfig
	FeatureFlags FeatureFlagsConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	ScanLimit    ScanRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KIRAMA_APP_ENV" required:"true"`
	Port         string `envconfig:"KIRAMA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KIRAMA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KIRAMA_LOG_WARN_STACK" default:"false"`

	// PublicBaseURL is the externally reachable origin encoded into QR
	// payload links.
	PublicBaseURL string `envconfig:"KIRAMA_APP_PUBLIC_BASE_URL" default:"https://kirama.market"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KIRAMA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KIRAMA_DB_DSN"`
	Driver string `envconfig:"KIRAMA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KIRAMA_DB_HOST"`
	LegacyPort     int    `envconfig:"KIRAMA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KIRAMA_DB_USER"`
	LegacyPassword string `envconfig:"KIRAMA_DB_PASSWORD"`
	LegacyName     string `envconfig:"KIRAMA_DB_NAME"`
	LegacySSLMode  string `envconfig:"KIRAMA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIRAMA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIRAMA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIRAMA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIRAMA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KIRAMA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KIRAMA_REDIS_ADDR"`
	Password     string        `envconfig:"KIRAMA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIRAMA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIRAMA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIRAMA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIRAMA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIRAMA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIRAMA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"KIRAMA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"KIRAMA_JWT_ISSUER" required:"true"`
}

// DispatchConfig tunes the delivery engine. Rates are expressed in GNF per
// kilometre and parsed as decimal strings to avoid float drift.
type DispatchConfig struct {
	BaseRatePerKM      string        `envconfig:"KIRAMA_DISPATCH_BASE_RATE_PER_KM" default:"2000"`
	TokenTTL           time.Duration `envconfig:"KIRAMA_DISPATCH_TOKEN_TTL" default:"168h"`
	DirectedOfferTTL   time.Duration `envconfig:"KIRAMA_DISPATCH_DIRECTED_OFFER_TTL" default:"24h"`
	DefaultDistanceKM  float64       `envconfig:"KIRAMA_DISPATCH_DEFAULT_DISTANCE_KM" default:"10"`
	VendorBonusCap     string        `envconfig:"KIRAMA_DISPATCH_VENDOR_BONUS_CAP" default:"100000"`
	TokenCodeLength    int           `envconfig:"KIRAMA_DISPATCH_TOKEN_CODE_LENGTH" default:"20"`
	IdempotencyTTL     time.Duration `envconfig:"KIRAMA_DISPATCH_IDEMPOTENCY_TTL" default:"24h"`
	NotificationMaxAge time.Duration `envconfig:"KIRAMA_DISPATCH_NOTIFICATION_MAX_AGE" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KIRAMA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KIRAMA_AUTO_MIGRATE" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KIRAMA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KIRAMA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KIRAMA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	SweepInterval time.Duration `envconfig:"KIRAMA_CRON_SWEEP_INTERVAL" default:"1m"`
	LockTTL       time.Duration `envconfig:"KIRAMA_CRON_LOCK_TTL" default:"55s"`
}

type ScanRateLimitConfig struct {
	Window time.Duration `envconfig:"KIRAMA_SCAN_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"KIRAMA_SCAN_RATE_LIMIT_PER_WINDOW" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
