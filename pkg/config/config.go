package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BASKETCASE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv = "BASKETCASE_APP_ENV"
	EnvDBDSN  = "BASKETCASE_DB_DSN"
	EnvDBHost = "BASKETCASE_DB_HOST"
	EnvDBUser = "BASKETCASE_DB_USER"
	EnvDBName = "BASKETCASE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Kroger       KrogerConfig
	Refresh      RefreshConfig
	Basket       BasketConfig
	API          APIConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Refresh.Slot(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BASKETCASE_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"BASKETCASE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BASKETCASE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BASKETCASE_SERVICE_KIND" default:"cli"`
}

type DBConfig struct {
	DSN    string `envconfig:"BASKETCASE_DB_DSN"`
	Driver string `envconfig:"BASKETCASE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BASKETCASE_DB_HOST"`
	LegacyPort     int    `envconfig:"BASKETCASE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BASKETCASE_DB_USER"`
	LegacyPassword string `envconfig:"BASKETCASE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BASKETCASE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BASKETCASE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BASKETCASE_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"BASKETCASE_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"BASKETCASE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BASKETCASE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

// RedisConfig is optional; an empty URL and address disables the shared job lock.
type RedisConfig struct {
	URL          string        `envconfig:"BASKETCASE_REDIS_URL"`
	Address      string        `envconfig:"BASKETCASE_REDIS_ADDR"`
	Password     string        `envconfig:"BASKETCASE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BASKETCASE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BASKETCASE_REDIS_POOL_SIZE" default:"5"`
	MinIdleConns int           `envconfig:"BASKETCASE_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"BASKETCASE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BASKETCASE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BASKETCASE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type KrogerConfig struct {
	BaseURL        string        `envconfig:"BASKETCASE_KROGER_BASE_URL" default:"https://api.kroger.com/v1"`
	ClientID       string        `envconfig:"BASKETCASE_KROGER_CLIENT_ID"`
	ClientSecret   string        `envconfig:"BASKETCASE_KROGER_CLIENT_SECRET"`
	Scope          string        `envconfig:"BASKETCASE_KROGER_SCOPE" default:"product.compact"`
	RequestTimeout time.Duration `envconfig:"BASKETCASE_KROGER_REQUEST_TIMEOUT" default:"10s"`
	TokenMargin    time.Duration `envconfig:"BASKETCASE_KROGER_TOKEN_MARGIN" default:"60s"`
}

type RefreshConfig struct {
	Weekday      string        `envconfig:"BASKETCASE_REFRESH_WEEKDAY" default:"monday"`
	TimeOfDay    string        `envconfig:"BASKETCASE_REFRESH_TIME" default:"00:00"`
	PollInterval time.Duration `envconfig:"BASKETCASE_REFRESH_POLL_INTERVAL" default:"1m"`
	BatchSize    int           `envconfig:"BASKETCASE_REFRESH_BATCH_SIZE" default:"50"`
	LockTTL      time.Duration `envconfig:"BASKETCASE_REFRESH_LOCK_TTL" default:"6h"`
}

// WeeklySlot is the point in the week at which the refresh job becomes due.
type WeeklySlot struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// Slot parses the configured weekday and HH:MM into a WeeklySlot.
func (r RefreshConfig) Slot() (WeeklySlot, error) {
	day := strings.ToLower(strings.TrimSpace(r.Weekday))
	if day == "" {
		day = "monday"
	}
	var slot WeeklySlot
	found := false
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == day {
			slot.Weekday = d
			found = true
			break
		}
	}
	if !found {
		return WeeklySlot{}, fmt.Errorf("invalid refresh weekday %q", r.Weekday)
	}

	clock := strings.TrimSpace(r.TimeOfDay)
	if clock == "" {
		clock = "00:00"
	}
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return WeeklySlot{}, fmt.Errorf("invalid refresh time %q: %w", r.TimeOfDay, err)
	}
	slot.Hour = parsed.Hour()
	slot.Minute = parsed.Minute()
	return slot, nil
}

type BasketConfig struct {
	MaxItems int `envconfig:"BASKETCASE_BASKET_MAX_ITEMS" default:"50"`
}

type APIConfig struct {
	Port           string        `envconfig:"BASKETCASE_API_PORT" default:"8080"`
	MetricsPort    string        `envconfig:"BASKETCASE_METRICS_PORT" default:"9090"`
	JWTSecret      string        `envconfig:"BASKETCASE_ADMIN_JWT_SECRET"`
	JWTIssuer      string        `envconfig:"BASKETCASE_ADMIN_JWT_ISSUER" default:"basketcase"`
	JWTTTLMinutes  int           `envconfig:"BASKETCASE_ADMIN_JWT_TTL_MINUTES" default:"60"`
	RequestTimeout time.Duration `envconfig:"BASKETCASE_API_REQUEST_TIMEOUT" default:"30s"`
	RateLimit      int           `envconfig:"BASKETCASE_API_RATE_LIMIT_PER_MINUTE" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BASKETCASE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:basketcase.db?_foreign_keys=on"
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
