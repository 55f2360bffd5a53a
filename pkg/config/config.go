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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	Policy       PolicyConfig
	Sendgrid     SendgridConfig
	FeatureFlags FeatureFlagsConfig
	Webhook      WebhookConfig
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
	Env          string `envconfig:"HEALTHSTACK_APP_ENV" required:"true"`
	Port         string `envconfig:"HEALTHSTACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HEALTHSTACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HEALTHSTACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"HEALTHSTACK_DB_DSN"`
	Driver string `envconfig:"HEALTHSTACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HEALTHSTACK_DB_HOST"`
	LegacyPort     int    `envconfig:"HEALTHSTACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HEALTHSTACK_DB_USER"`
	LegacyPassword string `envconfig:"HEALTHSTACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"HEALTHSTACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"HEALTHSTACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HEALTHSTACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HEALTHSTACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HEALTHSTACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HEALTHSTACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HEALTHSTACK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HEALTHSTACK_REDIS_ADDR"`
	Password     string        `envconfig:"HEALTHSTACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"HEALTHSTACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HEALTHSTACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HEALTHSTACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HEALTHSTACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HEALTHSTACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HEALTHSTACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HEALTHSTACK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HEALTHSTACK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HEALTHSTACK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// GatewayConfig holds the payment gateway credentials and endpoint.
type GatewayConfig struct {
	BaseURL       string        `envconfig:"HEALTHSTACK_GATEWAY_BASE_URL" required:"true"`
	KeyID         string        `envconfig:"HEALTHSTACK_GATEWAY_KEY_ID" required:"true"`
	KeySecret     string        `envconfig:"HEALTHSTACK_GATEWAY_KEY_SECRET" required:"true"`
	WebhookSecret string        `envconfig:"HEALTHSTACK_GATEWAY_WEBHOOK_SECRET" required:"true"`
	Timeout       time.Duration `envconfig:"HEALTHSTACK_GATEWAY_TIMEOUT" default:"10s"`
}

// PolicyConfig carries the injected business constants. Rates are percentages.
type PolicyConfig struct {
	PharmacyGSTPercent    int64 `envconfig:"HEALTHSTACK_POLICY_PHARMACY_GST_PERCENT" default:"5"`
	TestVATPercent        int64 `envconfig:"HEALTHSTACK_POLICY_TEST_VAT_PERCENT" default:"0"`
	AppointmentGSTPercent int64 `envconfig:"HEALTHSTACK_POLICY_APPOINTMENT_GST_PERCENT" default:"18"`
	DeliveryFeePaise      int64 `envconfig:"HEALTHSTACK_POLICY_DELIVERY_FEE_PAISE" default:"4000"`
	HomeCollectionPaise   int64 `envconfig:"HEALTHSTACK_POLICY_HOME_COLLECTION_FEE_PAISE" default:"9900"`
	ExpiryWarningDays     int   `envconfig:"HEALTHSTACK_POLICY_EXPIRY_WARNING_DAYS" default:"90"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"HEALTHSTACK_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"HEALTHSTACK_SENDGRID_FROM_EMAIL"`
	StaffInbox  string `envconfig:"HEALTHSTACK_SENDGRID_STAFF_INBOX"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HEALTHSTACK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HEALTHSTACK_AUTO_MIGRATE" default:"false"`
}

type WebhookConfig struct {
	EventGuardTTL time.Duration `envconfig:"HEALTHSTACK_WEBHOOK_EVENT_GUARD_TTL" default:"720h"`
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
