package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string        `env:"PENSION_ADDR,default=:8080"`
	AdminToken    string        `env:"ADMIN_API_TOKEN"`
	JWTSigningKey string        `env:"JWT_SIGNING_KEY,default=dev-secret-key-change-in-production"`
	JWTIssuer     string        `env:"JWT_ISSUER"`
	JWTAudience   string        `env:"JWT_AUDIENCE"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE,default=10s"`
	LogLevel      string        `env:"LOG_LEVEL,default=info"`
}

// DatabaseConfig selects the storage backend. Driver memory ignores the rest.
type DatabaseConfig struct {
	Driver          string        `env:"STORAGE_DRIVER,default=memory"`
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m"`
	TxTimeout       time.Duration `env:"DATABASE_TX_TIMEOUT,default=5s"`
	AutoMigrate     bool          `env:"DATABASE_AUTO_MIGRATE,default=true"`
}

// RedisConfig enables the Redis report sink and cross-instance job locks.
// An empty URL disables both.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE,default=10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS,default=2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT,default=5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT,default=3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT,default=3s"`
	StatementTTL time.Duration `env:"REPORT_STATEMENT_TTL,default=720h"`
}

// KafkaConfig enables streaming of transaction history. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string `env:"KAFKA_BROKERS"`
	HistoryTopic string   `env:"KAFKA_HISTORY_TOPIC,default=pension.transaction-history"`
	Partitions   int32    `env:"KAFKA_HISTORY_PARTITIONS,default=3"`
	Replication  int16    `env:"KAFKA_HISTORY_REPLICATION,default=1"`
	BufferSize   int      `env:"KAFKA_HISTORY_BUFFER,default=1024"`
}

// AccrualConfig holds the business constants of interest and eligibility.
type AccrualConfig struct {
	MonthlyInterestRate string `env:"INTEREST_MONTHLY_RATE,default=0.05"`
	BenefitThreshold    string `env:"BENEFIT_THRESHOLD,default=100000"`
	BenefitRate         string `env:"BENEFIT_RATE,default=0.1"`
}

// SchedulerConfig holds the cron expressions of the recurring jobs.
type SchedulerConfig struct {
	Enabled             bool          `env:"SCHEDULER_ENABLED,default=true"`
	ValidationReport    string        `env:"CRON_VALIDATION_REPORT,default=0 0 1 * *"`
	EligibilityRefresh  string        `env:"CRON_ELIGIBILITY_REFRESH,default=0 0 5 * *"`
	InterestAccrual     string        `env:"CRON_INTEREST_ACCRUAL,default=0 0 10 * *"`
	StatementGeneration string        `env:"CRON_STATEMENT_GENERATION,default=0 0 15 * *"`
	LockTTL             time.Duration `env:"SCHEDULER_LOCK_TTL,default=1h"`
	Timezone            string        `env:"SCHEDULER_TZ,default=UTC"`
}

// Config is the full process configuration.
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Accrual   AccrualConfig
	Scheduler SchedulerConfig
}

// Rates is AccrualConfig parsed into decimals.
type Rates struct {
	MonthlyInterest  decimal.Decimal
	BenefitThreshold decimal.Decimal
	BenefitRate      decimal.Decimal
}

// FromEnv loads an optional .env file then decodes the environment.
// Variables already set in the environment win over .env values.
func FromEnv(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// a missing .env is normal outside local development
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envdecode cannot express.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverPgx:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Database.Driver)
	}
	if _, err := c.Accrual.Parse(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid SCHEDULER_TZ: %w", err)
	}
	return nil
}

// Parse converts the configured rates into decimals.
func (a AccrualConfig) Parse() (Rates, error) {
	parse := func(name, v string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("%s must not be negative", name)
		}
		return d, nil
	}
	interest, err := parse("INTEREST_MONTHLY_RATE", a.MonthlyInterestRate)
	if err != nil {
		return Rates{}, err
	}
	threshold, err := parse("BENEFIT_THRESHOLD", a.BenefitThreshold)
	if err != nil {
		return Rates{}, err
	}
	rate, err := parse("BENEFIT_RATE", a.BenefitRate)
	if err != nil {
		return Rates{}, err
	}
	return Rates{MonthlyInterest: interest, BenefitThreshold: threshold, BenefitRate: rate}, nil
}

// KafkaEnabled reports whether history streaming is configured.
func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
