package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/limits"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	// Without KAFKA_BROKERS audit records go to the process log.
	RedisAddr       string   `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"betting.audit"`

	// Withdrawals strictly above this amount are written as pending entries.
	// Zero disables the approval step.
	WithdrawalApprovalThreshold decimal.Decimal `env:"WITHDRAWAL_APPROVAL_THRESHOLD" envDefault:"10000"`
	IdempotencyTTLHours         int             `env:"IDEMPOTENCY_TTL_HOURS" envDefault:"24"`

	DefaultMinStake            decimal.Decimal `env:"DEFAULT_MIN_STAKE" envDefault:"1"`
	DefaultMaxStake            decimal.Decimal `env:"DEFAULT_MAX_STAKE" envDefault:"10000"`
	DefaultMaxWinning          decimal.Decimal `env:"DEFAULT_MAX_WINNING" envDefault:"50000"`
	DefaultMaxSelections       int             `env:"DEFAULT_MAX_SELECTIONS" envDefault:"20"`
	DefaultMinOdds             decimal.Decimal `env:"DEFAULT_MIN_ODDS" envDefault:"1.01"`
	DefaultMaxOdds             decimal.Decimal `env:"DEFAULT_MAX_ODDS" envDefault:"1000"`
	DefaultMaxOddsPerSelection decimal.Decimal `env:"DEFAULT_MAX_ODDS_PER_SELECTION" envDefault:"100"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBPingAttempts     int `env:"DB_PING_ATTEMPTS" envDefault:"10"`
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLHours) * time.Hour
}

// Load reads the environment. A .env file in the working directory is applied
// first when present; variables already set win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// DefaultLimits are the bet limits for tenants without an override.
func (c *Config) DefaultLimits() limits.TenantLimits {
	return limits.TenantLimits{
		MinStake:             c.DefaultMinStake,
		MaxStake:             c.DefaultMaxStake,
		MaxWinning:           c.DefaultMaxWinning,
		MaxSelectionsPerSlip: c.DefaultMaxSelections,
		MinOdds:              c.DefaultMinOdds,
		MaxOdds:              c.DefaultMaxOdds,
		MaxOddsPerSelection:  c.DefaultMaxOddsPerSelection,
	}
}
