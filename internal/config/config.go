package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/calculator"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
	Matching  MatchingConfig
	Policy    PolicyConfig
	Health    HealthConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// LockTimeout bounds how long a commit waits for a row lock.
	LockTimeout time.Duration
}

// RedisConfig is ignored when REDIS_ENABLED is false; Addr is then empty.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	CandidateTTL time.Duration
}

type SchedulerConfig struct {
	AutoClassifySpec string
	OverdueSweepSpec string
	Timezone         string
	BatchSize        int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// MatchingConfig tunes candidate scoring and the auto-match decision.
type MatchingConfig struct {
	AutoMatchThreshold   int
	AmbiguityBand        int
	AbsoluteTolerance    string
	OrderRelativePercent string
	OrderMinTolerance    string
	OverpaymentTolerance string
}

// PolicyConfig carries the shop's installment, pawn and deposit terms.
type PolicyConfig struct {
	InstallmentPeriods    int
	InstallmentFeeRate    string
	InstallmentOffsetDays string
	PawnPeriodDays        int
	PawnMinLoanPercent    string
	PawnMaxLoanPercent    string
	PawnDefaultRate       string
}

type HealthConfig struct {
	Timeout string
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	config := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Env:          v.GetString("ENV"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
			LockTimeout:     v.GetDuration("DATABASE_LOCK_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:         v.GetString("REDIS_ADDR"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			CandidateTTL: v.GetDuration("REDIS_CANDIDATE_TTL"),
		},
		Scheduler: SchedulerConfig{
			AutoClassifySpec: v.GetString("SCHEDULER_AUTO_CLASSIFY_SPEC"),
			OverdueSweepSpec: v.GetString("SCHEDULER_OVERDUE_SWEEP_SPEC"),
			Timezone:         v.GetString("SCHEDULER_TIMEZONE"),
			BatchSize:        v.GetInt("SCHEDULER_BATCH_SIZE"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Matching: MatchingConfig{
			AutoMatchThreshold:   v.GetInt("MATCH_AUTO_THRESHOLD"),
			AmbiguityBand:        v.GetInt("MATCH_AMBIGUITY_BAND"),
			AbsoluteTolerance:    v.GetString("MATCH_ABSOLUTE_TOLERANCE"),
			OrderRelativePercent: v.GetString("MATCH_ORDER_RELATIVE_PERCENT"),
			OrderMinTolerance:    v.GetString("MATCH_ORDER_MIN_TOLERANCE"),
			OverpaymentTolerance: v.GetString("MATCH_OVERPAYMENT_TOLERANCE"),
		},
		Policy: PolicyConfig{
			InstallmentPeriods:    v.GetInt("INSTALLMENT_PERIODS"),
			InstallmentFeeRate:    v.GetString("INSTALLMENT_FEE_RATE"),
			InstallmentOffsetDays: v.GetString("INSTALLMENT_OFFSET_DAYS"),
			PawnPeriodDays:        v.GetInt("PAWN_PERIOD_DAYS"),
			PawnMinLoanPercent:    v.GetString("PAWN_MIN_LOAN_PERCENT"),
			PawnMaxLoanPercent:    v.GetString("PAWN_MAX_LOAN_PERCENT"),
			PawnDefaultRate:       v.GetString("PAWN_DEFAULT_INTEREST_RATE"),
		},
		Health: HealthConfig{
			Timeout: v.GetString("HEALTH_CHECK_TIMEOUT"),
		},
	}

	if !v.GetBool("REDIS_ENABLED") {
		config.Redis.Addr = ""
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 20)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DATABASE_LOCK_TIMEOUT", "5s")
	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CANDIDATE_TTL", "24h")
	v.SetDefault("SCHEDULER_AUTO_CLASSIFY_SPEC", "0 */5 * * * *")
	v.SetDefault("SCHEDULER_OVERDUE_SWEEP_SPEC", "0 5 0 * * *")
	v.SetDefault("SCHEDULER_TIMEZONE", "Asia/Bangkok")
	v.SetDefault("SCHEDULER_BATCH_SIZE", 200)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MATCH_AUTO_THRESHOLD", 95)
	v.SetDefault("MATCH_AMBIGUITY_BAND", 5)
	v.SetDefault("MATCH_ABSOLUTE_TOLERANCE", "100")
	v.SetDefault("MATCH_ORDER_RELATIVE_PERCENT", "5")
	v.SetDefault("MATCH_ORDER_MIN_TOLERANCE", "100")
	v.SetDefault("MATCH_OVERPAYMENT_TOLERANCE", "100")
	v.SetDefault("INSTALLMENT_PERIODS", 3)
	v.SetDefault("INSTALLMENT_FEE_RATE", "0.03")
	v.SetDefault("INSTALLMENT_OFFSET_DAYS", "0,30,60")
	v.SetDefault("PAWN_PERIOD_DAYS", 30)
	v.SetDefault("PAWN_MIN_LOAN_PERCENT", "65")
	v.SetDefault("PAWN_MAX_LOAN_PERCENT", "70")
	v.SetDefault("PAWN_DEFAULT_INTEREST_RATE", "2")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Matching.AutoMatchThreshold <= 0 || c.Matching.AutoMatchThreshold > 100 {
		return fmt.Errorf("MATCH_AUTO_THRESHOLD must be within 1-100")
	}

	if c.Matching.AmbiguityBand < 0 {
		return fmt.Errorf("MATCH_AMBIGUITY_BAND must not be negative")
	}

	if c.Policy.InstallmentPeriods <= 0 {
		return fmt.Errorf("INSTALLMENT_PERIODS must be greater than 0")
	}

	if c.Policy.PawnPeriodDays <= 0 {
		return fmt.Errorf("PAWN_PERIOD_DAYS must be greater than 0")
	}

	decimals := map[string]string{
		"MATCH_ABSOLUTE_TOLERANCE":     c.Matching.AbsoluteTolerance,
		"MATCH_ORDER_RELATIVE_PERCENT": c.Matching.OrderRelativePercent,
		"MATCH_ORDER_MIN_TOLERANCE":    c.Matching.OrderMinTolerance,
		"MATCH_OVERPAYMENT_TOLERANCE":  c.Matching.OverpaymentTolerance,
		"INSTALLMENT_FEE_RATE":         c.Policy.InstallmentFeeRate,
		"PAWN_MIN_LOAN_PERCENT":        c.Policy.PawnMinLoanPercent,
		"PAWN_MAX_LOAN_PERCENT":        c.Policy.PawnMaxLoanPercent,
		"PAWN_DEFAULT_INTEREST_RATE":   c.Policy.PawnDefaultRate,
	}
	for key, value := range decimals {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%s must be a valid decimal: %w", key, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	if _, err := parseOffsets(c.Policy.InstallmentOffsetDays); err != nil {
		return fmt.Errorf("INSTALLMENT_OFFSET_DAYS: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// InstallmentPolicy builds the calculator policy from configuration.
func (c *Config) InstallmentPolicy() calculator.InstallmentPolicy {
	offsets, _ := parseOffsets(c.Policy.InstallmentOffsetDays)
	return calculator.InstallmentPolicy{
		Periods:        c.Policy.InstallmentPeriods,
		ServiceFeeRate: decimal.RequireFromString(c.Policy.InstallmentFeeRate),
		OffsetDays:     offsets,
	}
}

// PawnPolicy builds the calculator policy from configuration.
func (c *Config) PawnPolicy() calculator.PawnPolicy {
	return calculator.PawnPolicy{
		PeriodDays:          c.Policy.PawnPeriodDays,
		DefaultLoanPercent:  decimal.RequireFromString(c.Policy.PawnMinLoanPercent),
		MinLoanPercent:      decimal.RequireFromString(c.Policy.PawnMinLoanPercent),
		MaxLoanPercent:      decimal.RequireFromString(c.Policy.PawnMaxLoanPercent),
		DefaultInterestRate: decimal.RequireFromString(c.Policy.PawnDefaultRate),
	}
}

// Location returns the business timezone used to derive as-of dates.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}

func parseOffsets(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	offsets := make([]int, 0, len(parts))
	prev := -1
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q", p)
		}
		if n <= prev {
			return nil, fmt.Errorf("offsets must be strictly increasing")
		}
		prev = n
		offsets = append(offsets, n)
	}
	return offsets, nil
}
