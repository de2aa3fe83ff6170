package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/recon?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.CandidateTTL)
	assert.Equal(t, 95, cfg.Matching.AutoMatchThreshold)
	assert.Equal(t, 5, cfg.Matching.AmbiguityBand)
	assert.Equal(t, 200, cfg.Scheduler.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.GetHealthTimeout())
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	installments := cfg.InstallmentPolicy()
	assert.Equal(t, 3, installments.Periods)
	assert.Equal(t, []int{0, 30, 60}, installments.OffsetDays)
	assert.True(t, installments.ServiceFeeRate.Equal(decimal.RequireFromString("0.03")))

	pawns := cfg.PawnPolicy()
	assert.Equal(t, 30, pawns.PeriodDays)
	assert.True(t, pawns.DefaultInterestRate.Equal(decimal.NewFromInt(2)))
	assert.True(t, pawns.MinLoanPercent.Equal(decimal.NewFromInt(65)))
	assert.True(t, pawns.MaxLoanPercent.Equal(decimal.NewFromInt(70)))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/recon")
	t.Setenv("ENV", "production")
	t.Setenv("MATCH_AUTO_THRESHOLD", "90")
	t.Setenv("DATABASE_LOCK_TIMEOUT", "750ms")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 90, cfg.Matching.AutoMatchThreshold)
	assert.Equal(t, 750*time.Millisecond, cfg.Database.LockTimeout)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: "8080"},
		Database:  DatabaseConfig{URL: "postgres://localhost/recon"},
		Scheduler: SchedulerConfig{Timezone: "Asia/Bangkok"},
		Matching: MatchingConfig{
			AutoMatchThreshold:   95,
			AmbiguityBand:        5,
			AbsoluteTolerance:    "100",
			OrderRelativePercent: "5",
			OrderMinTolerance:    "100",
			OverpaymentTolerance: "100",
		},
		Policy: PolicyConfig{
			InstallmentPeriods:    3,
			InstallmentFeeRate:    "0.03",
			InstallmentOffsetDays: "0,30,60",
			PawnPeriodDays:        30,
			PawnMinLoanPercent:    "65",
			PawnMaxLoanPercent:    "70",
			PawnDefaultRate:       "2",
		},
		Health: HealthConfig{Timeout: "5s"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "SERVER_PORT"},
		{"threshold above 100", func(c *Config) { c.Matching.AutoMatchThreshold = 101 }, "MATCH_AUTO_THRESHOLD"},
		{"negative band", func(c *Config) { c.Matching.AmbiguityBand = -1 }, "MATCH_AMBIGUITY_BAND"},
		{"no periods", func(c *Config) { c.Policy.InstallmentPeriods = 0 }, "INSTALLMENT_PERIODS"},
		{"no pawn period", func(c *Config) { c.Policy.PawnPeriodDays = 0 }, "PAWN_PERIOD_DAYS"},
		{"bad decimal", func(c *Config) { c.Matching.AbsoluteTolerance = "ten" }, "MATCH_ABSOLUTE_TOLERANCE"},
		{"negative decimal", func(c *Config) { c.Policy.PawnDefaultRate = "-2" }, "PAWN_DEFAULT_INTEREST_RATE"},
		{"offsets not increasing", func(c *Config) { c.Policy.InstallmentOffsetDays = "0,30,30" }, "INSTALLMENT_OFFSET_DAYS"},
		{"unknown zone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, "SCHEDULER_TIMEZONE"},
		{"bad health timeout", func(c *Config) { c.Health.Timeout = "soon" }, "HEALTH_CHECK_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseOffsets(t *testing.T) {
	got, err := parseOffsets(" 0, 15 ,45")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 15, 45}, got)

	_, err = parseOffsets("0,x")
	assert.Error(t, err)

	_, err = parseOffsets("30,0")
	assert.Error(t, err)
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	c := validConfig()
	c.Scheduler.Timezone = "Nowhere/Invalid"
	assert.Equal(t, time.UTC, c.Location())
}
