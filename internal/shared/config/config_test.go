package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
	// Empty variables are treated as unset, so defaults apply.
	t.Setenv("APP_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 5*time.Minute, cfg.Cleanup.Interval)
	assert.Equal(t, time.Hour, cfg.Cleanup.MaxAge)
	assert.True(t, cfg.Rules.RiskStakeThreshold.Equal(decimal.NewFromInt(5000)))
	assert.True(t, cfg.Rules.BonusRate.Equal(decimal.RequireFromString("0.1")))
}

func TestLoad_Validation(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "polling without token",
			env:  map[string]string{"BOT_MODE": "polling", "BOT_TOKEN": ""},
		},
		{
			name: "webhook without url",
			env:  map[string]string{"BOT_MODE": "webhook", "BOT_TOKEN": "abc", "BOT_WEBHOOK_URL": ""},
		},
		{
			name: "unknown bot mode",
			env:  map[string]string{"BOT_MODE": "carrier-pigeon"},
		},
		{
			name: "bad decimal rule",
			env:  map[string]string{"BONUS_RATE": "ten percent"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("BOT_MODE", "disabled")
			t.Setenv("BOT_WORKERS", "4")
			t.Setenv("CLEANUP_INTERVAL", "5m")
			t.Setenv("CLEANUP_MAX_AGE", "60m")
			t.Setenv("BONUS_RATE", "0.10")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}
