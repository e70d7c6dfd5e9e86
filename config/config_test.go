package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_PASSWORD", "secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	require.NoError(t, LoadConfig())
	assert.Equal(t, 60, AppConfig.SchedulerIntervalSeconds)
	assert.Equal(t, "days", AppConfig.SequenceDelayUnit)
	assert.Equal(t, 5, AppConfig.WorkerConcurrency)
	assert.Equal(t, 10, AppConfig.WorkerRatePerSecond)
}

func TestLoadConfig_RejectsBadSettings(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"zero worker rate", "WORKER_RATE_PER_SECOND", "0"},
		{"zero worker concurrency", "WORKER_CONCURRENCY", "0"},
		{"zero scheduler interval", "SCHEDULER_INTERVAL_SECONDS", "0"},
		{"unknown delay unit", "SEQUENCE_DELAY_UNIT", "weeks"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)
			assert.Error(t, LoadConfig())
		})
	}
}

func TestSequenceDelayDuration(t *testing.T) {
	assert.Equal(t, 24*time.Hour, Config{SequenceDelayUnit: "days"}.SequenceDelayDuration())
	assert.Equal(t, time.Hour, Config{SequenceDelayUnit: "hours"}.SequenceDelayDuration())
}
