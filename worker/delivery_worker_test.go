package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	base := time.Minute

	assert.Equal(t, time.Minute, BackoffDelay(base, 1))
	assert.Equal(t, 2*time.Minute, BackoffDelay(base, 2))
	assert.Equal(t, 4*time.Minute, BackoffDelay(base, 3))

	// Out-of-range attempts clamp to the first step.
	assert.Equal(t, time.Minute, BackoffDelay(base, 0))
	assert.Equal(t, time.Minute, BackoffDelay(base, -5))
}

func TestNewDeliveryWorkerDefaults(t *testing.T) {
	dw := NewDeliveryWorker(nil, nil, nil, nil, 0, 10, 30*time.Second)

	assert.Equal(t, 1, dw.Concurrency, "concurrency must be at least 1")
	assert.Equal(t, 3, dw.MaxAttempts)
	assert.Equal(t, time.Minute, dw.BaseBackoff)
	assert.Equal(t, 30*time.Second, dw.SendTimeout)
}
