package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultReconnectPolicy(t *testing.T) {
	policy := DefaultReconnectPolicy()

	assert.Equal(t, 3*time.Second, policy.BaseDelay)
	assert.Equal(t, 5, policy.CapMultiplier)
	assert.Equal(t, 10, policy.MaxAttempts)
	assert.True(t, policy.isValid())
}

func TestReconnectPolicyDelay(t *testing.T) {
	t.Run("delay grows linearly then plateaus", func(t *testing.T) {
		policy := DefaultReconnectPolicy()

		expected := []time.Duration{
			3 * time.Second,
			6 * time.Second,
			9 * time.Second,
			12 * time.Second,
			15 * time.Second,
			15 * time.Second,
			15 * time.Second,
			15 * time.Second,
			15 * time.Second,
			15 * time.Second,
		}
		for i, want := range expected {
			assert.Equal(t, want, policy.Delay(i+1), "attempt %d", i+1)
		}
	})

	t.Run("attempt below one clamps to base delay", func(t *testing.T) {
		policy := DefaultReconnectPolicy()

		assert.Equal(t, 3*time.Second, policy.Delay(0))
		assert.Equal(t, 3*time.Second, policy.Delay(-5))
	})

	t.Run("custom schedule", func(t *testing.T) {
		policy := ReconnectPolicy{
			BaseDelay:     10 * time.Millisecond,
			CapMultiplier: 3,
			MaxAttempts:   4,
		}

		assert.True(t, policy.isValid())
		assert.Equal(t, 10*time.Millisecond, policy.Delay(1))
		assert.Equal(t, 20*time.Millisecond, policy.Delay(2))
		assert.Equal(t, 30*time.Millisecond, policy.Delay(3))
		assert.Equal(t, 30*time.Millisecond, policy.Delay(4))
	})
}

func TestReconnectPolicyValidation(t *testing.T) {
	tests := []struct {
		name   string
		policy ReconnectPolicy
	}{
		{"zero base delay", ReconnectPolicy{BaseDelay: 0, CapMultiplier: 5, MaxAttempts: 10}},
		{"negative base delay", ReconnectPolicy{BaseDelay: -time.Second, CapMultiplier: 5, MaxAttempts: 10}},
		{"zero cap multiplier", ReconnectPolicy{BaseDelay: time.Second, CapMultiplier: 0, MaxAttempts: 10}},
		{"zero max attempts", ReconnectPolicy{BaseDelay: time.Second, CapMultiplier: 5, MaxAttempts: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.policy.isValid())
		})
	}
}
