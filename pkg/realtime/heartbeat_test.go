package realtime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHeartbeatPings(t *testing.T) {
	var pings atomic.Int64
	h := newHeartbeat(10*time.Millisecond, 0, zap.NewNop(),
		func() { pings.Add(1) },
		func() { t.Error("expire should not fire with liveness disabled") },
	)

	h.start()
	defer h.stop()

	assert.Eventually(t, func() bool {
		return pings.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestHeartbeatStop(t *testing.T) {
	t.Run("stop halts pings", func(t *testing.T) {
		var pings atomic.Int64
		h := newHeartbeat(5*time.Millisecond, 0, zap.NewNop(),
			func() { pings.Add(1) },
			func() {},
		)

		h.start()
		assert.Eventually(t, func() bool {
			return pings.Load() >= 1
		}, time.Second, time.Millisecond)

		h.stop()
		settled := pings.Load()
		time.Sleep(30 * time.Millisecond)
		assert.LessOrEqual(t, pings.Load(), settled+1)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		h := newHeartbeat(time.Minute, 0, zap.NewNop(), func() {}, func() {})

		h.start()
		h.stop()
		assert.NotPanics(t, h.stop)
	})

	t.Run("stop before start is a no-op", func(t *testing.T) {
		h := newHeartbeat(time.Minute, 0, zap.NewNop(), func() {}, func() {})
		assert.NotPanics(t, h.stop)
	})
}

func TestHeartbeatLiveness(t *testing.T) {
	t.Run("expires when pongs stop arriving", func(t *testing.T) {
		var expired atomic.Bool
		h := newHeartbeat(5*time.Millisecond, 20*time.Millisecond, zap.NewNop(),
			func() {},
			func() { expired.Store(true) },
		)

		h.start()
		defer h.stop()

		// One pong arms the liveness check, then silence.
		h.pong()

		assert.Eventually(t, func() bool {
			return expired.Load()
		}, time.Second, time.Millisecond)
	})

	t.Run("steady pongs keep the connection alive", func(t *testing.T) {
		var expired atomic.Bool
		h := newHeartbeat(5*time.Millisecond, 50*time.Millisecond, zap.NewNop(),
			func() {},
			func() { expired.Store(true) },
		)

		h.start()
		defer h.stop()

		for i := 0; i < 10; i++ {
			h.pong()
			time.Sleep(10 * time.Millisecond)
		}
		assert.False(t, expired.Load())
	})

	t.Run("server that never pongs is tolerated", func(t *testing.T) {
		var expired atomic.Bool
		h := newHeartbeat(5*time.Millisecond, 10*time.Millisecond, zap.NewNop(),
			func() {},
			func() { expired.Store(true) },
		)

		h.start()
		defer h.stop()

		time.Sleep(50 * time.Millisecond)
		assert.False(t, expired.Load())
	})

	t.Run("restart resets pong state", func(t *testing.T) {
		var expired atomic.Bool
		h := newHeartbeat(5*time.Millisecond, 15*time.Millisecond, zap.NewNop(),
			func() {},
			func() { expired.Store(true) },
		)

		h.start()
		h.pong()
		h.stop()

		// A fresh connection must not inherit the stale pong timestamp.
		h.start()
		defer h.stop()
		time.Sleep(40 * time.Millisecond)
		assert.False(t, expired.Load())
	})
}
