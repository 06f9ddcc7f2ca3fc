package realtime

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// heartbeat sends a ping frame at a fixed interval while a connection
// is live. If the server answers pings with pong frames, the heartbeat
// also watches for liveness: once a pong has been seen on a connection,
// a pong gap longer than the liveness timeout forces the connection
// closed so the normal reconnect path takes over. Servers that never
// pong keep the fire-and-forget behavior.
type heartbeat struct {
	interval time.Duration
	liveness time.Duration // 0 disables liveness checking
	logger   *zap.Logger

	ping   func()
	expire func()

	mu       sync.Mutex
	stopCh   chan struct{}
	lastPong time.Time
	pongSeen bool
}

func newHeartbeat(interval, liveness time.Duration, logger *zap.Logger, ping, expire func()) *heartbeat {
	return &heartbeat{
		interval: interval,
		liveness: liveness,
		logger:   logger,
		ping:     ping,
		expire:   expire,
	}
}

// start begins periodic pings. Any previous run is stopped first, so at
// most one heartbeat goroutine exists per client.
func (h *heartbeat) start() {
	h.mu.Lock()
	if h.stopCh != nil {
		close(h.stopCh)
	}
	stopCh := make(chan struct{})
	h.stopCh = stopCh
	h.lastPong = time.Time{}
	h.pongSeen = false
	h.mu.Unlock()

	go h.run(stopCh)
}

// stop cancels the heartbeat. It is idempotent and must be called on
// every disconnect path.
func (h *heartbeat) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopCh != nil {
		close(h.stopCh)
		h.stopCh = nil
	}
}

// pong records a pong frame from the server.
func (h *heartbeat) pong() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPong = time.Now()
	h.pongSeen = true
}

func (h *heartbeat) run(stopCh chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			h.ping()

			if h.liveness <= 0 {
				continue
			}
			h.mu.Lock()
			stale := h.pongSeen && time.Since(h.lastPong) > h.liveness
			last := h.lastPong
			h.mu.Unlock()

			if stale {
				h.logger.Warn("no pong within liveness window, closing connection",
					zap.Time("lastPong", last),
					zap.Duration("liveness", h.liveness),
				)
				h.expire()
				return
			}
		}
	}
}
