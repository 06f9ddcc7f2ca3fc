package realtime

import (
	"context"
	"time"

	"github.com/quillcms/realtime/pkg/realtime/o11y"
)

// clientMetrics holds the pre-created instruments for a client. A nil
// *clientMetrics is valid and makes every method a no-op, so the client
// never branches on whether metrics are configured.
type clientMetrics struct {
	framesReceived     o11y.Counter
	framesDropped      o11y.Counter
	eventsDispatched   o11y.Counter
	pingsSent          o11y.Counter
	reconnectAttempts  o11y.Counter
	connectDuration    o11y.Histogram
	subscribedChannels o11y.Gauge
}

func newClientMetrics(provider o11y.MetricsProvider) *clientMetrics {
	if provider == nil {
		return nil
	}
	return &clientMetrics{
		framesReceived:     provider.Counter("realtime_frames_received_total"),
		framesDropped:      provider.Counter("realtime_frames_dropped_total"),
		eventsDispatched:   provider.Counter("realtime_events_dispatched_total"),
		pingsSent:          provider.Counter("realtime_pings_sent_total"),
		reconnectAttempts:  provider.Counter("realtime_reconnect_attempts_total"),
		connectDuration:    provider.Histogram("realtime_connect_duration_seconds"),
		subscribedChannels: provider.Gauge("realtime_subscribed_channels"),
	}
}

func (m *clientMetrics) frameReceived(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1)
}

func (m *clientMetrics) frameDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.framesDropped.Add(ctx, 1, o11y.Label{Key: "reason", Value: reason})
}

func (m *clientMetrics) eventDispatched(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsDispatched.Add(ctx, 1, o11y.Label{Key: "eventType", Value: eventType})
}

func (m *clientMetrics) pingSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.pingsSent.Add(ctx, 1)
}

func (m *clientMetrics) reconnectAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconnectAttempts.Add(ctx, 1)
}

func (m *clientMetrics) connected(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.connectDuration.Record(ctx, elapsed.Seconds())
}

func (m *clientMetrics) channelCount(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.subscribedChannels.Set(ctx, float64(count))
}
