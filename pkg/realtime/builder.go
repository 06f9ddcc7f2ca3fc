package realtime

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quillcms/realtime/pkg/realtime/o11y"
)

// TokenProvider returns the bearer token appended to the endpoint as a
// token query parameter. It is called before every dial, so short-lived
// session tokens stay fresh across reconnects.
type TokenProvider func(ctx context.Context) (string, error)

// EndpointProvider returns the WebSocket endpoint to dial, e.g.
// "wss://admin.example.com/realtime". It abstracts the page-location
// source in the admin console so tests and the CLI can inject their own.
type EndpointProvider func(ctx context.Context) (string, error)

// ClientBuilder provides a fluent interface for building realtime
// clients.
type ClientBuilder struct {
	endpoint          EndpointProvider
	tokenProvider     TokenProvider
	logger            *zap.Logger
	dialTimeout       time.Duration
	writeTimeout      time.Duration
	heartbeatInterval time.Duration
	livenessTimeout   time.Duration
	policy            ReconnectPolicy
	metricsProvider   o11y.MetricsProvider
	tracingProvider   o11y.TracingProvider
}

// NewClient creates a new client builder with production defaults:
// 30s heartbeat interval, 75s pong liveness window, and the default
// reconnect schedule (3s base delay, 15s cap, 10 attempts).
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		logger:            zap.NewNop(),
		dialTimeout:       30 * time.Second,
		writeTimeout:      5 * time.Second,
		heartbeatInterval: 30 * time.Second,
		livenessTimeout:   75 * time.Second,
		policy:            DefaultReconnectPolicy(),
	}
}

// WithURL sets a static WebSocket endpoint to connect to.
func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	if url != "" {
		b.endpoint = func(ctx context.Context) (string, error) {
			return url, nil
		}
	}
	return b
}

// WithEndpointProvider sets a dynamic endpoint source. It overrides any
// previously set static URL.
func (b *ClientBuilder) WithEndpointProvider(provider EndpointProvider) *ClientBuilder {
	if provider != nil {
		b.endpoint = provider
	}
	return b
}

// WithToken sets a static bearer token.
func (b *ClientBuilder) WithToken(token string) *ClientBuilder {
	b.tokenProvider = func(ctx context.Context) (string, error) {
		return token, nil
	}
	return b
}

// WithTokenProvider sets a token source called before every dial.
func (b *ClientBuilder) WithTokenProvider(provider TokenProvider) *ClientBuilder {
	if provider != nil {
		b.tokenProvider = provider
	}
	return b
}

// WithLogger sets the logger for the client. A nil logger is ignored.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for establishing the WebSocket
// connection. Non-positive values are ignored.
func (b *ClientBuilder) WithDialTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithWriteTimeout sets the deadline applied to each outbound frame.
// Non-positive values are ignored.
func (b *ClientBuilder) WithWriteTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.writeTimeout = timeout
	}
	return b
}

// WithHeartbeatInterval sets the interval between keep-alive pings.
// Non-positive values are ignored.
func (b *ClientBuilder) WithHeartbeatInterval(interval time.Duration) *ClientBuilder {
	if interval > 0 {
		b.heartbeatInterval = interval
	}
	return b
}

// WithLivenessTimeout sets how long the client tolerates a pong gap
// before it force-closes the connection and reconnects. Zero disables
// liveness checking; negative values are ignored.
func (b *ClientBuilder) WithLivenessTimeout(timeout time.Duration) *ClientBuilder {
	if timeout >= 0 {
		b.livenessTimeout = timeout
	}
	return b
}

// WithReconnectPolicy sets the backoff schedule. Invalid policies are
// ignored.
func (b *ClientBuilder) WithReconnectPolicy(policy ReconnectPolicy) *ClientBuilder {
	if policy.isValid() {
		b.policy = policy
	}
	return b
}

// WithMetrics sets an optional metrics provider.
func (b *ClientBuilder) WithMetrics(provider o11y.MetricsProvider) *ClientBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracing sets an optional tracing provider.
func (b *ClientBuilder) WithTracing(provider o11y.TracingProvider) *ClientBuilder {
	b.tracingProvider = provider
	return b
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.endpoint == nil {
		return fmt.Errorf("endpoint URL is required")
	}
	return nil
}

// Build creates a client with the configured options. The client is
// constructed once per session and shared by reference among consumers.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		endpoint:      b.endpoint,
		tokenProvider: b.tokenProvider,
		logger:        b.logger,
		dialTimeout:   b.dialTimeout,
		writeTimeout:  b.writeTimeout,
		policy:        b.policy,
		metrics:       newClientMetrics(b.metricsProvider),
		tracing:       b.tracingProvider,
		dispatcher:    NewDispatcher(b.logger),
		registry:      newChannelRegistry(),
		ctx:           ctx,
		cancel:        cancel,
	}
	c.heartbeat = newHeartbeat(b.heartbeatInterval, b.livenessTimeout, b.logger, c.sendPing, c.expireConn)

	return c, nil
}
