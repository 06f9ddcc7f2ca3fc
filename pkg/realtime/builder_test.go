package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClientDefaults(t *testing.T) {
	builder := NewClient()

	assert.NotNil(t, builder.logger)
	assert.Equal(t, 30*time.Second, builder.dialTimeout)
	assert.Equal(t, 5*time.Second, builder.writeTimeout)
	assert.Equal(t, 30*time.Second, builder.heartbeatInterval)
	assert.Equal(t, 75*time.Second, builder.livenessTimeout)
	assert.Equal(t, DefaultReconnectPolicy(), builder.policy)
}

func TestClientBuilderFluent(t *testing.T) {
	builder := NewClient()

	result := builder.
		WithURL("wss://example.com/realtime").
		WithToken("secret").
		WithLogger(zap.NewNop()).
		WithDialTimeout(time.Second).
		WithWriteTimeout(time.Second).
		WithHeartbeatInterval(10 * time.Second).
		WithLivenessTimeout(25 * time.Second).
		WithReconnectPolicy(ReconnectPolicy{BaseDelay: time.Second, CapMultiplier: 2, MaxAttempts: 3})

	// All With* methods return the same builder.
	assert.Same(t, builder, result)
}

func TestClientBuilderValidation(t *testing.T) {
	t.Run("endpoint is required", func(t *testing.T) {
		_, err := NewClient().Build()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "endpoint")
	})

	t.Run("empty URL does not satisfy the endpoint", func(t *testing.T) {
		_, err := NewClient().WithURL("").Build()
		assert.Error(t, err)
	})

	t.Run("URL alone is enough", func(t *testing.T) {
		client, err := NewClient().WithURL("wss://example.com/realtime").Build()
		require.NoError(t, err)
		require.NotNil(t, client)
		defer client.Disconnect()

		assert.Equal(t, StateDisconnected, client.State())
		assert.False(t, client.IsConnected())
	})

	t.Run("endpoint provider alone is enough", func(t *testing.T) {
		client, err := NewClient().
			WithEndpointProvider(func(ctx context.Context) (string, error) {
				return "wss://example.com/realtime", nil
			}).
			Build()
		require.NoError(t, err)
		defer client.Disconnect()
	})
}

func TestClientBuilderIgnoresInvalidOptions(t *testing.T) {
	builder := NewClient().
		WithURL("wss://example.com/realtime").
		WithLogger(nil).
		WithDialTimeout(0).
		WithWriteTimeout(-time.Second).
		WithHeartbeatInterval(-1).
		WithLivenessTimeout(-time.Second).
		WithReconnectPolicy(ReconnectPolicy{})

	assert.NotNil(t, builder.logger)
	assert.Equal(t, 30*time.Second, builder.dialTimeout)
	assert.Equal(t, 5*time.Second, builder.writeTimeout)
	assert.Equal(t, 30*time.Second, builder.heartbeatInterval)
	assert.Equal(t, 75*time.Second, builder.livenessTimeout)
	assert.Equal(t, DefaultReconnectPolicy(), builder.policy)
}

func TestClientBuilderLivenessDisable(t *testing.T) {
	builder := NewClient().WithLivenessTimeout(0)
	assert.Equal(t, time.Duration(0), builder.livenessTimeout)
}

func TestClientBuilderTokenProviders(t *testing.T) {
	t.Run("static token", func(t *testing.T) {
		builder := NewClient().WithToken("abc123")
		require.NotNil(t, builder.tokenProvider)

		token, err := builder.tokenProvider(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "abc123", token)
	})

	t.Run("dynamic token provider overrides static", func(t *testing.T) {
		builder := NewClient().
			WithToken("stale").
			WithTokenProvider(func(ctx context.Context) (string, error) {
				return "fresh", nil
			})

		token, err := builder.tokenProvider(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fresh", token)
	})

	t.Run("provider errors propagate", func(t *testing.T) {
		wantErr := errors.New("session expired")
		builder := NewClient().
			WithTokenProvider(func(ctx context.Context) (string, error) {
				return "", wantErr
			})

		_, err := builder.tokenProvider(context.Background())
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("nil provider is ignored", func(t *testing.T) {
		builder := NewClient().WithToken("kept").WithTokenProvider(nil)

		token, err := builder.tokenProvider(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "kept", token)
	})
}
