package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelRegistry(t *testing.T) {
	t.Run("add reports newly added", func(t *testing.T) {
		r := newChannelRegistry()

		assert.True(t, r.add("content:42"))
		assert.False(t, r.add("content:42"))
		assert.Equal(t, 1, r.len())
	})

	t.Run("remove reports presence", func(t *testing.T) {
		r := newChannelRegistry()
		r.add("content:42")

		assert.True(t, r.remove("content:42"))
		assert.False(t, r.remove("content:42"))
		assert.False(t, r.remove("never-added"))
		assert.Equal(t, 0, r.len())
	})

	t.Run("snapshot is sorted and detached", func(t *testing.T) {
		r := newChannelRegistry()
		r.add("media")
		r.add("comments:7")
		r.add("content:42")

		snap := r.snapshot()
		assert.Equal(t, []string{"comments:7", "content:42", "media"}, snap)

		// Mutating the snapshot must not touch the registry.
		snap[0] = "tampered"
		assert.Equal(t, []string{"comments:7", "content:42", "media"}, r.snapshot())
	})

	t.Run("clear empties the set", func(t *testing.T) {
		r := newChannelRegistry()
		r.add("a")
		r.add("b")

		r.clear()
		assert.Equal(t, 0, r.len())
		assert.Empty(t, r.snapshot())
	})
}
