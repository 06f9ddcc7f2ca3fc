package realtime

import (
	"sort"
	"sync"
)

// channelRegistry tracks the desired set of subscribed channels. The
// desired set survives disconnects; after every successful (re)connect
// the client replays a subscribe frame for the full set, which requires
// the server to treat duplicate subscribe requests as idempotent.
type channelRegistry struct {
	mu       sync.Mutex
	channels map[string]struct{}
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{channels: make(map[string]struct{})}
}

// add inserts a channel into the desired set and reports whether it was
// newly added.
func (r *channelRegistry) add(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[channel]; ok {
		return false
	}
	r.channels[channel] = struct{}{}
	return true
}

// remove deletes a channel from the desired set and reports whether it
// was present.
func (r *channelRegistry) remove(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[channel]; !ok {
		return false
	}
	delete(r.channels, channel)
	return true
}

// snapshot returns the desired set sorted, so resubscription order is
// deterministic.
func (r *channelRegistry) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.channels))
	for ch := range r.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

func (r *channelRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

func (r *channelRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = make(map[string]struct{})
}
