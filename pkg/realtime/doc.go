// Package realtime provides the resilient WebSocket client that delivers
// server-pushed CMS events (content changes, comments, media updates) to
// the admin console.
//
// A single long-lived connection is multiplexed across many independent
// consumers: each registers listeners for the event types it cares about
// and subscribes to the channels it needs. The client keeps the desired
// channel set consistent across network interruptions by resubscribing
// the full set after every successful reconnect, and applies a capped
// backoff between reconnect attempts.
package realtime
