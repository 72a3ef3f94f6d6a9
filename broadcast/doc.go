// Package broadcast fans out published events to connected clients.
//
// Each process keeps a local, bounded registry of live client handles.
// Publishing goes through a shared Redis pub/sub channel, so every process
// subscribed to that channel relays the event to its own local clients —
// that is the only cross-process consistency mechanism. The relay loop is
// started with [Broadcaster.Run] and must be supervised by the host
// process; it exits when its context is cancelled.
//
// Delivery is best-effort and non-blocking: a client whose send queue is
// full or that is shutting down is pruned as a side effect of relay, and a
// failure to deliver to one client never aborts delivery to the others.
package broadcast
