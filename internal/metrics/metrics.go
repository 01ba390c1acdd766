// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of a chat session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a chat session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	messagesIn        atomic.Int64
	messagesOut       atomic.Int64
	livenessTimeouts  atomic.Int64
	reconnects        atomic.Int64
	delayedReconnects atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastLiveness time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open sockets.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime socket count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── Message metrics ──────────────────────────────────────────────────

// MessageReceived records one line read from the reading socket.
func (c *Collector) MessageReceived() {
	if c == nil {
		return
	}
	c.messagesIn.Add(1)
}

// MessageSent records one message written to the writing socket.
func (c *Collector) MessageSent() {
	if c == nil {
		return
	}
	c.messagesOut.Add(1)
}

// MessagesReceived returns the number of lines received.
func (c *Collector) MessagesReceived() int64 {
	if c == nil {
		return 0
	}
	return c.messagesIn.Load()
}

// MessagesSent returns the number of messages sent.
func (c *Collector) MessagesSent() int64 {
	if c == nil {
		return 0
	}
	return c.messagesOut.Load()
}

// ── Liveness ─────────────────────────────────────────────────────────

// RecordLiveness updates the last evidence-of-life timestamp.
func (c *Collector) RecordLiveness() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastLiveness = time.Now()
	c.mu.Unlock()
}

// LivenessTimeout records a read or ping that got no answer in time.
func (c *Collector) LivenessTimeout() {
	if c == nil {
		return
	}
	c.livenessTimeouts.Add(1)
}

// LivenessTimeouts returns the number of timeouts seen.
func (c *Collector) LivenessTimeouts() int64 {
	if c == nil {
		return 0
	}
	return c.livenessTimeouts.Load()
}

// ── Reconnects ───────────────────────────────────────────────────────

// Reconnect records a supervisor restart; delayed is true when the
// restart waited out the big reconnect timeout first.
func (c *Collector) Reconnect(delayed bool) {
	if c == nil {
		return
	}
	c.reconnects.Add(1)
	if delayed {
		c.delayedReconnects.Add(1)
	}
}

// Reconnects returns the total number of restarts.
func (c *Collector) Reconnects() int64 {
	if c == nil {
		return 0
	}
	return c.reconnects.Load()
}

// DelayedReconnects returns the number of restarts that backed off.
func (c *Collector) DelayedReconnects() int64 {
	if c == nil {
		return 0
	}
	return c.delayedReconnects.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	MessagesIn        int64  `json:"messages_in"`
	MessagesOut       int64  `json:"messages_out"`
	LivenessTimeouts  int64  `json:"liveness_timeouts"`
	Reconnects        int64  `json:"reconnects"`
	DelayedReconnects int64  `json:"delayed_reconnects"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastLiveness      string `json:"last_liveness,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		MessagesIn:        c.messagesIn.Load(),
		MessagesOut:       c.messagesOut.Load(),
		LivenessTimeouts:  c.livenessTimeouts.Load(),
		Reconnects:        c.reconnects.Load(),
		DelayedReconnects: c.delayedReconnects.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastLiveness.IsZero() {
		s.LastLiveness = c.lastLiveness.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
