package chat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StatusKind enumerates the session lifecycle notifications published
// for the presentation layer.
type StatusKind int

const (
	ReadingInitiated StatusKind = iota
	ReadingEstablished
	SendingInitiated
	SendingEstablished
	NicknameReceived
)

func (k StatusKind) String() string {
	switch k {
	case ReadingInitiated:
		return "reading initiated"
	case ReadingEstablished:
		return "reading established"
	case SendingInitiated:
		return "sending initiated"
	case SendingEstablished:
		return "sending established"
	case NicknameReceived:
		return "nickname received"
	default:
		return "unknown"
	}
}

// StatusEvent is one lifecycle notification.  Nickname is only set for
// NicknameReceived.
type StatusEvent struct {
	Kind     StatusKind
	Nickname string
}

func (e StatusEvent) String() string {
	if e.Kind == NicknameReceived {
		return fmt.Sprintf("%s: %s", e.Kind, e.Nickname)
	}
	return e.Kind.String()
}

// Source names who reported a liveness event.
type Source int

const (
	SourceReader Source = iota
	SourceSender
	SourcePing
	// SourceTimeout tags a read or ping that got no data in time.
	SourceTimeout
)

func (s Source) String() string {
	switch s {
	case SourceReader:
		return "reader"
	case SourceSender:
		return "sender"
	case SourcePing:
		return "ping"
	case SourceTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// writing reports whether s lives on the writing socket.
func (s Source) writing() bool {
	return s == SourceSender || s == SourcePing
}

// LivenessEvent is a single report for the watchdog.  For timeout
// events Origin says which task timed out; otherwise Origin == Source.
type LivenessEvent struct {
	Source Source
	Origin Source
	At     time.Time
}

// Alive builds an evidence-of-life event from src.
func Alive(src Source, at time.Time) LivenessEvent {
	return LivenessEvent{Source: src, Origin: src, At: at}
}

// TimedOut builds a timeout event reported by origin.
func TimedOut(origin Source, at time.Time) LivenessEvent {
	return LivenessEvent{Source: SourceTimeout, Origin: origin, At: at}
}

// TokenLatch hands the account hash the Sender authorized with to the
// PingMonitor of the same connection group.  It is set at most once;
// later values are ignored.
type TokenLatch struct {
	once  sync.Once
	ready chan struct{}
	token string
}

// NewTokenLatch returns an unset latch.
func NewTokenLatch() *TokenLatch {
	return &TokenLatch{ready: make(chan struct{})}
}

// Set publishes token and releases every waiter.
func (l *TokenLatch) Set(token string) {
	l.once.Do(func() {
		l.token = token
		close(l.ready)
	})
}

// Wait blocks until Set was called or ctx is done.
func (l *TokenLatch) Wait(ctx context.Context) (string, error) {
	select {
	case <-l.ready:
		return l.token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Streams groups the process-lifetime queues shared between the core
// and its external collaborators.
type Streams struct {
	// Messages feeds the presentation layer: the restored history blob
	// first, then one entry per received line.
	Messages *Queue[string]
	// History feeds the history store with received lines.
	History *Queue[string]
	// Status carries lifecycle notifications.
	Status *Queue[StatusEvent]
	// Outbox holds messages typed by the user, waiting to be sent.
	Outbox *Queue[string]
}

// NewStreams allocates empty queues.
func NewStreams() *Streams {
	return &Streams{
		Messages: NewQueue[string](),
		History:  NewQueue[string](),
		Status:   NewQueue[StatusEvent](),
		Outbox:   NewQueue[string](),
	}
}

func (s *Streams) status(kind StatusKind) {
	s.Status.Put(StatusEvent{Kind: kind})
}
