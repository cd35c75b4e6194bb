// Package sink records per-country error messages from batch operations.
//
// A batch lookup never fails because of one bad member; instead the failure
// is appended to a channel named after the lowercase country code, and the
// member is left out of the output. Operators read the channel afterwards to
// learn why a batch came back short.
//
// Implementations:
//
//   - [FileSink]: one "<cc>_log.txt" file per channel, rotated by size
//   - [RedisSink]: one Redis list per channel
//   - [MemorySink]: in-process, for tests and the HTTP API
//   - [Null]: discards everything
package sink

import (
	"context"
	"sync"
)

// Sink is an append-only log keyed by channel. Implementations must be safe
// for concurrent use.
type Sink interface {
	Append(ctx context.Context, channel, message string) error
}

// Null discards every message.
var Null Sink = nullSink{}

type nullSink struct{}

func (nullSink) Append(context.Context, string, string) error { return nil }

// MemorySink keeps messages in memory, grouped by channel.
type MemorySink struct {
	mu       sync.Mutex
	messages map[string][]string
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{messages: make(map[string][]string)}
}

func (s *MemorySink) Append(_ context.Context, channel, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channel] = append(s.messages[channel], message)
	return nil
}

// Messages returns a copy of the messages appended to channel, oldest first.
func (s *MemorySink) Messages(channel string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages[channel]...)
}

// Channels returns the number of channels that received at least one message.
func (s *MemorySink) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
