package sink

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// TimestampLayout prefixes every line written by [FileSink].
const TimestampLayout = "20060102_15:04:05 - "

// FileSink appends timestamped lines to "<channel>_log.txt" files in Dir.
// Files are rotated by lumberjack once they reach MaxSizeMB.
type FileSink struct {
	Dir       string
	MaxSizeMB int
	MaxAge    int // days; 0 keeps rotated files forever

	now func() time.Time

	mu      sync.Mutex
	writers map[string]io.WriteCloser
}

// NewFileSink returns a FileSink writing into dir. An empty dir means the
// working directory.
func NewFileSink(dir string, maxSizeMB int) *FileSink {
	return &FileSink{
		Dir:       dir,
		MaxSizeMB: maxSizeMB,
		now:       time.Now,
		writers:   make(map[string]io.WriteCloser),
	}
}

// Path returns the file a channel is written to.
func (s *FileSink) Path(channel string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_log.txt", safeChannel(channel)))
}

func (s *FileSink) Append(_ context.Context, channel, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writers == nil {
		s.writers = make(map[string]io.WriteCloser)
	}
	// channels that share a file share one rotating writer
	key := safeChannel(channel)
	w, ok := s.writers[key]
	if !ok {
		w = &lumberjack.Logger{
			Filename: s.Path(channel),
			MaxSize:  s.MaxSizeMB,
			MaxAge:   s.MaxAge,
		}
		s.writers[key] = w
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	line := fmt.Sprintf("%s %s \n", now().Format(TimestampLayout), message)
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write %s log: %w", channel, err)
	}
	return nil
}

// Close closes every open channel file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for ch, w := range s.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.writers, ch)
	}
	return first
}

// safeChannel keeps channel names from escaping Dir.
func safeChannel(channel string) string {
	channel = strings.ToLower(strings.TrimSpace(channel))
	channel = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(channel)
	if channel == "" {
		return "unknown"
	}
	return channel
}
