// Package logging routes the standard logger to stderr and to the
// append-only application log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimeLayout is the timestamp format of log lines.
const TimeLayout = "2006-01-02 15:04:05"

// Sink writes each log line as "[YYYY-MM-DD HH:MM:SS] message" to all of
// its writers.
type Sink struct {
	mu  sync.Mutex
	out []io.Writer
	now func() time.Time
}

// NewSink returns a Sink that fans out to the given writers.
func NewSink(out ...io.Writer) *Sink {
	return &Sink{out: out, now: time.Now}
}

// Write implements io.Writer. The standard logger calls it once per line.
func (s *Sink) Write(p []byte) (int, error) {
	line := fmt.Sprintf("[%s] %s", s.now().Format(TimeLayout), p)
	if len(p) == 0 || p[len(p)-1] != '\n' {
		line += "\n"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.out {
		if _, err := io.WriteString(w, line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Setup opens (or creates) the log file at path and points the standard
// logger at stderr plus that file. Close the returned file on shutdown.
func Setup(path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetFlags(0)
	log.SetOutput(NewSink(os.Stderr, f))
	return f, nil
}
