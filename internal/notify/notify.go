// Package notify routes cross-cutting alerts (session cancelled, permission
// failures, degraded services) to whoever presents them to the player.
package notify

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one alert for the player.
type Notice struct {
	Level   Level
	Title   string
	Message string
	Err     error
}

// Sink receives notices. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(n Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notice)

func (f SinkFunc) Notify(n Notice) { f(n) }

// LogSink writes notices to a logger.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Notify(n Notice) {
	entry := s.Log.WithField("title", n.Title)
	if n.Err != nil {
		entry = entry.WithError(n.Err)
	}
	switch n.Level {
	case LevelError:
		entry.Error(n.Message)
	case LevelWarning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

// Strict panics on error notices and forwards everything else to Next. It
// is installed in development so access-rule mistakes surface immediately.
type Strict struct {
	Next Sink
}

func (s Strict) Notify(n Notice) {
	if n.Level == LevelError {
		panic(fmt.Sprintf("%s: %s: %v", n.Title, n.Message, n.Err))
	}
	if s.Next != nil {
		s.Next.Notify(n)
	}
}

// Recorder keeps every notice it receives.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// New returns the sink for the given environment: strict in development,
// logging only in production.
func New(log logrus.FieldLogger, development bool) Sink {
	sink := LogSink{Log: log}
	if development {
		return Strict{Next: sink}
	}
	return sink
}
