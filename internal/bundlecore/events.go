package bundlecore

import (
	"time"

	"github.com/sirupsen/logrus"
)

// State is a step of the run state machine.
type State string

const (
	StateInit          State = "init"
	StateStatusChecked State = "status_checked"
	StateBuilt         State = "built"
	StateSubmitted     State = "submitted"
	StateIncluded      State = "included"
	StateNotIncluded   State = "not_included"
	StateReported      State = "reported"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Event is emitted on every state transition.
type Event struct {
	RunID  string
	From   State
	To     State
	Time   time.Time
	Fields map[string]any
	Err    error
}

// EventSink receives transitions. Implementations must not block.
type EventSink interface {
	Emit(ev Event)
}

// MultiSink fans an event out to several sinks.
type MultiSink []EventSink

func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// LogSink writes transitions to a logrus logger.
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink creates a sink logging through log.
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log.WithField("component", "orchestrator")}
}

func (s *LogSink) Emit(ev Event) {
	entry := s.log.WithFields(logrus.Fields{
		"run_id": ev.RunID,
		"from":   ev.From,
		"to":     ev.To,
	})
	if len(ev.Fields) > 0 {
		entry = entry.WithFields(ev.Fields)
	}
	if ev.Err != nil {
		entry.WithError(ev.Err).WithField("kind", kindName(KindOf(ev.Err))).Error("Run failed")
		return
	}
	entry.Info("State transition")
}

func kindName(kind error) string {
	if kind == nil {
		return "unknown"
	}
	return kind.Error()
}
