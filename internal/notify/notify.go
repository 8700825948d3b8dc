package notify

import "log/slog"

// Kind classifies user-facing notifications. Terminal call states each map to
// a distinct kind so the UI can render them differently.
type Kind string

const (
	KindConnected Kind = "connected"
	KindCompleted Kind = "completed"
	KindBusy      Kind = "busy"
	KindNoAnswer  Kind = "no_answer"
	KindFailed    Kind = "failed"
	KindWarning   Kind = "warning"
	KindError     Kind = "error"
)

// Sink receives user-facing notifications. Implementations must be safe for
// concurrent use; callers emit from poll goroutines.
type Sink interface {
	Notify(kind Kind, message string)
}

// SlogSink logs notifications; the default sink when no UI channel is wired.
type SlogSink struct {
	Log *slog.Logger
}

func (s SlogSink) Notify(kind Kind, message string) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	switch kind {
	case KindWarning:
		log.Warn("notification", "kind", kind, "message", message)
	case KindError, KindFailed:
		log.Error("notification", "kind", kind, "message", message)
	default:
		log.Info("notification", "kind", kind, "message", message)
	}
}

// Func adapts a function to the Sink interface.
type Func func(kind Kind, message string)

func (f Func) Notify(kind Kind, message string) { f(kind, message) }
