package logging

import "github.com/rs/zerolog"

// Zerolog exposes a zerolog.Logger through the key-value logging interface
// used by the command dispatcher.
type Zerolog struct {
	zl zerolog.Logger
}

// FromZerolog wraps zl.
func FromZerolog(zl zerolog.Logger) *Zerolog {
	return &Zerolog{zl: zl}
}

func (l *Zerolog) Debug(msg string, kv ...any) { l.emit(l.zl.Debug(), msg, kv) }

func (l *Zerolog) Info(msg string, kv ...any) { l.emit(l.zl.Info(), msg, kv) }

func (l *Zerolog) Warn(msg string, kv ...any) { l.emit(l.zl.Warn(), msg, kv) }

func (l *Zerolog) Error(msg string, kv ...any) { l.emit(l.zl.Error(), msg, kv) }

// emit keeps pair order. Non-string keys and a dangling key are dropped.
func (l *Zerolog) emit(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	e.Fields(kv).Msg(msg)
}
