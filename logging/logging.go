// Package logging provides the severity-bitmask logger used across the
// ezflow engine. Runtime messages are filtered by a mode mask of
// error/warning/info bits; output goes through logrus with the worker
// rank prefixed so interleaved multi-process logs stay readable.
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Mode is a bitmask of message severities a logger will emit.
type Mode int

const (
	// ModeNone suppresses all runtime messages
	ModeNone Mode = 0x00
	// ModeInfo enables informational messages
	ModeInfo Mode = 0x01
	// ModeWarning enables warnings
	ModeWarning Mode = 0x02
	// ModeError enables errors
	ModeError Mode = 0x04
	// ModeAll enables every severity
	ModeAll Mode = 0x07
)

// ModeToString translates a mode bit to a string representation
func ModeToString(m Mode) string {
	switch m {
	case ModeInfo:
		return "INFO"
	case ModeWarning:
		return "WARN"
	case ModeError:
		return "ERROR"
	default:
		return "NONE"
	}
}

// Logger filters messages by mode and prefixes them with a process rank.
type Logger struct {
	rank int
	mode Mode
	out  *logrus.Logger
}

// New creates a Logger for the given rank with warnings and errors
// enabled, the engine default.
func New(rank int) *Logger {
	out := logrus.New()
	out.SetOutput(os.Stderr)
	out.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &Logger{rank: rank, mode: ModeError | ModeWarning, out: out}
}

// SetMode replaces the severity mask.
func (l *Logger) SetMode(m Mode) { l.mode = m }

// GetMode returns the current severity mask.
func (l *Logger) GetMode() Mode { return l.mode }

// SetRank updates the rank prefix; used once the process pool is known.
func (l *Logger) SetRank(rank int) { l.rank = rank }

// Log emits msg if its mode bit is enabled.
func (l *Logger) Log(mode Mode, format string, args ...interface{}) {
	if l.mode&mode == 0 {
		return
	}
	entry := l.out.WithField("rank", l.rank)
	switch mode {
	case ModeError:
		entry.Error(fmt.Sprintf(format, args...))
	case ModeWarning:
		entry.Warn(fmt.Sprintf(format, args...))
	default:
		entry.Info(fmt.Sprintf(format, args...))
	}
}

// Log0 emits msg only on rank 0, for messages that would otherwise be
// repeated once per worker.
func (l *Logger) Log0(mode Mode, format string, args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.Log(mode, format, args...)
}

// Print writes directly to stdout with the rank prefix, bypassing the
// severity mask.
func (l *Logger) Print(msg string) {
	fmt.Fprintf(os.Stdout, "%d: %s\n", l.rank, msg)
}

// Print0 writes to stdout only on rank 0.
func (l *Logger) Print0(msg string) {
	if l.rank == 0 {
		fmt.Fprintln(os.Stdout, msg)
	}
}

// defaultLogger backs units that are constructed before a scheduler
// exists, such as Dump sinks created by the builder.
var defaultLogger = New(0)

// Default returns the process-wide fallback logger.
func Default() *Logger { return defaultLogger }
