package monitoring

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Level selects how much of the ops/diag/trace stream hierarchy is written.
type Level int

const (
	// LevelQuiet disables every stream.
	LevelQuiet Level = iota
	// LevelOps writes failures and data loss only.
	LevelOps
	// LevelDiag adds per-stage diagnostics.
	LevelDiag
	// LevelTrace adds per-frame telemetry.
	LevelTrace
)

var levelNames = map[string]Level{
	"quiet": LevelQuiet,
	"ops":   LevelOps,
	"diag":  LevelDiag,
	"trace": LevelTrace,
}

// ParseLevel parses quiet, ops, diag or trace.
func ParseLevel(s string) (Level, error) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return LevelQuiet, fmt.Errorf("unknown log level %q (want quiet, ops, diag or trace)", s)
	}
	return l, nil
}

func (l Level) String() string {
	for name, v := range levelNames {
		if v == l {
			return name
		}
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// LogWriters holds the io.Writers for each logging stream. A nil writer
// disables its stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// WritersFor routes every stream enabled by level to w.
func WritersFor(level Level, w io.Writer) LogWriters {
	var ws LogWriters
	if level >= LevelOps {
		ws.Ops = w
	}
	if level >= LevelDiag {
		ws.Diag = w
	}
	if level >= LevelTrace {
		ws.Trace = w
	}
	return ws
}
