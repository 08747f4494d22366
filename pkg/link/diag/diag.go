// Package diag implements the linker's diagnostic channel (spec §7, §5's
// "diagnostics accumulate under a named mutex and are not interleaved
// across goroutines"): a Collector that accumulates Error/Warning/Note
// records from every concurrently-running phase, then aborts at the next
// phase boundary if any Error was recorded.
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
)

// Severity classifies a diagnostic record.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "note"
	}
}

// Record is one accumulated diagnostic.
type Record struct {
	Severity Severity
	Phase    string
	Message  string
}

// Collector accumulates diagnostics under a single mutex, the same
// discipline the teacher's debugger.Controller uses for its shared state
// (pkg/hw/cpu/debugger/controller.go), generalized from "debugger events"
// to "link diagnostics". Abort() is the accumulate-then-abort-at-phase-
// boundary policy spec §7 requires: callers check it once per phase, not
// after every individual diagnostic.
type Collector struct {
	mu      sync.Mutex
	records []Record
	errors  int
	log     *slog.Logger
}

// NewCollector builds a Collector that fans its records out to a
// colorized text stream (stderr by default) and, if logPath is non-empty,
// a parallel JSON stream -- the teacher's ambient color.New(...).Sprint
// idiom for terminal output, composed through slog-multi's Fanout handler
// combinator.
func NewCollector(logPath string) (*Collector, error) {
	handlers := []slog.Handler{newTextHandler(os.Stderr)}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("diag: opening log file %q: %w", logPath, err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, nil))
	}

	return &Collector{log: slog.New(slogmulti.Fanout(handlers...))}, nil
}

// Emit records one diagnostic and forwards it to the fanned-out loggers.
func (c *Collector) Emit(sev Severity, phase, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	c.mu.Lock()
	c.records = append(c.records, Record{Severity: sev, Phase: phase, Message: msg})
	if sev == Error {
		c.errors++
	}
	c.mu.Unlock()

	switch sev {
	case Error:
		c.log.Error(msg, slog.String("phase", phase))
	case Warning:
		c.log.Warn(msg, slog.String("phase", phase))
	default:
		c.log.Info(msg, slog.String("phase", phase))
	}
}

// Errorf records an Error-severity diagnostic.
func (c *Collector) Errorf(phase, format string, args ...any) { c.Emit(Error, phase, format, args...) }

// Warnf records a Warning-severity diagnostic.
func (c *Collector) Warnf(phase, format string, args ...any) { c.Emit(Warning, phase, format, args...) }

// Notef records a Note-severity diagnostic.
func (c *Collector) Notef(phase, format string, args ...any) { c.Emit(Note, phase, format, args...) }

// HasErrors reports whether any Error-severity diagnostic was recorded.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors > 0
}

// Abort returns a non-nil error naming the phase just finished if any
// Error diagnostic has been recorded since the collector was created (the
// count is cumulative across phases), and clears nothing -- callers
// invoke this once per phase boundary (spec §7).
func (c *Collector) Abort(phase string) error {
	if !c.HasErrors() {
		return nil
	}
	return fmt.Errorf("diag: link aborted after phase %q: %d error(s) recorded", phase, c.errorCount())
}

func (c *Collector) errorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Records returns a snapshot of every diagnostic recorded so far, in
// emission order.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// textHandler is a minimal slog.Handler that colorizes by level the way
// the teacher's syntax_highlight.go colorizes by token kind: a fixed
// palette of color.New(...) values picked once, Sprint'd per record.
type textHandler struct {
	w      io.Writer
	attrs  []slog.Attr
	groups []string
}

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	noteColor  = color.New(color.FgCyan)
)

func newTextHandler(w io.Writer) *textHandler { return &textHandler{w: w} }

func (h *textHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	c := noteColor
	switch {
	case r.Level >= slog.LevelError:
		c = errorColor
	case r.Level >= slog.LevelWarn:
		c = warnColor
	}
	phase := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "phase" {
			phase = a.Value.String()
		}
		return true
	})
	line := fmt.Sprintf("[%s] %s: %s\n", r.Level.String(), phase, r.Message)
	_, err := h.w.Write([]byte(c.Sprint(line)))
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}
