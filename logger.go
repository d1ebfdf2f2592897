package tileview

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/tileview/internal/decoder"
	"github.com/gogpu/tileview/internal/schedule"
	"github.com/gogpu/tileview/internal/tiles"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for tileview and its internal packages.
// By default tileview produces no log output. Pass nil to restore silence.
//
// Log levels used by tileview:
//   - [slog.LevelDebug]: region updates, tile evictions, stale results
//   - [slog.LevelInfo]: image lifecycle (opened, cleared)
//   - [slog.LevelWarn]: failed inits, codec panics, sort fallbacks
//
// Example:
//
//	tileview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	decoder.SetLogger(l)
	tiles.SetLogger(l)
	schedule.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
