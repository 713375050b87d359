// Package xlog provides the shared structured logger for sf2synth.
package xlog

import (
	"os"

	"github.com/charmbracelet/log"
)

var base = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: false,
})

// For returns a logger tagged with the given component name, e.g.
// xlog.For("soundfont") or xlog.For("voicepool").
func For(component string) *log.Logger {
	return base.With("component", component)
}

// SetLevel sets the minimum level for all component loggers.
func SetLevel(lvl log.Level) {
	base.SetLevel(lvl)
}
