// Package vmlog wraps sirupsen/logrus with one *logrus.Entry per subsystem
// (compiler, gc, loader), the way moby-moby wires a package-level logger:
// a single process-wide *logrus.Logger carries the formatter/level, and
// each subsystem gets an Entry pre-populated with a "subsystem" field so
// log lines are greppable by component without every call site repeating
// it.
//
// Nothing on the JIT-emitted code hot path logs. Only compile-time and GC
// boundaries do (§"AMBIENT STACK" / Logging): allocation and compilation
// tracing at Debug behind stackvm's -trace, recoverable load problems at
// Warn/Error.
package vmlog

import "github.com/sirupsen/logrus"

var root = logrus.New()

// Subsystem names used across the tree. Kept as constants so call sites
// can't typo a "subsystem" field value that a grep would then miss.
const (
	Compiler = "compiler"
	GC       = "gc"
	Loader   = "loader"
)

var subsystems = map[string]*logrus.Entry{
	Compiler: root.WithField("subsystem", Compiler),
	GC:       root.WithField("subsystem", GC),
	Loader:   root.WithField("subsystem", Loader),
}

// For returns the shared logger for the named subsystem. Panics on an
// unregistered name, since that always means a new subsystem constant
// needs adding above rather than a runtime condition to recover from.
func For(subsystem string) *logrus.Entry {
	e, ok := subsystems[subsystem]
	if !ok {
		panic("vmlog: unregistered subsystem " + subsystem)
	}
	return e
}

// SetLevel adjusts the shared logger's level, e.g. logrus.DebugLevel when
// stackvm's -trace flag is set to trace allocation and compilation events.
func SetLevel(level logrus.Level) {
	root.SetLevel(level)
}

// SetFormatter swaps the shared logger's formatter, matching moby-moby's
// own pattern of picking a text vs. JSON formatter at startup rather than
// per subsystem.
func SetFormatter(formatter logrus.Formatter) {
	root.SetFormatter(formatter)
}
