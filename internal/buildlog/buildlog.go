// Package buildlog wraps logrus with the colorized field formatter this
// driver uses for its build trace, replacing the teacher's ad hoc
// fmt.Printf debug lines with leveled, structured output.
package buildlog

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger is the shared interface the rest of the tree logs through.
type Logger = *logrus.Entry

// New builds a root logger writing to w at the given level, using a
// color-aware text formatter. Colors follow fatih/color's global
// color.NoColor (off when the process's stdout is not a terminal or
// NO_COLOR is set); whether w itself is a terminal is not checked.
func New(w io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     color.NoColor == false,
		DisableColors:   color.NoColor,
	})
	return logrus.NewEntry(l)
}

// Default builds a root logger writing to stderr at Info level, the
// driver's normal operating mode.
func Default() Logger {
	return New(os.Stderr, logrus.InfoLevel)
}

// Module returns a child logger scoped to one module build.
func Module(base Logger, name string) Logger {
	return base.WithField("module", name)
}

// Phase returns a child logger scoped to one resolver/build phase.
func Phase(base Logger, phase string) Logger {
	return base.WithField("phase", phase)
}
