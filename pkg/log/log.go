// Package log provides the leveled logger used by every gbcore component.
package log

import "github.com/sirupsen/logrus"

// Logger is the narrow logging surface components depend on, so tests can
// swap in a no-op implementation without dragging in logrus.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// New returns a logrus-backed Logger with a plain text formatter at Info
// level, matching the teacher's default logging posture.
func New() Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}
