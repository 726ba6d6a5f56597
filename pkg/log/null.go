package log

import "sync"

// nullLogger discards everything; useful in tests and for hosts that don't
// want logging overhead.
type nullLogger struct{}

func (n nullLogger) Infof(format string, args ...interface{})  {}
func (n nullLogger) Errorf(format string, args ...interface{}) {}
func (n nullLogger) Debugf(format string, args ...interface{}) {}
func (n nullLogger) Warnf(format string, args ...interface{})  {}

// NewNullLogger returns a logger that does nothing.
func NewNullLogger() Logger {
	return &nullLogger{}
}

// Deduped wraps a Logger so repeated Warnf calls keyed by the same string
// only emit once. Used for RuntimeWarning-class conditions such as
// unmapped memory accesses, which would otherwise flood the log every
// clock cycle a misbehaving ROM repeats the access.
type Deduped struct {
	Logger
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduped wraps an existing Logger with warn-once-per-key behavior.
func NewDeduped(l Logger) *Deduped {
	return &Deduped{Logger: l, seen: make(map[string]struct{})}
}

// WarnOnce logs at Warn the first time this key is seen and is silent on
// every subsequent call with the same key.
func (d *Deduped) WarnOnce(key, format string, args ...interface{}) {
	d.mu.Lock()
	_, ok := d.seen[key]
	if !ok {
		d.seen[key] = struct{}{}
	}
	d.mu.Unlock()
	if !ok {
		d.Warnf(format, args...)
	}
}
