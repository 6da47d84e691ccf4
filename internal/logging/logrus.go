package logging

import (
	"github.com/sirupsen/logrus"
)

// logrusLogger adapts a logrus.FieldLogger to Logger.
type logrusLogger struct {
	l logrus.FieldLogger
}

// NewLogrus wraps a logrus logger (or entry) so it can be passed as an info log.
// A nil argument wraps logrus.StandardLogger().
func NewLogrus(l logrus.FieldLogger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{l: l}
}

// Errorf implements Logger.
func (g *logrusLogger) Errorf(format string, args ...any) { g.l.Errorf(format, args...) }

// Warnf implements Logger.
func (g *logrusLogger) Warnf(format string, args ...any) { g.l.Warnf(format, args...) }

// Infof implements Logger.
func (g *logrusLogger) Infof(format string, args ...any) { g.l.Infof(format, args...) }

// Debugf implements Logger.
func (g *logrusLogger) Debugf(format string, args ...any) { g.l.Debugf(format, args...) }
