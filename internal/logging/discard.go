package logging

// DiscardLogger drops every line. Tests and callers that want silence pass
// Discard to Options.SetInfoLog.
type DiscardLogger struct{}

// Discard is the shared DiscardLogger.
var Discard Logger = DiscardLogger{}

func (DiscardLogger) Errorf(string, ...any) {}
func (DiscardLogger) Warnf(string, ...any)  {}
func (DiscardLogger) Infof(string, ...any)  {}
func (DiscardLogger) Debugf(string, ...any) {}
