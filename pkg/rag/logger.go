package rag

// Logger is the logging surface the rag packages write to. It matches the
// application's structured logger so the same instance can be passed in.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{}) {}
func (nopLogger) Warn(string, string, map[string]interface{}) {}
func (nopLogger) Error(string, string, map[string]interface{}) {}

// NopLogger discards everything.
func NopLogger() Logger { return nopLogger{} }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
