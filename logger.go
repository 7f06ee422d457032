package cachekit

// Fields carries structured context for a log line. The Manager uses the keys
// "namespace", "key", "op" and "err"; adapters may map "err" onto their own
// error convention.
type Fields map[string]any

// Logger is the leveled logger the Manager and LogErrorHandler write to.
// Adapters for zap, logrus and slog live under log/.
// A nil Logger in Options discards everything.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards all records.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
