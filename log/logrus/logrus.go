package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/cachekit"
)

var _ cachekit.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=cachekit.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "cachekit")}
}

func (l LogrusLogger) Debug(msg string, f cachekit.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f cachekit.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f cachekit.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f cachekit.Fields) { l.with(f).Error(msg) }

// with maps "err" onto logrus' own error key.
func (l LogrusLogger) with(f cachekit.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
