// Package logger defines the logging port used by the dispatch core.
package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FieldLogger can derive child loggers carrying fixed fields, such as the
// site an optimizer works for. It is implemented by ZerologLogger.
type FieldLogger interface {
	Logger
	With(fields map[string]any) Logger
}

// With returns l with fields attached when l supports it and l unchanged
// otherwise.
func With(l Logger, fields map[string]any) Logger {
	if fl, ok := l.(FieldLogger); ok && len(fields) > 0 {
		return fl.With(fields)
	}
	return l
}
