package logger

import "fmt"

// SetLogLevel sets the minimum log level
func (l *Logger) SetLogLevel(level LogLevel) {
	l.level.SetLevel(zapLevels[level])
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) entry(component, message string, args []interface{}) (string, []interface{}) {
	msg := message
	if len(args) > 0 {
		msg = fmt.Sprintf(message, args...)
	}
	if component == "" {
		return msg, nil
	}
	return msg, []interface{}{"component", component}
}

// Debug logs a debug message
func (l *Logger) Debug(component, message string, args ...interface{}) {
	msg, kv := l.entry(component, message, args)
	l.sugar.Debugw(msg, kv...)
}

// Info logs an info message
func (l *Logger) Info(component, message string, args ...interface{}) {
	msg, kv := l.entry(component, message, args)
	l.sugar.Infow(msg, kv...)
}

// Warn logs a warning message
func (l *Logger) Warn(component, message string, args ...interface{}) {
	msg, kv := l.entry(component, message, args)
	l.sugar.Warnw(msg, kv...)
}

// Error logs an error message
func (l *Logger) Error(component, message string, args ...interface{}) {
	msg, kv := l.entry(component, message, args)
	l.sugar.Errorw(msg, kv...)
}

// Fatal logs an error message and exits
func (l *Logger) Fatal(component, message string, args ...interface{}) {
	msg, kv := l.entry(component, message, args)
	l.sugar.Fatalw(msg, kv...)
}
