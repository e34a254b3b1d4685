package core

import "log"

// Logger abstracts error reporting so handlers and services do not depend on a
// concrete backend (std log in DEV/TEST, Rollbar in QA/PROD).
// Expected args: error, map[string]interface{}, or any value worth recording.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Critical(msg string, args ...interface{})
}

type stdLogger struct {
	std     *log.Logger
	enabled bool
}

var _ Logger = (*stdLogger)(nil)

func NewStdLogger(std *log.Logger) Logger {
	return &stdLogger{std: std, enabled: true}
}

func (l *stdLogger) Enable(enabled bool) { l.enabled = enabled }

func (l *stdLogger) print(level, msg string, args []interface{}) {
	if !l.enabled {
		return
	}
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v", arg)
	}
}

func (l *stdLogger) Debug(msg string, args ...interface{})    { l.print("DEBUG", msg, args) }
func (l *stdLogger) Info(msg string, args ...interface{})     { l.print("INFO", msg, args) }
func (l *stdLogger) Warn(msg string, args ...interface{})     { l.print("WARN", msg, args) }
func (l *stdLogger) Error(msg string, args ...interface{})    { l.print("ERROR", msg, args) }
func (l *stdLogger) Critical(msg string, args ...interface{}) { l.print("CRITICAL", msg, args) }
