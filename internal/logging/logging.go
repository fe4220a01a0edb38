// Package logging wraps logrus behind a small buffered handler so that
// callers on hot paths (the lock manager, the FS engine) never block on
// the underlying writer.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type entry struct {
	level   Level
	message string
	fields  logrus.Fields
}

// Handler drains log entries on its own goroutine over a buffered
// channel, so a full socket buffer or a stalled stdout never backs up
// into the FS engine or lock manager that produced the log line.
type Handler struct {
	log     *logrus.Logger
	entries chan entry
}

func New(level Level) *Handler {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(toLogrusLevel(level))

	h := &Handler{
		log:     l,
		entries: make(chan entry, 256),
	}
	go h.drain()
	return h
}

func toLogrusLevel(lv Level) logrus.Level {
	switch lv {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (h *Handler) drain() {
	for e := range h.entries {
		l := h.log.WithFields(e.fields)
		switch e.level {
		case LevelDebug:
			l.Debug(e.message)
		case LevelWarn:
			l.Warn(e.message)
		case LevelError:
			l.Error(e.message)
		default:
			l.Info(e.message)
		}
	}
}

func (h *Handler) emit(lv Level, msg string, fields logrus.Fields) {
	select {
	case h.entries <- entry{level: lv, message: msg, fields: fields}:
	default:
		// drop rather than block the caller; a slow log sink must never
		// stall a worker holding an inode lock
	}
}

func (h *Handler) Debugf(format string, args ...interface{}) {
	h.emit(LevelDebug, sprintf(format, args...), nil)
}

func (h *Handler) Infof(format string, args ...interface{}) {
	h.emit(LevelInfo, sprintf(format, args...), nil)
}

func (h *Handler) Warnf(format string, args ...interface{}) {
	h.emit(LevelWarn, sprintf(format, args...), nil)
}

func (h *Handler) Errorf(format string, args ...interface{}) {
	h.emit(LevelError, sprintf(format, args...), nil)
}

// WithFields returns a helper bound to the given structured fields, for
// call sites that want one log line annotated with request context
// (user, session, verb) rather than an interpolated string.
func (h *Handler) WithFields(fields map[string]interface{}) *Fielded {
	return &Fielded{h: h, fields: logrus.Fields(fields)}
}

type Fielded struct {
	h      *Handler
	fields logrus.Fields
}

func (f *Fielded) Debugf(format string, args ...interface{}) {
	f.h.emit(LevelDebug, sprintf(format, args...), f.fields)
}

func (f *Fielded) Infof(format string, args ...interface{}) {
	f.h.emit(LevelInfo, sprintf(format, args...), f.fields)
}

func (f *Fielded) Warnf(format string, args ...interface{}) {
	f.h.emit(LevelWarn, sprintf(format, args...), f.fields)
}

func (f *Fielded) Errorf(format string, args ...interface{}) {
	f.h.emit(LevelError, sprintf(format, args...), f.fields)
}
