/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package pipeline

import (
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status values written to the schedule log.
const (
	StatusOK   = "OK"
	StatusWarn = "WARN"
	StatusFail = "FAIL"
)

// LogEntry is one line of the schedule log.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Department string    `json:"department"`
	Step       string    `json:"step"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
}

// ScheduleLogger receives per-department stage status lines.
type ScheduleLogger interface {
	Log(entry LogEntry)
}

// ConsoleLogger writes schedule log lines through a zerolog console writer.
// It is the fallback when a run is given no logger.
type ConsoleLogger struct {
	logger zerolog.Logger
}

// NewConsoleLogger writes to w, or stdout when w is nil.
func NewConsoleLogger(w io.Writer) *ConsoleLogger {
	if w == nil {
		w = os.Stdout
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05", NoColor: true}
	return &ConsoleLogger{logger: zerolog.New(out)}
}

// Log implements ScheduleLogger.
func (c *ConsoleLogger) Log(entry LogEntry) {
	logEvent(c.logger, entry)
}

// ZerologLogger forwards schedule log lines to a structured logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger tags lines with component=schedule_log.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger.With().Str("component", "schedule_log").Logger()}
}

// Log implements ScheduleLogger.
func (z *ZerologLogger) Log(entry LogEntry) {
	logEvent(z.logger, entry)
}

func logEvent(logger zerolog.Logger, entry LogEntry) {
	var ev *zerolog.Event
	switch entry.Status {
	case StatusFail:
		ev = logger.Error()
	case StatusWarn:
		ev = logger.Warn()
	default:
		ev = logger.Info()
	}
	ev.Time("ts", entry.Timestamp).
		Str("department", entry.Department).
		Str("step", entry.Step).
		Str("status", entry.Status).
		Msg(entry.Message)
}

// MemoryLogger keeps entries in order, e.g. to persist them after a run.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewMemoryLogger creates an empty in-memory log.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log implements ScheduleLogger.
func (m *MemoryLogger) Log(entry LogEntry) {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (m *MemoryLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// MultiLogger fans entries out to several loggers.
type MultiLogger []ScheduleLogger

// Log implements ScheduleLogger.
func (ml MultiLogger) Log(entry LogEntry) {
	for _, l := range ml {
		if l != nil {
			l.Log(entry)
		}
	}
}

// stageLog stamps entries for one stage.
type stageLog struct {
	sink ScheduleLogger
	step Stage
	now  func() time.Time
}

func (s stageLog) log(department, status, message string) {
	s.sink.Log(LogEntry{
		Timestamp:  s.now(),
		Department: department,
		Step:       s.step.String(),
		Status:     status,
		Message:    message,
	})
}
