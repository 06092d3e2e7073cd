/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent process log lines in memory so the
// API can serve them.
package logbuffer

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 5000

// LogEntry is one captured log line.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Component  string         `json:"component,omitempty"`
	Department string         `json:"department,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring buffer of log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	head     int
	count    int
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries:  make([]LogEntry, capacity),
		capacity: capacity,
	}
}

// Add stores an entry, overwriting the oldest one when full.
func (b *Buffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Entries returns every held entry, oldest first.
func (b *Buffer) Entries() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]LogEntry, b.count)
	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := range b.count {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// QueryParams filters Query results. Zero values match everything.
type QueryParams struct {
	Level      string
	Component  string
	Department string
	Search     string // case-insensitive, message and string fields
	Since      time.Time
	Limit      int
	Descending bool
}

func (p QueryParams) match(entry LogEntry) bool {
	if p.Level != "" && entry.Level != p.Level {
		return false
	}
	if p.Component != "" && entry.Component != p.Component {
		return false
	}
	if p.Department != "" && entry.Department != p.Department {
		return false
	}
	if !p.Since.IsZero() && entry.Timestamp.Before(p.Since) {
		return false
	}
	if p.Search == "" {
		return true
	}

	needle := strings.ToLower(p.Search)
	if strings.Contains(strings.ToLower(entry.Message), needle) {
		return true
	}
	for _, v := range entry.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// Query returns the entries matching params, oldest first unless Descending.
// Limit keeps the first entries in the requested order.
func (b *Buffer) Query(params QueryParams) []LogEntry {
	all := b.Entries()
	filtered := make([]LogEntry, 0, len(all))
	for _, entry := range all {
		if params.match(entry) {
			filtered = append(filtered, entry)
		}
	}

	if params.Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}
	return filtered
}

// Stats summarizes the buffer contents.
type Stats struct {
	Capacity   int            `json:"capacity"`
	Count      int            `json:"count"`
	LevelCount map[string]int `json:"level_count"`
}

// Stats returns entry counts per level.
func (b *Buffer) Stats() Stats {
	entries := b.Entries()
	stats := Stats{
		Capacity:   b.capacity,
		Count:      len(entries),
		LevelCount: make(map[string]int),
	}
	for _, entry := range entries {
		stats.LevelCount[entry.Level]++
	}
	return stats
}

// Writer is a zerolog output that captures JSON lines into a Buffer and
// passes them on to an optional fallback writer.
type Writer struct {
	buffer   *Buffer
	fallback io.Writer
}

// NewWriter creates a writer that captures logs to buffer.
func NewWriter(buffer *Buffer, fallback io.Writer) *Writer {
	return &Writer{buffer: buffer, fallback: fallback}
}

// Write implements io.Writer. Lines that are not JSON objects are only
// forwarded.
func (w *Writer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err == nil {
		w.buffer.Add(parseEntry(raw))
	}
	if w.fallback != nil {
		return w.fallback.Write(p)
	}
	return len(p), nil
}

func parseEntry(raw map[string]any) LogEntry {
	entry := LogEntry{
		Timestamp: time.Now(),
		Fields:    make(map[string]any),
	}
	take := func(key string) string {
		s, _ := raw[key].(string)
		delete(raw, key)
		return s
	}
	entry.Level = take("level")
	entry.Message = take("message")
	entry.Component = take("component")
	entry.Department = take("department")

	switch ts := raw["time"].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.Timestamp = t
		}
	case float64:
		// zerolog.TimeFormatUnix
		entry.Timestamp = time.Unix(int64(ts), 0)
	}
	delete(raw, "time")

	for k, v := range raw {
		entry.Fields[k] = v
	}
	return entry
}
