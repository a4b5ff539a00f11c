/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps a bounded in-memory window of recent log output so
// the engine can serve it over the API without shipping logs anywhere.
package logbuffer

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// Entry is one captured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a fixed-capacity ring of log entries. Safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// New allocates a buffer holding at most capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Buffer{
		entries:  make([]Entry, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, evicting the oldest when full.
func (b *Buffer) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// snapshot copies the ring contents in chronological order.
func (b *Buffer) snapshot() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Entry, b.count)
	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// QueryParams filter the buffer contents.
type QueryParams struct {
	Level      string    // exact level match (debug, info, warn, error)
	Component  string    // exact component match
	Search     string    // case-insensitive substring of message or component
	Since      time.Time // entries at or after this time
	Limit      int       // max entries returned, 0 means all
	Descending bool      // newest first
}

// Query returns entries matching params in the requested order.
func (b *Buffer) Query(params QueryParams) []Entry {
	search := strings.ToLower(params.Search)

	var matched []Entry
	for _, entry := range b.snapshot() {
		if params.Level != "" && entry.Level != params.Level {
			continue
		}
		if params.Component != "" && entry.Component != params.Component {
			continue
		}
		if !params.Since.IsZero() && entry.Timestamp.Before(params.Since) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(entry.Message), search) &&
			!strings.Contains(strings.ToLower(entry.Component), search) {
			continue
		}
		matched = append(matched, entry)
	}

	if params.Descending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if params.Limit > 0 && len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}
	return matched
}

// Components returns the distinct component names seen in the buffer.
func (b *Buffer) Components() []string {
	seen := make(map[string]bool)
	for _, entry := range b.snapshot() {
		if entry.Component != "" {
			seen[entry.Component] = true
		}
	}
	components := make([]string, 0, len(seen))
	for c := range seen {
		components = append(components, c)
	}
	return components
}

// Stats summarizes buffer occupancy by level.
type Stats struct {
	Capacity   int            `json:"capacity"`
	Count      int            `json:"count"`
	LevelCount map[string]int `json:"level_count"`
}

func (b *Buffer) Stats() Stats {
	stats := Stats{
		Capacity:   b.capacity,
		LevelCount: make(map[string]int),
	}
	for _, entry := range b.snapshot() {
		stats.Count++
		stats.LevelCount[entry.Level]++
	}
	return stats
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// Writer is an io.Writer that parses zerolog JSON lines into the buffer.
// Non-JSON lines are dropped from the buffer but still report success so
// zerolog never sees a write error.
type Writer struct {
	buffer *Buffer
}

// NewWriter captures log lines written through it into buffer.
func NewWriter(buffer *Buffer) *Writer {
	return &Writer{buffer: buffer}
}

var _ io.Writer = (*Writer)(nil)

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil
	}

	entry := Entry{Timestamp: time.Now().UTC()}

	if lvl, ok := raw["level"].(string); ok {
		entry.Level = lvl
		delete(raw, "level")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	if comp, ok := raw["component"].(string); ok {
		entry.Component = comp
		delete(raw, "component")
	}
	if ts, ok := raw["time"]; ok {
		// zerolog emits unix seconds with TimeFormatUnix, RFC3339 otherwise.
		switch v := ts.(type) {
		case float64:
			entry.Timestamp = time.Unix(int64(v), 0).UTC()
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				entry.Timestamp = t
			}
		}
		delete(raw, "time")
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}

	w.buffer.Add(entry)
	return len(p), nil
}
