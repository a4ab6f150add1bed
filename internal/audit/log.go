package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rawblock/sanctions-screener/pkg/models"
)

// Audit Log — Day-Bucketed Append-Only Aggregation
//
// One JSON entry per screening action, rolled up into
// <root>/YYYY-MM-DD/audit_<YYYY-MM-DD>.json where the file content is
// a JSON array of entries.
//
// Writes go through a single writer goroutine that serializes the
// load-append-save cycle per day file, so concurrent requests never
// race on the array. Recording is fire-and-forget: a write failure is
// logged and swallowed, never surfaced to the originating request.

const (
	dateLayout  = "2006-01-02"
	queueDepth  = 256
	maxValueLen = 500 // result-bag strings are truncated beyond this
)

// Stats summarizes recent audit activity
type Stats struct {
	TotalLogs             int            `json:"totalLogs"`
	SuccessfulLogs        int            `json:"successfulLogs"`
	FailedLogs            int            `json:"failedLogs"`
	ActionCounts          map[string]int `json:"actionCounts"`
	AverageProcessingTime float64        `json:"averageProcessingTime"` // ms
	DateRange             DateRange      `json:"dateRange"`
}

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Log is the audit writer plus its best-effort query surface
type Log struct {
	root    string
	entries chan models.AuditEntry
	wg      sync.WaitGroup
	once    sync.Once
	now     func() time.Time // injectable clock for tests
}

// New creates the audit log rooted at dir and starts the writer
func New(root string) *Log {
	l := &Log{
		root:    root,
		entries: make(chan models.AuditEntry, queueDepth),
		now:     time.Now,
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

// Record enqueues an entry. Missing id/timestamp are filled in; the
// result bag is sanitized. Never blocks the caller: when the queue is
// full the entry is dropped with a log line.
func (l *Log) Record(entry models.AuditEntry) {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = l.now().UTC().Format(time.RFC3339)
	}
	entry.Result = sanitizeResult(entry.Result)

	select {
	case l.entries <- entry:
	default:
		log.Printf("[Audit] queue full, dropping entry %s (%s)", entry.EntryID, entry.Action)
	}
}

// Close flushes queued entries and stops the writer
func (l *Log) Close() {
	l.once.Do(func() {
		close(l.entries)
	})
	l.wg.Wait()
}

func (l *Log) writer() {
	defer l.wg.Done()
	for entry := range l.entries {
		if err := l.append(entry); err != nil {
			log.Printf("[Audit] write failed for %s: %v", entry.EntryID, err)
		}
	}
}

// append does the serialized load-append-save for the entry's day file
func (l *Log) append(entry models.AuditEntry) error {
	ts, err := time.Parse(time.RFC3339, entry.Timestamp)
	if err != nil {
		ts = l.now().UTC()
	}
	date := ts.UTC().Format(dateLayout)

	dir := filepath.Join(l.root, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating audit dir: %w", err)
	}

	path := l.dayFile(date)
	entries, err := readDayFile(path)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding audit file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ── queries (best-effort) ───────────────────────────────────────────

// ByDate returns the entries for one YYYY-MM-DD day, empty when the
// file does not exist.
func (l *Log) ByDate(date string) ([]models.AuditEntry, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, models.WrapError(models.ErrValidation, err, "invalid audit date %q", date)
	}
	return readDayFile(l.dayFile(date))
}

// ByCorrelationID scans the last days daily files for a correlation id
func (l *Log) ByCorrelationID(id string, days int) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := l.scan(days, func(e models.AuditEntry) {
		if e.CorrelationID == id {
			out = append(out, e)
		}
	})
	return out, err
}

// ByAddress scans the last days daily files for a subject address,
// compared case-insensitively.
func (l *Log) ByAddress(addr string, days int) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	err := l.scan(days, func(e models.AuditEntry) {
		if strings.EqualFold(e.Subject, addr) {
			out = append(out, e)
		}
	})
	return out, err
}

// Stats aggregates the last days of audit activity
func (l *Log) Stats(days int) (*Stats, error) {
	if days <= 0 {
		days = 7
	}
	stats := &Stats{ActionCounts: make(map[string]int)}
	var totalMs int64

	err := l.scan(days, func(e models.AuditEntry) {
		stats.TotalLogs++
		if e.Success {
			stats.SuccessfulLogs++
		} else {
			stats.FailedLogs++
		}
		stats.ActionCounts[e.Action]++
		totalMs += e.ProcessingTimeMs
	})
	if err != nil {
		return nil, err
	}

	if stats.TotalLogs > 0 {
		stats.AverageProcessingTime = float64(totalMs) / float64(stats.TotalLogs)
	}
	today := l.now().UTC()
	stats.DateRange = DateRange{
		From: today.AddDate(0, 0, -(days - 1)).Format(dateLayout),
		To:   today.Format(dateLayout),
	}
	return stats, nil
}

func (l *Log) scan(days int, visit func(models.AuditEntry)) error {
	if days <= 0 {
		days = 7
	}
	today := l.now().UTC()
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i).Format(dateLayout)
		entries, err := readDayFile(l.dayFile(date))
		if err != nil {
			log.Printf("[Audit] skipping unreadable day %s: %v", date, err)
			continue
		}
		for _, e := range entries {
			visit(e)
		}
	}
	return nil
}

func (l *Log) dayFile(date string) string {
	return filepath.Join(l.root, date, "audit_"+date+".json")
}

func readDayFile(path string) ([]models.AuditEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.AuditEntry{}, nil
		}
		return nil, fmt.Errorf("reading audit file: %w", err)
	}
	var entries []models.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding audit file %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// sanitizeResult drops nil values and truncates oversized strings so a
// pathological result bag cannot bloat the day file.
func sanitizeResult(bag map[string]any) map[string]any {
	if bag == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && len(s) > maxValueLen {
			v = s[:maxValueLen] + "…"
		}
		out[k] = v
	}
	return out
}
