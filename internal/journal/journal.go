// Package journal implements the engine's durable trade ledger (spec §4.6,
// C2): an append-only newline-delimited JSON log of TradeRecord values,
// segmented daily by UTC calendar date. Writes fsync before returning
// success, so a crash can never leave a "filled but unrecorded" trade.
//
// The journal is a ledger, not a message bus: nothing in the engine blocks
// on reading it back, and consumers (analytics, retraining) are external.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// Journal appends TradeRecord values to a daily-rotated .jsonl segment file.
// All writes are serialized by a mutex; each Append fsyncs before returning,
// matching the "durable before success" contract in spec §4.6.
type Journal struct {
	mu       sync.Mutex
	dir      string
	day      string // current UTC segment's YYYY-MM-DD tag
	f        *os.File
	nextID   uint64
}

// Open creates (or resumes) a journal rooted at dir. The initial segment is
// selected for the given UTC instant; callers typically pass the engine's
// clock.Now() at startup.
func Open(dir string, now time.Time) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	j := &Journal{dir: dir}
	if err := j.rotateLocked(now.UTC()); err != nil {
		return nil, err
	}
	return j, nil
}

func segmentName(day string) string { return "trades-" + day + ".jsonl" }

// rotateLocked switches to the segment file for the given instant's UTC
// date, opening it for append if it doesn't already exist. Caller must hold
// j.mu.
func (j *Journal) rotateLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if j.f != nil && day == j.day {
		return nil
	}
	if j.f != nil {
		j.f.Close()
	}

	path := filepath.Join(j.dir, segmentName(day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal segment %s: %w", path, err)
	}
	j.f = f
	j.day = day
	return nil
}

// NextID returns a monotonically increasing record id for TradeRecord.ID.
// Safe for concurrent use even though the journal itself is single-writer
// in practice (one execution worker), matching spec §3's "id (monotonic)".
func (j *Journal) NextID() uint64 {
	return atomic.AddUint64(&j.nextID, 1)
}

// Append durably writes a TradeRecord. It rotates to a new daily segment if
// record.WallTime has crossed a UTC day boundary since the last write, then
// marshals, appends a newline, writes, and fsyncs before returning — a
// crash between write and fsync must never be reported as success.
func (j *Journal) Append(record types.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.rotateLocked(record.WallTime); err != nil {
		return fmt.Errorf("journal rotate: %w", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal trade record: %w", err)
	}
	data = append(data, '\n')

	if _, err := j.f.Write(data); err != nil {
		return fmt.Errorf("write trade record: %w", err)
	}
	if err := j.f.Sync(); err != nil {
		return fmt.Errorf("fsync trade record: %w", err)
	}
	return nil
}

// CloseDay force-rotates to a fresh segment for the given UTC date,
// regardless of the current wall time, matching spec §4.6's
// close_day(utc_date) operation.
func (j *Journal) CloseDay(utcDate time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	// Force a rotation even if utcDate's day tag matches the current one,
	// by clearing j.day first.
	j.day = ""
	return j.rotateLocked(utcDate.UTC())
}

// Close closes the currently open segment file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	return j.f.Close()
}

// IterSince reads every TradeRecord with WallTime >= since across all
// segment files in the journal directory, in file (day) order and then
// line order within a file. Unknown fields in a line are tolerated by
// json.Unmarshal's default behavior (spec §6 "forward-compatible").
func IterSince(dir string, since time.Time) ([]types.TradeRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read journal dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	// Lexical sort on "trades-YYYY-MM-DD.jsonl" is also chronological.
	sort.Strings(names)

	var out []types.TradeRecord
	for _, name := range names {
		path := filepath.Join(dir, name)
		records, err := readSegment(path)
		if err != nil {
			return nil, fmt.Errorf("read segment %s: %w", name, err)
		}
		for _, r := range records {
			if !r.WallTime.Before(since) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func readSegment(path string) ([]types.TradeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []types.TradeRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.TradeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal line: %w", err)
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}
