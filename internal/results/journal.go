// Package results persists final match outcomes. Live reports append to a
// snappy-compressed JSONL journal; closed journals can be compacted into
// zstd archives for long-term retention.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
)

// Report is the final outcome a match process submits for one session.
type Report struct {
	RoomID  int      `json:"room_id"`
	GameID  int      `json:"game_id"`
	Winners []string `json:"winners"`
	Losers  []string `json:"losers"`
	Players []string `json:"players"`
}

// journalName is the live journal file within the results directory.
const journalName = "results.jsonl.sz"

// Journal appends match reports to a compressed JSONL stream.
type Journal struct {
	mu     sync.Mutex
	dir    string
	file   *os.File
	stream *snappy.Writer
	count  int
	now    func() time.Time
}

// Option configures optional journal behaviour.
type Option func(*Journal)

// WithClock injects a deterministic clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(j *Journal) {
		if clock != nil {
			j.now = clock
		}
	}
}

// Open prepares the results directory and the live journal for appending.
func Open(dir string, opts ...Option) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("results directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filepath.Join(dir, journalName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	journal := &Journal{
		dir:    dir,
		file:   file,
		stream: snappy.NewBufferedWriter(file),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(journal)
		}
	}
	return journal, nil
}

// Append writes one report as a JSON line and flushes it to disk.
func (j *Journal) Append(report Report) error {
	if j == nil {
		return errors.New("journal not initialised")
	}
	if report.RoomID <= 0 {
		return fmt.Errorf("report requires a room id, got %d", report.RoomID)
	}

	record := struct {
		Report
		RecordedAt string `json:"recorded_at"`
	}{Report: report, RecordedAt: j.now().UTC().Format(time.RFC3339Nano)}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.stream.Write(line); err != nil {
		return err
	}
	if _, err := j.stream.Write([]byte("\n")); err != nil {
		return err
	}
	j.count++
	return j.stream.Flush()
}

// Count reports how many results were appended by this process.
func (j *Journal) Count() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Close flushes and releases the journal file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	var firstErr error
	if err := j.stream.Close(); err != nil {
		firstErr = err
	}
	if err := j.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
