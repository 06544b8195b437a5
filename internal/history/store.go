// Package history keeps the durable, date-keyed record of usage snapshots.
//
// The whole log lives in a single JSON document mapping an ISO-8601 date to
// the snapshot taken that day. Every write replaces the full document via a
// temp file and rename, so a crash mid-write can never corrupt prior history.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const fileName = "usage_history.json"

// dateLayout is the key format of the persisted log.
const dateLayout = "2006-01-02"

// Record is one snapshot of account usage, keyed by the date it was taken.
// At most one Record exists per date; a later snapshot on the same date
// replaces the earlier one.
type Record struct {
	// Date is the snapshot date. Only the calendar day is significant.
	Date time.Time
	// UsedGB is the data consumed this billing cycle, normalized to GB.
	UsedGB float64
	// RemainingGB is nil when the plan has no cap.
	RemainingGB *float64
	// CycleEnd is nil when the portal did not expose the cycle end date.
	CycleEnd *string
	// CapturedAt is the wall-clock time the extraction ran.
	CapturedAt time.Time
}

// PlanGB returns the plan total when the cap is known, and false otherwise.
func (r Record) PlanGB() (float64, bool) {
	if r.RemainingGB == nil {
		return 0, false
	}
	return r.UsedGB + *r.RemainingGB, true
}

// PercentUsed returns used data as a percentage of the plan total, when the
// cap is known.
func (r Record) PercentUsed() (float64, bool) {
	plan, ok := r.PlanGB()
	if !ok || plan <= 0 {
		return 0, false
	}
	return r.UsedGB / plan * 100, true
}

// persisted is the on-disk shape of a single record. The snapshot date is the
// map key, not a field.
type persisted struct {
	UsedGB      float64  `json:"usedGB"`
	RemainingGB *float64 `json:"remainingGB"`
	CycleEnd    *string  `json:"cycleEnd"`
	CapturedAt  string   `json:"capturedAt"`
}

// Store reads and writes the usage history document under dataDir.
type Store struct {
	path string
}

// New returns a Store backed by usage_history.json inside dataDir. The file
// is created on first Upsert; a missing file reads as an empty log.
func New(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, fileName)}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (map[string]persisted, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]persisted{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading usage history: %w", err)
	}
	if len(data) == 0 {
		return map[string]persisted{}, nil
	}
	var log map[string]persisted
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parsing usage history: %w", err)
	}
	if log == nil {
		log = map[string]persisted{}
	}
	return log, nil
}

// Upsert records one snapshot. An existing entry for the same date is
// replaced; upserting the same record twice leaves a single unchanged entry.
// The log is rewritten in full, to a temp file renamed into place.
func (s *Store) Upsert(rec Record) error {
	if rec.UsedGB < 0 {
		return fmt.Errorf("refusing to record negative usage: %v GB", rec.UsedGB)
	}
	if rec.Date.IsZero() {
		return errors.New("record has no snapshot date")
	}

	log, err := s.load()
	if err != nil {
		return err
	}

	log[rec.Date.Format(dateLayout)] = persisted{
		UsedGB:      rec.UsedGB,
		RemainingGB: rec.RemainingGB,
		CycleEnd:    rec.CycleEnd,
		CapturedAt:  rec.CapturedAt.Format(time.RFC3339),
	}

	return s.write(log)
}

func (s *Store) write(log map[string]persisted) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding usage history: %w", err)
	}

	tmp, err := os.CreateTemp(dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing usage history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp history file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting history file mode: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing usage history: %w", err)
	}
	return nil
}

// ReadAll returns every recorded snapshot in ascending date order. Each call
// re-reads from disk, reflecting the latest committed state.
func (s *Store) ReadAll() ([]Record, error) {
	log, err := s.load()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(log))
	for key, p := range log {
		date, err := time.Parse(dateLayout, key)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot date %q in history: %w", key, err)
		}
		capturedAt, err := time.Parse(time.RFC3339, p.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid capture timestamp for %s: %w", key, err)
		}
		records = append(records, Record{
			Date:        date,
			UsedGB:      p.UsedGB,
			RemainingGB: p.RemainingGB,
			CycleEnd:    p.CycleEnd,
			CapturedAt:  capturedAt,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

// Latest returns the most recent snapshot, or false when the log is empty.
func (s *Store) Latest() (Record, bool, error) {
	records, err := s.ReadAll()
	if err != nil {
		return Record{}, false, err
	}
	if len(records) == 0 {
		return Record{}, false, nil
	}
	return records[len(records)-1], true, nil
}
