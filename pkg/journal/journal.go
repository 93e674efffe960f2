// Package journal persists per-cycle audit records for the cache warmer as
// JSON files, one file per refresh cycle.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RegionResult captures the outcome of warming a single region.
type RegionResult struct {
	Region       string  `json:"region"`
	Samples      int     `json:"samples"`
	LatestSample string  `json:"latest_sample,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	DurationMS   float64 `json:"duration_ms"`
}

// CycleRecord captures one end-to-end warm cycle for audit and analysis.
type CycleRecord struct {
	Timestamp   time.Time      `json:"timestamp"`
	CycleNumber int            `json:"cycle_number"`
	Market      string         `json:"market"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	Regions     []RegionResult `json:"regions"`
	Success     bool           `json:"success"`
}

// Writer persists cycle records to a directory as JSON files.
type Writer struct {
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteCycle writes a cycle record to a timestamped JSON file and returns
// its path.
func (w *Writer) WriteCycle(rec *CycleRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	if rec.CycleNumber == 0 {
		rec.CycleNumber = w.seq
	}
	name := fmt.Sprintf("warm_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
