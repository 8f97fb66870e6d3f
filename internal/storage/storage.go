package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// RunStore keeps finished scrape runs in a JSON file so results survive
// restarts without requiring a database.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[string]*StoredRun
	filename string
	maxRuns  int
}

// StoredRun is the persisted form of one run. The raw payload is kept
// as-is so the store does not depend on the result schema.
type StoredRun struct {
	RunID      string          `json:"run_id"`
	FinishedAt string          `json:"finished_at"`
	Success    bool            `json:"success"`
	Payload    json.RawMessage `json:"payload"`
}

func NewRunStore(filename string, maxRuns int) (*RunStore, error) {
	if maxRuns <= 0 {
		maxRuns = 50
	}

	rs := &RunStore{
		runs:     make(map[string]*StoredRun),
		filename: filename,
		maxRuns:  maxRuns,
	}

	if err := rs.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return rs, nil
}

// Save stores a run, evicting the oldest runs beyond the cap.
func (rs *RunStore) Save(runID, finishedAt string, success bool, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", runID, err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.runs[runID] = &StoredRun{
		RunID:      runID,
		FinishedAt: finishedAt,
		Success:    success,
		Payload:    data,
	}

	rs.evict()
	return rs.save()
}

func (rs *RunStore) Get(runID string) (*StoredRun, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	run, exists := rs.runs[runID]
	return run, exists
}

// Recent returns up to limit runs, newest first.
func (rs *RunStore) Recent(limit int) []*StoredRun {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	runs := make([]*StoredRun, 0, len(rs.runs))
	for _, run := range rs.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].FinishedAt > runs[j].FinishedAt
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

func (rs *RunStore) evict() {
	if len(rs.runs) <= rs.maxRuns {
		return
	}

	ordered := make([]*StoredRun, 0, len(rs.runs))
	for _, run := range rs.runs {
		ordered = append(ordered, run)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].FinishedAt < ordered[j].FinishedAt
	})

	for _, run := range ordered[:len(rs.runs)-rs.maxRuns] {
		delete(rs.runs, run.RunID)
	}
}

func (rs *RunStore) save() error {
	data, err := json.MarshalIndent(rs.runs, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first for atomicity
	tmpFile := rs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, rs.filename)
}

func (rs *RunStore) load() error {
	data, err := os.ReadFile(rs.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &rs.runs)
}
