// Package state persists the run-state document and the rename-plan audit
// artifact. It is the single serialization boundary: domain timestamps are
// normalized to UTC second precision here and nowhere else.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pbx-ops/recsync/internal/model"
)

// Store reads and writes the JSON run-state document at a fixed path. The
// document is loaded once at run start and rewritten once at the end; the
// file is not lock-protected, so deployment must guarantee one run at a
// time per domain.
type Store struct {
	path string
}

// NewStore creates a store for the given state file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state document. A missing or corrupt file yields an empty
// document: prior-state loss is survivable, a crashed run is not resumed.
func (s *Store) Load() *model.RunState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("state: read failed, starting fresh", zap.String("path", s.path), zap.Error(err))
		}
		return model.NewRunState()
	}

	var st model.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		zap.L().Warn("state: corrupt document, starting fresh", zap.String("path", s.path), zap.Error(err))
		return model.NewRunState()
	}
	if st.UploadedFiles == nil {
		st.UploadedFiles = make(map[string]model.UploadRecord)
	}
	return &st
}

// Save rewrites the state document atomically: marshal, write a sibling
// temp file, rename over the target.
func (s *Store) Save(st *model.RunState) error {
	sanitize(st)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return eris.Wrap(err, "state: marshal")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "state: create dir %s", dir)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "state: write %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return eris.Wrapf(err, "state: rename %s", s.path)
	}
	return nil
}

// Prune removes upload records older than the retention window. Records at
// or newer than the cutoff are never removed. Returns the number dropped.
func Prune(st *model.RunState, retentionDays int, now time.Time) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := now.UTC().AddDate(0, 0, -retentionDays)

	removed := 0
	for path, rec := range st.UploadedFiles {
		if rec.UploadedAt.Before(cutoff) {
			delete(st.UploadedFiles, path)
			removed++
		}
	}
	if removed > 0 {
		zap.L().Info("state: pruned upload records",
			zap.Int("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed
}

// WritePlan writes the rename-plan audit document.
func WritePlan(path string, plan *model.RenamePlan) error {
	plan.GeneratedAt = jsonSafe(plan.GeneratedAt)

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return eris.Wrap(err, "state: marshal plan")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "state: create plan dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "state: write plan %s", path)
	}
	return nil
}

// sanitize maps every domain timestamp in the document to a JSON-safe form
// (UTC, second precision) in one place, at the write boundary.
func sanitize(st *model.RunState) {
	if st.LastRunTime != nil {
		t := jsonSafe(*st.LastRunTime)
		st.LastRunTime = &t
	}
	for path, rec := range st.UploadedFiles {
		rec.UploadedAt = jsonSafe(rec.UploadedAt)
		st.UploadedFiles[path] = rec
	}
	for i := range st.StepFunctionExecutions {
		st.StepFunctionExecutions[i].StartedAt = jsonSafe(st.StepFunctionExecutions[i].StartedAt)
	}
	if st.LastPlan != nil {
		st.LastPlan.GeneratedAt = jsonSafe(st.LastPlan.GeneratedAt)
	}
}

func jsonSafe(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
