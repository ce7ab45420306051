// Package scanner enumerates candidate recording files within a
// date-bounded window of archive folders.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pbx-ops/recsync/internal/audio"
	"github.com/pbx-ops/recsync/internal/model"
)

// Window is an inclusive calendar date range.
type Window struct {
	From time.Time
	To   time.Time
}

// Options configures a Scanner.
type Options struct {
	Root          string
	Domain        string
	Extensions    []string // with leading dot, any case
	MinDuration   float64  // seconds
	CallIDPattern string   // regexp over the filename stem; empty = default
	Prober        audio.Prober
}

// Scanner walks the daily archive folders of a domain in deterministic
// order: dates ascending, then directory entries ascending. A file is a
// candidate only if its extension is allowed, its stem is a canonical call
// identifier, and its probed duration meets the minimum. Files failing any
// predicate are silently excluded. The scan is stateless and restartable.
type Scanner struct {
	root     string
	domain   string
	exts     map[string]bool
	minDur   float64
	callID   *regexp.Regexp
	uuidStem bool
	prober   audio.Prober
}

// defaultCallIDPattern is the canonical 8-4-4-4-12 hex call identifier.
const defaultCallIDPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

// New creates a Scanner from options.
func New(opts Options) (*Scanner, error) {
	pattern := opts.CallIDPattern
	if pattern == "" {
		pattern = defaultCallIDPattern
	}
	// The uuid.Parse cross-check applies only under the default pattern; a
	// custom pattern is authoritative on its own.
	uuidStem := pattern == defaultCallIDPattern
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, eris.Wrap(err, "scanner: compile call-id pattern")
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	prober := opts.Prober
	if prober == nil {
		prober = audio.FileProber{}
	}

	return &Scanner{
		root:     opts.Root,
		domain:   opts.Domain,
		exts:     exts,
		minDur:   opts.MinDuration,
		callID:   re,
		uuidStem: uuidStem,
		prober:   prober,
	}, nil
}

// ArchiveRoot returns the domain's archive directory.
func (s *Scanner) ArchiveRoot() string {
	return filepath.Join(s.root, s.domain, "archive")
}

// DayDir returns the expected folder for a calendar date:
// <root>/<domain>/archive/<YYYY>/<Mon>/<DD>.
func (s *Scanner) DayDir(date time.Time) string {
	return filepath.Join(s.ArchiveRoot(), date.Format("2006"), date.Format("Jan"), date.Format("02"))
}

// Scan walks every date in the window and invokes fn for each candidate
// file. Missing day folders are skipped, not errors. fn returning an error
// stops the scan and propagates.
func (s *Scanner) Scan(ctx context.Context, w Window, fn func(model.CallRecording) error) error {
	log := zap.L()

	for date := dateOnly(w.From); !date.After(dateOnly(w.To)); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "scanner: cancelled")
		}

		dir := s.DayDir(date)
		if _, err := os.Stat(dir); err != nil {
			log.Debug("scanner: day folder absent", zap.String("dir", dir))
			continue
		}

		log.Debug("scanner: scanning folder", zap.String("dir", dir))

		// WalkDir visits entries in lexical order, which keeps the
		// candidate sequence deterministic across runs.
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warn("scanner: walk error", zap.String("path", path), zap.Error(err))
				return nil
			}
			if d.IsDir() {
				return nil
			}

			rec, ok := s.candidate(path, d, date)
			if !ok {
				return nil
			}
			return fn(rec)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// candidate applies the three candidate predicates and builds the
// CallRecording. Non-candidates are excluded silently.
func (s *Scanner) candidate(path string, d fs.DirEntry, date time.Time) (model.CallRecording, bool) {
	base := d.Name()
	ext := strings.ToLower(filepath.Ext(base))
	if !s.exts[ext] {
		return model.CallRecording{}, false
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if !s.callID.MatchString(stem) {
		return model.CallRecording{}, false
	}
	if s.uuidStem {
		if _, err := uuid.Parse(stem); err != nil {
			return model.CallRecording{}, false
		}
	}

	info, err := d.Info()
	if err != nil {
		zap.L().Warn("scanner: stat failed", zap.String("path", path), zap.Error(err))
		return model.CallRecording{}, false
	}

	dur, err := s.prober.Duration(path)
	if err != nil {
		// Unreadable or corrupt audio fails soft: zero duration excludes it.
		zap.L().Warn("scanner: duration probe failed", zap.String("path", path), zap.Error(err))
		dur = 0
	}
	if dur < s.minDur {
		zap.L().Debug("scanner: below minimum duration",
			zap.String("path", path),
			zap.Float64("duration_secs", dur),
			zap.Float64("min_secs", s.minDur),
		)
		return model.CallRecording{}, false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	return model.CallRecording{
		Path:     abs,
		CallID:   strings.ToLower(stem),
		Ext:      ext,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Duration: dur,
		Date:     date,
	}, true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
