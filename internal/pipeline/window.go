package pipeline

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pbx-ops/recsync/internal/model"
	"github.com/pbx-ops/recsync/internal/scanner"
)

// ParseWindow parses an explicit --from/--to date range (YYYY-MM-DD,
// inclusive). Both bounds are required together and must be ordered.
func ParseWindow(from, to string) (*scanner.Window, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, eris.New("pipeline: --from and --to must be given together")
	}

	f, err := time.ParseInLocation("2006-01-02", from, time.UTC)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse --from %q", from)
	}
	t, err := time.ParseInLocation("2006-01-02", to, time.UTC)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse --to %q", to)
	}
	if t.Before(f) {
		return nil, eris.Errorf("pipeline: date range %s..%s is reversed", from, to)
	}
	return &scanner.Window{From: f, To: t}, nil
}

// ComputeWindow selects the scan window for a run: an explicit range when
// given, otherwise the span from the last successful run to today, or the
// first-run seed window.
func ComputeWindow(st *model.RunState, explicit *scanner.Window, seedDays int, now time.Time) scanner.Window {
	today := now.UTC()

	if explicit != nil {
		zap.L().Info("pipeline: explicit date range",
			zap.String("from", explicit.From.Format("2006-01-02")),
			zap.String("to", explicit.To.Format("2006-01-02")),
		)
		return *explicit
	}

	if st.LastRunTime != nil {
		zap.L().Info("pipeline: incremental window",
			zap.Time("last_run", *st.LastRunTime),
		)
		return scanner.Window{From: st.LastRunTime.UTC(), To: today}
	}

	if seedDays < 1 {
		seedDays = 1
	}
	zap.L().Info("pipeline: first run, seeding", zap.Int("seed_days", seedDays))
	return scanner.Window{From: today.AddDate(0, 0, -(seedDays - 1)), To: today}
}
