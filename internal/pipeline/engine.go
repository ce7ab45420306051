// Package pipeline orchestrates the per-file upload decisioning: resolve
// identity, build the key, consult run state for idempotence, upload, and
// keep the audit plan.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pbx-ops/recsync/internal/model"
	"github.com/pbx-ops/recsync/internal/notify"
	"github.com/pbx-ops/recsync/internal/objkey"
	"github.com/pbx-ops/recsync/internal/resolver"
	"github.com/pbx-ops/recsync/internal/scanner"
)

// ErrStop signals that the scan should halt early; one-file-test mode
// raises it after its single (would-be) upload.
var ErrStop = eris.New("pipeline: stop requested")

// CDRGateway is the lookup surface the engine needs.
type CDRGateway interface {
	Lookup(ctx context.Context, callID string) (*model.CDR, error)
	LookupPeer(ctx context.Context, xmlUUID, bridgeUUID string) (*model.CDR, error)
}

// Uploader performs the object put and returns the object location.
type Uploader interface {
	Upload(ctx context.Context, path, bucket, key string) (string, error)
}

// Options fixes the engine's per-run policy.
type Options struct {
	Domain    string
	Bucket    string
	KeyPrefix string
	// AgentAllow is the optional agent allow-list; empty passes all agents.
	AgentAllow []string
	DryRun     bool
	// OneFileTest stops after the first (would-be) upload and records the
	// path so it is never tested again.
	OneFileTest bool
	// RedetectSizeChange re-uploads a known path whose size changed
	// (legacy variant; the documented contract is path-only dedupe).
	RedetectSizeChange bool
}

// Engine processes candidate files sequentially and accumulates run
// statistics, the rename plan, and the upload manifest.
type Engine struct {
	opts     Options
	gateway  CDRGateway
	resolver resolver.Resolver
	uploader Uploader
	state    *model.RunState

	allow    map[string]bool
	stats    model.RunStats
	entries  []model.PlanEntry
	manifest []notify.ManifestFile

	now func() time.Time // injectable for testing
}

// NewEngine creates an engine bound to one run's collaborators and state.
func NewEngine(opts Options, gw CDRGateway, res resolver.Resolver, up Uploader, st *model.RunState) *Engine {
	allow := make(map[string]bool, len(opts.AgentAllow))
	for _, a := range opts.AgentAllow {
		if a != "" {
			allow[a] = true
		}
	}
	return &Engine{
		opts:     opts,
		gateway:  gw,
		resolver: res,
		uploader: up,
		state:    st,
		allow:    allow,
		now:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (e *Engine) WithNow(fn func() time.Time) *Engine {
	e.now = fn
	return e
}

// Process decides and executes the outcome for one candidate file. The
// returned error is nil for every per-file outcome; only transport failures
// of the CDR gateway (fatal to the run) and ErrStop propagate.
func (e *Engine) Process(ctx context.Context, rec model.CallRecording) error {
	log := zap.L().With(zap.String("path", rec.Path), zap.String("call_id", rec.CallID))
	e.stats.Candidates++

	entry := model.PlanEntry{
		Path:         rec.Path,
		CallID:       rec.CallID,
		DurationSecs: rec.Duration,
		SizeBytes:    rec.Size,
	}

	if e.opts.OneFileTest && e.state.TestedBefore(rec.Path) {
		entry.Decision = model.DecisionAlreadyTested
		e.record(entry)
		return nil
	}

	if prev, ok := e.state.UploadedFiles[rec.Path]; ok {
		if !e.opts.RedetectSizeChange || prev.FileSize == rec.Size {
			entry.Decision = model.DecisionAlreadyUploaded
			e.record(entry)
			return nil
		}
		log.Info("pipeline: size changed, re-uploading",
			zap.Int64("previous_size", prev.FileSize),
			zap.Int64("current_size", rec.Size),
		)
	}

	cdr, err := e.gateway.Lookup(ctx, rec.CallID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: cdr lookup for %s", rec.Path)
	}
	if cdr == nil {
		e.stats.CDRMissing++
		entry.Decision = model.DecisionCDRMissing
		entry.Reason = "no CDR row for call identifier"
		e.record(entry)
		return nil
	}
	e.stats.CDRFound++

	id := e.resolver.Resolve(cdr)

	// The primary leg can carry the agent's own number where the external
	// party should be; the bridged peer leg usually has the real one.
	if !id.CustomerResolved() {
		peer, err := e.gateway.LookupPeer(ctx, cdr.CallID, cdr.BridgeUUID)
		if err != nil {
			return eris.Wrapf(err, "pipeline: peer lookup for %s", rec.Path)
		}
		id = resolver.RederiveCustomer(id, peer)
	}

	if id.Timestamp == nil {
		mt := rec.ModTime
		id.Timestamp = &mt
		log.Debug("pipeline: no usable CDR stamp, using file mtime")
	}

	entry.Agent = id.Agent
	entry.AgentSource = id.AgentSource
	entry.Customer = id.Customer
	entry.CustomerSource = id.CustomerSource
	entry.CallTime = id.Timestamp.UTC().Format(time.RFC3339)

	if !id.AgentResolved() {
		log.Info("pipeline: agent unresolved, skipping")
		entry.Decision = model.DecisionNoAgentMatch
		e.record(entry)
		return nil
	}

	if len(e.allow) > 0 && !e.allow[id.Agent] {
		entry.Decision = model.DecisionAgentFiltered
		entry.Reason = "agent not in allow-list"
		e.record(entry)
		return nil
	}

	key := objkey.WithPrefix(e.opts.KeyPrefix,
		objkey.Build(e.opts.Domain, id.Customer, rec.CallID, id.Agent, id.Timestamp, rec.Ext))
	entry.Bucket = e.opts.Bucket
	entry.ProposedKey = key

	if e.opts.DryRun {
		entry.Decision = model.DecisionWouldUpload
		e.record(entry)
		if e.opts.OneFileTest {
			e.state.OneFileTestHistory = append(e.state.OneFileTestHistory, rec.Path)
			return ErrStop
		}
		return nil
	}

	loc, err := e.uploader.Upload(ctx, rec.Path, e.opts.Bucket, key)
	if err != nil {
		// Upload failures are per-file: surfaced in the plan and summary,
		// reconsidered on the next scheduled run.
		log.Error("pipeline: upload failed", zap.Error(err))
		entry.Decision = model.DecisionUploadFailed
		entry.Reason = err.Error()
		e.record(entry)
		return nil
	}

	log.Info("pipeline: uploaded", zap.String("location", loc))
	entry.Decision = model.DecisionUploaded
	e.record(entry)

	e.state.UploadedFiles[rec.Path] = model.UploadRecord{
		UploadedAt: e.now().UTC(),
		FileSize:   rec.Size,
		Bucket:     e.opts.Bucket,
		Key:        key,
		CallID:     rec.CallID,
	}
	e.manifest = append(e.manifest, notify.ManifestFile{
		CallID:    rec.CallID,
		LocalPath: rec.Path,
		Bucket:    e.opts.Bucket,
		Key:       key,
		Agent:     id.Agent,
		Customer:  id.Customer,
		Timestamp: entry.CallTime,
	})

	if e.opts.OneFileTest {
		e.state.OneFileTestHistory = append(e.state.OneFileTestHistory, rec.Path)
		return ErrStop
	}
	return nil
}

// record appends the plan entry and bumps the matching counter. Every
// candidate gets exactly one entry.
func (e *Engine) record(entry model.PlanEntry) {
	e.entries = append(e.entries, entry)
	switch entry.Decision {
	case model.DecisionCDRMissing:
		// counted at lookup time alongside CDRFound
	case model.DecisionNoAgentMatch:
		e.stats.NoAgentMatch++
	case model.DecisionAlreadyUploaded:
		e.stats.AlreadyUploaded++
	case model.DecisionAlreadyTested:
		e.stats.AlreadyTested++
	case model.DecisionAgentFiltered:
		e.stats.AgentFiltered++
	case model.DecisionUploaded:
		e.stats.Uploaded++
	case model.DecisionWouldUpload:
		e.stats.WouldUpload++
	case model.DecisionUploadFailed:
		e.stats.UploadFailed++
	}
}

// Stats returns the accumulated run statistics.
func (e *Engine) Stats() model.RunStats {
	return e.stats
}

// Manifest returns the batch manifest entries for successful uploads.
func (e *Engine) Manifest() []notify.ManifestFile {
	return e.manifest
}

// Plan assembles the complete rename-plan audit document for the run.
func (e *Engine) Plan(w scanner.Window) *model.RenamePlan {
	return &model.RenamePlan{
		Domain:      e.opts.Domain,
		GeneratedAt: e.now().UTC(),
		DryRun:      e.opts.DryRun,
		WindowFrom:  w.From.Format("2006-01-02"),
		WindowTo:    w.To.Format("2006-01-02"),
		Stats:       e.stats,
		Entries:     e.entries,
	}
}
