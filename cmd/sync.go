package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbx-ops/recsync/internal/cdr"
	"github.com/pbx-ops/recsync/internal/config"
	"github.com/pbx-ops/recsync/internal/model"
	"github.com/pbx-ops/recsync/internal/notify"
	"github.com/pbx-ops/recsync/internal/pipeline"
	"github.com/pbx-ops/recsync/internal/resolver"
	"github.com/pbx-ops/recsync/internal/scanner"
	"github.com/pbx-ops/recsync/internal/state"
	"github.com/pbx-ops/recsync/internal/uploader"
)

// syncGateway is what a sync run needs from the CDR store.
type syncGateway interface {
	pipeline.CDRGateway
	Extensions(ctx context.Context, domain string) (map[string]bool, error)
	Close()
}

// workflowTrigger starts the downstream workflow execution for a batch.
type workflowTrigger interface {
	Notify(ctx context.Context, m notify.Manifest) (string, error)
}

// Client constructors are variables so tests can substitute fakes for the
// real Postgres and AWS clients.
var (
	newGateway = func(ctx context.Context, dbCfg config.DBConfig) (syncGateway, error) {
		return cdr.New(ctx, dbCfg)
	}
	newUploader = func(ctx context.Context, region string, opts ...uploader.Option) (pipeline.Uploader, error) {
		return uploader.New(ctx, region, opts...)
	}
	newNotifier = func(ctx context.Context, region, arn string) (workflowTrigger, error) {
		return notify.New(ctx, region, arn)
	}
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental scan/resolve/upload pass",
	Long: `Run one pass of the pipeline: scan the date window for candidate
recordings, resolve each against the CDR store, upload new files to S3, and
trigger the workflow for the batch.

Without flags the window runs from the last successful run to today (or the
seed window on first run). --from/--to force an explicit range and leave the
last-run timestamp untouched. --resume reuses the configuration snapshot
saved by the previous run. --one-file-test uploads at most one file and
remembers it so later test runs pick a different one.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("dry-run", false, "decide and plan but skip uploads and the workflow trigger")
	syncCmd.Flags().String("from", "", "explicit window start (YYYY-MM-DD, inclusive)")
	syncCmd.Flags().String("to", "", "explicit window end (YYYY-MM-DD, inclusive)")
	syncCmd.Flags().Bool("resume", false, "reuse the config snapshot saved in the state file")
	syncCmd.Flags().Bool("one-file-test", false, "stop after the first (would-be) upload")
	syncCmd.Flags().String("prefix", "", "override the configured key prefix for this run only")
	syncCmd.Flags().String("plan-file", "", "rename-plan output path (default: <state file>.plan.json)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := zap.L().With(zap.String("command", "sync"))

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	resume, _ := cmd.Flags().GetBool("resume")
	oneFileTest, _ := cmd.Flags().GetBool("one-file-test")
	planFile, _ := cmd.Flags().GetString("plan-file")

	if cfg.State.File == "" {
		return fatal(exitStorageUnset, eris.New("sync: state.file is not configured"))
	}
	store := state.NewStore(cfg.State.File)
	st := store.Load()

	if resume {
		if len(st.ConfigSnapshot) == 0 {
			return fatal(exitStorageUnset, eris.New("sync: --resume given but state has no config snapshot"))
		}
		snap, err := config.SnapshotFromMap(st.ConfigSnapshot)
		if err != nil {
			return fatal(exitStorageUnset, eris.Wrap(err, "sync: decode config snapshot"))
		}
		cfg.ApplySnapshot(snap)
		log.Info("resumed config snapshot from state")
	}

	if cfg.S3.Bucket == "" {
		return fatal(exitStorageUnset, eris.New("sync: s3.bucket is not configured"))
	}
	if cfg.Recordings.Domain == "" {
		return fatal(exitStorageUnset, eris.New("sync: recordings.domain is not configured"))
	}

	// Per-run prefix override, never persisted.
	keyPrefix := cfg.S3.KeyPrefix
	if cmd.Flags().Changed("prefix") {
		keyPrefix, _ = cmd.Flags().GetString("prefix")
		log.Info("key prefix overridden for this run", zap.String("prefix", keyPrefix))
	}

	explicit, err := pipeline.ParseWindow(fromStr, toStr)
	if err != nil {
		return fatal(exitBadDateRange, err)
	}

	scn, err := scanner.New(scanner.Options{
		Root:          cfg.Recordings.Root,
		Domain:        cfg.Recordings.Domain,
		Extensions:    cfg.Scan.Extensions,
		MinDuration:   cfg.Scan.MinDurationSecs,
		CallIDPattern: cfg.Scan.CallIDPattern,
	})
	if err != nil {
		return fatal(exitStorageUnset, err)
	}
	if _, err := os.Stat(scn.ArchiveRoot()); err != nil {
		return fatal(exitNoArchive, eris.Wrapf(err, "sync: archive root %s", scn.ArchiveRoot()))
	}

	gateway, err := newGateway(ctx, cfg.DB)
	if err != nil {
		return fatal(exitDBUnreach, err)
	}
	defer gateway.Close()

	known, err := gateway.Extensions(ctx, cfg.Recordings.Domain)
	if err != nil {
		return fatal(exitDBUnreach, err)
	}
	log.Info("loaded extension directory", zap.Int("extensions", len(known)))

	var up pipeline.Uploader
	if !dryRun {
		s3up, err := newUploader(ctx, cfg.S3.Region, uploadOpts()...)
		if err != nil {
			return fatal(exitStorageUnset, err)
		}
		up = s3up
	}

	pruned := state.Prune(st, cfg.State.RetentionDays, nowUTC())
	if pruned > 0 {
		log.Info("pruned stale upload records", zap.Int("removed", pruned))
	}

	window := pipeline.ComputeWindow(st, explicit, cfg.State.InitialSeedDays, nowUTC())

	engine := pipeline.NewEngine(pipeline.Options{
		Domain:             cfg.Recordings.Domain,
		Bucket:             cfg.S3.Bucket,
		KeyPrefix:          keyPrefix,
		AgentAllow:         cfg.Agents.Allow,
		DryRun:             dryRun,
		OneFileTest:        oneFileTest,
		RedetectSizeChange: cfg.Upload.RedetectSizeChange,
	}, gateway, resolver.New(cfg.Resolver.Strategy, known), up, st)

	if err := scn.Scan(ctx, window, func(rec model.CallRecording) error {
		return engine.Process(ctx, rec)
	}); err != nil && !errors.Is(err, pipeline.ErrStop) {
		return fatal(exitDBUnreach, err)
	}

	stats := engine.Stats()

	// Trigger the workflow only when something was actually uploaded.
	if !dryRun && stats.Uploaded > 0 && cfg.StepFunction.ARN != "" {
		notifier, err := newNotifier(ctx, cfg.S3.Region, cfg.StepFunction.ARN)
		if err != nil {
			log.Warn("workflow trigger unavailable", zap.Error(err))
		} else {
			arn, err := notifier.Notify(ctx, notify.Manifest{
				Domain:      cfg.Recordings.Domain,
				GeneratedAt: nowUTC(),
				Files:       engine.Manifest(),
			})
			if err != nil {
				// Best-effort: uploads and state remain valid.
				log.Warn("workflow trigger failed", zap.Error(err))
			} else {
				log.Info("workflow execution started", zap.String("execution_arn", arn))
				st.StepFunctionExecutions = append(st.StepFunctionExecutions, executionRecord(arn, stats.Uploaded))
			}
		}
	}

	plan := engine.Plan(window)
	st.LastPlan = plan
	if planFile == "" {
		planFile = cfg.State.File + ".plan.json"
	}
	if err := state.WritePlan(planFile, plan); err != nil {
		log.Warn("plan write failed", zap.Error(err))
	}

	// Explicit-range, one-file-test, and dry-run runs never advance the
	// incremental cursor: a dry run uploads nothing, so advancing past its
	// window would silently orphan every file it classified.
	if explicit == nil && !oneFileTest && !dryRun {
		now := nowUTC()
		st.LastRunTime = &now
	}

	snapMap, err := config.SnapshotMap(cfg.Snapshot())
	if err != nil {
		log.Warn("config snapshot failed", zap.Error(err))
	} else {
		st.ConfigSnapshot = snapMap
	}

	if err := store.Save(st); err != nil {
		return eris.Wrap(err, "sync: save state")
	}

	log.Info("run complete",
		zap.Int("candidates", stats.Candidates),
		zap.Int("uploaded", stats.Uploaded),
		zap.Int("would_upload", stats.WouldUpload),
		zap.Int("already_uploaded", stats.AlreadyUploaded),
		zap.Int("cdr_missing", stats.CDRMissing),
		zap.Int("no_agent_match", stats.NoAgentMatch),
		zap.Int("agent_filtered", stats.AgentFiltered),
		zap.Int("upload_failed", stats.UploadFailed),
	)
	fmt.Printf("Sync complete: %d uploaded, %d skipped, %d failed (plan: %s)\n",
		stats.Uploaded,
		stats.AlreadyUploaded+stats.AgentFiltered+stats.NoAgentMatch+stats.CDRMissing,
		stats.UploadFailed,
		planFile,
	)
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func executionRecord(arn string, count int) model.ExecutionRecord {
	return model.ExecutionRecord{
		ExecutionARN: arn,
		StartedAt:    nowUTC(),
		FileCount:    count,
	}
}

func uploadOpts() []uploader.Option {
	var opts []uploader.Option
	if cfg.S3.Checksum {
		opts = append(opts, uploader.WithChecksum())
	}
	if cfg.Upload.RateLimit > 0 {
		opts = append(opts, uploader.WithRateLimit(cfg.Upload.RateLimit))
	}
	return opts
}
