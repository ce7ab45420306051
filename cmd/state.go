package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbx-ops/recsync/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or maintain the run-state document",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a summary of the run-state document",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.State.File == "" {
			return fatal(exitStorageUnset, eris.New("state: state.file is not configured"))
		}
		st := state.NewStore(cfg.State.File).Load()

		if st.LastRunTime != nil {
			fmt.Printf("last_run_time_utc: %s\n", st.LastRunTime.Format("2006-01-02T15:04:05Z"))
		} else {
			fmt.Println("last_run_time_utc: (none)")
		}
		fmt.Printf("uploaded_files: %d\n", len(st.UploadedFiles))
		fmt.Printf("one_file_test_history: %d\n", len(st.OneFileTestHistory))
		fmt.Printf("step_function_executions: %d\n", len(st.StepFunctionExecutions))
		if st.LastPlan != nil {
			fmt.Printf("last_plan: %s .. %s, %d entries, %d uploaded\n",
				st.LastPlan.WindowFrom, st.LastPlan.WindowTo,
				len(st.LastPlan.Entries), st.LastPlan.Stats.Uploaded)
		}
		return nil
	},
}

var statePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply retention pruning without running a sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L().With(zap.String("command", "state.prune"))

		if cfg.State.File == "" {
			return fatal(exitStorageUnset, eris.New("state: state.file is not configured"))
		}
		store := state.NewStore(cfg.State.File)
		st := store.Load()

		removed := state.Prune(st, cfg.State.RetentionDays, nowUTC())
		if removed == 0 {
			fmt.Println("Nothing to prune")
			return nil
		}

		if err := store.Save(st); err != nil {
			return eris.Wrap(err, "state: save after prune")
		}
		log.Info("pruned", zap.Int("removed", removed))
		fmt.Printf("Pruned %d record(s)\n", removed)
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(statePruneCmd)
	rootCmd.AddCommand(stateCmd)
}
