package model

import "time"

// UploadRecord proves a file was uploaded. Keyed by absolute path in
// RunState.UploadedFiles; its presence means the file is never uploaded
// again (path-only dedupe).
type UploadRecord struct {
	UploadedAt time.Time `json:"uploaded_at"`
	FileSize   int64     `json:"file_size"`
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	CallID     string    `json:"call_id"`
}

// ExecutionRecord logs one downstream workflow execution started after a
// batch of uploads.
type ExecutionRecord struct {
	ExecutionARN string    `json:"execution_arn"`
	StartedAt    time.Time `json:"started_at"`
	FileCount    int       `json:"file_count"`
}

// RunState is the full persisted document. It is loaded once at run start,
// mutated throughout the run, and rewritten atomically at the end; nothing
// is persisted mid-run.
type RunState struct {
	// LastRunTime is the UTC completion time of the last normal incremental
	// run. Omitted when the run used an explicit date range or the
	// one-file-test mode.
	LastRunTime *time.Time `json:"last_run_time_utc,omitempty"`

	// UploadedFiles maps absolute path to its upload record.
	UploadedFiles map[string]UploadRecord `json:"uploaded_files"`

	// OneFileTestHistory lists paths already exercised by one-file-test
	// mode; each path is tested at most once.
	OneFileTestHistory []string `json:"one_file_test_history,omitempty"`

	// ConfigSnapshot captures the sync-relevant configuration used for the
	// most recent run, for --resume and for audit.
	ConfigSnapshot map[string]any `json:"config_snapshot,omitempty"`

	// LastPlan embeds the rename plan of the most recent run.
	LastPlan *RenamePlan `json:"last_plan,omitempty"`

	// StepFunctionExecutions logs every workflow execution triggered.
	StepFunctionExecutions []ExecutionRecord `json:"step_function_executions,omitempty"`
}

// NewRunState returns an empty, fully initialized state document.
func NewRunState() *RunState {
	return &RunState{UploadedFiles: make(map[string]UploadRecord)}
}

// TestedBefore reports whether path was already exercised by one-file-test
// mode.
func (s *RunState) TestedBefore(path string) bool {
	for _, p := range s.OneFileTestHistory {
		if p == path {
			return true
		}
	}
	return false
}
