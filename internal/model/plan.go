package model

import "time"

// Decision is the terminal state reached for a single candidate file.
type Decision string

const (
	DecisionCDRMissing      Decision = "cdr_missing"
	DecisionNoAgentMatch    Decision = "no_agent_match"
	DecisionAlreadyUploaded Decision = "already_uploaded"
	DecisionAlreadyTested   Decision = "already_tested"
	DecisionAgentFiltered   Decision = "agent_filtered"
	DecisionUploaded        Decision = "uploaded"
	DecisionWouldUpload     Decision = "would_upload"
	DecisionUploadFailed    Decision = "upload_failed"
)

// PlanEntry records the resolution outcome for one candidate file. The plan
// is complete: every candidate gets exactly one entry, including failures.
type PlanEntry struct {
	Path         string   `json:"path"`
	CallID       string   `json:"call_id"`
	Decision     Decision `json:"decision"`
	Reason       string   `json:"reason,omitempty"`
	DurationSecs float64  `json:"duration_secs"`
	SizeBytes    int64    `json:"size_bytes"`

	Agent          string `json:"agent,omitempty"`
	AgentSource    string `json:"agent_source,omitempty"`
	Customer       string `json:"customer,omitempty"`
	CustomerSource string `json:"customer_source,omitempty"`
	CallTime       string `json:"call_time,omitempty"`

	Bucket      string `json:"bucket,omitempty"`
	ProposedKey string `json:"proposed_key,omitempty"`
}

// RunStats aggregates per-run counters, one per terminal decision plus the
// CDR lookup outcomes.
type RunStats struct {
	Candidates      int `json:"candidates"`
	CDRFound        int `json:"cdr_found"`
	CDRMissing      int `json:"cdr_missing"`
	NoAgentMatch    int `json:"no_agent_match"`
	AlreadyUploaded int `json:"already_uploaded"`
	AlreadyTested   int `json:"already_tested"`
	AgentFiltered   int `json:"agent_filtered"`
	Uploaded        int `json:"uploaded"`
	WouldUpload     int `json:"would_upload"`
	UploadFailed    int `json:"upload_failed"`
}

// RenamePlan is the per-run audit document: run metadata, aggregate
// statistics, and one entry per considered file.
type RenamePlan struct {
	Domain      string      `json:"domain"`
	GeneratedAt time.Time   `json:"generated_at"`
	DryRun      bool        `json:"dry_run"`
	WindowFrom  string      `json:"window_from"`
	WindowTo    string      `json:"window_to"`
	Stats       RunStats    `json:"stats"`
	Entries     []PlanEntry `json:"entries"`
}
