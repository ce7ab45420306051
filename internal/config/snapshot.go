package config

import "github.com/go-viper/mapstructure/v2"

// Snapshot captures the sync-relevant effective configuration. It is
// persisted in the run-state document after every run so that a later
// --resume invocation can reproduce the previous run's behavior, and so the
// state file documents which policy produced its records.
type Snapshot struct {
	Root               string   `json:"root" mapstructure:"root"`
	Domain             string   `json:"domain" mapstructure:"domain"`
	Extensions         []string `json:"extensions" mapstructure:"extensions"`
	MinDurationSecs    float64  `json:"min_duration_secs" mapstructure:"min_duration_secs"`
	RetentionDays      int      `json:"retention_days" mapstructure:"retention_days"`
	InitialSeedDays    int      `json:"initial_seed_days" mapstructure:"initial_seed_days"`
	Bucket             string   `json:"bucket" mapstructure:"bucket"`
	Region             string   `json:"region" mapstructure:"region"`
	KeyPrefix          string   `json:"key_prefix" mapstructure:"key_prefix"`
	Checksum           bool     `json:"checksum" mapstructure:"checksum"`
	RedetectSizeChange bool     `json:"redetect_size_change" mapstructure:"redetect_size_change"`
	StepFunctionARN    string   `json:"step_function_arn" mapstructure:"step_function_arn"`
	AgentAllow         []string `json:"agent_allow" mapstructure:"agent_allow"`
	ResolverStrategy   string   `json:"resolver_strategy" mapstructure:"resolver_strategy"`
}

// Snapshot returns the sync-relevant subset of the configuration.
func (c *Config) Snapshot() Snapshot {
	return Snapshot{
		Root:               c.Recordings.Root,
		Domain:             c.Recordings.Domain,
		Extensions:         c.Scan.Extensions,
		MinDurationSecs:    c.Scan.MinDurationSecs,
		RetentionDays:      c.State.RetentionDays,
		InitialSeedDays:    c.State.InitialSeedDays,
		Bucket:             c.S3.Bucket,
		Region:             c.S3.Region,
		KeyPrefix:          c.S3.KeyPrefix,
		Checksum:           c.S3.Checksum,
		RedetectSizeChange: c.Upload.RedetectSizeChange,
		StepFunctionARN:    c.StepFunction.ARN,
		AgentAllow:         c.Agents.Allow,
		ResolverStrategy:   c.Resolver.Strategy,
	}
}

// ApplySnapshot overlays a previously persisted snapshot onto the config,
// used by --resume runs.
func (c *Config) ApplySnapshot(s Snapshot) {
	c.Recordings.Root = s.Root
	c.Recordings.Domain = s.Domain
	c.Scan.Extensions = s.Extensions
	c.Scan.MinDurationSecs = s.MinDurationSecs
	c.State.RetentionDays = s.RetentionDays
	c.State.InitialSeedDays = s.InitialSeedDays
	c.S3.Bucket = s.Bucket
	c.S3.Region = s.Region
	c.S3.KeyPrefix = s.KeyPrefix
	c.S3.Checksum = s.Checksum
	c.Upload.RedetectSizeChange = s.RedetectSizeChange
	c.StepFunction.ARN = s.StepFunctionARN
	c.Agents.Allow = s.AgentAllow
	c.Resolver.Strategy = s.ResolverStrategy
}

// SnapshotMap converts a snapshot to the generic map persisted in the state
// document.
func SnapshotMap(s Snapshot) (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(s, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SnapshotFromMap decodes a persisted config_snapshot map.
func SnapshotFromMap(m map[string]any) (Snapshot, error) {
	var s Snapshot
	if err := mapstructure.Decode(m, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
