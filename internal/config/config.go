package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// process start and passed by reference into every component; there is no
// ambient global configuration state.
type Config struct {
	DB           DBConfig           `yaml:"db" mapstructure:"db"`
	Recordings   RecordingsConfig   `yaml:"recordings" mapstructure:"recordings"`
	Scan         ScanConfig         `yaml:"scan" mapstructure:"scan"`
	State        StateConfig        `yaml:"state" mapstructure:"state"`
	S3           S3Config           `yaml:"s3" mapstructure:"s3"`
	Upload       UploadConfig       `yaml:"upload" mapstructure:"upload"`
	StepFunction StepFunctionConfig `yaml:"stepfunction" mapstructure:"stepfunction"`
	Agents       AgentsConfig       `yaml:"agents" mapstructure:"agents"`
	Resolver     ResolverConfig     `yaml:"resolver" mapstructure:"resolver"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// DBConfig holds CDR store connection parameters.
type DBConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	Name               string `yaml:"name" mapstructure:"name"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	ConnectTimeoutSecs int    `yaml:"connect_timeout_secs" mapstructure:"connect_timeout_secs"`
}

// RecordingsConfig locates the recording archive tree.
type RecordingsConfig struct {
	Root   string `yaml:"root" mapstructure:"root"`
	Domain string `yaml:"domain" mapstructure:"domain"`
}

// ScanConfig configures candidate selection.
type ScanConfig struct {
	Extensions      []string `yaml:"extensions" mapstructure:"extensions"`
	MinDurationSecs float64  `yaml:"min_duration_secs" mapstructure:"min_duration_secs"`
	CallIDPattern   string   `yaml:"call_id_pattern" mapstructure:"call_id_pattern"`
}

// StateConfig configures the persisted run-state document.
type StateConfig struct {
	File            string `yaml:"file" mapstructure:"file"`
	RetentionDays   int    `yaml:"retention_days" mapstructure:"retention_days"`
	InitialSeedDays int    `yaml:"initial_seed_days" mapstructure:"initial_seed_days"`
}

// S3Config configures the object storage target.
type S3Config struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
	Checksum  bool   `yaml:"checksum" mapstructure:"checksum"`
}

// UploadConfig tunes upload behavior.
type UploadConfig struct {
	// RateLimit caps object puts per second; 0 disables throttling.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	// RedetectSizeChange restores the legacy behavior of re-uploading a
	// previously-uploaded path whose byte size changed. The documented
	// contract is path-only dedupe; this exists for deployments whose
	// recorder rewrites files in place.
	RedetectSizeChange bool `yaml:"redetect_size_change" mapstructure:"redetect_size_change"`
}

// StepFunctionConfig configures the downstream workflow trigger.
type StepFunctionConfig struct {
	ARN string `yaml:"arn" mapstructure:"arn"`
}

// AgentsConfig holds the optional agent allow-list. An empty list means all
// agents pass.
type AgentsConfig struct {
	Allow []string `yaml:"allow" mapstructure:"allow"`
}

// ResolverConfig selects the identity resolution strategy.
type ResolverConfig struct {
	// Strategy is "fields" (field-priority, default) or "fulltext"
	// (scan every CDR field for any known extension).
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultCallIDPattern matches the canonical 36-character call identifier
// (8-4-4-4-12 hex groups) used as both filename stem and CDR primary key.
const DefaultCallIDPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key is registered here so environment variables bind
	// even when no config file is present.
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "fusionpbx")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.connect_timeout_secs", 5)
	v.SetDefault("recordings.root", "/usr/local/freeswitch/recordings")
	v.SetDefault("recordings.domain", "")
	v.SetDefault("scan.extensions", []string{".wav", ".mp3"})
	v.SetDefault("scan.min_duration_secs", 15)
	v.SetDefault("scan.call_id_pattern", DefaultCallIDPattern)
	v.SetDefault("state.file", "copied_data.json")
	v.SetDefault("state.retention_days", 30)
	v.SetDefault("state.initial_seed_days", 0) // 0 = retention_days
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.key_prefix", "")
	v.SetDefault("s3.checksum", false)
	v.SetDefault("upload.rate_limit", 0)
	v.SetDefault("upload.redetect_size_change", false)
	v.SetDefault("stepfunction.arn", "")
	v.SetDefault("resolver.strategy", "fields")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.State.InitialSeedDays <= 0 {
		cfg.State.InitialSeedDays = cfg.State.RetentionDays
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
