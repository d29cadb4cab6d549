package models

// AccessControlMode selects whitelist or blacklist evaluation for
// trigger.access-control.
type AccessControlMode string

const (
	AccessControlWhitelist AccessControlMode = "whitelist"
	AccessControlBlacklist AccessControlMode = "blacklist"
)

// AccessControlConfig is trigger.access-control from the pipeline config
// schema (spec.md §6).
type AccessControlConfig struct {
	Mode      AccessControlMode `yaml:"mode" json:"mode"`
	Whitelist []string          `yaml:"whitelist" json:"whitelist"`
	Blacklist []string          `yaml:"blacklist" json:"blacklist"`
}

// TriggerConfig is the trigger.* subset of a pipeline config.
type TriggerConfig struct {
	AccessControl      AccessControlConfig       `yaml:"access-control" json:"access-control"`
	GroupRespondRules  map[string]map[string]any `yaml:"group-respond-rules" json:"group-respond-rules"`
}

// LocalAgentConfig is ai.local-agent.*.
type LocalAgentConfig struct {
	Model string `yaml:"model" json:"model"`
}

// AIConfig is ai.*.
type AIConfig struct {
	LocalAgent LocalAgentConfig `yaml:"local-agent" json:"local-agent"`
}

// OutputMiscConfig is output.misc.*.
type OutputMiscConfig struct {
	AtSender    bool `yaml:"at-sender" json:"at-sender"`
	QuoteOrigin bool `yaml:"quote-origin" json:"quote-origin"`
}

// ForceDelayConfig is output.force-delay.
type ForceDelayConfig struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// OutputConfig is output.*.
type OutputConfig struct {
	Misc       OutputMiscConfig `yaml:"misc" json:"misc"`
	ForceDelay ForceDelayConfig `yaml:"force-delay" json:"force-delay"`
}

// RateLimitConfig configures the per-session token bucket used by the
// RateLimit stage.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests-per-second" json:"requests-per-second"`
	BurstSize         int     `yaml:"burst-size" json:"burst-size"`
}

// LongTextConfig configures the long-text/forward splitting strategy.
type LongTextConfig struct {
	Threshold    int  `yaml:"threshold" json:"threshold"`
	UseForward   bool `yaml:"use-forward" json:"use-forward"`
}

// RAGConfig configures retrieval-augmented generation for a pipeline.
type RAGConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	KnowledgeBaseID string `yaml:"knowledge-base-id" json:"knowledge-base-id"`
	TopK            int    `yaml:"top-k" json:"top-k"`
}

// ErrorSurfacingConfig controls whether a terminal pipeline error is
// rendered to the user or only recorded (spec.md §7).
type ErrorSurfacingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Message string `yaml:"message" json:"message"`
}

// PipelineConfig is the materialized, per-pipeline config snapshot bound
// to Query.pipeline_config.
type PipelineConfig struct {
	UUID        string               `yaml:"uuid" json:"uuid"`
	Trigger     TriggerConfig        `yaml:"trigger" json:"trigger"`
	AI          AIConfig             `yaml:"ai" json:"ai"`
	Output      OutputConfig         `yaml:"output" json:"output"`
	RateLimit   RateLimitConfig      `yaml:"rate-limit" json:"rate-limit"`
	LongText    LongTextConfig       `yaml:"long-text" json:"long-text"`
	RAG         RAGConfig            `yaml:"rag" json:"rag"`
	ErrorNotice ErrorSurfacingConfig `yaml:"error-notice" json:"error-notice"`

	// Concurrency caps how many queries this pipeline runs at once; zero
	// means unbounded (spec.md §5 "concurrency.pipeline" backpressure).
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}
