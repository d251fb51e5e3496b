package types

// PreferredSpeed is the caller's speed/safety trade-off for a run.
type PreferredSpeed string

const (
	SpeedFast     PreferredSpeed = "fast"
	SpeedBalanced PreferredSpeed = "balanced"
	SpeedCareful  PreferredSpeed = "careful"
)

// EnvironmentInfo describes the device/environment a run executes against.
type EnvironmentInfo struct {
	Platform string `yaml:"platform,omitempty" json:"platform,omitempty"`
	CPUCores int    `yaml:"cpu_cores,omitempty" json:"cpu_cores,omitempty"`
	MemoryMB int    `yaml:"memory_mb,omitempty" json:"memory_mb,omitempty"`
}

// SecurityPolicy gates what step kinds a run may execute.
type SecurityPolicy struct {
	AllowAuthenticated   bool `yaml:"allow_authenticated,omitempty" json:"allow_authenticated,omitempty"`
	AllowUserInteraction bool `yaml:"allow_user_interaction,omitempty" json:"allow_user_interaction,omitempty"`
}

// ExecutionContext is constructed once per submission and read-only
// thereafter. Steps never mutate it.
type ExecutionContext struct {
	SessionID   string          `yaml:"session_id" json:"session_id"`
	UserID      string          `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	Environment EnvironmentInfo `yaml:"environment,omitempty" json:"environment,omitempty"`
	Policy      SecurityPolicy  `yaml:"policy,omitempty" json:"policy,omitempty"`
	Speed       PreferredSpeed  `yaml:"speed,omitempty" json:"speed,omitempty"`
}
