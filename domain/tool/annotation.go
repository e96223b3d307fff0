package tool

// RiskLevel indicates the potential impact of a tool execution.
type RiskLevel int

const (
	RiskNone     RiskLevel = iota // catalog and service queries
	RiskLow                       // local state such as notes
	RiskMedium                    // ad-hoc SQL supplied by the model
	RiskHigh                      // changes object authorities or system state
	RiskCritical                  // irreversible
)

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Annotations describe tool behavior for approval, caching and retries.
type Annotations struct {
	ReadOnly         bool      `json:"read_only"`
	Destructive      bool      `json:"destructive"`
	Idempotent       bool      `json:"idempotent"`
	Cacheable        bool      `json:"cacheable"`
	RiskLevel        RiskLevel `json:"risk_level"`
	RequiresApproval bool      `json:"requires_approval"`

	// Timeout is the maximum execution time in seconds (0 = default).
	Timeout int `json:"timeout,omitempty"`

	Tags []string `json:"tags,omitempty"`
}

// DefaultAnnotations returns annotations with safe defaults.
func DefaultAnnotations() Annotations {
	return Annotations{RiskLevel: RiskLow}
}

// ShouldRequireApproval returns true if the tool must be confirmed before it runs.
func (a Annotations) ShouldRequireApproval() bool {
	return a.RequiresApproval || a.Destructive || a.RiskLevel >= RiskHigh
}

// CanCache returns true if the tool result can be cached.
func (a Annotations) CanCache() bool {
	return a.Cacheable && (a.ReadOnly || a.Idempotent) && !a.Destructive
}

// CanRetry returns true if the tool can be safely retried on failure.
func (a Annotations) CanRetry() bool {
	return (a.Idempotent || a.ReadOnly) && !a.Destructive
}
