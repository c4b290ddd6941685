package onixcheck

import "fmt"

// Stage identifies the pipeline stage that produced a finding.
// The set of stages is fixed: each corresponds to one validator.
type Stage string

const (
	StageSchema       Stage = "schema"
	StageBusinessRule Stage = "business_rule"
	StageCustomRule   Stage = "custom_rule"
	StageCompleteness Stage = "completeness"
	StageRetailer     Stage = "retailer"
	// StageResolver tags findings emitted by namespace detection itself
	// (e.g. the un-namespaced legacy warning).
	StageResolver Stage = "resolver"
)

// String returns the string representation of the Stage.
func (s Stage) String() string {
	return string(s)
}

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity maps a rule-source severity string to a Severity.
// It accepts the short forms used by publisher rule files ("warn", "err").
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "error", "err":
		return SeverityError, nil
	case "warning", "warn", "":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Location pinpoints a finding inside the source document.
// Line is 0 when the underlying engine cannot attribute one; Path is an
// XPath-like position and may be empty for document-level findings.
type Location struct {
	Line int    `json:"line,omitempty"`
	Path string `json:"path,omitempty"`
}

// Finding is a single validation result produced by a pipeline stage.
// Findings are immutable values; stages append them in document order and
// never modify them after creation.
type Finding struct {
	Stage    Stage    `json:"stage"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// Location is always serialized; omitempty never omits struct values.
	Location Location `json:"location"`
	// RuleID names the rule or error code behind the finding, when one exists
	// (schema error codes, business pattern ids, publisher rule ids).
	RuleID string `json:"rule_id,omitempty"`
}

// String formats the finding for logs and plain-text output.
func (f Finding) String() string {
	where := f.Location.Path
	if f.Location.Line > 0 {
		where = fmt.Sprintf("%s (line %d)", where, f.Location.Line)
	}
	if where == "" {
		return fmt.Sprintf("[%s/%s] %s", f.Stage, f.Severity, f.Message)
	}
	return fmt.Sprintf("[%s/%s] %s at %s", f.Stage, f.Severity, f.Message, where)
}

// HasErrors returns true if any finding has error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity findings.
func Errors(findings []Finding) []Finding {
	var errs []Finding
	for _, f := range findings {
		if f.Severity == SeverityError {
			errs = append(errs, f)
		}
	}
	return errs
}

// Warnings returns only the warning-severity findings.
func Warnings(findings []Finding) []Finding {
	var warns []Finding
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			warns = append(warns, f)
		}
	}
	return warns
}

// ByStage returns the findings produced by one stage, preserving order.
func ByStage(findings []Finding, stage Stage) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Stage == stage {
			out = append(out, f)
		}
	}
	return out
}
