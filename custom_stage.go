package onixcheck

import (
	"context"

	"github.com/metaops/onixcheck/ruleset"
)

// customStage evaluates publisher-authored rules. These are data, loaded
// per validation run, so a contract-specific rule can be added or removed
// without redeploying anything.
//
// Every rule runs against every matching node across all product records:
// a batch feed with ten products gets ten independent evaluations, never
// just the first.
type customStage struct {
	rules *ruleset.RuleList
}

func (s *customStage) Stage() Stage {
	return StageCustomRule
}

func (s *customStage) Run(ctx context.Context, in stageInput) (*stageOutput, error) {
	out := &stageOutput{}
	if s.rules == nil || len(s.rules.Rules) == 0 {
		return out, nil
	}

	// Record every rule that runs, findings or not, so callers can audit
	// which checks a clean document actually passed.
	out.evaluatedRules = make([]string, 0, len(s.rules.Rules))

	for _, r := range s.rules.Rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.evaluatedRules = append(out.evaluatedRules, r.ID)

		contextExpr, err := CompileExpr(r.Context, in.ns)
		if err != nil {
			out.findings = append(out.findings, diagnosticFinding(StageCustomRule, r.ID, err))
			continue
		}
		condExpr, err := CompileExpr(r.Condition, in.ns)
		if err != nil {
			out.findings = append(out.findings, diagnosticFinding(StageCustomRule, r.ID, err))
			continue
		}
		severity, err := ParseSeverity(r.Severity)
		if err != nil {
			out.findings = append(out.findings, diagnosticFinding(StageCustomRule, r.ID, err))
			continue
		}

		for _, node := range contextExpr.Select(in.doc.Tree()) {
			if condExpr.Truthy(node) {
				continue
			}
			message := r.Message
			if r.Explain != "" {
				message += " (" + r.Explain + ")"
			}
			out.findings = append(out.findings, Finding{
				Stage:    StageCustomRule,
				Severity: severity,
				Message:  message,
				RuleID:   r.ID,
				Location: Location{Path: nodePath(node)},
			})
		}
	}
	return out, nil
}
