package onixcheck

import (
	"context"
	"fmt"

	"github.com/metaops/onixcheck/ruleset"
)

// businessStage evaluates the declarative pattern set: for every node
// matching a pattern's context path, each assertion must hold; failures
// become findings at the node's position.
//
// Patterns are authored namespace-neutral. Context and test expressions are
// adapted to the document's convention once per run, so a single pattern
// file covers reference-tag, short-tag, and legacy documents.
type businessStage struct {
	patterns []ruleset.Pattern
}

func (s *businessStage) Stage() Stage {
	return StageBusinessRule
}

// compiledPattern is one pattern adapted to the active namespace context.
type compiledPattern struct {
	id      string
	context *Expr
	asserts []compiledAssertion
}

type compiledAssertion struct {
	expr     *Expr
	severity Severity
	message  string
}

func (s *businessStage) Run(ctx context.Context, in stageInput) (*stageOutput, error) {
	out := &stageOutput{}

	for _, p := range s.patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		compiled, err := compilePattern(p, in.ns)
		if err != nil {
			// One malformed pattern never aborts the rest: it degrades to a
			// diagnostic finding naming the offending rule.
			out.findings = append(out.findings, diagnosticFinding(StageBusinessRule, p.ID, err))
			continue
		}

		for _, node := range compiled.context.Select(in.doc.Tree()) {
			for _, a := range compiled.asserts {
				if a.expr.Truthy(node) {
					continue
				}
				out.findings = append(out.findings, Finding{
					Stage:    StageBusinessRule,
					Severity: a.severity,
					Message:  a.message,
					RuleID:   compiled.id,
					Location: Location{Path: nodePath(node)},
				})
			}
		}
	}
	return out, nil
}

func compilePattern(p ruleset.Pattern, ns NamespaceContext) (*compiledPattern, error) {
	ctxExpr, err := CompileExpr(p.Context, ns)
	if err != nil {
		return nil, err
	}
	compiled := &compiledPattern{
		id:      p.ID,
		context: ctxExpr,
		asserts: make([]compiledAssertion, 0, len(p.Assertions)),
	}
	for _, a := range p.Assertions {
		expr, err := CompileExpr(a.Test, ns)
		if err != nil {
			return nil, err
		}
		severity, err := ParseSeverity(a.Severity)
		if err != nil {
			return nil, err
		}
		compiled.asserts = append(compiled.asserts, compiledAssertion{
			expr:     expr,
			severity: severity,
			message:  a.Message,
		})
	}
	return compiled, nil
}

// diagnosticFinding reports a rule that could not be evaluated at all.
func diagnosticFinding(stage Stage, ruleID string, err error) Finding {
	return Finding{
		Stage:    stage,
		Severity: SeverityError,
		Message:  fmt.Sprintf("rule could not be evaluated: %v", err),
		RuleID:   ruleID,
	}
}
