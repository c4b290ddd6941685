package onixcheck

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/metaops/onixcheck/ruleset"
)

// retailerStage evaluates retailer profiles against every product record.
// Profiles and products are independent of one another, so the (profile x
// product) plane evaluates concurrently when the run allows it; results
// land in pre-assigned slots, keeping output order deterministic.
type retailerStage struct {
	profiles []profileChecks
}

// profileChecks is one profile with its value matchers pre-built.
type profileChecks struct {
	name      string
	required  []conditionCheck
	forbidden []conditionCheck
}

type conditionCheck struct {
	cond    ruleset.Condition
	pattern *regexp.Regexp // nil unless the condition uses a pattern match
}

func newRetailerStage(profiles []ruleset.Profile) (*retailerStage, error) {
	s := &retailerStage{profiles: make([]profileChecks, 0, len(profiles))}
	for _, p := range profiles {
		pc := profileChecks{name: p.Name}
		var err error
		if pc.required, err = buildChecks(p.Name, p.Required); err != nil {
			return nil, err
		}
		if pc.forbidden, err = buildChecks(p.Name, p.Forbidden); err != nil {
			return nil, err
		}
		s.profiles = append(s.profiles, pc)
	}
	return s, nil
}

func buildChecks(profile string, conds []ruleset.Condition) ([]conditionCheck, error) {
	checks := make([]conditionCheck, 0, len(conds))
	for _, c := range conds {
		check := conditionCheck{cond: c}
		if c.Pattern != "" {
			re, err := regexp.Compile(c.Pattern)
			if err != nil {
				return nil, configErrorf("profile %q condition %q: %w", profile, c.Path, err)
			}
			check.pattern = re
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func (s *retailerStage) Stage() Stage {
	return StageRetailer
}

func (s *retailerStage) Run(ctx context.Context, in stageInput) (*stageOutput, error) {
	// All condition paths share the weight-table treatment: static
	// configuration whose XPath must compile, or the stage cannot judge
	// compatibility at all.
	type compiledCheck struct {
		conditionCheck
		expr *Expr
	}
	type compiledProfile struct {
		name      string
		required  []compiledCheck
		forbidden []compiledCheck
	}

	compile := func(name string, checks []conditionCheck) ([]compiledCheck, error) {
		out := make([]compiledCheck, 0, len(checks))
		for _, c := range checks {
			expr, err := CompileExpr(c.cond.Path, in.ns)
			if err != nil {
				return nil, fmt.Errorf("profile %q condition %q: %w", name, c.cond.Path, err)
			}
			out = append(out, compiledCheck{conditionCheck: c, expr: expr})
		}
		return out, nil
	}

	compiled := make([]compiledProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := compiledProfile{name: p.name}
		var err error
		if cp.required, err = compile(p.name, p.required); err != nil {
			return nil, err
		}
		if cp.forbidden, err = compile(p.name, p.forbidden); err != nil {
			return nil, err
		}
		compiled = append(compiled, cp)
	}

	// One result slot per (profile, product) pair, filled independently.
	results := make([]RetailerResult, len(compiled)*len(in.products))

	evaluate := func(pi, qi int) {
		profile := compiled[pi]
		product := in.products[qi]
		res := RetailerResult{
			Retailer:   profile.name,
			ProductID:  product.ID,
			Compatible: true,
		}

		for _, c := range profile.required {
			if conditionHolds(c.expr, c.pattern, c.cond.Equals, product) {
				continue
			}
			res.Compatible = false
			res.Violations = append(res.Violations, violationFinding(profile.name, c.cond, product, "missing required field"))
		}
		for _, c := range profile.forbidden {
			if !conditionHolds(c.expr, c.pattern, c.cond.Equals, product) {
				continue
			}
			res.Compatible = false
			res.Violations = append(res.Violations, violationFinding(profile.name, c.cond, product, "forbidden field present"))
		}

		results[pi*len(in.products)+qi] = res
	}

	if in.concurrency > 1 && len(results) > 1 {
		var wg sync.WaitGroup
		sem := make(chan struct{}, in.concurrency)
		for pi := range compiled {
			for qi := range in.products {
				wg.Add(1)
				go func(pi, qi int) {
					defer wg.Done()
					sem <- struct{}{}
					defer func() { <-sem }()
					if ctx.Err() != nil {
						return
					}
					evaluate(pi, qi)
				}(pi, qi)
			}
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	} else {
		for pi := range compiled {
			for qi := range in.products {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				evaluate(pi, qi)
			}
		}
	}

	out := &stageOutput{retailer: results}
	for _, res := range results {
		out.findings = append(out.findings, res.Violations...)
	}
	return out, nil
}

// conditionHolds reports whether a product satisfies one condition: some
// node at the path carries a non-blank value that equals the expected
// value or matches the expected pattern, when either is set. Multi-valued
// fields satisfy the condition if any value does.
func conditionHolds(expr *Expr, pattern *regexp.Regexp, equals string, product Product) bool {
	for _, node := range expr.Select(product.Node) {
		value := strings.TrimSpace(node.InnerText())
		if value == "" {
			continue
		}
		if equals != "" {
			if value == equals {
				return true
			}
			continue
		}
		if pattern != nil {
			if pattern.MatchString(value) {
				return true
			}
			continue
		}
		return true
	}
	return false
}

func violationFinding(retailer string, cond ruleset.Condition, product Product, kind string) Finding {
	severity := SeverityWarning
	if cond.Critical {
		severity = SeverityError
	}
	return Finding{
		Stage:    StageRetailer,
		Severity: severity,
		Message:  fmt.Sprintf("%s: %s (%s)", retailer, cond.Message, kind),
		RuleID:   retailer + "/" + cond.Path,
		Location: Location{Path: nodePath(product.Node)},
	}
}
