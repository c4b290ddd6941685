// Package ruleset loads the declarative resources consumed by the
// validation pipeline: business rule pattern sets, publisher rule lists,
// field weight tables, and retailer profiles. All loading happens up front;
// the returned values are read-only during evaluation.
//
// Every path and expression in these resources is authored namespace-neutral
// against ONIX reference tag names. The pipeline adapts them to the
// document's tag convention at evaluation time, so one file serves both the
// reference and short conventions.
package ruleset

import (
	"fmt"
	"strings"
)

// Severity values accepted by rule sources. Short forms are tolerated
// because publisher rule files historically used "warn".
var validSeverities = map[string]bool{
	"":        true, // defaults to warning
	"error":   true,
	"err":     true,
	"warning": true,
	"warn":    true,
	"info":    true,
}

// Assertion is one boolean check attached to a business pattern. Test is an
// XPath expression evaluated relative to each context node; when it does
// not hold, a finding with the given severity and message is emitted.
type Assertion struct {
	Test     string `yaml:"test"`
	Severity string `yaml:"severity,omitempty"`
	Message  string `yaml:"message"`
}

// Pattern is a compiled-in business rule: a context path plus one or more
// assertions evaluated for every node the context matches.
type Pattern struct {
	ID         string      `yaml:"id"`
	Context    string      `yaml:"context"`
	Assertions []Assertion `yaml:"assertions"`
}

// PatternSet is the business rule source for one pipeline.
type PatternSet struct {
	Patterns []Pattern `yaml:"patterns"`
}

// Validate checks structural integrity of the pattern set. Malformed XPath
// is not detected here: expression errors surface per rule during
// evaluation so one bad pattern cannot reject the whole set.
func (ps *PatternSet) Validate() error {
	seen := make(map[string]bool, len(ps.Patterns))
	for i, p := range ps.Patterns {
		if p.ID == "" {
			return fmt.Errorf("pattern %d: missing id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("pattern %q: duplicate id", p.ID)
		}
		seen[p.ID] = true
		if p.Context == "" {
			return fmt.Errorf("pattern %q: missing context", p.ID)
		}
		if len(p.Assertions) == 0 {
			return fmt.Errorf("pattern %q: no assertions", p.ID)
		}
		for j, a := range p.Assertions {
			if a.Test == "" {
				return fmt.Errorf("pattern %q assertion %d: missing test", p.ID, j)
			}
			if a.Message == "" {
				return fmt.Errorf("pattern %q assertion %d: missing message", p.ID, j)
			}
			if !validSeverities[a.Severity] {
				return fmt.Errorf("pattern %q assertion %d: unknown severity %q", p.ID, j, a.Severity)
			}
		}
	}
	return nil
}

// Rule is one publisher-authored custom rule. Unlike patterns, rules are
// data loaded per validation run and may change without redeploying.
type Rule struct {
	ID        string `yaml:"id"`
	Context   string `yaml:"when"`
	Condition string `yaml:"assert"`
	Severity  string `yaml:"severity,omitempty"`
	Message   string `yaml:"message"`
	Explain   string `yaml:"explain,omitempty"`
}

// RuleList is the publisher rule source for one pipeline run.
type RuleList struct {
	Rules []Rule `yaml:"rules"`
}

// Validate checks structural integrity of the rule list.
func (rl *RuleList) Validate() error {
	seen := make(map[string]bool, len(rl.Rules))
	for i, r := range rl.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule %d: missing id", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("rule %q: duplicate id", r.ID)
		}
		seen[r.ID] = true
		if r.Context == "" {
			return fmt.Errorf("rule %q: missing when path", r.ID)
		}
		if r.Condition == "" {
			return fmt.Errorf("rule %q: missing assert expression", r.ID)
		}
		if r.Message == "" {
			return fmt.Errorf("rule %q: missing message", r.ID)
		}
		if !validSeverities[r.Severity] {
			return fmt.Errorf("rule %q: unknown severity %q", r.ID, r.Severity)
		}
	}
	return nil
}

// Field categories for completeness scoring.
const (
	CategoryRequired    = "required"
	CategoryRecommended = "recommended"
	CategoryOptional    = "optional"
)

// FieldWeight assigns a business-impact weight to one metadata field.
// Path is evaluated relative to each product record.
type FieldWeight struct {
	Name     string  `yaml:"name"`
	Path     string  `yaml:"path"`
	Weight   float64 `yaml:"weight"`
	Category string  `yaml:"category"`
}

// WeightTable is the scoring rubric for the completeness stage.
type WeightTable struct {
	Fields []FieldWeight `yaml:"fields"`
}

// Total returns the normalization denominator for the 0-100 score.
func (wt *WeightTable) Total() float64 {
	var sum float64
	for _, f := range wt.Fields {
		sum += f.Weight
	}
	return sum
}

// Validate rejects misconfigured tables. A table whose weights sum to zero
// cannot produce a meaningful score and is a configuration error, never a
// silent 0% result.
func (wt *WeightTable) Validate() error {
	if len(wt.Fields) == 0 {
		return fmt.Errorf("weight table has no fields")
	}
	seen := make(map[string]bool, len(wt.Fields))
	for i, f := range wt.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: missing name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q: duplicate name", f.Name)
		}
		seen[f.Name] = true
		if f.Path == "" {
			return fmt.Errorf("field %q: missing path", f.Name)
		}
		if f.Weight < 0 {
			return fmt.Errorf("field %q: negative weight %v", f.Name, f.Weight)
		}
		switch f.Category {
		case CategoryRequired, CategoryRecommended, CategoryOptional:
		default:
			return fmt.Errorf("field %q: unknown category %q", f.Name, f.Category)
		}
	}
	if wt.Total() == 0 {
		return fmt.Errorf("weight table sums to zero")
	}
	return nil
}

// Condition is one retailer requirement over a field path. For required
// conditions the path must yield a non-blank value, additionally equal to
// Equals or matching Pattern when set. For forbidden conditions the same
// match signals a violation instead.
type Condition struct {
	Path    string `yaml:"path"`
	Equals  string `yaml:"equals,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`
	// Critical escalates the violation from warning to error (conditions
	// whose breach risks distribution suspension).
	Critical bool   `yaml:"critical,omitempty"`
	Message  string `yaml:"message"`
}

// Profile is one retailer's compatibility requirements.
type Profile struct {
	Name      string      `yaml:"name"`
	Required  []Condition `yaml:"required"`
	Forbidden []Condition `yaml:"forbidden,omitempty"`
}

// ProfileSet holds the named profiles available to a pipeline.
type ProfileSet struct {
	Profiles []Profile `yaml:"profiles"`
}

// Select resolves the requested profile names, preserving request order.
// Unknown names are a caller error reported before any evaluation starts.
func (s *ProfileSet) Select(names []string) ([]Profile, error) {
	byName := make(map[string]Profile, len(s.Profiles))
	for _, p := range s.Profiles {
		byName[p.Name] = p
	}
	out := make([]Profile, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown retailer profile %q (available: %s)", name, strings.Join(s.Names(), ", "))
		}
		out = append(out, p)
	}
	return out, nil
}

// Names lists the available profile names in definition order.
func (s *ProfileSet) Names() []string {
	names := make([]string, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// Validate checks structural integrity of the profile set.
func (s *ProfileSet) Validate() error {
	seen := make(map[string]bool, len(s.Profiles))
	for i, p := range s.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d: missing name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("profile %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if len(p.Required) == 0 && len(p.Forbidden) == 0 {
			return fmt.Errorf("profile %q: no conditions", p.Name)
		}
		for j, c := range append(append([]Condition{}, p.Required...), p.Forbidden...) {
			if c.Path == "" {
				return fmt.Errorf("profile %q condition %d: missing path", p.Name, j)
			}
			if c.Message == "" {
				return fmt.Errorf("profile %q condition %d: missing message", p.Name, j)
			}
			if c.Equals != "" && c.Pattern != "" {
				return fmt.Errorf("profile %q condition %d: equals and pattern are mutually exclusive", p.Name, j)
			}
		}
	}
	return nil
}
