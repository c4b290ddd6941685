package ruleset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPatterns reads and validates a business rule pattern set from a YAML
// file.
func LoadPatterns(path string) (*PatternSet, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading pattern set %s: %w", path, err)
	}
	return ParsePatterns(data)
}

// ParsePatterns parses a pattern set from YAML bytes.
func ParsePatterns(data []byte) (*PatternSet, error) {
	var ps PatternSet
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("parsing pattern set: %w", err)
	}
	if err := ps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pattern set: %w", err)
	}
	return &ps, nil
}

// LoadRules reads and validates a publisher rule list from a YAML file.
func LoadRules(path string) (*RuleList, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading rule list %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules parses a publisher rule list from YAML bytes.
func ParseRules(data []byte) (*RuleList, error) {
	var rl RuleList
	if err := yaml.Unmarshal(data, &rl); err != nil {
		return nil, fmt.Errorf("parsing rule list: %w", err)
	}
	if err := rl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule list: %w", err)
	}
	return &rl, nil
}

// LoadWeights reads and validates a field weight table from a YAML file.
func LoadWeights(path string) (*WeightTable, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading weight table %s: %w", path, err)
	}
	return ParseWeights(data)
}

// ParseWeights parses a weight table from YAML bytes.
func ParseWeights(data []byte) (*WeightTable, error) {
	var wt WeightTable
	if err := yaml.Unmarshal(data, &wt); err != nil {
		return nil, fmt.Errorf("parsing weight table: %w", err)
	}
	if err := wt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weight table: %w", err)
	}
	return &wt, nil
}

// LoadProfiles reads and validates a retailer profile set from a YAML file.
func LoadProfiles(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading profile set %s: %w", path, err)
	}
	return ParseProfiles(data)
}

// ParseProfiles parses a retailer profile set from YAML bytes.
func ParseProfiles(data []byte) (*ProfileSet, error) {
	var s ProfileSet
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing profile set: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile set: %w", err)
	}
	return &s, nil
}
