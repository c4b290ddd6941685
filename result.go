package onixcheck

import "time"

// ProductScore is the completeness verdict for one product record.
// Scores are percentages reported to one decimal place.
type ProductScore struct {
	ProductID string `json:"product_id"`
	// Overall is 100 x (weights of present fields) / (all weights).
	Overall float64 `json:"overall"`
	// Categories holds the same ratio scoped to each field category.
	Categories map[string]float64 `json:"categories"`
	// MissingFields lists absent field names in weight-table order.
	MissingFields []string `json:"missing_fields,omitempty"`
}

// RetailerResult is the compatibility verdict for one (retailer, product)
// pair. A run over N products and M profiles yields exactly N x M results.
type RetailerResult struct {
	Retailer   string    `json:"retailer"`
	ProductID  string    `json:"product_id"`
	Compatible bool      `json:"compatible"`
	Violations []Finding `json:"violations,omitempty"`
}

// Stats summarizes one run for logs and batch listings.
type Stats struct {
	Products int           `json:"products"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Infos    int           `json:"infos"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Result is the complete output of one pipeline run. It is returned by
// value, owns no shared state, and serializes cleanly for the reporting
// layer (JSON/CSV/HTML rendering is the aggregator's concern, not ours).
type Result struct {
	RunID     string           `json:"run_id"`
	Document  string           `json:"document"`
	Namespace NamespaceContext `json:"namespace"`

	// Findings from all stages, merged in fixed stage order; within a stage
	// they keep document order.
	Findings []Finding `json:"findings"`

	// ProductScores holds one entry per product record, in document order.
	ProductScores []ProductScore `json:"product_scores,omitempty"`

	// RetailerResults holds one entry per (profile, product) pair.
	RetailerResults []RetailerResult `json:"retailer_results,omitempty"`

	// EvaluatedRules records which publisher rule IDs ran, whether or not
	// they produced findings.
	EvaluatedRules []string `json:"evaluated_rules,omitempty"`

	Stats Stats `json:"stats"`
}

func (r *Result) tally() {
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityError:
			r.Stats.Errors++
		case SeverityWarning:
			r.Stats.Warnings++
		case SeverityInfo:
			r.Stats.Infos++
		}
	}
}
