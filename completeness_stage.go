package onixcheck

import (
	"context"
	"fmt"
	"math"

	"github.com/metaops/onixcheck/ruleset"
)

// completenessStage scores each product record against the field weight
// table. A field counts as present when at least one node at its path
// carries more than whitespace; the score is the weighted fraction of
// present fields, reported as a 0-100 percentage.
type completenessStage struct {
	table *ruleset.WeightTable
}

func (s *completenessStage) Stage() Stage {
	return StageCompleteness
}

func (s *completenessStage) Run(ctx context.Context, in stageInput) (*stageOutput, error) {
	// The table's paths are static configuration: one unparseable path
	// invalidates the rubric, which fails this stage only.
	exprs := make([]*Expr, len(s.table.Fields))
	for i, f := range s.table.Fields {
		expr, err := CompileExpr(f.Path, in.ns)
		if err != nil {
			return nil, fmt.Errorf("weight table field %q: %w", f.Name, err)
		}
		exprs[i] = expr
	}

	total := s.table.Total()
	categoryTotals := make(map[string]float64)
	for _, f := range s.table.Fields {
		categoryTotals[f.Category] += f.Weight
	}

	out := &stageOutput{scores: make([]ProductScore, 0, len(in.products))}
	for _, product := range in.products {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		score := ProductScore{
			ProductID:  product.ID,
			Categories: make(map[string]float64, len(categoryTotals)),
		}
		var present float64
		categoryPresent := make(map[string]float64, len(categoryTotals))

		for i, f := range s.table.Fields {
			if exprs[i].hasNonEmptyValue(product.Node) {
				present += f.Weight
				categoryPresent[f.Category] += f.Weight
				continue
			}
			score.MissingFields = append(score.MissingFields, f.Name)
		}

		score.Overall = percentage(present, total)
		for category, catTotal := range categoryTotals {
			score.Categories[category] = percentage(categoryPresent[category], catTotal)
		}
		out.scores = append(out.scores, score)
	}
	return out, nil
}

// percentage reports a 0-100 ratio to one decimal place, rounding halves to
// even.
func percentage(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return math.RoundToEven(part/whole*1000) / 10
}
