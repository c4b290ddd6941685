package onixcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacoelho/xsd"
	xsderrors "github.com/jacoelho/xsd/errors"
)

// schemaStage validates document structure against the XML Schema matching
// the resolved tag convention. Structure is a correctness prerequisite for
// the path assumptions of later stages, so a convention with no configured
// schema fails the run instead of silently skipping.
type schemaStage struct {
	reference *xsd.Schema
	short     *xsd.Schema
	legacy    *xsd.Schema
}

func newSchemaStage(cfg Config) (*schemaStage, error) {
	s := &schemaStage{}

	load := func(path, which string) (*xsd.Schema, error) {
		if path == "" {
			return nil, nil
		}
		schema, err := xsd.LoadFile(path)
		if err != nil {
			return nil, configErrorf("loading %s schema: %w", which, err)
		}
		return schema, nil
	}

	var err error
	if s.reference, err = load(cfg.ReferenceSchema, "reference"); err != nil {
		return nil, err
	}
	if s.short, err = load(cfg.ShortSchema, "short-tag"); err != nil {
		return nil, err
	}
	if s.legacy, err = load(cfg.LegacySchema, "legacy"); err != nil {
		return nil, err
	}
	if s.reference == nil && s.short == nil && s.legacy == nil {
		return nil, configErrorf("no schema configured")
	}
	return s, nil
}

func (s *schemaStage) Stage() Stage {
	return StageSchema
}

// schemaFor selects the schema matching the namespace context. Legacy
// documents (no namespace) validate against the legacy schema regardless of
// which convention their tag spelling suggests.
func (s *schemaStage) schemaFor(ns NamespaceContext) *xsd.Schema {
	if !ns.Namespaced() {
		return s.legacy
	}
	switch ns.Convention {
	case ConventionReference:
		return s.reference
	case ConventionShort:
		return s.short
	}
	return nil
}

func (s *schemaStage) Run(ctx context.Context, in stageInput) (*stageOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schema := s.schemaFor(in.ns)
	if schema == nil {
		return nil, configErrorf("no schema configured for %s convention", in.ns.Convention)
	}

	err := schema.Validate(in.doc.Reader())
	if err == nil {
		return &stageOutput{}, nil
	}

	var list xsderrors.ValidationList
	if !errors.As(err, &list) {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	// Findings keep the engine's reporting order, which is document order.
	out := &stageOutput{findings: make([]Finding, 0, len(list))}
	for _, v := range list {
		out.findings = append(out.findings, Finding{
			Stage:    StageSchema,
			Severity: SeverityError,
			Message:  v.Message,
			RuleID:   v.Code,
			Location: Location{Line: v.Line, Path: v.Path},
		})
	}
	return out, nil
}
