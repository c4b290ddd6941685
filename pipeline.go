package onixcheck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/metaops/onixcheck/ruleset"
)

// ConfigError marks fatal misconfiguration detected before any evaluation:
// missing schema resources, malformed rule sources, unknown retailer
// profiles. It is never converted into a Finding.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "configuration: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// Config declares the resources for a Pipeline. All loading and validation
// happens in New; Run performs no I/O.
type Config struct {
	// Schema paths per tag convention. A path may be empty when the caller
	// never feeds documents of that convention; resolving a document to a
	// convention with no schema is then a configuration error at run time.
	ReferenceSchema string
	ShortSchema     string
	// LegacySchema validates un-namespaced demo/legacy documents.
	LegacySchema string

	// Patterns is the business rule pattern set. Nil selects the built-in
	// set.
	Patterns *ruleset.PatternSet

	// Rules is the optional publisher rule list, loaded per run.
	Rules *ruleset.RuleList

	// Weights is the completeness rubric. Nil selects the built-in table.
	Weights *ruleset.WeightTable

	// Profiles is the retailer profile catalogue. Nil selects the built-in
	// profiles.
	Profiles *ruleset.ProfileSet

	// ProfileNames selects which retailers to evaluate. Empty selects every
	// profile in the catalogue. Unknown names are rejected by New.
	ProfileNames []string
}

// RunOptions controls execution behavior for one run.
type RunOptions struct {
	// Concurrency bounds parallel stage and retailer evaluation.
	// Values <= 1 run everything sequentially.
	Concurrency int

	// Now provides the current time (for testing). If nil, uses time.Now.
	Now func() time.Time

	// EventHandler receives run and stage lifecycle events.
	EventHandler EventHandler
}

// DefaultRunOptions returns sensible default options.
func DefaultRunOptions() RunOptions {
	return RunOptions{Concurrency: 1}
}

// stageInput is the shared, immutable view handed to every stage.
type stageInput struct {
	doc         *Document
	ns          NamespaceContext
	products    []Product
	concurrency int
}

// stageOutput collects what one stage produced. Only the fields relevant to
// the stage are populated.
type stageOutput struct {
	findings       []Finding
	scores         []ProductScore
	retailer       []RetailerResult
	evaluatedRules []string
}

// stageRunner is one independent validation stage. Stages read the shared
// document and namespace context and return fresh output; they never
// require exclusive access to anything outside their input, which is what
// makes concurrent execution and mid-run cancellation safe.
type stageRunner interface {
	Stage() Stage
	Run(ctx context.Context, in stageInput) (*stageOutput, error)
}

// Pipeline validates ONIX documents through the staged sequence: namespace
// resolution, then schema structure, business rules, publisher rules,
// completeness scoring, and retailer compatibility.
type Pipeline struct {
	schema       *schemaStage
	business     *businessStage
	custom       *customStage
	completeness *completenessStage
	retailer     *retailerStage
}

// New builds a pipeline from the given configuration. Every declarative
// resource is loaded and validated here; a misconfigured resource is
// reported as a ConfigError before any document is touched.
func New(cfg Config) (*Pipeline, error) {
	schema, err := newSchemaStage(cfg)
	if err != nil {
		return nil, err
	}

	patterns := cfg.Patterns
	if patterns == nil {
		patterns = ruleset.DefaultPatterns()
	}
	if err := patterns.Validate(); err != nil {
		return nil, configErrorf("pattern set: %w", err)
	}

	if cfg.Rules != nil {
		if err := cfg.Rules.Validate(); err != nil {
			return nil, configErrorf("rule list: %w", err)
		}
	}

	weights := cfg.Weights
	if weights == nil {
		weights = ruleset.DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, configErrorf("weight table: %w", err)
	}

	profiles := cfg.Profiles
	if profiles == nil {
		profiles = ruleset.BuiltinProfiles()
	}
	if err := profiles.Validate(); err != nil {
		return nil, configErrorf("profile set: %w", err)
	}
	names := cfg.ProfileNames
	if len(names) == 0 {
		names = profiles.Names()
	}
	selected, err := profiles.Select(names)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	retailer, err := newRetailerStage(selected)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		schema:       schema,
		business:     &businessStage{patterns: patterns.Patterns},
		custom:       &customStage{rules: cfg.Rules},
		completeness: &completenessStage{table: weights},
		retailer:     retailer,
	}, nil
}

// Run executes the pipeline over one document with default options.
func (p *Pipeline) Run(ctx context.Context, doc *Document) (*Result, error) {
	return p.RunWithOptions(ctx, doc, DefaultRunOptions())
}

// RunWithOptions executes the pipeline over one document.
//
// The namespace resolver runs first; the four validation stages then run
// over the same immutable document, sequentially or on a bounded worker
// pool. Their findings merge in fixed stage order so two runs over the
// same document always produce identical output, whatever the scheduling.
func (p *Pipeline) RunWithOptions(ctx context.Context, doc *Document, opts RunOptions) (*Result, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	runID := uuid.NewString()
	started := opts.Now()

	emit := func(e Event) {
		if opts.EventHandler != nil {
			opts.EventHandler(e)
		}
	}
	emit(NewEvent(EventRunStarted, runID).WithPayload("document", doc.Name()))

	ns, resolverFindings := DetectNamespace(doc)
	in := stageInput{
		doc:         doc,
		ns:          ns,
		products:    doc.Products(ns),
		concurrency: opts.Concurrency,
	}

	stages := []stageRunner{p.schema, p.business, p.custom, p.completeness, p.retailer}
	outputs := make([]*stageOutput, len(stages))
	errs := make([]error, len(stages))

	runStage := func(i int, s stageRunner) {
		stageStart := opts.Now()
		emit(NewEvent(EventStageStarted, runID).WithStage(s.Stage()))

		out, err := s.Run(ctx, in)
		elapsed := opts.Now().Sub(stageStart)
		if err != nil {
			errs[i] = err
			emit(NewEvent(EventStageFailed, runID).WithStage(s.Stage()).WithElapsed(elapsed).WithPayload("error", err.Error()))
			return
		}
		outputs[i] = out
		emit(NewEvent(EventStageFinished, runID).WithStage(s.Stage()).WithElapsed(elapsed).WithPayload("findings", len(out.findings)))
	}

	if opts.Concurrency > 1 {
		var wg sync.WaitGroup
		sem := make(chan struct{}, opts.Concurrency)
		for i, s := range stages {
			wg.Add(1)
			go func(i int, s stageRunner) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				runStage(i, s)
			}(i, s)
		}
		wg.Wait()
	} else {
		for i, s := range stages {
			runStage(i, s)
		}
	}

	result := &Result{
		RunID:     runID,
		Document:  doc.Name(),
		Namespace: ns,
		Findings:  append([]Finding(nil), resolverFindings...),
	}
	result.Stats.Products = len(in.products)

	for i, s := range stages {
		if err := errs[i]; err != nil {
			// Configuration errors and cancellation abort the run; anything
			// else degrades to a stage-level finding so callers still get
			// the other stages' results.
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				return nil, err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			result.Findings = append(result.Findings, Finding{
				Stage:    s.Stage(),
				Severity: SeverityError,
				Message:  fmt.Sprintf("stage could not evaluate: %v", err),
			})
			continue
		}
		out := outputs[i]
		result.Findings = append(result.Findings, out.findings...)
		result.ProductScores = append(result.ProductScores, out.scores...)
		result.RetailerResults = append(result.RetailerResults, out.retailer...)
		result.EvaluatedRules = append(result.EvaluatedRules, out.evaluatedRules...)
	}

	result.Stats.Elapsed = opts.Now().Sub(started)
	result.tally()

	emit(NewEvent(EventRunFinished, runID).
		WithElapsed(result.Stats.Elapsed).
		WithPayload("findings", len(result.Findings)).
		WithPayload("errors", result.Stats.Errors))

	return result, nil
}
