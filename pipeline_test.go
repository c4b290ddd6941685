package onixcheck

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/metaops/onixcheck/ruleset"
)

func testConfig() Config {
	return Config{
		ReferenceSchema: "testdata/onix-reference.xsd",
		ShortSchema:     "testdata/onix-short.xsd",
		LegacySchema:    "testdata/onix-legacy.xsd",
	}
}

func mustPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func mustRun(t *testing.T, p *Pipeline, file string) *Result {
	t.Helper()
	doc := mustParseFile(t, file)
	result, err := p.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run(%s): %v", file, err)
	}
	return result
}

func TestPipelineReferenceDocument(t *testing.T) {
	p := mustPipeline(t, testConfig())
	result := mustRun(t, p, "testdata/reference.xml")

	if result.Stats.Products != 2 {
		t.Fatalf("Stats.Products = %d, want 2", result.Stats.Products)
	}
	if result.Namespace.Convention != ConventionReference {
		t.Errorf("Convention = %s, want reference", result.Namespace.Convention)
	}
	if schema := ByStage(result.Findings, StageSchema); len(schema) != 0 {
		t.Errorf("schema findings = %v, want none", schema)
	}

	// The audio title without a stated publisher is the only business rule hit.
	business := ByStage(result.Findings, StageBusinessRule)
	if len(business) != 1 {
		t.Fatalf("business findings = %v, want exactly one", business)
	}
	if business[0].RuleID != "audio-contract-review" || business[0].Severity != SeverityWarning {
		t.Errorf("business finding = %s/%s, want audio-contract-review/warning", business[0].RuleID, business[0].Severity)
	}
	if got, want := business[0].Location.Path, "/ONIXMessage[1]/Product[2]"; got != want {
		t.Errorf("business finding path = %q, want %q", got, want)
	}

	if len(result.ProductScores) != 2 {
		t.Fatalf("got %d scores, want 2", len(result.ProductScores))
	}
	full, sparse := result.ProductScores[0], result.ProductScores[1]
	if full.ProductID != "9781861978769" {
		t.Errorf("score 0 ProductID = %q", full.ProductID)
	}
	if full.Overall != 97.0 {
		t.Errorf("full product Overall = %v, want 97.0", full.Overall)
	}
	if !reflect.DeepEqual(full.MissingFields, []string{"series"}) {
		t.Errorf("full product MissingFields = %v, want [series]", full.MissingFields)
	}
	if full.Categories["required"] != 100.0 || full.Categories["recommended"] != 100.0 || full.Categories["optional"] != 85.0 {
		t.Errorf("full product Categories = %v", full.Categories)
	}
	if sparse.Overall != 43.0 {
		t.Errorf("sparse product Overall = %v, want 43.0", sparse.Overall)
	}
	if sparse.Categories["required"] != 74.5 {
		t.Errorf("sparse product required = %v, want 74.5", sparse.Categories["required"])
	}

	// Six built-in profiles, two products.
	if len(result.RetailerResults) != 12 {
		t.Fatalf("got %d retailer results, want 12", len(result.RetailerResults))
	}
	for _, rr := range result.RetailerResults {
		switch rr.ProductID {
		case "9781861978769":
			if !rr.Compatible {
				t.Errorf("%s incompatible with complete product: %v", rr.Retailer, rr.Violations)
			}
		case "9781861972712":
			if rr.Compatible {
				t.Errorf("%s compatible with withdrawn, unpriced product", rr.Retailer)
			}
			if len(rr.Violations) == 0 {
				t.Errorf("%s incompatible without violations", rr.Retailer)
			}
		default:
			t.Errorf("unexpected ProductID %q", rr.ProductID)
		}
	}
}

// A rule source authored once with reference tag names must yield the same
// verdicts for the reference and short renditions of the same products.
func TestPipelineNamespaceInvariance(t *testing.T) {
	p := mustPipeline(t, testConfig())
	ref := mustRun(t, p, "testdata/reference.xml")
	short := mustRun(t, p, "testdata/short.xml")

	if len(ref.Findings) != len(short.Findings) {
		t.Fatalf("finding counts differ: reference %d, short %d", len(ref.Findings), len(short.Findings))
	}
	for i := range ref.Findings {
		r, s := ref.Findings[i], short.Findings[i]
		if r.Stage != s.Stage || r.Severity != s.Severity || r.RuleID != s.RuleID || r.Message != s.Message {
			t.Errorf("finding %d differs: reference %+v, short %+v", i, r, s)
		}
	}

	if !reflect.DeepEqual(ref.ProductScores, short.ProductScores) {
		t.Errorf("scores differ:\nreference %+v\nshort     %+v", ref.ProductScores, short.ProductScores)
	}

	if len(ref.RetailerResults) != len(short.RetailerResults) {
		t.Fatalf("retailer result counts differ: %d vs %d", len(ref.RetailerResults), len(short.RetailerResults))
	}
	for i := range ref.RetailerResults {
		r, s := ref.RetailerResults[i], short.RetailerResults[i]
		if r.Retailer != s.Retailer || r.ProductID != s.ProductID || r.Compatible != s.Compatible || len(r.Violations) != len(s.Violations) {
			t.Errorf("retailer result %d differs: reference %+v, short %+v", i, r, s)
		}
	}
}

func TestPipelineLegacyDocument(t *testing.T) {
	p := mustPipeline(t, testConfig())
	result := mustRun(t, p, "testdata/legacy.xml")

	resolver := ByStage(result.Findings, StageResolver)
	if len(resolver) != 1 || resolver[0].Severity != SeverityInfo {
		t.Fatalf("resolver findings = %v, want one info", resolver)
	}
	if result.Namespace.Namespaced() {
		t.Error("legacy document reported as namespaced")
	}
	if result.Stats.Products != 1 {
		t.Errorf("Stats.Products = %d, want 1", result.Stats.Products)
	}
	if len(ByStage(result.Findings, StageSchema)) != 0 {
		t.Error("legacy document failed legacy schema")
	}
	if got := result.ProductScores[0].Overall; got != 43.0 {
		t.Errorf("legacy product Overall = %v, want 43.0", got)
	}
}

func TestPipelineSchemaViolations(t *testing.T) {
	p := mustPipeline(t, testConfig())
	result := mustRun(t, p, "testdata/invalid.xml")

	schema := ByStage(result.Findings, StageSchema)
	if len(schema) == 0 {
		t.Fatal("no schema findings for document with stray element")
	}
	for _, f := range schema {
		if f.Severity != SeverityError {
			t.Errorf("schema finding severity = %s, want error", f.Severity)
		}
	}

	// Other stages still report: the lone product is nearly empty.
	if len(result.ProductScores) != 1 {
		t.Fatalf("got %d scores, want 1", len(result.ProductScores))
	}
	if got := result.ProductScores[0].Overall; got != 0.0 {
		t.Errorf("empty product Overall = %v, want 0", got)
	}
}

// One malformed rule degrades to a diagnostic finding; the rest of the list
// still evaluates, and every rule that ran is recorded.
func TestPipelineRuleIsolation(t *testing.T) {
	rules, err := ruleset.LoadRules("testdata/rules.yaml")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	cfg := testConfig()
	cfg.Rules = rules

	p := mustPipeline(t, cfg)
	result := mustRun(t, p, "testdata/reference.xml")

	want := []string{"house-imprint", "epub-price-floor", "broken-xpath"}
	if !reflect.DeepEqual(result.EvaluatedRules, want) {
		t.Errorf("EvaluatedRules = %v, want %v", result.EvaluatedRules, want)
	}

	custom := ByStage(result.Findings, StageCustomRule)
	byRule := make(map[string][]Finding)
	for _, f := range custom {
		byRule[f.RuleID] = append(byRule[f.RuleID], f)
	}

	if len(byRule["broken-xpath"]) != 1 {
		t.Errorf("broken rule produced %d findings, want 1 diagnostic", len(byRule["broken-xpath"]))
	}
	// The second product has no imprint.
	imprint := byRule["house-imprint"]
	if len(imprint) != 1 || imprint[0].Severity != SeverityWarning {
		t.Fatalf("house-imprint findings = %v, want one warning", imprint)
	}
	if got, want := imprint[0].Message, "house feeds must state the imprint (catalog routing keys off the imprint name)"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	if len(byRule["epub-price-floor"]) != 0 {
		t.Errorf("epub-price-floor fired with no digital products: %v", byRule["epub-price-floor"])
	}
}

func TestPipelineCustomProfiles(t *testing.T) {
	profiles, err := ruleset.LoadProfiles("testdata/profiles.yaml")
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	cfg := testConfig()
	cfg.Profiles = profiles

	p := mustPipeline(t, cfg)
	result := mustRun(t, p, "testdata/reference.xml")

	if len(result.RetailerResults) != 2 {
		t.Fatalf("got %d retailer results, want 2", len(result.RetailerResults))
	}
	first, second := result.RetailerResults[0], result.RetailerResults[1]
	if !first.Compatible {
		t.Errorf("complete product incompatible with boutique: %v", first.Violations)
	}
	if second.Compatible {
		t.Error("withdrawn product compatible with boutique")
	}
	var sawCritical bool
	for _, v := range second.Violations {
		if v.Severity == SeverityError {
			sawCritical = true
		}
	}
	if !sawCritical {
		t.Errorf("missing ISBN should be a critical violation: %v", second.Violations)
	}
}

func TestPipelineCustomWeights(t *testing.T) {
	weights, err := ruleset.LoadWeights("testdata/weights.yaml")
	if err != nil {
		t.Fatalf("LoadWeights: %v", err)
	}
	cfg := testConfig()
	cfg.Weights = weights

	p := mustPipeline(t, cfg)

	// Whitespace-only title counts as absent.
	doc := mustParse(t, `<ONIXMessage release="3.0"><Product>
		<ProductIdentifier><ProductIDType>15</ProductIDType><IDValue>9781861978769</IDValue></ProductIdentifier>
		<DescriptiveDetail><TitleDetail><TitleElement><TitleText>   </TitleText></TitleElement></TitleDetail></DescriptiveDetail>
	</Product></ONIXMessage>`)
	result, err := p.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	score := result.ProductScores[0]
	if score.Overall != 50.0 {
		t.Errorf("Overall = %v, want 50.0 (isbn only)", score.Overall)
	}
	if !reflect.DeepEqual(score.MissingFields, []string{"title", "price"}) {
		t.Errorf("MissingFields = %v, want [title price]", score.MissingFields)
	}
}

func TestPercentageRounding(t *testing.T) {
	tests := []struct {
		part, whole float64
		want        float64
	}{
		{97, 100, 97.0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{1, 16, 6.2},  // 6.25 rounds half to even
		{3, 16, 18.8}, // 18.75 rounds half to even
		{0, 0, 0},
		{5, 5, 100.0},
	}
	for _, tt := range tests {
		if got := percentage(tt.part, tt.whole); got != tt.want {
			t.Errorf("percentage(%v, %v) = %v, want %v", tt.part, tt.whole, got, tt.want)
		}
	}
}

// Concurrency must never change what a run reports.
func TestPipelineDeterminism(t *testing.T) {
	rules, err := ruleset.LoadRules("testdata/rules.yaml")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	cfg := testConfig()
	cfg.Rules = rules
	p := mustPipeline(t, cfg)

	doc := mustParseFile(t, "testdata/reference.xml")
	run := func(concurrency int) *Result {
		result, err := p.RunWithOptions(context.Background(), doc, RunOptions{Concurrency: concurrency})
		if err != nil {
			t.Fatalf("RunWithOptions(concurrency=%d): %v", concurrency, err)
		}
		// Normalize the per-run fields.
		result.RunID = ""
		result.Stats.Elapsed = 0
		return result
	}

	sequential := run(1)
	for i := 0; i < 3; i++ {
		parallel := run(4)
		if !reflect.DeepEqual(sequential, parallel) {
			t.Fatalf("parallel run %d differs from sequential:\nseq %+v\npar %+v", i, sequential, parallel)
		}
	}
}

func TestPipelineEvents(t *testing.T) {
	p := mustPipeline(t, testConfig())
	doc := mustParseFile(t, "testdata/reference.xml")

	var events []Event
	_, err := p.RunWithOptions(context.Background(), doc, RunOptions{
		EventHandler: func(e Event) { events = append(events, e) },
	})
	if err != nil {
		t.Fatalf("RunWithOptions: %v", err)
	}

	// run_started, five started/finished pairs, run_finished.
	if len(events) != 12 {
		t.Fatalf("got %d events, want 12", len(events))
	}
	if events[0].Kind != EventRunStarted {
		t.Errorf("first event = %s, want run_started", events[0].Kind)
	}
	if events[len(events)-1].Kind != EventRunFinished {
		t.Errorf("last event = %s, want run_finished", events[len(events)-1].Kind)
	}
	runID := events[0].RunID
	for i, e := range events {
		if e.RunID != runID {
			t.Errorf("event %d RunID = %q, want %q", i, e.RunID, runID)
		}
	}
}

func TestPipelineCancellation(t *testing.T) {
	p := mustPipeline(t, testConfig())
	doc := mustParseFile(t, "testdata/reference.xml")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Run(ctx, doc); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run with cancelled context = %v, want context.Canceled", err)
	}

	opts := DefaultRunOptions()
	opts.Concurrency = 4
	if _, err := p.RunWithOptions(ctx, doc, opts); !errors.Is(err, context.Canceled) {
		t.Fatalf("concurrent Run with cancelled context = %v, want context.Canceled", err)
	}
}

// The (profile x product) plane must stop on cancellation even when it
// evaluates on the worker pool.
func TestRetailerStageConcurrentCancellation(t *testing.T) {
	p := mustPipeline(t, testConfig())
	doc := mustParseFile(t, "testdata/reference.xml")
	ns, _ := DetectNamespace(doc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := stageInput{doc: doc, ns: ns, products: doc.Products(ns), concurrency: 4}
	if _, err := p.retailer.Run(ctx, in); !errors.Is(err, context.Canceled) {
		t.Fatalf("retailer Run with cancelled context = %v, want context.Canceled", err)
	}
}

func TestPipelineConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() Config
	}{
		{
			name: "no schema configured",
			cfg:  func() Config { return Config{} },
		},
		{
			name: "unknown retailer profile",
			cfg: func() Config {
				cfg := testConfig()
				cfg.ProfileNames = []string{"walmart"}
				return cfg
			},
		},
		{
			name: "zero-sum weight table",
			cfg: func() Config {
				cfg := testConfig()
				cfg.Weights = &ruleset.WeightTable{Fields: []ruleset.FieldWeight{
					{Name: "isbn", Path: ".//IDValue", Weight: 0, Category: ruleset.CategoryRequired},
				}}
				return cfg
			},
		},
		{
			name: "duplicate rule ids",
			cfg: func() Config {
				cfg := testConfig()
				cfg.Rules = &ruleset.RuleList{Rules: []ruleset.Rule{
					{ID: "r1", Context: "//Product", Condition: "RecordReference", Message: "m"},
					{ID: "r1", Context: "//Product", Condition: "RecordReference", Message: "m"},
				}}
				return cfg
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg())
			if err == nil {
				t.Fatal("New succeeded, want configuration error")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error %v is not a ConfigError", err)
			}
		})
	}
}

// A document resolving to a convention with no configured schema is a
// configuration error at run time, never a silent skip.
func TestPipelineMissingConventionSchema(t *testing.T) {
	p := mustPipeline(t, Config{ReferenceSchema: "testdata/onix-reference.xsd"})
	doc := mustParseFile(t, "testdata/short.xml")

	_, err := p.Run(context.Background(), doc)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Run = %v, want ConfigError for unconfigured short schema", err)
	}
}
