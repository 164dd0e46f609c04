package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"rawmatqc/pkg/domain"
)

func TestDefaultRulesEngineRegistersRules(t *testing.T) {
	names := []string{}
	for _, r := range NewDefaultRulesEngine().Rules() {
		names = append(names, r.Name())
	}
	want := []string{"analysis_parameter_catalog", "analysis_value_range", "source_origin_consistency"}
	if len(names) != len(want) {
		t.Fatalf("unexpected rules %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("rule %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestNegativeValueCommits(t *testing.T) {
	ctx := context.Background()
	svc, ids := newTestService(t)
	key, _ := svc.CreateSample(ctx, ids.sample("S-1", "2022-03-15"))
	var res Result
	if _, err := svc.RecordResult(ctx, key, "moisture", floatPtr(-0.2), CaptureResult(&res)); err != nil {
		t.Fatalf("negative value must be stored: %v", err)
	}
	for _, v := range res.Violations {
		if v.Rule == "analysis_value_range" {
			t.Fatalf("unexpected range violation %+v", v)
		}
	}
	results, _ := svc.ListResultsForSample(ctx, key)
	if len(results) != 1 || results[0].Value == nil || *results[0].Value != -0.2 {
		t.Fatalf("expected stored negative value, got %+v", results)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "always_block" }

func (r blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, result := range createdResults(changes) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  "blocked",
			Entity:   domain.EntityAnalysisResult,
			EntityID: result.ID,
		})
	}
	return res, nil
}

func TestBlockingRuleRollsBack(t *testing.T) {
	ctx := context.Background()
	engine := NewRulesEngine()
	engine.Register(blockingRule{})
	svc, ids := newTestServiceWithEngine(t, engine)
	key, _ := svc.CreateSample(ctx, ids.sample("S-1", "2022-03-15"))
	_, err := svc.RecordResult(ctx, key, "ash", floatPtr(1.5))
	var blocked domain.RuleViolationError
	if !errors.As(err, &blocked) || !blocked.Result.HasBlocking() {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if blocked.Result.Violations[0].Rule != "always_block" {
		t.Fatalf("unexpected violation %+v", blocked.Result.Violations)
	}
	results, _ := svc.ListResultsForSample(ctx, key)
	if len(results) != 0 {
		t.Fatalf("blocked result must be rolled back, got %+v", results)
	}
}

func TestNonStandardParameterWarns(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	svc, ids := newTestService(t, WithLogger(logger))
	key, _ := svc.CreateSample(ctx, ids.sample("S-1", "2022-03-15"))
	var res Result
	if _, err := svc.RecordResult(ctx, key, "colour", floatPtr(1), CaptureResult(&res)); err != nil {
		t.Fatalf("warn-level rules must not block: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Severity != SeverityWarn || res.Violations[0].Rule != "analysis_parameter_catalog" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !logger.has("warn", "rule violation") {
		t.Fatalf("expected warning log, got %+v", logger.lines)
	}
}

func TestValueRangeRuleFlagsNonFinite(t *testing.T) {
	changes := []domain.Change{
		{Entity: domain.EntityAnalysisResult, Action: domain.ActionCreate, After: domain.AnalysisResult{ID: "r1", Parameter: "fat", Value: floatPtr(math.Inf(1))}},
		{Entity: domain.EntityAnalysisResult, Action: domain.ActionCreate, After: domain.AnalysisResult{ID: "r2", Parameter: "fat", Value: floatPtr(math.NaN())}},
		{Entity: domain.EntityAnalysisResult, Action: domain.ActionCreate, After: domain.AnalysisResult{ID: "r3", Parameter: "fat", Value: floatPtr(2)}},
		{Entity: domain.EntityAnalysisResult, Action: domain.ActionCreate, After: domain.AnalysisResult{ID: "r5", Parameter: "fat", Value: floatPtr(-3.5)}},
		{Entity: domain.EntityAnalysisResult, Action: domain.ActionDelete, Before: domain.AnalysisResult{ID: "r4", Value: floatPtr(-1)}},
	}
	res, err := NewAnalysisValueRangeRule().Evaluate(context.Background(), nil, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.Violations[0].EntityID != "r1" || res.Violations[1].EntityID != "r2" {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
}

type sourceView struct {
	domain.RuleView
	sources []domain.MaterialSource
}

func (v sourceView) ListSourcesForSample(domain.SampleKey) []domain.MaterialSource { return v.sources }

func TestSourceOriginRuleFlagsBlankCountry(t *testing.T) {
	key := domain.SampleKey{SampleID: "s1", ValuationDate: domain.MustParseDate("2022-01-01")}
	view := sourceView{sources: []domain.MaterialSource{
		{ID: "ok", SampleID: "s1", ValuationDate: key.ValuationDate, Country: "PE"},
		{ID: "blank", SampleID: "s1", ValuationDate: key.ValuationDate, Country: "  "},
	}}
	changes := []domain.Change{
		{Entity: domain.EntityMaterialSource, Action: domain.ActionCreate, After: view.sources[0]},
		{Entity: domain.EntityMaterialSource, Action: domain.ActionCreate, After: view.sources[1]},
	}
	res, err := NewSourceOriginConsistencyRule().Evaluate(context.Background(), view, changes)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].EntityID != "blank" || res.Violations[0].Severity != SeverityWarn {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
}
