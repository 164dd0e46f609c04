package core

import (
	"context"
	"fmt"
	"math"

	"rawmatqc/pkg/domain"
)

// NewAnalysisValueRangeRule blocks non-finite analysis values. Negative
// values are legitimate measurements and pass.
func NewAnalysisValueRangeRule() domain.Rule {
	return valueRangeRule{}
}

type valueRangeRule struct{}

func (valueRangeRule) Name() string { return "analysis_value_range" }

func (r valueRangeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, result := range createdResults(changes) {
		if result.Value == nil {
			continue
		}
		v := *result.Value
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("%s value %v for sample %s is not finite", result.Parameter, v, result.SampleKey()),
			Entity:   domain.EntityAnalysisResult,
			EntityID: result.ID,
		})
	}
	return res, nil
}
