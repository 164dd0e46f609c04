package core

import (
	"context"
	"fmt"

	"rawmatqc/pkg/domain"
)

// NewAnalysisParameterCatalogRule warns when a result uses a parameter
// outside the standard report columns.
func NewAnalysisParameterCatalogRule() domain.Rule {
	return parameterCatalogRule{}
}

type parameterCatalogRule struct{}

func (parameterCatalogRule) Name() string { return "analysis_parameter_catalog" }

func (r parameterCatalogRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, result := range createdResults(changes) {
		if domain.IsStandardAnalysisParameter(result.Parameter) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("parameter %q is not a standard analysis column", result.Parameter),
			Entity:   domain.EntityAnalysisResult,
			EntityID: result.ID,
		})
	}
	return res, nil
}
