package core

import (
	"context"
	"strings"

	"rawmatqc/pkg/domain"
)

// NewSourceOriginConsistencyRule warns about provenance records with a blank
// country. Validation rejects these on write; imported state can still hold
// them.
func NewSourceOriginConsistencyRule() domain.Rule {
	return sourceOriginRule{}
}

type sourceOriginRule struct{}

func (sourceOriginRule) Name() string { return "source_origin_consistency" }

func (r sourceOriginRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	seen := make(map[domain.SampleKey]struct{})
	for _, c := range changes {
		if c.Entity != domain.EntityMaterialSource || c.Action != domain.ActionCreate {
			continue
		}
		src, ok := c.After.(domain.MaterialSource)
		if !ok {
			continue
		}
		key := src.SampleKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		for _, existing := range view.ListSourcesForSample(key) {
			if strings.TrimSpace(existing.Country) != "" {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message:  "source " + existing.ID + " for sample " + key.String() + " has no country",
				Entity:   domain.EntityMaterialSource,
				EntityID: existing.ID,
			})
		}
	}
	return res, nil
}
