package core

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewAnalysisParameterCatalogRule())
	engine.Register(NewAnalysisValueRangeRule())
	engine.Register(NewSourceOriginConsistencyRule())
	return engine
}

func createdResults(changes []Change) []AnalysisResult {
	var out []AnalysisResult
	for _, c := range changes {
		if c.Entity != EntityAnalysisResult || c.Action != ActionCreate {
			continue
		}
		if r, ok := c.After.(AnalysisResult); ok {
			out = append(out, r)
		}
	}
	return out
}
