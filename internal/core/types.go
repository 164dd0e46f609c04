package core

import "rawmatqc/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Material           = domain.Material
	Plant              = domain.Plant
	Vendor             = domain.Vendor
	Sample             = domain.Sample
	SampleKey          = domain.SampleKey
	AnalysisResult     = domain.AnalysisResult
	MaterialSource     = domain.MaterialSource
	ProducerCountry    = domain.ProducerCountry
	PartitionStats     = domain.PartitionStats
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityMaterial       = domain.EntityMaterial
	EntityPlant          = domain.EntityPlant
	EntityVendor         = domain.EntityVendor
	EntitySample         = domain.EntitySample
	EntityAnalysisResult = domain.EntityAnalysisResult
	EntityMaterialSource = domain.EntityMaterialSource
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
