// Package domain defines the persistent quality-control records, value types,
// and rule evaluation primitives used by rawmatqc.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence tables.
const (
	// EntityMaterial identifies a raw material catalog record.
	EntityMaterial EntityType = "material"
	// EntityPlant identifies a plant catalog record.
	EntityPlant EntityType = "plant"
	// EntityVendor identifies a vendor catalog record.
	EntityVendor EntityType = "vendor"
	// EntitySample identifies a partitioned QC sample.
	EntitySample EntityType = "sample"
	// EntityAnalysisResult identifies a per-parameter analysis result.
	EntityAnalysisResult EntityType = "analysis_result"
	// EntityMaterialSource identifies a provenance record for a sample.
	EntityMaterialSource EntityType = "material_source"
	// EntityOperation identifies an idempotency ledger entry.
	EntityOperation EntityType = "operation"
	EntityPartition EntityType = "partition"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Material is a raw material catalog entry keyed by its surface code.
type Material struct {
	ID          string `json:"material_id" db:"material_id"`
	Code        string `json:"material_code" db:"material_code"`
	Description string `json:"material_description" db:"material_description"`
}

// Plant is a receiving plant catalog entry.
type Plant struct {
	ID   string `json:"plant_id" db:"plant_id"`
	Code string `json:"plant" db:"plant"`
	Name string `json:"plant_name" db:"plant_name"`
}

// Vendor is a supplier catalog entry.
type Vendor struct {
	ID   string `json:"vendor_id" db:"vendor_id"`
	Code string `json:"vendor_code" db:"vendor_code"`
	Name string `json:"vendor_name" db:"vendor_name"`
}

// SampleKey is the physical identity of a sample. The valuation date is the
// partition key, so the identifier alone does not locate a row.
type SampleKey struct {
	SampleID      string `json:"sample_id"`
	ValuationDate Date   `json:"valuation_date"`
}

// IsZero reports whether the key is unset.
func (k SampleKey) IsZero() bool {
	return k.SampleID == "" && k.ValuationDate.IsZero()
}

func (k SampleKey) String() string {
	return k.SampleID + "@" + k.ValuationDate.String()
}

// Sample is a QC sample taken from a material lot at intake.
type Sample struct {
	ID            string    `json:"sample_id"`
	MaterialID    string    `json:"material_id"`
	PlantID       string    `json:"plant_id"`
	VendorID      string    `json:"vendor_id"`
	SampleNo      string    `json:"sample_no"`
	InspectionLot *string   `json:"inspection_lot,omitempty"`
	ValuationDate Date      `json:"valuation_date"`
	BatchNo       *string   `json:"batch_no,omitempty"`
	MaterialDoc   *string   `json:"material_doc,omitempty"`
	Partition     string    `json:"partition"`
	CreatedAt     time.Time `json:"created_at"`
}

// Key returns the composite key dependent records must carry.
func (s Sample) Key() SampleKey {
	return SampleKey{SampleID: s.ID, ValuationDate: s.ValuationDate}
}

// AnalysisResult is a single measured parameter for a sample. A nil Value
// records a measurement whose value is pending or not applicable.
type AnalysisResult struct {
	ID            string    `json:"result_id"`
	SampleID      string    `json:"sample_id"`
	ValuationDate Date      `json:"valuation_date"`
	Parameter     string    `json:"analysis_parameter"`
	Value         *float64  `json:"analysis_value"`
	Partition     string    `json:"partition"`
	Sequence      int64     `json:"sequence"`
	CreatedAt     time.Time `json:"created_at"`
}

// SampleKey returns the composite reference to the parent sample.
func (r AnalysisResult) SampleKey() SampleKey {
	return SampleKey{SampleID: r.SampleID, ValuationDate: r.ValuationDate}
}

// MaterialSource records where the sampled material originated.
type MaterialSource struct {
	ID            string    `json:"source_id"`
	SampleID      string    `json:"sample_id"`
	ValuationDate Date      `json:"valuation_date"`
	PlantOrigin   string    `json:"plant_origin"`
	Producer      string    `json:"producer"`
	Country       string    `json:"country"`
	OriginalBatch *string   `json:"original_batch,omitempty"`
	Sequence      int64     `json:"sequence"`
	CreatedAt     time.Time `json:"created_at"`
}

// SampleKey returns the composite reference to the parent sample.
func (s MaterialSource) SampleKey() SampleKey {
	return SampleKey{SampleID: s.SampleID, ValuationDate: s.ValuationDate}
}

// ProducerCountry is a distinct provenance pair.
type ProducerCountry struct {
	Producer string `json:"producer"`
	Country  string `json:"country"`
}

// OperationRecord is the idempotency ledger entry written alongside the
// first successful commit of a client operation.
type OperationRecord struct {
	OperationID   string     `json:"operation_id"`
	Kind          string     `json:"kind"`
	Entity        EntityType `json:"entity"`
	EntityID      string     `json:"entity_id"`
	ValuationDate *Date      `json:"valuation_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// StandardAnalysisParameters lists the analysis columns produced by the
// laboratory raw-material reports.
var StandardAnalysisParameters = []string{
	"moisture", "ash", "protein", "fat", "fiber", "p", "ca", "insoluble", "nacl",
	"ffa", "ua", "kohps", "brix", "pepsin", "pepsin0002", "ndf", "adf",
	"adl", "eth", "t_fat", "tvn", "nh3", "starch", "iv", "pv", "av",
	"totox", "p_anisidine", "xanthophyll", "ac_insol", "gluten", "sulfer", "sulfate",
}

// IsStandardAnalysisParameter reports whether the parameter is a known report column.
func IsStandardAnalysisParameter(parameter string) bool {
	for _, p := range StandardAnalysisParameters {
		if p == parameter {
			return true
		}
	}
	return false
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the change log.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}
