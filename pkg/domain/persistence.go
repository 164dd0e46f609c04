package domain

import "context"

// PartitionRange is a declared valuation-date range. Both bounds are
// inclusive calendar dates.
type PartitionRange struct {
	Name  string `json:"name"`
	Lower Date   `json:"lower"`
	Upper Date   `json:"upper"`
}

// Contains reports whether the date falls inside the range.
func (r PartitionRange) Contains(d Date) bool {
	return !d.Before(r.Lower) && !d.After(r.Upper)
}

// PartitionStats summarises the rows held by one partition.
type PartitionStats struct {
	PartitionRange
	Samples int `json:"samples"`
	Results int `json:"results"`
	Sources int `json:"sources"`
}

// TransactionView provides read-only access to committed or in-flight state.
type TransactionView interface {
	RuleView
	FindMaterial(id string) (Material, bool)
	FindMaterialByCode(code string) (Material, bool)
	ListMaterials() []Material
	FindPlant(id string) (Plant, bool)
	FindPlantByCode(code string) (Plant, bool)
	ListPlants() []Plant
	FindVendor(id string) (Vendor, bool)
	FindVendorByCode(code string) (Vendor, bool)
	ListVendors() []Vendor
	ListSamplesInPartition(name string) ([]Sample, error)
	ListResultsInPartition(name string) ([]AnalysisResult, error)
	DistinctAnalysisParameters() []string
	DistinctProducerCountries() []ProducerCountry
	FindOperation(operationID string) (OperationRecord, bool)
	Partitions() []PartitionRange
	PartitionStats() []PartitionStats
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	TransactionView
	CreateMaterial(Material) (Material, error)
	UpdateMaterial(id string, mutator func(*Material) error) (Material, error)
	DeleteMaterial(id string) error
	CreatePlant(Plant) (Plant, error)
	UpdatePlant(id string, mutator func(*Plant) error) (Plant, error)
	DeletePlant(id string) error
	CreateVendor(Vendor) (Vendor, error)
	UpdateVendor(id string, mutator func(*Vendor) error) (Vendor, error)
	DeleteVendor(id string) error
	CreateSample(Sample) (Sample, error)
	DeleteSample(key SampleKey) error
	CreateAnalysisResult(AnalysisResult) (AnalysisResult, error)
	CreateMaterialSource(MaterialSource) (MaterialSource, error)
	RecordOperation(OperationRecord) error
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
