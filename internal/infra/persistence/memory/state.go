package memory

import (
	"sort"

	"rawmatqc/internal/partition"
	"rawmatqc/pkg/domain"
)

type resultKey struct {
	sampleID  string
	parameter string
	date      domain.Date
}

// memoryState holds every table plus the lookup indexes. Samples and results
// live in per-partition pools keyed by partition name.
type memoryState struct {
	router *partition.Router

	materials     map[string]Material
	materialCodes map[string]string
	plants        map[string]Plant
	plantCodes    map[string]string
	vendors       map[string]Vendor
	vendorCodes   map[string]string

	samplePools map[string]map[string]Sample
	sampleIndex map[string]SampleKey

	resultPools     map[string]map[string]AnalysisResult
	resultUnique    map[resultKey]string
	resultsBySample map[SampleKey][]string

	sources         map[string]MaterialSource
	sourcesBySample map[SampleKey][]string

	operations map[string]domain.OperationRecord
	sequence   int64
}

func newMemoryState(router *partition.Router) *memoryState {
	st := &memoryState{
		router:          router,
		materials:       make(map[string]Material),
		materialCodes:   make(map[string]string),
		plants:          make(map[string]Plant),
		plantCodes:      make(map[string]string),
		vendors:         make(map[string]Vendor),
		vendorCodes:     make(map[string]string),
		samplePools:     make(map[string]map[string]Sample),
		sampleIndex:     make(map[string]SampleKey),
		resultPools:     make(map[string]map[string]AnalysisResult),
		resultUnique:    make(map[resultKey]string),
		resultsBySample: make(map[SampleKey][]string),
		sources:         make(map[string]MaterialSource),
		sourcesBySample: make(map[SampleKey][]string),
		operations:      make(map[string]domain.OperationRecord),
	}
	for _, name := range router.Names() {
		st.samplePools[name] = make(map[string]Sample)
		st.resultPools[name] = make(map[string]AnalysisResult)
	}
	return st
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneSample(s Sample) Sample {
	s.InspectionLot = cloneString(s.InspectionLot)
	s.BatchNo = cloneString(s.BatchNo)
	s.MaterialDoc = cloneString(s.MaterialDoc)
	return s
}

func cloneResult(r AnalysisResult) AnalysisResult {
	r.Value = cloneFloat(r.Value)
	return r
}

func cloneSource(s MaterialSource) MaterialSource {
	s.OriginalBatch = cloneString(s.OriginalBatch)
	return s
}

func cloneOperation(op domain.OperationRecord) domain.OperationRecord {
	if op.ValuationDate != nil {
		d := *op.ValuationDate
		op.ValuationDate = &d
	}
	return op
}

// stateView implements domain.TransactionView over a memoryState. Every value
// returned is a copy; slices are freshly allocated.
type stateView struct {
	state *memoryState
}

func (v stateView) FindMaterial(id string) (Material, bool) {
	m, ok := v.state.materials[id]
	return m, ok
}

func (v stateView) FindMaterialByCode(code string) (Material, bool) {
	id, ok := v.state.materialCodes[code]
	if !ok {
		return Material{}, false
	}
	return v.FindMaterial(id)
}

func (v stateView) ListMaterials() []Material {
	out := make([]Material, 0, len(v.state.materials))
	for _, m := range v.state.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (v stateView) FindPlant(id string) (Plant, bool) {
	p, ok := v.state.plants[id]
	return p, ok
}

func (v stateView) FindPlantByCode(code string) (Plant, bool) {
	id, ok := v.state.plantCodes[code]
	if !ok {
		return Plant{}, false
	}
	return v.FindPlant(id)
}

func (v stateView) ListPlants() []Plant {
	out := make([]Plant, 0, len(v.state.plants))
	for _, p := range v.state.plants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (v stateView) FindVendor(id string) (Vendor, bool) {
	vd, ok := v.state.vendors[id]
	return vd, ok
}

func (v stateView) FindVendorByCode(code string) (Vendor, bool) {
	id, ok := v.state.vendorCodes[code]
	if !ok {
		return Vendor{}, false
	}
	return v.FindVendor(id)
}

func (v stateView) ListVendors() []Vendor {
	out := make([]Vendor, 0, len(v.state.vendors))
	for _, vd := range v.state.vendors {
		out = append(out, vd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// FindSample resolves an exact composite key. A matching id under another
// valuation date is a miss.
func (v stateView) FindSample(key SampleKey) (Sample, bool) {
	h, err := v.state.router.Route(key.ValuationDate)
	if err != nil {
		return Sample{}, false
	}
	s, ok := v.state.samplePools[h.Name][key.SampleID]
	if !ok || s.ValuationDate != key.ValuationDate {
		return Sample{}, false
	}
	return cloneSample(s), true
}

func (v stateView) LookupSample(sampleID string) (SampleKey, bool) {
	key, ok := v.state.sampleIndex[sampleID]
	return key, ok
}

func (v stateView) ListSamplesInPartition(name string) ([]Sample, error) {
	pool, ok := v.state.samplePools[name]
	if !ok {
		return nil, &domain.NotFoundError{Entity: domain.EntityPartition, ID: name}
	}
	out := make([]Sample, 0, len(pool))
	for _, s := range pool {
		out = append(out, cloneSample(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].ValuationDate.Compare(out[j].ValuationDate); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v stateView) ListResultsInPartition(name string) ([]AnalysisResult, error) {
	pool, ok := v.state.resultPools[name]
	if !ok {
		return nil, &domain.NotFoundError{Entity: domain.EntityPartition, ID: name}
	}
	out := make([]AnalysisResult, 0, len(pool))
	for _, r := range pool {
		out = append(out, cloneResult(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (v stateView) ListResultsForSample(key SampleKey) []AnalysisResult {
	ids := v.state.resultsBySample[key]
	out := make([]AnalysisResult, 0, len(ids))
	if len(ids) == 0 {
		return out
	}
	h, err := v.state.router.Route(key.ValuationDate)
	if err != nil {
		return out
	}
	pool := v.state.resultPools[h.Name]
	for _, id := range ids {
		if r, ok := pool[id]; ok {
			out = append(out, cloneResult(r))
		}
	}
	return out
}

func (v stateView) ListSourcesForSample(key SampleKey) []MaterialSource {
	ids := v.state.sourcesBySample[key]
	out := make([]MaterialSource, 0, len(ids))
	for _, id := range ids {
		if s, ok := v.state.sources[id]; ok {
			out = append(out, cloneSource(s))
		}
	}
	return out
}

func (v stateView) DistinctAnalysisParameters() []string {
	seen := make(map[string]struct{})
	for k := range v.state.resultUnique {
		seen[k.parameter] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (v stateView) DistinctProducerCountries() []domain.ProducerCountry {
	seen := make(map[domain.ProducerCountry]struct{})
	for _, s := range v.state.sources {
		seen[domain.ProducerCountry{Producer: s.Producer, Country: s.Country}] = struct{}{}
	}
	out := make([]domain.ProducerCountry, 0, len(seen))
	for pc := range seen {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Producer != out[j].Producer {
			return out[i].Producer < out[j].Producer
		}
		return out[i].Country < out[j].Country
	})
	return out
}

func (v stateView) FindOperation(operationID string) (domain.OperationRecord, bool) {
	op, ok := v.state.operations[operationID]
	if !ok {
		return domain.OperationRecord{}, false
	}
	return cloneOperation(op), true
}

func (v stateView) Partitions() []domain.PartitionRange {
	return v.state.router.Ranges()
}

func (v stateView) PartitionStats() []domain.PartitionStats {
	ranges := v.state.router.Ranges()
	out := make([]domain.PartitionStats, 0, len(ranges))
	for _, rg := range ranges {
		stats := domain.PartitionStats{
			PartitionRange: rg,
			Samples:        len(v.state.samplePools[rg.Name]),
			Results:        len(v.state.resultPools[rg.Name]),
		}
		for _, s := range v.state.samplePools[rg.Name] {
			stats.Sources += len(v.state.sourcesBySample[s.Key()])
		}
		out = append(out, stats)
	}
	return out
}
