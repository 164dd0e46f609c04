package memory

import (
	"fmt"
	"sort"

	"rawmatqc/pkg/domain"
)

// Snapshot is a flat, point-in-time copy of every table. Results and sources
// are ordered by Sequence.
type Snapshot struct {
	Materials  []Material               `json:"materials"`
	Plants     []Plant                  `json:"plants"`
	Vendors    []Vendor                 `json:"vendors"`
	Samples    []Sample                 `json:"samples"`
	Results    []AnalysisResult         `json:"results"`
	Sources    []MaterialSource         `json:"sources"`
	Operations []domain.OperationRecord `json:"operations"`
	Sequence   int64                    `json:"sequence"`
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := stateView{state: s.state}
	snap := Snapshot{
		Materials: v.ListMaterials(),
		Plants:    v.ListPlants(),
		Vendors:   v.ListVendors(),
		Sequence:  s.state.sequence,
	}
	for _, name := range s.router.Names() {
		samples, _ := v.ListSamplesInPartition(name)
		snap.Samples = append(snap.Samples, samples...)
		results, _ := v.ListResultsInPartition(name)
		snap.Results = append(snap.Results, results...)
	}
	sort.SliceStable(snap.Results, func(i, j int) bool { return snap.Results[i].Sequence < snap.Results[j].Sequence })
	for _, src := range s.state.sources {
		snap.Sources = append(snap.Sources, cloneSource(src))
	}
	sort.Slice(snap.Sources, func(i, j int) bool { return snap.Sources[i].Sequence < snap.Sources[j].Sequence })
	for _, op := range s.state.operations {
		snap.Operations = append(snap.Operations, cloneOperation(op))
	}
	sort.Slice(snap.Operations, func(i, j int) bool { return snap.Operations[i].OperationID < snap.Operations[j].OperationID })
	return snap
}

// ImportState replaces the store state with the snapshot. Every row is
// re-validated against the router and the referential rules; on error the
// current state is left untouched. The commit hook is not invoked.
func (s *Store) ImportState(snapshot Snapshot) error {
	st := newMemoryState(s.router)
	v := stateView{state: st}
	for _, m := range snapshot.Materials {
		if _, dup := st.materialCodes[m.Code]; dup {
			return &domain.DuplicateCodeError{Catalog: domain.EntityMaterial, Code: m.Code}
		}
		st.materials[m.ID] = m
		st.materialCodes[m.Code] = m.ID
	}
	for _, p := range snapshot.Plants {
		if _, dup := st.plantCodes[p.Code]; dup {
			return &domain.DuplicateCodeError{Catalog: domain.EntityPlant, Code: p.Code}
		}
		st.plants[p.ID] = p
		st.plantCodes[p.Code] = p.ID
	}
	for _, vd := range snapshot.Vendors {
		if _, dup := st.vendorCodes[vd.Code]; dup {
			return &domain.DuplicateCodeError{Catalog: domain.EntityVendor, Code: vd.Code}
		}
		st.vendors[vd.ID] = vd
		st.vendorCodes[vd.Code] = vd.ID
	}
	for _, smp := range snapshot.Samples {
		h, err := s.router.Route(smp.ValuationDate)
		if err != nil {
			return fmt.Errorf("import sample %s: %w", smp.ID, err)
		}
		if _, ok := st.materials[smp.MaterialID]; !ok {
			return &domain.DanglingReferenceError{Entity: domain.EntityMaterial, Ref: smp.MaterialID}
		}
		if _, ok := st.plants[smp.PlantID]; !ok {
			return &domain.DanglingReferenceError{Entity: domain.EntityPlant, Ref: smp.PlantID}
		}
		if _, ok := st.vendors[smp.VendorID]; !ok {
			return &domain.DanglingReferenceError{Entity: domain.EntityVendor, Ref: smp.VendorID}
		}
		if _, dup := st.sampleIndex[smp.ID]; dup {
			return &domain.ValidationError{Entity: domain.EntitySample, Field: "sample_id", Reason: "duplicate " + smp.ID}
		}
		smp.Partition = h.Name
		st.samplePools[h.Name][smp.ID] = cloneSample(smp)
		st.sampleIndex[smp.ID] = smp.Key()
	}

	results := append([]AnalysisResult(nil), snapshot.Results...)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Sequence < results[j].Sequence })
	maxSeq := snapshot.Sequence
	for _, r := range results {
		key := r.SampleKey()
		if _, ok := v.FindSample(key); !ok {
			return &domain.DanglingReferenceError{Entity: domain.EntitySample, Ref: key.String()}
		}
		uk := resultKey{sampleID: r.SampleID, parameter: r.Parameter, date: r.ValuationDate}
		if _, dup := st.resultUnique[uk]; dup {
			return &domain.DuplicateResultError{Key: key, Parameter: r.Parameter}
		}
		h, _ := s.router.Route(r.ValuationDate)
		r.Partition = h.Name
		st.resultPools[h.Name][r.ID] = cloneResult(r)
		st.resultUnique[uk] = r.ID
		st.resultsBySample[key] = append(st.resultsBySample[key], r.ID)
		if r.Sequence > maxSeq {
			maxSeq = r.Sequence
		}
	}

	sources := append([]MaterialSource(nil), snapshot.Sources...)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Sequence < sources[j].Sequence })
	for _, src := range sources {
		key := src.SampleKey()
		if _, ok := v.FindSample(key); !ok {
			return &domain.DanglingReferenceError{Entity: domain.EntitySample, Ref: key.String()}
		}
		st.sources[src.ID] = cloneSource(src)
		st.sourcesBySample[key] = append(st.sourcesBySample[key], src.ID)
		if src.Sequence > maxSeq {
			maxSeq = src.Sequence
		}
	}
	for _, op := range snapshot.Operations {
		st.operations[op.OperationID] = cloneOperation(op)
	}
	st.sequence = maxSeq

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}
