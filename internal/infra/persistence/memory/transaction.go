package memory

import (
	"math"

	"rawmatqc/pkg/domain"
)

func (tx *transaction) newID() string {
	return tx.store.idFn()
}

// CreateMaterial stores a new catalog entry; the code must be unused.
func (tx *transaction) CreateMaterial(m Material) (Material, error) {
	if err := domain.Required(domain.EntityMaterial, "code", m.Code); err != nil {
		return Material{}, err
	}
	if err := domain.Required(domain.EntityMaterial, "description", m.Description); err != nil {
		return Material{}, err
	}
	if _, exists := tx.state.materialCodes[m.Code]; exists {
		return Material{}, &domain.DuplicateCodeError{Catalog: domain.EntityMaterial, Code: m.Code}
	}
	if m.ID == "" {
		m.ID = tx.newID()
	}
	if _, exists := tx.state.materials[m.ID]; exists {
		return Material{}, &domain.ValidationError{Entity: domain.EntityMaterial, Field: "material_id", Reason: "already exists"}
	}
	tx.state.materials[m.ID] = m
	tx.state.materialCodes[m.Code] = m.ID
	tx.recordChange(Change{Entity: domain.EntityMaterial, Action: domain.ActionCreate, After: m}, func(st *memoryState) {
		delete(st.materials, m.ID)
		delete(st.materialCodes, m.Code)
	})
	return m, nil
}

// UpdateMaterial mutates a material. A code change must not collide.
func (tx *transaction) UpdateMaterial(id string, mutator func(*Material) error) (Material, error) {
	before, ok := tx.state.materials[id]
	if !ok {
		return Material{}, &domain.NotFoundError{Entity: domain.EntityMaterial, ID: id}
	}
	current := before
	if err := mutator(&current); err != nil {
		return Material{}, err
	}
	current.ID = id
	if err := domain.Required(domain.EntityMaterial, "code", current.Code); err != nil {
		return Material{}, err
	}
	if err := domain.Required(domain.EntityMaterial, "description", current.Description); err != nil {
		return Material{}, err
	}
	if owner, exists := tx.state.materialCodes[current.Code]; exists && owner != id {
		return Material{}, &domain.DuplicateCodeError{Catalog: domain.EntityMaterial, Code: current.Code}
	}
	delete(tx.state.materialCodes, before.Code)
	tx.state.materials[id] = current
	tx.state.materialCodes[current.Code] = id
	tx.recordChange(Change{Entity: domain.EntityMaterial, Action: domain.ActionUpdate, Before: before, After: current}, func(st *memoryState) {
		delete(st.materialCodes, current.Code)
		st.materials[id] = before
		st.materialCodes[before.Code] = id
	})
	return current, nil
}

// DeleteMaterial removes a material no sample references.
func (tx *transaction) DeleteMaterial(id string) error {
	current, ok := tx.state.materials[id]
	if !ok {
		return &domain.NotFoundError{Entity: domain.EntityMaterial, ID: id}
	}
	if tx.sampleReferences(func(s Sample) bool { return s.MaterialID == id }) {
		return &domain.ReferencedError{Entity: domain.EntityMaterial, ID: id, By: domain.EntitySample}
	}
	delete(tx.state.materials, id)
	delete(tx.state.materialCodes, current.Code)
	tx.recordChange(Change{Entity: domain.EntityMaterial, Action: domain.ActionDelete, Before: current}, func(st *memoryState) {
		st.materials[id] = current
		st.materialCodes[current.Code] = id
	})
	return nil
}

// CreatePlant stores a new plant.
func (tx *transaction) CreatePlant(p Plant) (Plant, error) {
	if err := domain.Required(domain.EntityPlant, "code", p.Code); err != nil {
		return Plant{}, err
	}
	if err := domain.Required(domain.EntityPlant, "name", p.Name); err != nil {
		return Plant{}, err
	}
	if _, exists := tx.state.plantCodes[p.Code]; exists {
		return Plant{}, &domain.DuplicateCodeError{Catalog: domain.EntityPlant, Code: p.Code}
	}
	if p.ID == "" {
		p.ID = tx.newID()
	}
	if _, exists := tx.state.plants[p.ID]; exists {
		return Plant{}, &domain.ValidationError{Entity: domain.EntityPlant, Field: "plant_id", Reason: "already exists"}
	}
	tx.state.plants[p.ID] = p
	tx.state.plantCodes[p.Code] = p.ID
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionCreate, After: p}, func(st *memoryState) {
		delete(st.plants, p.ID)
		delete(st.plantCodes, p.Code)
	})
	return p, nil
}

// UpdatePlant mutates a plant.
func (tx *transaction) UpdatePlant(id string, mutator func(*Plant) error) (Plant, error) {
	before, ok := tx.state.plants[id]
	if !ok {
		return Plant{}, &domain.NotFoundError{Entity: domain.EntityPlant, ID: id}
	}
	current := before
	if err := mutator(&current); err != nil {
		return Plant{}, err
	}
	current.ID = id
	if err := domain.Required(domain.EntityPlant, "code", current.Code); err != nil {
		return Plant{}, err
	}
	if err := domain.Required(domain.EntityPlant, "name", current.Name); err != nil {
		return Plant{}, err
	}
	if owner, exists := tx.state.plantCodes[current.Code]; exists && owner != id {
		return Plant{}, &domain.DuplicateCodeError{Catalog: domain.EntityPlant, Code: current.Code}
	}
	delete(tx.state.plantCodes, before.Code)
	tx.state.plants[id] = current
	tx.state.plantCodes[current.Code] = id
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionUpdate, Before: before, After: current}, func(st *memoryState) {
		delete(st.plantCodes, current.Code)
		st.plants[id] = before
		st.plantCodes[before.Code] = id
	})
	return current, nil
}

// DeletePlant removes a plant no sample references.
func (tx *transaction) DeletePlant(id string) error {
	current, ok := tx.state.plants[id]
	if !ok {
		return &domain.NotFoundError{Entity: domain.EntityPlant, ID: id}
	}
	if tx.sampleReferences(func(s Sample) bool { return s.PlantID == id }) {
		return &domain.ReferencedError{Entity: domain.EntityPlant, ID: id, By: domain.EntitySample}
	}
	delete(tx.state.plants, id)
	delete(tx.state.plantCodes, current.Code)
	tx.recordChange(Change{Entity: domain.EntityPlant, Action: domain.ActionDelete, Before: current}, func(st *memoryState) {
		st.plants[id] = current
		st.plantCodes[current.Code] = id
	})
	return nil
}

// CreateVendor stores a new vendor.
func (tx *transaction) CreateVendor(v Vendor) (Vendor, error) {
	if err := domain.Required(domain.EntityVendor, "code", v.Code); err != nil {
		return Vendor{}, err
	}
	if err := domain.Required(domain.EntityVendor, "name", v.Name); err != nil {
		return Vendor{}, err
	}
	if _, exists := tx.state.vendorCodes[v.Code]; exists {
		return Vendor{}, &domain.DuplicateCodeError{Catalog: domain.EntityVendor, Code: v.Code}
	}
	if v.ID == "" {
		v.ID = tx.newID()
	}
	if _, exists := tx.state.vendors[v.ID]; exists {
		return Vendor{}, &domain.ValidationError{Entity: domain.EntityVendor, Field: "vendor_id", Reason: "already exists"}
	}
	tx.state.vendors[v.ID] = v
	tx.state.vendorCodes[v.Code] = v.ID
	tx.recordChange(Change{Entity: domain.EntityVendor, Action: domain.ActionCreate, After: v}, func(st *memoryState) {
		delete(st.vendors, v.ID)
		delete(st.vendorCodes, v.Code)
	})
	return v, nil
}

// UpdateVendor mutates a vendor.
func (tx *transaction) UpdateVendor(id string, mutator func(*Vendor) error) (Vendor, error) {
	before, ok := tx.state.vendors[id]
	if !ok {
		return Vendor{}, &domain.NotFoundError{Entity: domain.EntityVendor, ID: id}
	}
	current := before
	if err := mutator(&current); err != nil {
		return Vendor{}, err
	}
	current.ID = id
	if err := domain.Required(domain.EntityVendor, "code", current.Code); err != nil {
		return Vendor{}, err
	}
	if err := domain.Required(domain.EntityVendor, "name", current.Name); err != nil {
		return Vendor{}, err
	}
	if owner, exists := tx.state.vendorCodes[current.Code]; exists && owner != id {
		return Vendor{}, &domain.DuplicateCodeError{Catalog: domain.EntityVendor, Code: current.Code}
	}
	delete(tx.state.vendorCodes, before.Code)
	tx.state.vendors[id] = current
	tx.state.vendorCodes[current.Code] = id
	tx.recordChange(Change{Entity: domain.EntityVendor, Action: domain.ActionUpdate, Before: before, After: current}, func(st *memoryState) {
		delete(st.vendorCodes, current.Code)
		st.vendors[id] = before
		st.vendorCodes[before.Code] = id
	})
	return current, nil
}

// DeleteVendor removes a vendor no sample references.
func (tx *transaction) DeleteVendor(id string) error {
	current, ok := tx.state.vendors[id]
	if !ok {
		return &domain.NotFoundError{Entity: domain.EntityVendor, ID: id}
	}
	if tx.sampleReferences(func(s Sample) bool { return s.VendorID == id }) {
		return &domain.ReferencedError{Entity: domain.EntityVendor, ID: id, By: domain.EntitySample}
	}
	delete(tx.state.vendors, id)
	delete(tx.state.vendorCodes, current.Code)
	tx.recordChange(Change{Entity: domain.EntityVendor, Action: domain.ActionDelete, Before: current}, func(st *memoryState) {
		st.vendors[id] = current
		st.vendorCodes[current.Code] = id
	})
	return nil
}

func (tx *transaction) sampleReferences(match func(Sample) bool) bool {
	for _, pool := range tx.state.samplePools {
		for _, s := range pool {
			if match(s) {
				return true
			}
		}
	}
	return false
}

// CreateSample validates catalog references, routes the valuation date and
// stores the sample in its partition pool.
func (tx *transaction) CreateSample(s Sample) (Sample, error) {
	if err := domain.Required(domain.EntitySample, "sample_no", s.SampleNo); err != nil {
		return Sample{}, err
	}
	if s.ValuationDate.IsZero() {
		return Sample{}, &domain.ValidationError{Entity: domain.EntitySample, Field: "valuation_date", Reason: "is required"}
	}
	if !s.ValuationDate.Valid() {
		return Sample{}, &domain.ValidationError{Entity: domain.EntitySample, Field: "valuation_date", Reason: "is not a calendar day"}
	}
	if _, ok := tx.state.materials[s.MaterialID]; !ok {
		return Sample{}, &domain.DanglingReferenceError{Entity: domain.EntityMaterial, Ref: s.MaterialID}
	}
	if _, ok := tx.state.plants[s.PlantID]; !ok {
		return Sample{}, &domain.DanglingReferenceError{Entity: domain.EntityPlant, Ref: s.PlantID}
	}
	if _, ok := tx.state.vendors[s.VendorID]; !ok {
		return Sample{}, &domain.DanglingReferenceError{Entity: domain.EntityVendor, Ref: s.VendorID}
	}
	h, err := tx.state.router.Route(s.ValuationDate)
	if err != nil {
		return Sample{}, err
	}
	if s.ID == "" {
		s.ID = tx.newID()
	}
	if existing, exists := tx.state.sampleIndex[s.ID]; exists {
		return Sample{}, &domain.ValidationError{Entity: domain.EntitySample, Field: "sample_id", Reason: "already used by " + existing.String()}
	}
	s.Partition = h.Name
	s.CreatedAt = tx.now
	s = cloneSample(s)
	key := s.Key()
	tx.state.samplePools[h.Name][s.ID] = s
	tx.state.sampleIndex[s.ID] = key
	tx.recordChange(Change{Entity: domain.EntitySample, Action: domain.ActionCreate, After: cloneSample(s)}, func(st *memoryState) {
		delete(st.samplePools[h.Name], s.ID)
		delete(st.sampleIndex, s.ID)
	})
	return cloneSample(s), nil
}

// DeleteSample removes a sample that has no results or sources.
func (tx *transaction) DeleteSample(key SampleKey) error {
	current, ok := tx.FindSample(key)
	if !ok {
		return &domain.NotFoundError{Entity: domain.EntitySample, ID: key.String()}
	}
	if len(tx.state.resultsBySample[key]) > 0 {
		return &domain.ReferencedError{Entity: domain.EntitySample, ID: key.String(), By: domain.EntityAnalysisResult}
	}
	if len(tx.state.sourcesBySample[key]) > 0 {
		return &domain.ReferencedError{Entity: domain.EntitySample, ID: key.String(), By: domain.EntityMaterialSource}
	}
	delete(tx.state.samplePools[current.Partition], current.ID)
	delete(tx.state.sampleIndex, current.ID)
	tx.recordChange(Change{Entity: domain.EntitySample, Action: domain.ActionDelete, Before: cloneSample(current)}, func(st *memoryState) {
		st.samplePools[current.Partition][current.ID] = current
		st.sampleIndex[current.ID] = key
	})
	return nil
}

func (tx *transaction) requireSample(key SampleKey) (Sample, error) {
	s, ok := tx.FindSample(key)
	if !ok {
		return Sample{}, &domain.DanglingReferenceError{Entity: domain.EntitySample, Ref: key.String()}
	}
	return s, nil
}

// CreateAnalysisResult appends a result to the partition its valuation date
// routes to. The (sample, parameter, date) triple must be new.
func (tx *transaction) CreateAnalysisResult(r AnalysisResult) (AnalysisResult, error) {
	if err := domain.Required(domain.EntityAnalysisResult, "analysis_parameter", r.Parameter); err != nil {
		return AnalysisResult{}, err
	}
	if r.Value != nil && (math.IsNaN(*r.Value) || math.IsInf(*r.Value, 0)) {
		return AnalysisResult{}, &domain.ValidationError{Entity: domain.EntityAnalysisResult, Field: "analysis_value", Reason: "must be finite"}
	}
	key := r.SampleKey()
	if _, err := tx.requireSample(key); err != nil {
		return AnalysisResult{}, err
	}
	h, err := tx.state.router.Route(r.ValuationDate)
	if err != nil {
		return AnalysisResult{}, err
	}
	uk := resultKey{sampleID: r.SampleID, parameter: r.Parameter, date: r.ValuationDate}
	if _, exists := tx.state.resultUnique[uk]; exists {
		return AnalysisResult{}, &domain.DuplicateResultError{Key: key, Parameter: r.Parameter}
	}
	if r.ID == "" {
		r.ID = tx.newID()
	}
	if _, exists := tx.state.resultPools[h.Name][r.ID]; exists {
		return AnalysisResult{}, &domain.ValidationError{Entity: domain.EntityAnalysisResult, Field: "result_id", Reason: "already exists"}
	}
	r.Partition = h.Name
	r.Sequence = tx.nextSequence()
	r.CreatedAt = tx.now
	r = cloneResult(r)
	tx.state.resultPools[h.Name][r.ID] = r
	tx.state.resultUnique[uk] = r.ID
	tx.state.resultsBySample[key] = append(tx.state.resultsBySample[key], r.ID)
	tx.recordChange(Change{Entity: domain.EntityAnalysisResult, Action: domain.ActionCreate, After: cloneResult(r)}, func(st *memoryState) {
		delete(st.resultPools[h.Name], r.ID)
		delete(st.resultUnique, uk)
		st.resultsBySample[key] = removeLast(st.resultsBySample[key], r.ID)
		if len(st.resultsBySample[key]) == 0 {
			delete(st.resultsBySample, key)
		}
	})
	return cloneResult(r), nil
}

// CreateMaterialSource appends a provenance record for an existing sample.
func (tx *transaction) CreateMaterialSource(src MaterialSource) (MaterialSource, error) {
	required := [][2]string{{"plant_origin", src.PlantOrigin}, {"producer", src.Producer}, {"country", src.Country}}
	for _, f := range required {
		if err := domain.Required(domain.EntityMaterialSource, f[0], f[1]); err != nil {
			return MaterialSource{}, err
		}
	}
	key := src.SampleKey()
	if _, err := tx.requireSample(key); err != nil {
		return MaterialSource{}, err
	}
	if src.ID == "" {
		src.ID = tx.newID()
	}
	if _, exists := tx.state.sources[src.ID]; exists {
		return MaterialSource{}, &domain.ValidationError{Entity: domain.EntityMaterialSource, Field: "source_id", Reason: "already exists"}
	}
	src.Sequence = tx.nextSequence()
	src.CreatedAt = tx.now
	src = cloneSource(src)
	tx.state.sources[src.ID] = src
	tx.state.sourcesBySample[key] = append(tx.state.sourcesBySample[key], src.ID)
	tx.recordChange(Change{Entity: domain.EntityMaterialSource, Action: domain.ActionCreate, After: cloneSource(src)}, func(st *memoryState) {
		delete(st.sources, src.ID)
		st.sourcesBySample[key] = removeLast(st.sourcesBySample[key], src.ID)
		if len(st.sourcesBySample[key]) == 0 {
			delete(st.sourcesBySample, key)
		}
	})
	return cloneSource(src), nil
}

// RecordOperation writes an idempotency ledger entry.
func (tx *transaction) RecordOperation(op domain.OperationRecord) error {
	if err := domain.Required(domain.EntityOperation, "operation_id", op.OperationID); err != nil {
		return err
	}
	if existing, exists := tx.state.operations[op.OperationID]; exists {
		return &domain.IdempotencyConflictError{OperationID: op.OperationID, Existing: existing.Kind, Requested: op.Kind}
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = tx.now
	}
	op = cloneOperation(op)
	tx.state.operations[op.OperationID] = op
	tx.recordChange(Change{Entity: domain.EntityOperation, Action: domain.ActionCreate, After: cloneOperation(op)}, func(st *memoryState) {
		delete(st.operations, op.OperationID)
	})
	return nil
}

func removeLast(ids []string, id string) []string {
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
