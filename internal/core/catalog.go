package core

import (
	"context"

	"rawmatqc/pkg/domain"
)

// UpsertOptions controls catalog upserts. Without AllowUpdate an existing
// code is a DuplicateCodeError.
type UpsertOptions struct {
	AllowUpdate bool
}

// UpsertMaterial inserts a material or, with AllowUpdate, replaces the
// description of the existing one while keeping its id.
func (s *Service) UpsertMaterial(ctx context.Context, code, description string, upsert UpsertOptions, opts ...OpOption) (Material, error) {
	var material Material
	_, err := s.write(ctx, "upsert_material", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			m, ok := tx.FindMaterial(prior.EntityID)
			if !ok {
				return outcome{}, &domain.NotFoundError{Entity: EntityMaterial, ID: prior.EntityID}
			}
			material = m
			return outcome{entityID: m.ID}, nil
		}
		existing, found := tx.FindMaterialByCode(code)
		if !found {
			created, err := tx.CreateMaterial(Material{Code: code, Description: description})
			material = created
			return outcome{entityID: created.ID}, err
		}
		if !upsert.AllowUpdate {
			return outcome{entityID: existing.ID}, &domain.DuplicateCodeError{Catalog: EntityMaterial, Code: code}
		}
		updated, err := tx.UpdateMaterial(existing.ID, func(m *Material) error {
			m.Description = description
			return nil
		})
		material = updated
		return outcome{entityID: existing.ID, action: ActionUpdate}, err
	})
	if err != nil {
		return Material{}, err
	}
	return material, nil
}

// LookupMaterialByCode resolves a material code to its id.
func (s *Service) LookupMaterialByCode(ctx context.Context, code string) (string, error) {
	var id string
	err := s.read(ctx, "lookup_material", func(v TransactionView) error {
		m, ok := v.FindMaterialByCode(code)
		if !ok {
			return &domain.NotFoundError{Entity: EntityMaterial, ID: code}
		}
		id = m.ID
		return nil
	})
	return id, err
}

// GetMaterial returns a material by id.
func (s *Service) GetMaterial(ctx context.Context, id string) (Material, error) {
	var m Material
	err := s.read(ctx, "get_material", func(v TransactionView) error {
		var ok bool
		if m, ok = v.FindMaterial(id); !ok {
			return &domain.NotFoundError{Entity: EntityMaterial, ID: id}
		}
		return nil
	})
	return m, err
}

// ListMaterials returns all materials ordered by code.
func (s *Service) ListMaterials(ctx context.Context) ([]Material, error) {
	var out []Material
	err := s.read(ctx, "list_materials", func(v TransactionView) error {
		out = v.ListMaterials()
		return nil
	})
	return out, err
}

// DeleteMaterial removes a material no sample references.
func (s *Service) DeleteMaterial(ctx context.Context, id string, opts ...OpOption) error {
	_, err := s.write(ctx, "delete_material", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			return outcome{entityID: prior.EntityID}, nil
		}
		return outcome{entityID: id}, tx.DeleteMaterial(id)
	})
	return err
}

// UpsertPlant inserts a plant or, with AllowUpdate, renames the existing one.
func (s *Service) UpsertPlant(ctx context.Context, code, name string, upsert UpsertOptions, opts ...OpOption) (Plant, error) {
	var plant Plant
	_, err := s.write(ctx, "upsert_plant", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			p, ok := tx.FindPlant(prior.EntityID)
			if !ok {
				return outcome{}, &domain.NotFoundError{Entity: EntityPlant, ID: prior.EntityID}
			}
			plant = p
			return outcome{entityID: p.ID}, nil
		}
		existing, found := tx.FindPlantByCode(code)
		if !found {
			created, err := tx.CreatePlant(Plant{Code: code, Name: name})
			plant = created
			return outcome{entityID: created.ID}, err
		}
		if !upsert.AllowUpdate {
			return outcome{entityID: existing.ID}, &domain.DuplicateCodeError{Catalog: EntityPlant, Code: code}
		}
		updated, err := tx.UpdatePlant(existing.ID, func(p *Plant) error {
			p.Name = name
			return nil
		})
		plant = updated
		return outcome{entityID: existing.ID, action: ActionUpdate}, err
	})
	if err != nil {
		return Plant{}, err
	}
	return plant, nil
}

// LookupPlantByCode resolves a plant code to its id.
func (s *Service) LookupPlantByCode(ctx context.Context, code string) (string, error) {
	var id string
	err := s.read(ctx, "lookup_plant", func(v TransactionView) error {
		p, ok := v.FindPlantByCode(code)
		if !ok {
			return &domain.NotFoundError{Entity: EntityPlant, ID: code}
		}
		id = p.ID
		return nil
	})
	return id, err
}

// GetPlant returns a plant by id.
func (s *Service) GetPlant(ctx context.Context, id string) (Plant, error) {
	var p Plant
	err := s.read(ctx, "get_plant", func(v TransactionView) error {
		var ok bool
		if p, ok = v.FindPlant(id); !ok {
			return &domain.NotFoundError{Entity: EntityPlant, ID: id}
		}
		return nil
	})
	return p, err
}

// ListPlants returns all plants ordered by code.
func (s *Service) ListPlants(ctx context.Context) ([]Plant, error) {
	var out []Plant
	err := s.read(ctx, "list_plants", func(v TransactionView) error {
		out = v.ListPlants()
		return nil
	})
	return out, err
}

// DeletePlant removes a plant no sample references.
func (s *Service) DeletePlant(ctx context.Context, id string, opts ...OpOption) error {
	_, err := s.write(ctx, "delete_plant", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			return outcome{entityID: prior.EntityID}, nil
		}
		return outcome{entityID: id}, tx.DeletePlant(id)
	})
	return err
}

// UpsertVendor inserts a vendor or, with AllowUpdate, renames the existing one.
func (s *Service) UpsertVendor(ctx context.Context, code, name string, upsert UpsertOptions, opts ...OpOption) (Vendor, error) {
	var vendor Vendor
	_, err := s.write(ctx, "upsert_vendor", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			v, ok := tx.FindVendor(prior.EntityID)
			if !ok {
				return outcome{}, &domain.NotFoundError{Entity: EntityVendor, ID: prior.EntityID}
			}
			vendor = v
			return outcome{entityID: v.ID}, nil
		}
		existing, found := tx.FindVendorByCode(code)
		if !found {
			created, err := tx.CreateVendor(Vendor{Code: code, Name: name})
			vendor = created
			return outcome{entityID: created.ID}, err
		}
		if !upsert.AllowUpdate {
			return outcome{entityID: existing.ID}, &domain.DuplicateCodeError{Catalog: EntityVendor, Code: code}
		}
		updated, err := tx.UpdateVendor(existing.ID, func(v *Vendor) error {
			v.Name = name
			return nil
		})
		vendor = updated
		return outcome{entityID: existing.ID, action: ActionUpdate}, err
	})
	if err != nil {
		return Vendor{}, err
	}
	return vendor, nil
}

// LookupVendorByCode resolves a vendor code to its id.
func (s *Service) LookupVendorByCode(ctx context.Context, code string) (string, error) {
	var id string
	err := s.read(ctx, "lookup_vendor", func(v TransactionView) error {
		vendor, ok := v.FindVendorByCode(code)
		if !ok {
			return &domain.NotFoundError{Entity: EntityVendor, ID: code}
		}
		id = vendor.ID
		return nil
	})
	return id, err
}

// GetVendor returns a vendor by id.
func (s *Service) GetVendor(ctx context.Context, id string) (Vendor, error) {
	var vendor Vendor
	err := s.read(ctx, "get_vendor", func(v TransactionView) error {
		var ok bool
		if vendor, ok = v.FindVendor(id); !ok {
			return &domain.NotFoundError{Entity: EntityVendor, ID: id}
		}
		return nil
	})
	return vendor, err
}

// ListVendors returns all vendors ordered by code.
func (s *Service) ListVendors(ctx context.Context) ([]Vendor, error) {
	var out []Vendor
	err := s.read(ctx, "list_vendors", func(v TransactionView) error {
		out = v.ListVendors()
		return nil
	})
	return out, err
}

// DeleteVendor removes a vendor no sample references.
func (s *Service) DeleteVendor(ctx context.Context, id string, opts ...OpOption) error {
	_, err := s.write(ctx, "delete_vendor", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			return outcome{entityID: prior.EntityID}, nil
		}
		return outcome{entityID: id}, tx.DeleteVendor(id)
	})
	return err
}
