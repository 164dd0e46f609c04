package core

import (
	"context"

	"rawmatqc/pkg/domain"
)

// NewSample is the input to CreateSample. Catalog references are ids.
type NewSample struct {
	ID            string // optional; generated when empty
	MaterialID    string
	PlantID       string
	VendorID      string
	SampleNo      string
	InspectionLot *string
	ValuationDate domain.Date
	BatchNo       *string
	MaterialDoc   *string
}

// CreateSample validates the three catalog references, routes the valuation
// date and stores the sample. The returned key must be kept for dependent
// writes.
func (s *Service) CreateSample(ctx context.Context, in NewSample, opts ...OpOption) (SampleKey, error) {
	var key SampleKey
	_, err := s.write(ctx, "create_sample", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			if prior.ValuationDate == nil {
				return outcome{}, &domain.NotFoundError{Entity: EntitySample, ID: prior.EntityID}
			}
			key = SampleKey{SampleID: prior.EntityID, ValuationDate: *prior.ValuationDate}
			sample, _ := tx.FindSample(key)
			return outcome{entityID: key.SampleID, partition: sample.Partition}, nil
		}
		created, err := tx.CreateSample(Sample{
			ID:            in.ID,
			MaterialID:    in.MaterialID,
			PlantID:       in.PlantID,
			VendorID:      in.VendorID,
			SampleNo:      in.SampleNo,
			InspectionLot: in.InspectionLot,
			ValuationDate: in.ValuationDate,
			BatchNo:       in.BatchNo,
			MaterialDoc:   in.MaterialDoc,
		})
		if err != nil {
			return outcome{}, err
		}
		key = created.Key()
		date := created.ValuationDate
		return outcome{entityID: created.ID, partition: created.Partition, date: &date}, nil
	})
	if err != nil {
		return SampleKey{}, err
	}
	return key, nil
}

// LookupSample resolves a sample id to its full key through the id index.
func (s *Service) LookupSample(ctx context.Context, sampleID string) (SampleKey, error) {
	var key SampleKey
	err := s.read(ctx, "lookup_sample", func(v TransactionView) error {
		var ok bool
		if key, ok = v.LookupSample(sampleID); !ok {
			return &domain.NotFoundError{Entity: EntitySample, ID: sampleID}
		}
		return nil
	})
	return key, err
}

// GetSample returns the sample stored under key.
func (s *Service) GetSample(ctx context.Context, key SampleKey) (Sample, error) {
	var sample Sample
	err := s.read(ctx, "get_sample", func(v TransactionView) error {
		var ok bool
		if sample, ok = v.FindSample(key); !ok {
			return &domain.NotFoundError{Entity: EntitySample, ID: key.String()}
		}
		return nil
	})
	return sample, err
}

// ListSamplesInPartition returns the samples of one partition ordered by
// valuation date then id.
func (s *Service) ListSamplesInPartition(ctx context.Context, partition string) ([]Sample, error) {
	var out []Sample
	err := s.read(ctx, "list_samples", func(v TransactionView) error {
		var err error
		out, err = v.ListSamplesInPartition(partition)
		return err
	})
	return out, err
}

// DeleteSample removes a sample without results or sources. Re-dating a
// sample is DeleteSample followed by CreateSample.
func (s *Service) DeleteSample(ctx context.Context, key SampleKey, opts ...OpOption) error {
	_, err := s.write(ctx, "delete_sample", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			return outcome{entityID: prior.EntityID}, nil
		}
		sample, _ := tx.FindSample(key)
		date := key.ValuationDate
		return outcome{entityID: key.SampleID, partition: sample.Partition, date: &date}, tx.DeleteSample(key)
	})
	return err
}
