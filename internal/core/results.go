package core

import (
	"context"

	"rawmatqc/pkg/domain"
)

// RecordResult stores one analysis parameter for the sample at key. A nil
// value records a measurement whose value is pending.
func (s *Service) RecordResult(ctx context.Context, key SampleKey, parameter string, value *float64, opts ...OpOption) (string, error) {
	var id string
	_, err := s.write(ctx, "record_result", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			id = prior.EntityID
			return outcome{entityID: id}, nil
		}
		created, err := tx.CreateAnalysisResult(AnalysisResult{
			SampleID:      key.SampleID,
			ValuationDate: key.ValuationDate,
			Parameter:     parameter,
			Value:         value,
		})
		if err != nil {
			return outcome{}, err
		}
		id = created.ID
		date := created.ValuationDate
		return outcome{entityID: id, partition: created.Partition, date: &date}, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListResultsForSample returns the sample's results in insertion order.
func (s *Service) ListResultsForSample(ctx context.Context, key SampleKey) ([]AnalysisResult, error) {
	var out []AnalysisResult
	err := s.read(ctx, "list_results", func(v TransactionView) error {
		out = v.ListResultsForSample(key)
		return nil
	})
	return out, err
}

// DistinctAnalysisParameters returns every recorded parameter, sorted.
func (s *Service) DistinctAnalysisParameters(ctx context.Context) ([]string, error) {
	var out []string
	err := s.read(ctx, "distinct_parameters", func(v TransactionView) error {
		out = v.DistinctAnalysisParameters()
		return nil
	})
	return out, err
}

// NewSource is the input to RecordSource.
type NewSource struct {
	PlantOrigin   string
	Producer      string
	Country       string
	OriginalBatch *string
}

// RecordSource appends a provenance record for the sample at key.
func (s *Service) RecordSource(ctx context.Context, key SampleKey, in NewSource, opts ...OpOption) (string, error) {
	var id string
	_, err := s.write(ctx, "record_source", opts, func(tx Transaction, prior *domain.OperationRecord) (outcome, error) {
		if prior != nil {
			id = prior.EntityID
			return outcome{entityID: id}, nil
		}
		sample, err := requireSample(tx, key)
		if err != nil {
			return outcome{}, err
		}
		created, err := tx.CreateMaterialSource(MaterialSource{
			SampleID:      key.SampleID,
			ValuationDate: key.ValuationDate,
			PlantOrigin:   in.PlantOrigin,
			Producer:      in.Producer,
			Country:       in.Country,
			OriginalBatch: in.OriginalBatch,
		})
		if err != nil {
			return outcome{}, err
		}
		id = created.ID
		date := created.ValuationDate
		return outcome{entityID: id, partition: sample.Partition, date: &date}, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func requireSample(view TransactionView, key SampleKey) (Sample, error) {
	sample, ok := view.FindSample(key)
	if !ok {
		return Sample{}, &domain.DanglingReferenceError{Entity: EntitySample, Ref: key.String()}
	}
	return sample, nil
}

// ListSourcesForSample returns the sample's sources in insertion order.
func (s *Service) ListSourcesForSample(ctx context.Context, key SampleKey) ([]MaterialSource, error) {
	var out []MaterialSource
	err := s.read(ctx, "list_sources", func(v TransactionView) error {
		out = v.ListSourcesForSample(key)
		return nil
	})
	return out, err
}

// DistinctProducerCountries returns the distinct (producer, country) pairs.
func (s *Service) DistinctProducerCountries(ctx context.Context) ([]ProducerCountry, error) {
	var out []ProducerCountry
	err := s.read(ctx, "distinct_producer_countries", func(v TransactionView) error {
		out = v.DistinctProducerCountries()
		return nil
	})
	return out, err
}
