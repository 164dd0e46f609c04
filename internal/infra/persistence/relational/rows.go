// Package relational maps committed change sets onto the partitioned SQL
// schema and loads that schema back into a memory snapshot. It is shared by
// the sqlite and postgres backends.
package relational

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"rawmatqc/pkg/domain"
)

// timestamp stores instants as RFC 3339 text, which both TIMESTAMPTZ and
// SQLite TEXT columns accept, and scans either representation back.
type timestamp struct {
	time.Time
}

func (t timestamp) Value() (driver.Value, error) {
	return t.UTC().Format(time.RFC3339Nano), nil
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan timestamp: unrecognised layout %q", s)
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

type materialRow struct {
	ID          string `db:"material_id"`
	Code        string `db:"material_code"`
	Description string `db:"material_description"`
}

type plantRow struct {
	ID   string `db:"plant_id"`
	Code string `db:"plant"`
	Name string `db:"plant_name"`
}

type vendorRow struct {
	ID   string `db:"vendor_id"`
	Code string `db:"vendor_code"`
	Name string `db:"vendor_name"`
}

type sampleRow struct {
	ID            string         `db:"sample_id"`
	MaterialID    string         `db:"material_id"`
	PlantID       string         `db:"plant_id"`
	VendorID      string         `db:"vendor_id"`
	SampleNo      string         `db:"sample_no"`
	InspectionLot sql.NullString `db:"inspection_lot"`
	ValuationDate domain.Date    `db:"valuation_date"`
	BatchNo       sql.NullString `db:"batch_no"`
	MaterialDoc   sql.NullString `db:"material_doc"`
	CreatedAt     timestamp      `db:"created_at"`
}

func sampleRowOf(s domain.Sample) sampleRow {
	return sampleRow{
		ID:            s.ID,
		MaterialID:    s.MaterialID,
		PlantID:       s.PlantID,
		VendorID:      s.VendorID,
		SampleNo:      s.SampleNo,
		InspectionLot: nullString(s.InspectionLot),
		ValuationDate: s.ValuationDate,
		BatchNo:       nullString(s.BatchNo),
		MaterialDoc:   nullString(s.MaterialDoc),
		CreatedAt:     timestamp{s.CreatedAt},
	}
}

func (r sampleRow) toDomain() domain.Sample {
	return domain.Sample{
		ID:            r.ID,
		MaterialID:    r.MaterialID,
		PlantID:       r.PlantID,
		VendorID:      r.VendorID,
		SampleNo:      r.SampleNo,
		InspectionLot: stringPtr(r.InspectionLot),
		ValuationDate: r.ValuationDate,
		BatchNo:       stringPtr(r.BatchNo),
		MaterialDoc:   stringPtr(r.MaterialDoc),
		CreatedAt:     r.CreatedAt.Time,
	}
}

type resultRow struct {
	ID            string          `db:"result_id"`
	SampleID      string          `db:"sample_id"`
	ValuationDate domain.Date     `db:"valuation_date"`
	Parameter     string          `db:"analysis_parameter"`
	Value         sql.NullFloat64 `db:"analysis_value"`
	Sequence      int64           `db:"sequence"`
	CreatedAt     timestamp       `db:"created_at"`
}

func resultRowOf(r domain.AnalysisResult) resultRow {
	row := resultRow{
		ID:            r.ID,
		SampleID:      r.SampleID,
		ValuationDate: r.ValuationDate,
		Parameter:     r.Parameter,
		Sequence:      r.Sequence,
		CreatedAt:     timestamp{r.CreatedAt},
	}
	if r.Value != nil {
		row.Value = sql.NullFloat64{Float64: *r.Value, Valid: true}
	}
	return row
}

func (r resultRow) toDomain(partition string) domain.AnalysisResult {
	out := domain.AnalysisResult{
		ID:            r.ID,
		SampleID:      r.SampleID,
		ValuationDate: r.ValuationDate,
		Parameter:     r.Parameter,
		Partition:     partition,
		Sequence:      r.Sequence,
		CreatedAt:     r.CreatedAt.Time,
	}
	if r.Value.Valid {
		v := r.Value.Float64
		out.Value = &v
	}
	return out
}

type sourceRow struct {
	ID            string         `db:"source_id"`
	SampleID      string         `db:"sample_id"`
	ValuationDate domain.Date    `db:"valuation_date"`
	PlantOrigin   string         `db:"plant_origin"`
	Producer      string         `db:"producer"`
	Country       string         `db:"country"`
	OriginalBatch sql.NullString `db:"original_batch"`
	Sequence      int64          `db:"sequence"`
	CreatedAt     timestamp      `db:"created_at"`
}

func sourceRowOf(s domain.MaterialSource) sourceRow {
	return sourceRow{
		ID:            s.ID,
		SampleID:      s.SampleID,
		ValuationDate: s.ValuationDate,
		PlantOrigin:   s.PlantOrigin,
		Producer:      s.Producer,
		Country:       s.Country,
		OriginalBatch: nullString(s.OriginalBatch),
		Sequence:      s.Sequence,
		CreatedAt:     timestamp{s.CreatedAt},
	}
}

func (r sourceRow) toDomain() domain.MaterialSource {
	return domain.MaterialSource{
		ID:            r.ID,
		SampleID:      r.SampleID,
		ValuationDate: r.ValuationDate,
		PlantOrigin:   r.PlantOrigin,
		Producer:      r.Producer,
		Country:       r.Country,
		OriginalBatch: stringPtr(r.OriginalBatch),
		Sequence:      r.Sequence,
		CreatedAt:     r.CreatedAt.Time,
	}
}

type operationRow struct {
	OperationID   string      `db:"operation_id"`
	Kind          string      `db:"kind"`
	Entity        string      `db:"entity"`
	EntityID      string      `db:"entity_id"`
	ValuationDate domain.Date `db:"valuation_date"`
	CreatedAt     timestamp   `db:"created_at"`
}

func operationRowOf(op domain.OperationRecord) operationRow {
	row := operationRow{
		OperationID: op.OperationID,
		Kind:        op.Kind,
		Entity:      string(op.Entity),
		EntityID:    op.EntityID,
		CreatedAt:   timestamp{op.CreatedAt},
	}
	if op.ValuationDate != nil {
		row.ValuationDate = *op.ValuationDate
	}
	return row
}

func (r operationRow) toDomain() domain.OperationRecord {
	op := domain.OperationRecord{
		OperationID: r.OperationID,
		Kind:        r.Kind,
		Entity:      domain.EntityType(r.Entity),
		EntityID:    r.EntityID,
		CreatedAt:   r.CreatedAt.Time,
	}
	if !r.ValuationDate.IsZero() {
		d := r.ValuationDate
		op.ValuationDate = &d
	}
	return op
}

type rangeRow struct {
	Name  string      `db:"name"`
	Lower domain.Date `db:"lower_bound"`
	Upper domain.Date `db:"upper_bound"`
}
