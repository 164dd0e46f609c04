package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"rawmatqc/pkg/domain"
)

// Writer persists change sets inside a single SQL transaction.
type Writer struct {
	db     *sqlx.DB
	layout Layout
}

// NewWriter constructs a writer over db.
func NewWriter(db *sqlx.DB, layout Layout) *Writer {
	return &Writer{db: db, layout: layout}
}

// Apply writes every change or none of them. Its signature matches the
// memory store commit hook.
func (w *Writer) Apply(ctx context.Context, changes []domain.Change) (err error) {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, change := range changes {
		if err = w.apply(ctx, tx, change); err != nil {
			return fmt.Errorf("%s %s: %w", change.Action, change.Entity, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (w *Writer) apply(ctx context.Context, tx *sqlx.Tx, change domain.Change) error {
	switch change.Entity {
	case domain.EntityMaterial:
		return w.applyCatalog(ctx, tx, change, "materials", "material_id",
			[]string{"material_id", "material_code", "material_description"},
			func(v any) (any, string, bool) {
				m, ok := v.(domain.Material)
				return materialRow{ID: m.ID, Code: m.Code, Description: m.Description}, m.ID, ok
			})
	case domain.EntityPlant:
		return w.applyCatalog(ctx, tx, change, "plants", "plant_id",
			[]string{"plant_id", "plant", "plant_name"},
			func(v any) (any, string, bool) {
				p, ok := v.(domain.Plant)
				return plantRow{ID: p.ID, Code: p.Code, Name: p.Name}, p.ID, ok
			})
	case domain.EntityVendor:
		return w.applyCatalog(ctx, tx, change, "vendors", "vendor_id",
			[]string{"vendor_id", "vendor_code", "vendor_name"},
			func(v any) (any, string, bool) {
				vd, ok := v.(domain.Vendor)
				return vendorRow{ID: vd.ID, Code: vd.Code, Name: vd.Name}, vd.ID, ok
			})
	case domain.EntitySample:
		return w.applySample(ctx, tx, change)
	case domain.EntityAnalysisResult:
		r, ok := change.After.(domain.AnalysisResult)
		if change.Action != domain.ActionCreate || !ok {
			return fmt.Errorf("unsupported analysis result change")
		}
		return namedInsert(ctx, tx, w.layout.ResultTable(r.Partition), resultColumns, resultRowOf(r))
	case domain.EntityMaterialSource:
		s, ok := change.After.(domain.MaterialSource)
		if change.Action != domain.ActionCreate || !ok {
			return fmt.Errorf("unsupported material source change")
		}
		return namedInsert(ctx, tx, w.layout.Table("material_sources"), sourceColumns, sourceRowOf(s))
	case domain.EntityOperation:
		op, ok := change.After.(domain.OperationRecord)
		if change.Action != domain.ActionCreate || !ok {
			return fmt.Errorf("unsupported operation change")
		}
		return namedInsert(ctx, tx, w.layout.Table("idempotency_keys"), operationColumns, operationRowOf(op))
	default:
		return fmt.Errorf("unknown entity %q", change.Entity)
	}
}

var (
	sampleColumns = []string{
		"sample_id", "material_id", "plant_id", "vendor_id", "sample_no",
		"inspection_lot", "valuation_date", "batch_no", "material_doc", "created_at",
	}
	resultColumns = []string{
		"result_id", "sample_id", "valuation_date", "analysis_parameter",
		"analysis_value", "sequence", "created_at",
	}
	sourceColumns = []string{
		"source_id", "sample_id", "valuation_date", "plant_origin", "producer",
		"country", "original_batch", "sequence", "created_at",
	}
	operationColumns = []string{
		"operation_id", "kind", "entity", "entity_id", "valuation_date", "created_at",
	}
)

func (w *Writer) applyCatalog(ctx context.Context, tx *sqlx.Tx, change domain.Change, table, idColumn string, columns []string, row func(any) (any, string, bool)) error {
	qualified := w.layout.Table(table)
	switch change.Action {
	case domain.ActionCreate:
		r, _, ok := row(change.After)
		if !ok {
			return fmt.Errorf("unexpected payload %T", change.After)
		}
		return namedInsert(ctx, tx, qualified, columns, r)
	case domain.ActionUpdate:
		r, _, ok := row(change.After)
		if !ok {
			return fmt.Errorf("unexpected payload %T", change.After)
		}
		sets := make([]string, 0, len(columns)-1)
		for _, col := range columns {
			if col != idColumn {
				sets = append(sets, col+" = :"+col)
			}
		}
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", qualified, strings.Join(sets, ", "), idColumn, idColumn)
		_, err := tx.NamedExecContext(ctx, query, r)
		return err
	case domain.ActionDelete:
		_, id, ok := row(change.Before)
		if !ok {
			return fmt.Errorf("unexpected payload %T", change.Before)
		}
		query := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", qualified, idColumn))
		_, err := tx.ExecContext(ctx, query, id)
		return err
	default:
		return fmt.Errorf("unsupported action %q", change.Action)
	}
}

func (w *Writer) applySample(ctx context.Context, tx *sqlx.Tx, change domain.Change) error {
	switch change.Action {
	case domain.ActionCreate:
		s, ok := change.After.(domain.Sample)
		if !ok {
			return fmt.Errorf("unexpected payload %T", change.After)
		}
		return namedInsert(ctx, tx, w.layout.SampleTable(s.Partition), sampleColumns, sampleRowOf(s))
	case domain.ActionDelete:
		s, ok := change.Before.(domain.Sample)
		if !ok {
			return fmt.Errorf("unexpected payload %T", change.Before)
		}
		query := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE sample_id = ? AND valuation_date = ?", w.layout.SampleTable(s.Partition)))
		_, err := tx.ExecContext(ctx, query, s.ID, s.ValuationDate)
		return err
	default:
		return fmt.Errorf("unsupported action %q", change.Action)
	}
}

func namedInsert(ctx context.Context, tx *sqlx.Tx, table string, columns []string, row any) error {
	params := make([]string, len(columns))
	for i, col := range columns {
		params[i] = ":" + col
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(params, ", "))
	_, err := tx.NamedExecContext(ctx, query, row)
	return err
}
