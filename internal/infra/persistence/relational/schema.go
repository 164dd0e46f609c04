package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"rawmatqc/internal/entitymodel/sqlbundle"
	"rawmatqc/internal/partition"
	"rawmatqc/pkg/domain"
)

// Layout resolves physical table names for a dialect and optional schema.
type Layout struct {
	Dialect sqlbundle.Dialect
	Schema  string
}

// Table qualifies a logical table name.
func (l Layout) Table(name string) string {
	if l.Schema == "" {
		return name
	}
	return l.Schema + "." + name
}

// SampleTable returns the physical sample table for a partition.
func (l Layout) SampleTable(partitionName string) string {
	return l.Table("samples_" + partitionName)
}

// ResultTable returns the physical analysis result table for a partition.
func (l Layout) ResultTable(partitionName string) string {
	return l.Table("analysis_results_" + partitionName)
}

// Migrate applies the rendered DDL for every declared partition, then
// verifies and records the partition ranges. A recorded range that was
// removed or moved is a ConfigurationError.
func Migrate(ctx context.Context, db *sqlx.DB, layout Layout, router *partition.Router) error {
	ddl, err := sqlbundle.Render(layout.Dialect, layout.Schema, router.Ranges())
	if err != nil {
		return err
	}
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return SyncPartitionRanges(ctx, db, layout, router)
}

// RecordedRanges returns the ranges stored by earlier runs.
func RecordedRanges(ctx context.Context, db *sqlx.DB, layout Layout) ([]domain.PartitionRange, error) {
	var rows []rangeRow
	query := fmt.Sprintf("SELECT name, lower_bound, upper_bound FROM %s", layout.Table("partition_ranges"))
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select partition ranges: %w", err)
	}
	out := make([]domain.PartitionRange, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PartitionRange{Name: r.Name, Lower: r.Lower, Upper: r.Upper})
	}
	return out, nil
}

// SyncPartitionRanges checks the router against recorded ranges and inserts
// any newly declared ones.
func SyncPartitionRanges(ctx context.Context, db *sqlx.DB, layout Layout, router *partition.Router) error {
	recorded, err := RecordedRanges(ctx, db, layout)
	if err != nil {
		return err
	}
	if err := router.CheckRecorded(recorded); err != nil {
		return err
	}
	known := make(map[string]struct{}, len(recorded))
	for _, r := range recorded {
		known[r.Name] = struct{}{}
	}
	insert := fmt.Sprintf("INSERT INTO %s (name, lower_bound, upper_bound) VALUES (:name, :lower_bound, :upper_bound)", layout.Table("partition_ranges"))
	for _, r := range router.Ranges() {
		if _, ok := known[r.Name]; ok {
			continue
		}
		if _, err := db.NamedExecContext(ctx, insert, rangeRow{Name: r.Name, Lower: r.Lower, Upper: r.Upper}); err != nil {
			return fmt.Errorf("record partition %s: %w", r.Name, err)
		}
	}
	return nil
}
