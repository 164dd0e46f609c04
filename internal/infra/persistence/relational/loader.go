package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"rawmatqc/internal/infra/persistence/memory"
	"rawmatqc/internal/partition"
	"rawmatqc/pkg/domain"
)

// Load reads every table into a memory snapshot. Sample and result tables are
// read per declared partition.
func Load(ctx context.Context, db *sqlx.DB, layout Layout, router *partition.Router) (memory.Snapshot, error) {
	var snap memory.Snapshot

	var materials []materialRow
	if err := selectAll(ctx, db, &materials, layout.Table("materials"), []string{"material_id", "material_code", "material_description"}); err != nil {
		return snap, err
	}
	for _, m := range materials {
		snap.Materials = append(snap.Materials, domain.Material{ID: m.ID, Code: m.Code, Description: m.Description})
	}

	var plants []plantRow
	if err := selectAll(ctx, db, &plants, layout.Table("plants"), []string{"plant_id", "plant", "plant_name"}); err != nil {
		return snap, err
	}
	for _, p := range plants {
		snap.Plants = append(snap.Plants, domain.Plant{ID: p.ID, Code: p.Code, Name: p.Name})
	}

	var vendors []vendorRow
	if err := selectAll(ctx, db, &vendors, layout.Table("vendors"), []string{"vendor_id", "vendor_code", "vendor_name"}); err != nil {
		return snap, err
	}
	for _, v := range vendors {
		snap.Vendors = append(snap.Vendors, domain.Vendor{ID: v.ID, Code: v.Code, Name: v.Name})
	}

	for _, name := range router.Names() {
		var samples []sampleRow
		if err := selectAll(ctx, db, &samples, layout.SampleTable(name), sampleColumns); err != nil {
			return snap, err
		}
		for _, s := range samples {
			smp := s.toDomain()
			smp.Partition = name
			snap.Samples = append(snap.Samples, smp)
		}
		var results []resultRow
		if err := selectAll(ctx, db, &results, layout.ResultTable(name), resultColumns); err != nil {
			return snap, err
		}
		for _, r := range results {
			snap.Results = append(snap.Results, r.toDomain(name))
			snap.Sequence = max(snap.Sequence, r.Sequence)
		}
	}

	var sources []sourceRow
	if err := selectAll(ctx, db, &sources, layout.Table("material_sources"), sourceColumns); err != nil {
		return snap, err
	}
	for _, s := range sources {
		snap.Sources = append(snap.Sources, s.toDomain())
		snap.Sequence = max(snap.Sequence, s.Sequence)
	}

	var ops []operationRow
	if err := selectAll(ctx, db, &ops, layout.Table("idempotency_keys"), operationColumns); err != nil {
		return snap, err
	}
	for _, op := range ops {
		snap.Operations = append(snap.Operations, op.toDomain())
	}
	return snap, nil
}

func selectAll(ctx context.Context, db *sqlx.DB, dest any, table string, columns []string) error {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), table)
	if err := db.SelectContext(ctx, dest, query); err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	return nil
}

// Open migrates the schema, loads persisted rows into a fresh memory store
// and installs a writer as its commit hook.
func Open(ctx context.Context, db *sqlx.DB, layout Layout, router *partition.Router, engine *domain.RulesEngine, opts ...memory.Option) (*memory.Store, error) {
	if err := Migrate(ctx, db, layout, router); err != nil {
		return nil, err
	}
	snap, err := Load(ctx, db, layout, router)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(router, engine, opts...)
	if err := mem.ImportState(snap); err != nil {
		return nil, fmt.Errorf("hydrate store: %w", err)
	}
	mem.SetCommitHook(NewWriter(db, layout).Apply)
	return mem, nil
}
