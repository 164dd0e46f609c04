package relational

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"rawmatqc/internal/entitymodel/sqlbundle"
	"rawmatqc/internal/infra/persistence/memory"
	"rawmatqc/internal/partition"
	"rawmatqc/pkg/domain"
)

var sqliteLayout = Layout{Dialect: sqlbundle.DialectSQLite}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qc.db")
	db, err := sqlx.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type seeded struct {
	sample  domain.Sample
	results []string
}

func seed(t *testing.T, store *memory.Store) seeded {
	t.Helper()
	var out seeded
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		mat, err := tx.CreateMaterial(domain.Material{Code: "MAT-001", Description: "Fish meal"})
		if err != nil {
			return err
		}
		plant, err := tx.CreatePlant(domain.Plant{Code: "PLANT-A", Name: "Plant A"})
		if err != nil {
			return err
		}
		vendor, err := tx.CreateVendor(domain.Vendor{Code: "VEND-X", Name: "Vendor X"})
		if err != nil {
			return err
		}
		lot := "LOT-9"
		out.sample, err = tx.CreateSample(domain.Sample{
			MaterialID:    mat.ID,
			PlantID:       plant.ID,
			VendorID:      vendor.ID,
			SampleNo:      "S-1",
			InspectionLot: &lot,
			ValuationDate: domain.MustParseDate("2022-03-15"),
		})
		if err != nil {
			return err
		}
		moisture := 10.5
		for _, r := range []domain.AnalysisResult{
			{SampleID: out.sample.ID, ValuationDate: out.sample.ValuationDate, Parameter: "protein"},
			{SampleID: out.sample.ID, ValuationDate: out.sample.ValuationDate, Parameter: "moisture", Value: &moisture},
		} {
			created, err := tx.CreateAnalysisResult(r)
			if err != nil {
				return err
			}
			out.results = append(out.results, created.ID)
		}
		if _, err := tx.CreateMaterialSource(domain.MaterialSource{
			SampleID: out.sample.ID, ValuationDate: out.sample.ValuationDate,
			PlantOrigin: "Lima", Producer: "Pesquera", Country: "PE",
		}); err != nil {
			return err
		}
		d := out.sample.ValuationDate
		return tx.RecordOperation(domain.OperationRecord{
			OperationID: "op-1", Kind: "create_sample", Entity: domain.EntitySample,
			EntityID: out.sample.ID, ValuationDate: &d,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return out
}

func TestOpenPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	router := partition.DefaultRouter()

	store, err := Open(ctx, db, sqliteLayout, router, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := seed(t, store)

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM samples_p2020_2024"); err != nil {
		t.Fatalf("count samples: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected sample row in p2020_2024 table, got %d", count)
	}

	reloaded, err := Open(ctx, db, sqliteLayout, router, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	err = reloaded.View(ctx, func(v domain.TransactionView) error {
		got, ok := v.FindSample(s.sample.Key())
		if !ok {
			t.Fatalf("sample not reloaded")
		}
		if got.Partition != "p2020_2024" || got.InspectionLot == nil || *got.InspectionLot != "LOT-9" {
			t.Fatalf("unexpected reloaded sample: %+v", got)
		}
		if got.BatchNo != nil {
			t.Fatalf("expected nil batch number, got %q", *got.BatchNo)
		}
		results := v.ListResultsForSample(s.sample.Key())
		if len(results) != 2 || results[0].ID != s.results[0] || results[1].ID != s.results[1] {
			t.Fatalf("results not in insertion order: %+v", results)
		}
		if results[0].Value != nil || results[1].Value == nil || *results[1].Value != 10.5 {
			t.Fatalf("unexpected result values: %+v", results)
		}
		if sources := v.ListSourcesForSample(s.sample.Key()); len(sources) != 1 || sources[0].Country != "PE" {
			t.Fatalf("unexpected sources: %+v", sources)
		}
		op, ok := v.FindOperation("op-1")
		if !ok || op.EntityID != s.sample.ID || op.ValuationDate == nil || *op.ValuationDate != s.sample.ValuationDate {
			t.Fatalf("unexpected operation record: %+v", op)
		}
		if _, ok := v.FindMaterialByCode("MAT-001"); !ok {
			t.Fatalf("material not reloaded")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	// sequence continues past the persisted maximum
	_, err = reloaded.RunInTransaction(ctx, func(tx domain.Transaction) error {
		r, err := tx.CreateAnalysisResult(domain.AnalysisResult{SampleID: s.sample.ID, ValuationDate: s.sample.ValuationDate, Parameter: "ash"})
		if err != nil {
			return err
		}
		if r.Sequence <= 3 {
			t.Fatalf("expected sequence beyond reloaded rows, got %d", r.Sequence)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append after reload: %v", err)
	}
}

func TestWriterUpdatesAndDeletes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store, err := Open(ctx, db, sqliteLayout, partition.DefaultRouter(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var plant domain.Plant
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		plant, err = tx.CreatePlant(domain.Plant{Code: "PLANT-B", Name: "Old"})
		return err
	})
	if err != nil {
		t.Fatalf("create plant: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdatePlant(plant.ID, func(p *domain.Plant) error {
			p.Name = "New"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update plant: %v", err)
	}
	var name string
	if err := db.GetContext(ctx, &name, db.Rebind("SELECT plant_name FROM plants WHERE plant_id = ?"), plant.ID); err != nil {
		t.Fatalf("select plant: %v", err)
	}
	if name != "New" {
		t.Fatalf("expected updated name, got %q", name)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeletePlant(plant.ID)
	}); err != nil {
		t.Fatalf("delete plant: %v", err)
	}
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM plants"); err != nil {
		t.Fatalf("count plants: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected plant row deleted, got %d", count)
	}
}

func TestWriteFailureRollsBackMemory(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store, err := Open(ctx, db, sqliteLayout, partition.DefaultRouter(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := seed(t, store)
	if _, err := db.ExecContext(ctx, "DROP TABLE analysis_results_p2020_2024"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAnalysisResult(domain.AnalysisResult{SampleID: s.sample.ID, ValuationDate: s.sample.ValuationDate, Parameter: "fat"})
		return err
	})
	if err == nil {
		t.Fatal("expected write failure")
	}
	_ = store.View(ctx, func(v domain.TransactionView) error {
		if got := v.ListResultsForSample(s.sample.Key()); len(got) != 2 {
			t.Fatalf("expected memory rollback, got %d results", len(got))
		}
		return nil
	})
}

func TestMigrateRejectsMovedPartition(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := Migrate(ctx, db, sqliteLayout, partition.DefaultRouter()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	recorded, err := RecordedRanges(ctx, db, sqliteLayout)
	if err != nil {
		t.Fatalf("recorded ranges: %v", err)
	}
	if len(recorded) != 3 {
		t.Fatalf("expected 3 recorded ranges, got %d", len(recorded))
	}

	moved, err := partition.NewRouter([]partition.Range{
		{Name: "p2015_2019", Lower: domain.MustParseDate("2015-01-01"), Upper: domain.MustParseDate("2020-06-30")},
		{Name: "p2020_2024", Lower: domain.MustParseDate("2020-07-01"), Upper: domain.MustParseDate("2024-12-31")},
		{Name: "p2025_2030", Lower: domain.MustParseDate("2025-01-01"), Upper: domain.MustParseDate("2030-12-31")},
	})
	if err != nil {
		t.Fatalf("moved router: %v", err)
	}
	err = Migrate(ctx, db, sqliteLayout, moved)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMigrateRecordsExtendedPartition(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := Migrate(ctx, db, sqliteLayout, partition.DefaultRouter()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	extended, err := partition.DefaultRouter().Extend(partition.Range{
		Name: "p2031_2035", Lower: domain.MustParseDate("2031-01-01"), Upper: domain.MustParseDate("2035-12-31"),
	})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if err := Migrate(ctx, db, sqliteLayout, extended); err != nil {
		t.Fatalf("migrate extended: %v", err)
	}
	recorded, err := RecordedRanges(ctx, db, sqliteLayout)
	if err != nil {
		t.Fatalf("recorded ranges: %v", err)
	}
	if len(recorded) != 4 {
		t.Fatalf("expected extended range recorded, got %+v", recorded)
	}
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM samples_p2031_2035"); err != nil {
		t.Fatalf("expected new partition table: %v", err)
	}
}

func TestLayoutQualifiesNames(t *testing.T) {
	l := Layout{Dialect: sqlbundle.DialectPostgres, Schema: "raw_material"}
	if got := l.SampleTable("p2020_2024"); got != "raw_material.samples_p2020_2024" {
		t.Fatalf("unexpected sample table %q", got)
	}
	if got := sqliteLayout.ResultTable("p2020_2024"); got != "analysis_results_p2020_2024" {
		t.Fatalf("unexpected result table %q", got)
	}
}
