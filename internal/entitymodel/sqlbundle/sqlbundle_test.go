package sqlbundle

import (
	"strings"
	"testing"

	"rawmatqc/internal/partition"
)

func TestSplitStatements(t *testing.T) {
	ddl, err := SQLite(partition.DefaultRanges())
	if err != nil {
		t.Fatalf("render sqlite: %v", err)
	}
	stmts := SplitStatements(ddl)
	if len(stmts) == 0 {
		t.Fatal("expected sqlite DDL to produce statements")
	}
	for _, stmt := range stmts {
		if strings.HasPrefix(strings.TrimSpace(stmt), "--") {
			t.Fatalf("statement unexpectedly starts with comment: %q", stmt)
		}
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			t.Fatalf("statement missing semicolon terminator: %q", stmt)
		}
	}
}

func TestSQLiteBundleHasTablePerPartition(t *testing.T) {
	ddl, err := SQLite(partition.DefaultRanges())
	if err != nil {
		t.Fatalf("render sqlite: %v", err)
	}
	for _, name := range []string{"p2015_2019", "p2020_2024", "p2025_2030"} {
		if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS samples_"+name) {
			t.Fatalf("missing samples table for %s", name)
		}
		if !strings.Contains(ddl, "REFERENCES samples_"+name+" (sample_id, valuation_date)") {
			t.Fatalf("missing composite foreign key for %s", name)
		}
	}
	if !strings.Contains(ddl, "BETWEEN '2020-01-01' AND '2024-12-31'") {
		t.Fatalf("expected inclusive bounds check in sqlite ddl")
	}
}

func TestPostgresBundle(t *testing.T) {
	ddl, err := Postgres("", partition.DefaultRanges())
	if err != nil {
		t.Fatalf("render postgres: %v", err)
	}
	if !strings.Contains(ddl, "CREATE TABLE") {
		t.Fatal("expected postgres DDL to contain CREATE TABLE")
	}
	if !strings.Contains(ddl, "CREATE SCHEMA IF NOT EXISTS raw_material;") {
		t.Fatal("expected default schema")
	}
	if !strings.Contains(ddl, "PARTITION BY RANGE (valuation_date)") {
		t.Fatal("expected declarative partitioning")
	}
	want := "FOR VALUES FROM ('2020-01-01') TO ('2025-01-01')"
	if !strings.Contains(ddl, want) {
		t.Fatalf("expected exclusive upper bound translation %q", want)
	}
	if strings.Contains(ddl, "{{") {
		t.Fatal("unrendered template action left in ddl")
	}
}

func TestRenderRejectsUnsafeIdentifiers(t *testing.T) {
	ranges := partition.DefaultRanges()
	if _, err := Postgres("raw; DROP", ranges); err == nil {
		t.Fatal("expected invalid schema to fail")
	}
	ranges[0].Name = "bad-name"
	if _, err := SQLite(ranges); err == nil {
		t.Fatal("expected invalid partition name to fail")
	}
	if _, err := Render("oracle", "", nil); err == nil {
		t.Fatal("expected unsupported dialect to fail")
	}
}
