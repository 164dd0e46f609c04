package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rawmatqc/internal/config"
	"rawmatqc/internal/core"
	"rawmatqc/pkg/domain"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	old := getenv
	getenv = func(key string) string { return env[key] }
	t.Cleanup(func() { getenv = old })
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestUsage(t *testing.T) {
	withEnv(t, nil)
	if code, _, stderr := run(t); code != exitUsage || !strings.Contains(stderr, "usage: qcstore") {
		t.Fatalf("expected usage exit, got %d %q", code, stderr)
	}
	if code, _, _ := run(t, "frobnicate"); code != exitUsage {
		t.Fatalf("expected usage exit for unknown command, got %d", code)
	}
	if code, stdout, _ := run(t, "help"); code != exitOK || !strings.Contains(stdout, "check-partitions") {
		t.Fatalf("expected help on stdout, got %d %q", code, stdout)
	}
	if code, _, _ := run(t, "route", "-bogus"); code != exitUsage {
		t.Fatalf("expected usage exit for bad flag, got %d", code)
	}
}

func TestCheckPartitions(t *testing.T) {
	withEnv(t, nil)
	code, stdout, _ := run(t, "check-partitions")
	if code != exitOK || !strings.Contains(stdout, "p2020_2024\t2020-01-01\t2024-12-31") || !strings.Contains(stdout, "ok: 3 partitions") {
		t.Fatalf("unexpected default check: %d %q", code, stdout)
	}

	dir := t.TempDir()
	gapped := writeFile(t, dir, "gap.yaml", "partitions:\n  - name: p2015_2019\n    lower: 2015-01-01\n    upper: 2019-12-31\n  - name: p2021_2024\n    lower: 2021-01-01\n    upper: 2024-12-31\n")
	code, _, stderr := run(t, "check-partitions", "-file", gapped)
	if code != exitError || !strings.Contains(stderr, "gap between partition") {
		t.Fatalf("expected gap failure, got %d %q", code, stderr)
	}

	withEnv(t, map[string]string{"QCSTORE_PARTITIONS_FILE": filepath.Join(dir, "missing.yaml")})
	if code, _, _ := run(t, "check-partitions"); code != exitError {
		t.Fatalf("expected env-configured missing file to fail, got %d", code)
	}
}

func TestRenderDDL(t *testing.T) {
	withEnv(t, nil)
	code, stdout, _ := run(t, "ddl", "-dialect", "sqlite")
	if code != exitOK || !strings.Contains(stdout, "samples_p2015_2019") {
		t.Fatalf("unexpected sqlite ddl: %d %q", code, stdout)
	}
	code, stdout, _ = run(t, "ddl", "-dialect", "postgres")
	if code != exitOK || !strings.Contains(stdout, "raw_material.samples") {
		t.Fatalf("expected default schema in postgres ddl: %d", code)
	}
	code, stdout, _ = run(t, "ddl", "-dialect", "postgres", "-schema", "qc")
	if code != exitOK || !strings.Contains(stdout, "qc.samples") {
		t.Fatalf("expected custom schema in postgres ddl: %d", code)
	}
	if code, _, _ := run(t, "ddl", "-dialect", "oracle"); code != exitUsage {
		t.Fatalf("expected usage exit for unknown dialect, got %d", code)
	}
}

func TestRouteDate(t *testing.T) {
	withEnv(t, nil)
	cases := []struct {
		date string
		want string
	}{
		{"2015-01-01", "p2015_2019"},
		{"2019-12-31", "p2015_2019"},
		{"2020-01-01", "p2020_2024"},
		{"2030-12-31", "p2025_2030"},
	}
	for _, tc := range cases {
		code, stdout, _ := run(t, "route", "-date", tc.date)
		if code != exitOK || !strings.HasPrefix(stdout, tc.want+"\t") {
			t.Fatalf("route %s: got %d %q, want %s", tc.date, code, stdout, tc.want)
		}
	}
	if code, _, stderr := run(t, "route", "-date", "2031-01-01"); code != exitError || !strings.Contains(stderr, "outside every configured partition") {
		t.Fatalf("expected out of range failure, got %d %q", code, stderr)
	}
	if code, _, _ := run(t, "route"); code != exitUsage {
		t.Fatalf("expected missing -date usage error, got %d", code)
	}
	if code, _, _ := run(t, "route", "-date", "15.03.2022"); code != exitError {
		t.Fatalf("expected parse failure, got %d", code)
	}
}

func seedSQLite(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	store, err := core.OpenPersistentStore(ctx, config.Storage{Driver: config.StorageSQLite, SQLitePath: path}, core.NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.(io.Closer).Close() }()
	svc := core.NewService(store)
	m, err := svc.UpsertMaterial(ctx, "MAT-001", "Fish meal", core.UpsertOptions{})
	if err != nil {
		t.Fatalf("material: %v", err)
	}
	p, _ := svc.UpsertPlant(ctx, "PLANT-A", "Plant A", core.UpsertOptions{})
	v, _ := svc.UpsertVendor(ctx, "VEND-X", "Vendor X", core.UpsertOptions{})
	for i, date := range []string{"2018-05-01", "2022-03-15", "2022-07-01"} {
		key, err := svc.CreateSample(ctx, core.NewSample{
			MaterialID: m.ID, PlantID: p.ID, VendorID: v.ID,
			SampleNo: "S-" + string(rune('1'+i)), ValuationDate: domain.MustParseDate(date),
		})
		if err != nil {
			t.Fatalf("sample %s: %v", date, err)
		}
		value := 10.5
		if _, err := svc.RecordResult(ctx, key, "moisture", &value); err != nil {
			t.Fatalf("result: %v", err)
		}
	}
}

func storeEnv(t *testing.T) (map[string]string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "qc.db")
	seedSQLite(t, dbPath)
	blobRoot := filepath.Join(dir, "blobs")
	return map[string]string{
		"QCSTORE_STORAGE_DRIVER": "sqlite",
		"QCSTORE_SQLITE_PATH":    dbPath,
		"QCSTORE_BLOB_DRIVER":    "fs",
		"QCSTORE_BLOB_FS_ROOT":   blobRoot,
		"QCSTORE_LOG_MODE":       "prod",
	}, blobRoot
}

func TestStats(t *testing.T) {
	env, _ := storeEnv(t)
	withEnv(t, env)
	code, stdout, stderr := run(t, "stats", "-metrics")
	if code != exitOK {
		t.Fatalf("stats failed: %d %q", code, stderr)
	}
	dec := json.NewDecoder(strings.NewReader(stdout))
	var stats []domain.PartitionStats
	if err := dec.Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(stats) != 3 || stats[0].Samples != 1 || stats[1].Samples != 2 || stats[1].Results != 2 || stats[2].Samples != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	for _, want := range []string{
		"# TYPE qcstore_operations_total counter",
		`qcstore_operations_total{operation="partition_stats",status="success"} 1`,
		"# TYPE qcstore_operation_duration_seconds histogram",
		`qcstore_operation_duration_seconds_count{operation="partition_stats"} 1`,
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in metrics output, got %q", want, stdout)
		}
	}
}

func TestStatsRejectsBadConfig(t *testing.T) {
	withEnv(t, map[string]string{"QCSTORE_STORAGE_DRIVER": "mysql"})
	if code, _, stderr := run(t, "stats"); code != exitError || !strings.Contains(stderr, "unknown storage driver") {
		t.Fatalf("expected config failure, got %d %q", code, stderr)
	}
}

func TestArchive(t *testing.T) {
	env, blobRoot := storeEnv(t)
	withEnv(t, env)

	code, stdout, stderr := run(t, "archive", "-partition", "p2020_2024")
	if code != exitOK || !strings.HasPrefix(stdout, "partitions/p2020_2024/") {
		t.Fatalf("archive one failed: %d %q %q", code, stdout, stderr)
	}
	if code, _, stderr := run(t, "archive", "-partition", "p2020_2024"); code != exitOK {
		t.Fatalf("repeat archive failed: %d %q", code, stderr)
	}

	allRoot := filepath.Join(filepath.Dir(blobRoot), "all")
	env["QCSTORE_BLOB_FS_ROOT"] = allRoot
	code, stdout, stderr = run(t, "archive")
	if code != exitOK {
		t.Fatalf("archive all failed: %d %q", code, stderr)
	}
	if lines := strings.Split(strings.TrimSpace(stdout), "\n"); len(lines) != 3 {
		t.Fatalf("expected three exported partitions, got %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(allRoot, "partitions", "p2015_2019")); err != nil {
		t.Fatalf("expected archived partition directory: %v", err)
	}
	if code, _, _ := run(t, "archive", "-partition", "p1999"); code != exitError {
		t.Fatalf("expected unknown partition failure, got %d", code)
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	withEnv(t, nil)
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"qcstore", "route", "-date", "2022-03-15"}
	main()
	os.Args = []string{"qcstore"}
	main()
	if len(codes) != 2 || codes[0] != exitOK || codes[1] != exitUsage {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}
