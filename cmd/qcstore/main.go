// Command qcstore operates a raw-material QC store: it validates partition
// configuration, renders DDL, routes valuation dates, archives partitions to
// blob storage and reports per-partition statistics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"rawmatqc/internal/archive"
	"rawmatqc/internal/blob"
	"rawmatqc/internal/config"
	"rawmatqc/internal/core"
	"rawmatqc/internal/entitymodel/sqlbundle"
	"rawmatqc/internal/partition"
	"rawmatqc/internal/platform/logger"
	"rawmatqc/pkg/domain"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var (
	exitFunc = os.Exit
	getenv   = os.Getenv
)

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `usage: qcstore <command> [flags]

commands:
  check-partitions [-file path]            validate the partition configuration
  ddl -dialect sqlite|postgres [-schema s]  print the DDL for the partitions
  route -date YYYY-MM-DD                    print the partition a date routes to
  archive [-partition name]                 export partitions to blob storage
  stats [-metrics]                          print per-partition row counts`)
}

func cli(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "check-partitions":
		err = checkPartitions(rest, stdout)
	case "ddl":
		err = renderDDL(rest, stdout)
	case "route":
		err = routeDate(rest, stdout)
	case "archive":
		err = archivePartitions(rest, stdout)
	case "stats":
		err = partitionStats(rest, stdout)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return exitUsage
	}
	if err == nil {
		return exitOK
	}
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	var usageErr usageError
	if errors.As(err, &usageErr) {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	_, _ = fmt.Fprintln(stderr, "error:", err)
	return exitError
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{msg: err.Error()}
	}
	if fs.NArg() > 0 {
		return usageError{msg: fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args(), " "))}
	}
	return nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFrom(getenv)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// partitionsFile resolves the -file flag against QCSTORE_PARTITIONS_FILE.
func partitionsFile(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return strings.TrimSpace(getenv("QCSTORE_PARTITIONS_FILE"))
}

func checkPartitions(args []string, stdout io.Writer) error {
	fs := newFlagSet("check-partitions")
	file := fs.String("file", "", "partition YAML file (defaults to QCSTORE_PARTITIONS_FILE)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	router, err := partition.Load(partitionsFile(*file))
	if err != nil {
		return err
	}
	for _, r := range router.Ranges() {
		_, _ = fmt.Fprintf(stdout, "%s\t%s\t%s\n", r.Name, r.Lower, r.Upper)
	}
	_, _ = fmt.Fprintf(stdout, "ok: %d partitions\n", len(router.Ranges()))
	return nil
}

func renderDDL(args []string, stdout io.Writer) error {
	fs := newFlagSet("ddl")
	dialect := fs.String("dialect", "", "sqlite or postgres")
	schema := fs.String("schema", "", "postgres schema")
	file := fs.String("file", "", "partition YAML file (defaults to QCSTORE_PARTITIONS_FILE)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	d := sqlbundle.Dialect(strings.ToLower(*dialect))
	switch d {
	case sqlbundle.DialectSQLite:
	case sqlbundle.DialectPostgres:
		if *schema == "" {
			*schema = sqlbundle.DefaultPostgresSchema
		}
	default:
		return usageError{msg: fmt.Sprintf("-dialect must be sqlite or postgres, got %q", *dialect)}
	}
	router, err := partition.Load(partitionsFile(*file))
	if err != nil {
		return err
	}
	ddl, err := sqlbundle.Render(d, *schema, router.Ranges())
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, ddl)
	return err
}

func routeDate(args []string, stdout io.Writer) error {
	fs := newFlagSet("route")
	raw := fs.String("date", "", "valuation date YYYY-MM-DD")
	file := fs.String("file", "", "partition YAML file (defaults to QCSTORE_PARTITIONS_FILE)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *raw == "" {
		return usageError{msg: "-date is required"}
	}
	date, err := domain.ParseDate(*raw)
	if err != nil {
		return err
	}
	router, err := partition.Load(partitionsFile(*file))
	if err != nil {
		return err
	}
	h, err := router.Route(date)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "%s\t%s\t%s\n", h.Name, h.Lower, h.Upper)
	return nil
}

// session bundles what the store-backed commands need.
type session struct {
	cfg     config.Config
	log     *logger.Logger
	store   domain.PersistentStore
	metrics *core.PrometheusMetricsRecorder
	reg     *prometheus.Registry
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	reg := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(reg, cfg.MetricsNamespace)
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, err
	}
	log.Debug("store opened", "driver", string(cfg.Storage.Driver), "dsn", cfg.Storage.PostgresDSN)
	return &session{cfg: cfg, log: log, store: store, metrics: metrics, reg: reg}, nil
}

func (r *session) close() {
	if c, ok := r.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			r.log.Warn("close store", "error", err)
		}
	}
	r.log.Sync()
}

func archivePartitions(args []string, stdout io.Writer) error {
	fs := newFlagSet("archive")
	name := fs.String("partition", "", "partition to export (default: all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ctx := context.Background()
	rt, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	blobs, err := blob.Open(ctx, rt.cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	exporter := archive.NewExporter(rt.store, blobs, archive.WithLogger(rt.log))

	var infos []blob.Info
	if *name != "" {
		info, err := exporter.ExportPartition(ctx, *name)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	} else {
		infos, err = exporter.ExportAll(ctx)
		if err != nil {
			return err
		}
	}
	for _, info := range infos {
		_, _ = fmt.Fprintf(stdout, "%s\t%d bytes\n", info.Key, info.Size)
	}
	return nil
}

func partitionStats(args []string, stdout io.Writer) error {
	fs := newFlagSet("stats")
	withMetrics := fs.Bool("metrics", false, "also print the operation metrics gathered while reading")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ctx := context.Background()
	rt, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	svc := core.NewService(rt.store, core.WithLogger(rt.log), core.WithMetricsRecorder(rt.metrics))
	stats, err := svc.PartitionStats(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return err
	}
	if *withMetrics {
		return writeMetrics(stdout, rt.reg)
	}
	return nil
}

// writeMetrics prints the gathered families in the Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
