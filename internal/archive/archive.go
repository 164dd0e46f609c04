// Package archive snapshots partitions into the blob store as JSON documents.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rawmatqc/internal/blob"
	"rawmatqc/pkg/domain"
)

const (
	keyPrefix       = "partitions/"
	timestampLayout = "20060102T150405.000000000Z"
	contentType     = "application/json"
	defaultWorkers  = 4
)

// Document is the archived content of a single partition.
type Document struct {
	Partition  domain.PartitionRange   `json:"partition"`
	ExportedAt time.Time               `json:"exported_at"`
	Counts     Counts                  `json:"counts"`
	Samples    []domain.Sample         `json:"samples"`
	Results    []domain.AnalysisResult `json:"results"`
	Sources    []domain.MaterialSource `json:"sources"`
}

// Counts summarises a document.
type Counts struct {
	Samples int `json:"samples"`
	Results int `json:"results"`
	Sources int `json:"sources"`
}

// Logger is the subset of the platform logger the exporter uses.
type Logger interface {
	Info(msg string, kv ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) {}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithWorkers bounds how many partitions ExportAll writes concurrently.
func WithWorkers(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for completed exports.
func WithLogger(l Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// Exporter reads partitions from a store and writes them to a blob store.
type Exporter struct {
	store   domain.PersistentStore
	blobs   blob.Store
	now     func() time.Time
	workers int
	logger  Logger
}

// NewExporter constructs an Exporter.
func NewExporter(store domain.PersistentStore, blobs blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store:   store,
		blobs:   blobs,
		now:     func() time.Time { return time.Now().UTC() },
		workers: defaultWorkers,
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key returns the blob key for a partition exported at ts. The timestamp has
// fixed-width nanoseconds, so keys sort chronologically and repeated exports
// within one second do not collide.
func Key(partition string, ts time.Time) string {
	return keyPrefix + partition + "/" + ts.UTC().Format(timestampLayout) + ".json"
}

// ExportPartition writes the named partition and returns the stored blob info.
func (e *Exporter) ExportPartition(ctx context.Context, name string) (blob.Info, error) {
	doc, err := e.snapshot(ctx, name)
	if err != nil {
		return blob.Info{}, err
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode partition %s: %w", name, err)
	}
	key := Key(name, doc.ExportedAt)
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"partition": name,
			"samples":   fmt.Sprint(doc.Counts.Samples),
			"results":   fmt.Sprint(doc.Counts.Results),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive partition %s: %w", name, err)
	}
	e.logger.Info("partition archived", "partition", name, "key", key, "samples", doc.Counts.Samples, "results", doc.Counts.Results, "sources", doc.Counts.Sources)
	return info, nil
}

// ExportAll writes every declared partition. Infos follow partition order.
func (e *Exporter) ExportAll(ctx context.Context) ([]blob.Info, error) {
	var ranges []domain.PartitionRange
	if err := e.store.View(ctx, func(v domain.TransactionView) error {
		ranges = v.Partitions()
		return nil
	}); err != nil {
		return nil, err
	}
	infos := make([]blob.Info, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, rg := range ranges {
		i, rg := i, rg
		g.Go(func() error {
			info, err := e.ExportPartition(gctx, rg.Name)
			if err != nil {
				return err
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// List returns the archived documents for a partition, oldest first. An
// empty name lists every partition.
func (e *Exporter) List(ctx context.Context, partition string) ([]blob.Info, error) {
	prefix := keyPrefix
	if partition != "" {
		prefix += partition + "/"
	}
	return e.blobs.List(ctx, prefix)
}

// Load reads an archived document back.
func (e *Exporter) Load(ctx context.Context, key string) (Document, error) {
	if !strings.HasPrefix(key, keyPrefix) {
		return Document{}, fmt.Errorf("key %q is not a partition archive", key)
	}
	_, rc, err := e.blobs.Get(ctx, key)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = rc.Close() }()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

func (e *Exporter) snapshot(ctx context.Context, name string) (Document, error) {
	doc := Document{ExportedAt: e.now().UTC()}
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		found := false
		for _, rg := range v.Partitions() {
			if rg.Name == name {
				doc.Partition, found = rg, true
				break
			}
		}
		if !found {
			return &domain.NotFoundError{Entity: domain.EntityPartition, ID: name}
		}
		samples, err := v.ListSamplesInPartition(name)
		if err != nil {
			return err
		}
		results, err := v.ListResultsInPartition(name)
		if err != nil {
			return err
		}
		sources := make([]domain.MaterialSource, 0)
		for _, s := range samples {
			sources = append(sources, v.ListSourcesForSample(s.Key())...)
		}
		sort.Slice(sources, func(i, j int) bool { return sources[i].Sequence < sources[j].Sequence })
		doc.Samples, doc.Results, doc.Sources = samples, results, sources
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	doc.Counts = Counts{Samples: len(doc.Samples), Results: len(doc.Results), Sources: len(doc.Sources)}
	return doc, nil
}
