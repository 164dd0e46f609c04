// Package core is the service facade over a persistent QC store. Every write
// runs in one store transaction and is traced, timed and audited.
package core

import (
	"context"
	"time"

	"rawmatqc/internal/infra/persistence/memory"
	"rawmatqc/pkg/domain"
)

// Service exposes the catalog, sample, result and source operations.
type Service struct {
	store   PersistentStore
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		store:   store,
		clock:   cfg.clock,
		logger:  cfg.logger,
		audit:   cfg.audit,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
	}
}

// NewInMemoryService creates a service over a fresh memory store with the
// default partitions.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(nil, engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

var operationMetadata = map[string]operationMeta{
	"upsert_material": {EntityMaterial, ActionCreate},
	"delete_material": {EntityMaterial, ActionDelete},
	"upsert_plant":    {EntityPlant, ActionCreate},
	"delete_plant":    {EntityPlant, ActionDelete},
	"upsert_vendor":   {EntityVendor, ActionCreate},
	"delete_vendor":   {EntityVendor, ActionDelete},
	"create_sample":   {EntitySample, ActionCreate},
	"delete_sample":   {EntitySample, ActionDelete},
	"record_result":   {EntityAnalysisResult, ActionCreate},
	"record_source":   {EntityMaterialSource, ActionCreate},
}

// outcome identifies what a write touched.
type outcome struct {
	entityID  string
	partition string
	date      *domain.Date
	// action overrides the operation default, e.g. an upsert that updated.
	action domain.Action
}

// OpOption tunes a single write call.
type OpOption func(*opConfig)

type opConfig struct {
	operationID string
	result      *Result
}

// WithOperationID makes the write idempotent under id. A retry with the same
// id returns the first outcome without writing.
func WithOperationID(id string) OpOption {
	return func(c *opConfig) { c.operationID = id }
}

// CaptureResult stores the rule evaluation result of the write in dst.
func CaptureResult(dst *Result) OpOption {
	return func(c *opConfig) { c.result = dst }
}

// write runs fn in a transaction. When an operation id is set and already
// recorded, fn receives the prior record and must only read.
func (s *Service) write(ctx context.Context, op string, opts []OpOption, fn func(tx Transaction, prior *domain.OperationRecord) (outcome, error)) (outcome, error) {
	var cfg opConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var out outcome
	err := s.run(ctx, op, func(ctx context.Context) (outcome, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if cfg.operationID != "" {
				if prior, ok := tx.FindOperation(cfg.operationID); ok {
					if prior.Kind != op {
						return &domain.IdempotencyConflictError{OperationID: cfg.operationID, Existing: prior.Kind, Requested: op}
					}
					var err error
					out, err = fn(tx, &prior)
					return err
				}
			}
			var err error
			out, err = fn(tx, nil)
			if err != nil || cfg.operationID == "" {
				return err
			}
			return tx.RecordOperation(domain.OperationRecord{
				OperationID:   cfg.operationID,
				Kind:          op,
				Entity:        operationMetadata[op].entity,
				EntityID:      out.entityID,
				ValuationDate: out.date,
			})
		})
		if cfg.result != nil {
			*cfg.result = res
		}
		s.logViolations(op, res)
		return out, err
	})
	return out, err
}

// read runs fn against a consistent view, traced and timed but not audited.
func (s *Service) read(ctx context.Context, op string, fn func(v TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	err := s.store.View(ctx, fn)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	return err
}

func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) (outcome, error)) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	out, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err)
		s.recordAuditError(ctx, op, out, duration, err)
		return err
	}
	s.logger.Debug("operation completed", "operation", op, "entity_id", out.entityID, "partition", out.partition, "duration", duration)
	s.recordAuditSuccess(ctx, op, out, duration)
	return nil
}

func (s *Service) logViolations(op string, res Result) {
	for _, v := range res.Violations {
		if v.Severity == SeverityBlock {
			continue
		}
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
	}
}

func (s *Service) auditEntry(op string, out outcome, duration time.Duration) (AuditEntry, bool) {
	meta, ok := operationMetadata[op]
	if !ok {
		return AuditEntry{}, false
	}
	action := meta.action
	if out.action != "" {
		action = out.action
	}
	return AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    action,
		EntityID:  out.entityID,
		Partition: out.partition,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}, true
}

func (s *Service) recordAuditSuccess(ctx context.Context, op string, out outcome, duration time.Duration) {
	entry, ok := s.auditEntry(op, out, duration)
	if !ok {
		return
	}
	entry.Status = AuditStatusSuccess
	s.audit.Record(ctx, entry)
}

func (s *Service) recordAuditError(ctx context.Context, op string, out outcome, duration time.Duration, err error) {
	entry, ok := s.auditEntry(op, out, duration)
	if !ok {
		return
	}
	entry.Status = AuditStatusError
	entry.Error = err.Error()
	s.audit.Record(ctx, entry)
}

// PartitionStats reports per-partition row counts.
func (s *Service) PartitionStats(ctx context.Context) ([]PartitionStats, error) {
	var stats []PartitionStats
	err := s.read(ctx, "partition_stats", func(v TransactionView) error {
		stats = v.PartitionStats()
		return nil
	})
	return stats, err
}
