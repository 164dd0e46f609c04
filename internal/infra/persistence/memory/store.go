// Package memory provides the in-memory implementation of the QC store. It is
// the source of truth for reads in every backend; durable backends embed it
// and persist each committed change set through a commit hook.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rawmatqc/internal/partition"
	"rawmatqc/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Material aliases domain.Material.
	Material = domain.Material
	// Plant aliases domain.Plant.
	Plant = domain.Plant
	// Vendor aliases domain.Vendor.
	Vendor = domain.Vendor
	// Sample aliases domain.Sample.
	Sample = domain.Sample
	// SampleKey aliases domain.SampleKey.
	SampleKey = domain.SampleKey
	// AnalysisResult aliases domain.AnalysisResult.
	AnalysisResult = domain.AnalysisResult
	// MaterialSource aliases domain.MaterialSource.
	MaterialSource = domain.MaterialSource
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// CommitHook runs after rules pass and before the transaction is published.
// Returning an error rolls the in-memory mutations back.
type CommitHook func(ctx context.Context, changes []Change) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs the hook durable backends use to persist changes.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.hook = hook }
}

// WithClock overrides the time source used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides UUID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.idFn = gen
		}
	}
}

// Store provides an in-memory transactional store for QC records.
type Store struct {
	mu     sync.RWMutex
	state  *memoryState
	router *partition.Router
	engine *RulesEngine
	hook   CommitHook
	nowFn  func() time.Time
	idFn   func() string
}

// NewStore constructs a store routing over router and evaluating engine.
// A nil router uses the default partitions; a nil engine evaluates nothing.
func NewStore(router *partition.Router, engine *RulesEngine, opts ...Option) *Store {
	if router == nil {
		router = partition.DefaultRouter()
	}
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(router),
		router: router,
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCommitHook replaces the commit hook. Durable backends call it once
// during construction, after loading persisted rows.
func (s *Store) SetCommitHook(hook CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Router returns the partition router the store was built with.
func (s *Store) Router() *partition.Router {
	return s.router
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

type transaction struct {
	stateView
	store   *Store
	changes []Change
	undo    []func(*memoryState)
	now     time.Time
}

// RunInTransaction executes fn under the store-wide write lock. Mutations are
// recorded in an undo log and reverted if fn fails, a rule blocks, or the
// commit hook fails.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tx := &transaction{
		stateView: stateView{state: s.state},
		store:     s,
		now:       s.nowFn(),
	}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		res, err := s.engine.Evaluate(ctx, tx.stateView, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.hook != nil && len(tx.changes) > 0 {
		if err := s.hook(ctx, tx.changes); err != nil {
			return Result{}, fmt.Errorf("persist transaction: %w", err)
		}
	}
	committed = true
	return result, nil
}

// View executes fn against the committed state under the read lock.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(stateView{state: s.state})
}

func (tx *transaction) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i](tx.state)
	}
	tx.undo = nil
	tx.changes = nil
}

func (tx *transaction) recordChange(change Change, undo func(*memoryState)) {
	tx.changes = append(tx.changes, change)
	tx.undo = append(tx.undo, undo)
}

func (tx *transaction) nextSequence() int64 {
	tx.state.sequence++
	tx.undo = append(tx.undo, func(st *memoryState) { st.sequence-- })
	return tx.state.sequence
}
