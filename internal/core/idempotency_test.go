package core

import (
	"context"
	"errors"
	"testing"

	"rawmatqc/pkg/domain"
)

func TestOperationIDReplaysWithoutWriting(t *testing.T) {
	ctx := context.Background()
	svc, ids := newTestService(t)

	key, err := svc.CreateSample(ctx, ids.sample("S-1", "2022-03-15"), WithOperationID("op-sample-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := svc.CreateSample(ctx, ids.sample("S-1", "2022-03-15"), WithOperationID("op-sample-1"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if again != key {
		t.Fatalf("replay returned %+v, want %+v", again, key)
	}
	samples, _ := svc.ListSamplesInPartition(ctx, "p2020_2024")
	if len(samples) != 1 {
		t.Fatalf("replay must not write, got %d samples", len(samples))
	}

	resultID, err := svc.RecordResult(ctx, key, "moisture", floatPtr(9), WithOperationID("op-result-1"))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	replayed, err := svc.RecordResult(ctx, key, "moisture", floatPtr(9), WithOperationID("op-result-1"))
	if err != nil || replayed != resultID {
		t.Fatalf("result replay: %q %v", replayed, err)
	}

	m1, _ := svc.UpsertMaterial(ctx, "MAT-002", "Soy meal", UpsertOptions{}, WithOperationID("op-mat-2"))
	m2, err := svc.UpsertMaterial(ctx, "MAT-002", "Soy meal", UpsertOptions{}, WithOperationID("op-mat-2"))
	if err != nil || m2.ID != m1.ID {
		t.Fatalf("upsert replay should return the first material: %+v %v", m2, err)
	}

	src1, _ := svc.RecordSource(ctx, key, NewSource{PlantOrigin: "Callao", Producer: "Austral", Country: "PE"}, WithOperationID("op-src-1"))
	src2, _ := svc.RecordSource(ctx, key, NewSource{PlantOrigin: "Callao", Producer: "Austral", Country: "PE"}, WithOperationID("op-src-1"))
	sources, _ := svc.ListSourcesForSample(ctx, key)
	if src1 != src2 || len(sources) != 1 {
		t.Fatalf("source replay wrote again: %s %s %d", src1, src2, len(sources))
	}
}

func TestOperationIDKindConflict(t *testing.T) {
	ctx := context.Background()
	svc, ids := newTestService(t)
	key, err := svc.CreateSample(ctx, ids.sample("S-1", "2022-03-15"), WithOperationID("op-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.RecordResult(ctx, key, "moisture", nil, WithOperationID("op-1"))
	var conflict *domain.IdempotencyConflictError
	if !errors.As(err, &conflict) || conflict.Existing != "create_sample" || conflict.Requested != "record_result" {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
	results, _ := svc.ListResultsForSample(ctx, key)
	if len(results) != 0 {
		t.Fatalf("conflicting replay must not write, got %+v", results)
	}
}

func TestFailedOperationDoesNotConsumeID(t *testing.T) {
	ctx := context.Background()
	svc, ids := newTestService(t)
	if _, err := svc.CreateSample(ctx, ids.sample("S-1", "2031-01-01"), WithOperationID("op-1")); !errors.Is(err, domain.ErrOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	key, err := svc.CreateSample(ctx, ids.sample("S-1", "2023-01-01"), WithOperationID("op-1"))
	if err != nil {
		t.Fatalf("retry with fixed input: %v", err)
	}
	if key.ValuationDate != domain.MustParseDate("2023-01-01") {
		t.Fatalf("unexpected key %+v", key)
	}
}

func TestDeleteReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, ids := newTestService(t)
	key, _ := svc.CreateSample(ctx, ids.sample("S-1", "2022-03-15"))
	if err := svc.DeleteSample(ctx, key, WithOperationID("op-del")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteSample(ctx, key, WithOperationID("op-del")); err != nil {
		t.Fatalf("delete replay should succeed: %v", err)
	}
	if err := svc.DeleteSample(ctx, key); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete without id should report not found, got %v", err)
	}
}
