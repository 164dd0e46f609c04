package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	key := SampleKey{SampleID: "s-1", ValuationDate: MustParseDate("2023-05-10")}
	cases := []struct {
		err      error
		sentinel error
	}{
		{&DuplicateCodeError{Catalog: EntityMaterial, Code: "MAT-001"}, ErrDuplicateCode},
		{&DanglingReferenceError{Entity: EntitySample, Ref: key.String()}, ErrDanglingReference},
		{&OutOfRangeError{Date: MustParseDate("2031-01-01")}, ErrOutOfRange},
		{&DuplicateResultError{Key: key, Parameter: "moisture"}, ErrDuplicateResult},
		{&ConfigurationError{Reason: "gap"}, ErrConfiguration},
		{&NotFoundError{Entity: EntityPlant, ID: "PLANT-A"}, ErrNotFound},
		{&ValidationError{Entity: EntityMaterial, Field: "code", Reason: "is required"}, ErrValidation},
		{&ReferencedError{Entity: EntitySample, ID: "s-1", By: EntityAnalysisResult}, ErrReferenced},
		{&IdempotencyConflictError{OperationID: "op", Existing: "create_sample", Requested: "record_result"}, ErrIdempotencyConflict},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("layer: %w", tc.err)
		if !errors.Is(wrapped, tc.sentinel) {
			t.Fatalf("expected %T to match %v", tc.err, tc.sentinel)
		}
		if errors.Is(wrapped, ErrNotFound) && tc.sentinel != ErrNotFound {
			t.Fatalf("%T unexpectedly matched ErrNotFound", tc.err)
		}
		if tc.err.Error() == "" {
			t.Fatalf("expected message for %T", tc.err)
		}
	}
}

func TestDuplicateResultErrorAs(t *testing.T) {
	key := SampleKey{SampleID: "s-1", ValuationDate: MustParseDate("2023-05-10")}
	err := fmt.Errorf("record: %w", &DuplicateResultError{Key: key, Parameter: "ash"})
	var dup *DuplicateResultError
	if !errors.As(err, &dup) {
		t.Fatalf("expected errors.As to find DuplicateResultError")
	}
	if dup.Key != key || dup.Parameter != "ash" {
		t.Fatalf("unexpected fields %+v", dup)
	}
}

func TestRequired(t *testing.T) {
	if err := Required(EntityMaterial, "code", "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank value, got %v", err)
	}
	if err := Required(EntityMaterial, "code", "MAT-001"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
