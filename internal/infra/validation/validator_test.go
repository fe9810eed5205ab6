package validation

import (
	"context"
	"errors"
	"testing"

	"staybook/internal/domain/booking"
)

type sample struct {
	ID     string `validate:"required"`
	Guests int    `validate:"gte=1"`
	Day    string `validate:"omitempty,datetime=2006-01-02"`
}

func TestValidateAcceptsWellFormedMessage(t *testing.T) {
	v := New()
	if err := v.Validate(context.Background(), sample{ID: "b-1", Guests: 2, Day: "2025-06-01"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCollectsEveryField(t *testing.T) {
	v := New()
	err := v.Validate(context.Background(), sample{Day: "06/01/2025"})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %+v", verr.Fields)
	}
	if !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("expected error to match ErrInvalidInput")
	}
}

func TestValidateIgnoresNonStructs(t *testing.T) {
	v := New()
	if err := v.Validate(context.Background(), "plain"); err != nil {
		t.Fatalf("expected nil for non-struct, got %v", err)
	}
}
