package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInsufficientStockErrorUnwrapsThroughWrapping(t *testing.T) {
	base := &InsufficientStockError{ProductId: 7, Requested: 10, Available: 3}
	wrapped := fmt.Errorf("commit sale: %w", base)

	var stockErr *InsufficientStockError
	if !errors.As(wrapped, &stockErr) {
		t.Fatal("expected errors.As to find InsufficientStockError")
	}
	if stockErr.ProductId != 7 || stockErr.Requested != 10 || stockErr.Available != 3 {
		t.Fatalf("unexpected fields: %+v", stockErr)
	}
}

func TestErrorMessages(t *testing.T) {
	stockErr := &InsufficientStockError{ProductId: 1, Requested: 5, Available: 2}
	if got := stockErr.Error(); got != "insufficient stock for product 1: requested 5, available 2" {
		t.Fatalf("unexpected message: %q", got)
	}

	overErr := &OverPaymentError{
		PurchaseId: 9,
		Amount:     decimal.NewFromInt(500),
		Due:        decimal.NewFromInt(200),
	}
	if got := overErr.Error(); got != "payment 500 exceeds due amount 200 for purchase 9" {
		t.Fatalf("unexpected message: %q", got)
	}

	cancelErr := &AlreadyCancelledError{SaleId: 4}
	if got := cancelErr.Error(); got != "sale 4 is already cancelled" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestNewValidationErrorFormats(t *testing.T) {
	err := NewValidationError("product %d not found", 12)
	if err.Error() != "product 12 not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	var valErr *ValidationError
	if !errors.As(fmt.Errorf("validate: %w", err), &valErr) {
		t.Fatal("expected errors.As to find ValidationError")
	}
}
