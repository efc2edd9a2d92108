package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientStockError is returned whenever a decrement (or a reversal of
// an increment) would drive a product's quantity on hand below zero.
type InsufficientStockError struct {
	ProductId int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductId, e.Requested, e.Available)
}

// OverPaymentError is returned when a purchase payment exceeds the
// outstanding due amount.
type OverPaymentError struct {
	PurchaseId int
	Amount     decimal.Decimal
	Due        decimal.Decimal
}

func (e *OverPaymentError) Error() string {
	return fmt.Sprintf("payment %s exceeds due amount %s for purchase %d",
		e.Amount.String(), e.Due.String(), e.PurchaseId)
}

// AlreadyCancelledError is returned when cancellation is requested twice.
type AlreadyCancelledError struct {
	SaleId int
}

func (e *AlreadyCancelledError) Error() string {
	return fmt.Sprintf("sale %d is already cancelled", e.SaleId)
}

// ValidationError reports malformed input detected before any stock
// mutation is attempted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
