package utils

import (
	"regexp"

	"github.com/shopspring/decimal"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func NewInt(i int) *int {
	return &i
}

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

// CalculateDiscountAmount resolves a raw discount input against a base amount.
// discountType "P" means percentage of base; anything else is a flat amount.
func CalculateDiscountAmount(base decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {
	if discount.IsZero() {
		return decimal.Zero
	}
	if discountType == "P" {
		return base.Mul(discount).Div(decimal.NewFromInt(100))
	}
	return discount
}

func UniqueSlice[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
