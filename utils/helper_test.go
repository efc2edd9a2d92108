package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateDiscountAmount(t *testing.T) {
	base := decimal.NewFromInt(10000)

	if got := CalculateDiscountAmount(base, decimal.NewFromInt(10), "P"); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected 10%% of 10000 = 1000, got %s", got.String())
	}
	if got := CalculateDiscountAmount(base, decimal.NewFromInt(750), "A"); !got.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected flat 750, got %s", got.String())
	}
	if got := CalculateDiscountAmount(base, decimal.Zero, "P"); !got.IsZero() {
		t.Fatalf("expected zero discount, got %s", got.String())
	}
}

func TestUniqueSliceKeepsFirstSeenOrder(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("owner@shop.example") {
		t.Fatal("expected valid email to pass")
	}
	for _, bad := range []string{"", "owner", "owner@", "@shop.example"} {
		if IsValidEmail(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
