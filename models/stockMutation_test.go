package models

import (
	"strings"
	"testing"
)

func TestStockMutationBeforeSaveArithmetic(t *testing.T) {
	cases := []struct {
		name    string
		m       StockMutation
		wantErr string
	}{
		{
			name: "in balances",
			m:    StockMutation{MutationType: MutationTypeIn, Quantity: 5, PreviousStock: 10, CurrentStock: 15},
		},
		{
			name:    "in mismatch",
			m:       StockMutation{MutationType: MutationTypeIn, Quantity: 5, PreviousStock: 10, CurrentStock: 14},
			wantErr: "in mutation balance mismatch",
		},
		{
			name: "out balances",
			m:    StockMutation{MutationType: MutationTypeOut, Quantity: 3, PreviousStock: 10, CurrentStock: 7},
		},
		{
			name:    "out mismatch",
			m:       StockMutation{MutationType: MutationTypeOut, Quantity: 3, PreviousStock: 10, CurrentStock: 8},
			wantErr: "out mutation balance mismatch",
		},
		{
			name: "adjustment magnitude up",
			m:    StockMutation{MutationType: MutationTypeAdjustment, Quantity: 4, PreviousStock: 6, CurrentStock: 10},
		},
		{
			name: "adjustment magnitude down",
			m:    StockMutation{MutationType: MutationTypeAdjustment, Quantity: 4, PreviousStock: 10, CurrentStock: 6},
		},
		{
			name:    "adjustment mismatch",
			m:       StockMutation{MutationType: MutationTypeAdjustment, Quantity: 5, PreviousStock: 10, CurrentStock: 6},
			wantErr: "adjustment mutation magnitude mismatch",
		},
		{
			name:    "zero quantity rejected",
			m:       StockMutation{MutationType: MutationTypeIn, Quantity: 0, PreviousStock: 0, CurrentStock: 0},
			wantErr: "quantity must be positive",
		},
		{
			name:    "negative quantity rejected",
			m:       StockMutation{MutationType: MutationTypeOut, Quantity: -2, PreviousStock: 5, CurrentStock: 7},
			wantErr: "quantity must be positive",
		},
		{
			name:    "unknown type rejected",
			m:       StockMutation{MutationType: "transfer", Quantity: 1, PreviousStock: 0, CurrentStock: 1},
			wantErr: "invalid mutation type",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.m.BeforeSave(nil)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("BeforeSave: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestReplayMutationsRecomputesBalance(t *testing.T) {
	mutations := []*StockMutation{
		{ID: 1, MutationType: MutationTypeIn, Quantity: 100, PreviousStock: 0, CurrentStock: 100},
		{ID: 2, MutationType: MutationTypeOut, Quantity: 30, PreviousStock: 100, CurrentStock: 70},
		{ID: 3, MutationType: MutationTypeAdjustment, Quantity: 20, PreviousStock: 70, CurrentStock: 50},
		{ID: 4, MutationType: MutationTypeIn, Quantity: 5, PreviousStock: 50, CurrentStock: 55},
	}
	balance, err := ReplayMutations(0, mutations)
	if err != nil {
		t.Fatalf("ReplayMutations: %v", err)
	}
	if balance != 55 {
		t.Fatalf("expected replayed balance 55, got %d", balance)
	}
}

func TestReplayMutationsDetectsPreviousBalanceGap(t *testing.T) {
	mutations := []*StockMutation{
		{ID: 1, MutationType: MutationTypeIn, Quantity: 10, PreviousStock: 0, CurrentStock: 10},
		{ID: 2, MutationType: MutationTypeOut, Quantity: 2, PreviousStock: 12, CurrentStock: 10},
	}
	_, err := ReplayMutations(0, mutations)
	if err == nil {
		t.Fatal("expected replay to fail on previous balance gap")
	}
	if !strings.Contains(err.Error(), "expects previous balance") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReplayMutationsDetectsRecordedBalanceMismatch(t *testing.T) {
	mutations := []*StockMutation{
		{ID: 1, MutationType: MutationTypeIn, Quantity: 10, PreviousStock: 0, CurrentStock: 11},
	}
	_, err := ReplayMutations(0, mutations)
	if err == nil {
		t.Fatal("expected replay to fail on recorded balance mismatch")
	}
}

func TestReplayMutationsStartsFromBootstrap(t *testing.T) {
	mutations := []*StockMutation{
		{ID: 7, MutationType: MutationTypeOut, Quantity: 4, PreviousStock: 9, CurrentStock: 5},
	}
	balance, err := ReplayMutations(9, mutations)
	if err != nil {
		t.Fatalf("ReplayMutations: %v", err)
	}
	if balance != 5 {
		t.Fatalf("expected 5, got %d", balance)
	}
}
