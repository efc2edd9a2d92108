package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"gorm.io/gorm"
)

// StockMutation is one immutable ledger row: a balance change with its
// before/after snapshot and the document that caused it.
type StockMutation struct {
	ID            int                `gorm:"primary_key" json:"id"`
	ProductId     int                `gorm:"index;not null" json:"product_id"`
	MutationType  MutationType       `gorm:"type:enum('in','out','adjustment');not null" json:"mutation_type"`
	Quantity      int                `gorm:"not null" json:"quantity"`
	PreviousStock int                `gorm:"not null" json:"previous_stock"`
	CurrentStock  int                `gorm:"not null" json:"current_stock"`
	ReferenceType StockReferenceType `gorm:"type:enum('SL','PU','AJ','INIT','BU');index:idx_stock_mutations_reference" json:"reference_type"`
	ReferenceID   int                `gorm:"index:idx_stock_mutations_reference" json:"reference_id"`
	Notes         string             `gorm:"type:text" json:"notes"`
	UserId        int                `gorm:"index" json:"user_id"`
	CreatedAt     time.Time          `gorm:"autoCreateTime;index" json:"created_at"`
}

// BeforeSave enforces the ledger arithmetic invariant:
//
//	in:         current == previous + quantity
//	out:        current == previous - quantity
//	adjustment: quantity == |current - previous| (balances recorded directly)
//
// Quantity is always the positive magnitude of the change.
func (m *StockMutation) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if m == nil {
		return nil
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("stock mutation quantity must be positive, got %d", m.Quantity)
	}
	switch m.MutationType {
	case MutationTypeIn:
		if m.CurrentStock != m.PreviousStock+m.Quantity {
			return fmt.Errorf("in mutation balance mismatch: %d != %d + %d",
				m.CurrentStock, m.PreviousStock, m.Quantity)
		}
	case MutationTypeOut:
		if m.CurrentStock != m.PreviousStock-m.Quantity {
			return fmt.Errorf("out mutation balance mismatch: %d != %d - %d",
				m.CurrentStock, m.PreviousStock, m.Quantity)
		}
	case MutationTypeAdjustment:
		diff := m.CurrentStock - m.PreviousStock
		if diff < 0 {
			diff = -diff
		}
		if m.Quantity != diff {
			return fmt.Errorf("adjustment mutation magnitude mismatch: %d != |%d - %d|",
				m.Quantity, m.CurrentStock, m.PreviousStock)
		}
	default:
		return fmt.Errorf("invalid mutation type %q", m.MutationType)
	}
	return nil
}

type StockHistoryFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	MutationType *MutationType
}

// GetStockHistory returns the product's ledger entries reverse-chronologically.
// Each call issues a fresh query.
func GetStockHistory(ctx context.Context, productId int, filter StockHistoryFilter) ([]*StockMutation, error) {
	db := config.GetDB()
	var results []*StockMutation

	dbCtx := db.WithContext(ctx).Where("product_id = ?", productId)
	if filter.StartDate != nil {
		dbCtx = dbCtx.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		dbCtx = dbCtx.Where("created_at <= ?", *filter.EndDate)
	}
	if filter.MutationType != nil {
		dbCtx = dbCtx.Where("mutation_type = ?", *filter.MutationType)
	}
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ReplayMutations replays ledger entries in creation order from the
// bootstrap balance and returns the final balance. It fails when any
// entry's recorded previous balance does not match the running balance,
// i.e. when the ledger and the materialized quantity have diverged.
func ReplayMutations(bootstrap int, mutations []*StockMutation) (int, error) {
	balance := bootstrap
	for _, m := range mutations {
		if m == nil {
			continue
		}
		if m.PreviousStock != balance {
			return balance, fmt.Errorf("ledger entry %d expects previous balance %d, replay has %d",
				m.ID, m.PreviousStock, balance)
		}
		switch m.MutationType {
		case MutationTypeIn:
			balance += m.Quantity
		case MutationTypeOut:
			balance -= m.Quantity
		case MutationTypeAdjustment:
			balance = m.CurrentStock
		default:
			return balance, fmt.Errorf("ledger entry %d has invalid mutation type %q", m.ID, m.MutationType)
		}
		if balance != m.CurrentStock {
			return balance, fmt.Errorf("ledger entry %d records balance %d, replay computes %d",
				m.ID, m.CurrentStock, balance)
		}
		if balance < 0 {
			return balance, fmt.Errorf("ledger entry %d drives balance negative (%d)", m.ID, balance)
		}
	}
	return balance, nil
}
