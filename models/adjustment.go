package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

type Adjustment struct {
	ID               int              `gorm:"primary_key" json:"id"`
	AdjustmentNumber string           `gorm:"size:50;uniqueIndex;not null" json:"adjustment_number"`
	AdjustmentDate   time.Time        `gorm:"not null;index" json:"adjustment_date"`
	AdjustmentType   AdjustmentType   `gorm:"type:enum('addition','subtraction','correction');not null" json:"adjustment_type"`
	Reason           string           `gorm:"type:text;not null" json:"reason"`
	UserId           int              `gorm:"index;not null" json:"user_id"`
	Items            []AdjustmentItem `gorm:"foreignKey:AdjustmentId" json:"items"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// AdjustmentItem keeps the quantity exactly as entered. For addition and
// subtraction that is the delta; for correction it is the absolute target
// the balance was set to.
type AdjustmentItem struct {
	ID           int       `gorm:"primary_key" json:"id"`
	AdjustmentId int       `gorm:"index;not null" json:"adjustment_id"`
	ProductId    int       `gorm:"index;not null" json:"product_id"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	Notes        string    `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewAdjustment struct {
	AdjustmentType AdjustmentType      `json:"adjustment_type" binding:"required"`
	AdjustmentDate time.Time           `json:"adjustment_date"`
	Reason         string              `json:"reason" binding:"required"`
	Items          []NewAdjustmentItem `json:"items" binding:"required"`
}

type NewAdjustmentItem struct {
	ProductId int    `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
}

func (input *NewAdjustment) Validate(ctx context.Context) error {
	if !input.AdjustmentType.IsValid() {
		return NewValidationError("invalid adjustment type %q", input.AdjustmentType)
	}
	if input.Reason == "" {
		return NewValidationError("adjustment reason is required")
	}
	if len(input.Items) == 0 {
		return NewValidationError("adjustment requires at least one line item")
	}
	seen := make(map[int]bool)
	for _, item := range input.Items {
		switch input.AdjustmentType {
		case AdjustmentTypeCorrection:
			if item.Quantity < 0 {
				return NewValidationError("correction target cannot be negative for product %d", item.ProductId)
			}
		default:
			if item.Quantity <= 0 {
				return NewValidationError("adjustment quantity must be positive for product %d", item.ProductId)
			}
		}
		if seen[item.ProductId] {
			return NewValidationError("duplicate line for product %d", item.ProductId)
		}
		seen[item.ProductId] = true
		if err := utils.ValidateResourceId[Product](ctx, item.ProductId); err != nil {
			return NewValidationError("product %d not found", item.ProductId)
		}
	}
	return nil
}

func GetAdjustment(ctx context.Context, id int) (*Adjustment, error) {
	return utils.FetchModel[Adjustment](ctx, id, "Items")
}

type AdjustmentFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	AdjustmentType *AdjustmentType
}

func GetAdjustmentsAll(ctx context.Context, filter AdjustmentFilter) ([]*Adjustment, error) {
	db := config.GetDB()
	var results []*Adjustment

	dbCtx := db.WithContext(ctx).Preload("Items")
	if filter.StartDate != nil {
		dbCtx = dbCtx.Where("adjustment_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		dbCtx = dbCtx.Where("adjustment_date <= ?", *filter.EndDate)
	}
	if filter.AdjustmentType != nil {
		dbCtx = dbCtx.Where("adjustment_type = ?", *filter.AdjustmentType)
	}
	if err := dbCtx.Order("adjustment_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
