package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Supplier struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	Name               string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone              string          `gorm:"size:20" json:"phone"`
	Email              string          `gorm:"size:100" json:"email"`
	Address            string          `gorm:"type:text" json:"address"`
	OutstandingBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"outstanding_balance"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func (input *NewSupplier) validate(ctx context.Context, id int) error {
	if input.Name == "" {
		return NewValidationError("supplier name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return NewValidationError("invalid supplier email")
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	supplier := Supplier{
		Name:    input.Name,
		Phone:   input.Phone,
		Email:   input.Email,
		Address: input.Address,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return utils.FetchModel[Supplier](ctx, id)
}

func GetSuppliersAll(ctx context.Context, name *string) ([]*Supplier, error) {
	db := config.GetDB()
	var results []*Supplier

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%").Limit(config.SearchLimit)
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// AdjustSupplierBalance moves the supplier's outstanding balance by delta
// (positive on unpaid purchase commit, negative on payment) on the
// caller's transaction.
func AdjustSupplierBalance(tx *gorm.DB, supplierId int, delta decimal.Decimal) error {
	if supplierId == 0 || delta.IsZero() {
		return nil
	}
	return tx.Model(&Supplier{}).Where("id = ?", supplierId).
		Update("outstanding_balance", gorm.Expr("outstanding_balance + ?", delta)).Error
}
