package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Sku            string          `gorm:"size:100;uniqueIndex;not null" json:"sku" binding:"required"`
	Barcode        string          `gorm:"size:100" json:"barcode"`
	UnitName       string          `gorm:"size:20" json:"unit_name"`
	QuantityOnHand int             `gorm:"not null;default:0" json:"quantity_on_hand"`
	MinStock       int             `gorm:"not null;default:0" json:"min_stock"`
	PurchasePrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	SellingPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name          string          `json:"name" binding:"required"`
	Sku           string          `json:"sku" binding:"required"`
	Barcode       string          `json:"barcode"`
	UnitName      string          `json:"unit_name"`
	MinStock      int             `json:"min_stock"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	OpeningStock  int             `json:"opening_stock"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewProduct) validate(ctx context.Context, id int) error {
	if input.Name == "" {
		return NewValidationError("product name is required")
	}
	if input.Sku == "" {
		return NewValidationError("product sku is required")
	}
	if input.OpeningStock < 0 {
		return NewValidationError("opening stock cannot be negative")
	}
	if input.MinStock < 0 {
		return NewValidationError("min stock cannot be negative")
	}
	if err := utils.ValidateUnique[Product](ctx, "sku", input.Sku, id); err != nil {
		return NewValidationError("sku already exists")
	}
	return nil
}

// CreateProduct persists the product and, when an opening stock is given,
// writes the bootstrap ledger entry in the same transaction.
func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	product := Product{
		Name:          input.Name,
		Sku:           input.Sku,
		Barcode:       input.Barcode,
		UnitName:      input.UnitName,
		MinStock:      input.MinStock,
		PurchasePrice: input.PurchasePrice,
		SellingPrice:  input.SellingPrice,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if input.OpeningStock > 0 {
		mutation := StockMutation{
			ProductId:     product.ID,
			MutationType:  MutationTypeIn,
			Quantity:      input.OpeningStock,
			PreviousStock: 0,
			CurrentStock:  input.OpeningStock,
			ReferenceType: StockReferenceTypeInitial,
			ReferenceID:   product.ID,
			Notes:         "Opening stock",
			UserId:        userId,
		}
		if err := tx.WithContext(ctx).Create(&mutation).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.WithContext(ctx).Model(&product).
			Update("quantity_on_hand", input.OpeningStock).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// quantity_on_hand is deliberately absent: only the stock engine
	// commit paths may change it.
	if err := db.WithContext(ctx).Model(product).Updates(map[string]interface{}{
		"Name":          input.Name,
		"Sku":           input.Sku,
		"Barcode":       input.Barcode,
		"UnitName":      input.UnitName,
		"MinStock":      input.MinStock,
		"PurchasePrice": input.PurchasePrice,
		"SellingPrice":  input.SellingPrice,
	}).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, id)
}

func GetProductBySku(ctx context.Context, sku string) (*Product, error) {
	db := config.GetDB()
	var product Product
	if err := db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &product, nil
}

func GetProductsAll(ctx context.Context, name *string) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ? OR sku LIKE ?", "%"+*name+"%", "%"+*name+"%").
			Limit(config.SearchLimit)
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetLowStockProducts lists products at or below their minimum threshold.
// Reporting only; the stock engine never reads min_stock.
func GetLowStockProducts(ctx context.Context) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product
	if err := db.WithContext(ctx).
		Where("quantity_on_hand <= min_stock AND is_active = true").
		Order("quantity_on_hand").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// Do not delete a product that has ledger history; deactivate instead.
	var count int64
	if err := db.WithContext(ctx).Model(&StockMutation{}).
		Where("product_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("product has stock history; deactivate it instead")
	}
	if err := db.WithContext(ctx).Delete(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}
