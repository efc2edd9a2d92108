package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

type Purchase struct {
	ID             int               `gorm:"primary_key" json:"id"`
	PurchaseNumber string            `gorm:"size:50;uniqueIndex;not null" json:"purchase_number"`
	PurchaseDate   time.Time         `gorm:"not null;index" json:"purchase_date"`
	SupplierId     int               `gorm:"index;not null" json:"supplier_id"`
	UserId         int               `gorm:"index;not null" json:"user_id"`
	Items          []PurchaseItem    `gorm:"foreignKey:PurchaseId" json:"items"`
	Payments       []PurchasePayment `gorm:"foreignKey:PurchaseId" json:"payments"`
	Subtotal       decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DiscountAmount decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	ShippingAmount decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"shipping_amount"`
	GrandTotal     decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"grand_total"`
	PaymentStatus  PaymentStatus     `gorm:"type:enum('paid','partial','unpaid','cancelled');not null" json:"payment_status"`
	PaymentMethod  PaymentMethod     `gorm:"type:enum('cash','card','transfer','credit');not null" json:"payment_method"`
	PaidAmount     decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	DueAmount      decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"due_amount"`
	DueDate        *time.Time        `json:"due_date"`
	Notes          string            `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	PurchaseId  int             `gorm:"index;not null" json:"purchase_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	BatchNumber string          `gorm:"size:50" json:"batch_number"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// PurchasePayment records one settlement against a purchase. Payments
// never touch the stock ledger.
type PurchasePayment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	PurchaseId    int             `gorm:"index;not null" json:"purchase_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"type:enum('cash','card','transfer','credit');not null" json:"payment_method"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	UserId        int             `gorm:"index" json:"user_id"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPurchase struct {
	SupplierId         int               `json:"supplier_id" binding:"required"`
	PurchaseDate       time.Time         `json:"purchase_date"`
	Items              []NewPurchaseItem `json:"items" binding:"required"`
	DiscountAmount     decimal.Decimal   `json:"discount_amount"`
	TaxRate            decimal.Decimal   `json:"tax_rate"`
	ShippingAmount     decimal.Decimal   `json:"shipping_amount"`
	PaymentMethod      PaymentMethod     `json:"payment_method" binding:"required"`
	PaidAmount         decimal.Decimal   `json:"paid_amount"`
	DueDate            *time.Time        `json:"due_date"`
	UpdateProductPrice *bool             `json:"update_product_price"`
	Notes              string            `json:"notes"`
}

type NewPurchaseItem struct {
	ProductId   int             `json:"product_id" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	BatchNumber string          `json:"batch_number"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
}

func (input *NewPurchase) Validate(ctx context.Context) error {
	if len(input.Items) == 0 {
		return NewValidationError("purchase requires at least one line item")
	}
	if !input.PaymentMethod.IsValid() {
		return NewValidationError("invalid payment method %q", input.PaymentMethod)
	}
	if input.PaidAmount.IsNegative() {
		return NewValidationError("paid amount cannot be negative")
	}
	if input.DiscountAmount.IsNegative() || input.TaxRate.IsNegative() || input.ShippingAmount.IsNegative() {
		return NewValidationError("discount, tax rate and shipping cannot be negative")
	}
	if err := utils.ValidateResourceId[Supplier](ctx, input.SupplierId); err != nil {
		return NewValidationError("supplier %d not found", input.SupplierId)
	}
	seen := make(map[int]bool)
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return NewValidationError("line quantity must be positive for product %d", item.ProductId)
		}
		if item.UnitCost.IsNegative() {
			return NewValidationError("unit cost cannot be negative for product %d", item.ProductId)
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

type NewPurchasePayment struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod PaymentMethod   `json:"payment_method" binding:"required"`
	PaymentDate   time.Time       `json:"payment_date"`
	Notes         string          `json:"notes"`
}

func (input *NewPurchasePayment) Validate(ctx context.Context) error {
	if !input.Amount.IsPositive() {
		return NewValidationError("payment amount must be positive")
	}
	if !input.PaymentMethod.IsValid() {
		return NewValidationError("invalid payment method %q", input.PaymentMethod)
	}
	return nil
}

func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	return utils.FetchModel[Purchase](ctx, id, "Items", "Payments")
}

type PurchaseFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	SupplierId    *int
	PaymentStatus *PaymentStatus
}

func GetPurchasesAll(ctx context.Context, filter PurchaseFilter) ([]*Purchase, error) {
	db := config.GetDB()
	var results []*Purchase

	dbCtx := db.WithContext(ctx).Preload("Items").Preload("Payments")
	if filter.StartDate != nil {
		dbCtx = dbCtx.Where("purchase_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		dbCtx = dbCtx.Where("purchase_date <= ?", *filter.EndDate)
	}
	if filter.SupplierId != nil {
		dbCtx = dbCtx.Where("supplier_id = ?", *filter.SupplierId)
	}
	if filter.PaymentStatus != nil {
		dbCtx = dbCtx.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if err := dbCtx.Order("purchase_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
