package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

type Sale struct {
	ID             int             `gorm:"primary_key" json:"id"`
	InvoiceNumber  string          `gorm:"size:50;uniqueIndex;not null" json:"invoice_number"`
	SaleDate       time.Time       `gorm:"not null;index" json:"sale_date"`
	CustomerId     *int            `gorm:"index" json:"customer_id"`
	UserId         int             `gorm:"index;not null" json:"user_id"`
	Items          []SaleItem      `gorm:"foreignKey:SaleId" json:"items"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"grand_total"`
	PaymentStatus  PaymentStatus   `gorm:"type:enum('paid','partial','unpaid','cancelled');not null" json:"payment_status"`
	PaymentMethod  PaymentMethod   `gorm:"type:enum('cash','card','transfer','credit');not null" json:"payment_method"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	ChangeAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"change_amount"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CancelledAt    *time.Time      `json:"cancelled_at"`
	CancelReason   string          `gorm:"type:text" json:"cancel_reason"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	SaleId    int             `gorm:"index;not null" json:"sale_id"`
	ProductId int             `gorm:"index;not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Discount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewSale struct {
	CustomerId     int             `json:"customer_id"`
	CustomerName   string          `json:"customer_name"`
	CustomerPhone  string          `json:"customer_phone"`
	SaleDate       time.Time       `json:"sale_date"`
	Items          []NewSaleItem   `json:"items" binding:"required"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	PaymentMethod  PaymentMethod   `json:"payment_method" binding:"required"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Notes          string          `json:"notes"`
}

type NewSaleItem struct {
	ProductId int             `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

// Validate checks the input before any stock mutation is attempted.
func (input *NewSale) Validate(ctx context.Context) error {
	if len(input.Items) == 0 {
		return NewValidationError("sale requires at least one line item")
	}
	if !input.PaymentMethod.IsValid() {
		return NewValidationError("invalid payment method %q", input.PaymentMethod)
	}
	if input.PaidAmount.IsNegative() {
		return NewValidationError("paid amount cannot be negative")
	}
	if input.DiscountAmount.IsNegative() {
		return NewValidationError("discount cannot be negative")
	}
	if input.TaxRate.IsNegative() {
		return NewValidationError("tax rate cannot be negative")
	}
	seen := make(map[int]bool)
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return NewValidationError("line quantity must be positive for product %d", item.ProductId)
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError("unit price cannot be negative for product %d", item.ProductId)
		}
		if item.Discount.IsNegative() {
			return NewValidationError("line discount cannot be negative for product %d", item.ProductId)
		}
		if seen[item.ProductId] {
			return NewValidationError("duplicate line for product %d", item.ProductId)
		}
		seen[item.ProductId] = true
		if err := utils.ValidateResourceId[Product](ctx, item.ProductId); err != nil {
			return NewValidationError("product %d not found", item.ProductId)
		}
	}
	if input.CustomerId > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, input.CustomerId); err != nil {
			return NewValidationError("customer %d not found", input.CustomerId)
		}
	}
	return nil
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	return utils.FetchModel[Sale](ctx, id, "Items")
}

func GetSaleByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Sale, error) {
	db := config.GetDB()
	var sale Sale
	if err := db.WithContext(ctx).Preload("Items").
		Where("invoice_number = ?", invoiceNumber).First(&sale).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &sale, nil
}

type SaleFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	CustomerId    *int
	PaymentStatus *PaymentStatus
}

func GetSalesAll(ctx context.Context, filter SaleFilter) ([]*Sale, error) {
	db := config.GetDB()
	var results []*Sale

	dbCtx := db.WithContext(ctx).Preload("Items")
	if filter.StartDate != nil {
		dbCtx = dbCtx.Where("sale_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		dbCtx = dbCtx.Where("sale_date <= ?", *filter.EndDate)
	}
	if filter.CustomerId != nil {
		dbCtx = dbCtx.Where("customer_id = ?", *filter.CustomerId)
	}
	if filter.PaymentStatus != nil {
		dbCtx = dbCtx.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if err := dbCtx.Order("sale_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
