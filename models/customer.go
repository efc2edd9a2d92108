package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Customer struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone         string          `gorm:"size:20;index" json:"phone"`
	Email         string          `gorm:"size:100" json:"email"`
	Address       string          `gorm:"type:text" json:"address"`
	TotalSpent    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_spent"`
	LoyaltyPoints int             `gorm:"not null;default:0" json:"loyalty_points"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func (input *NewCustomer) validate(ctx context.Context, id int) error {
	if input.Name == "" {
		return NewValidationError("customer name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return NewValidationError("invalid customer email")
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		Name:    input.Name,
		Phone:   input.Phone,
		Email:   input.Email,
		Address: input.Address,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return utils.FetchModel[Customer](ctx, id)
}

func GetCustomersAll(ctx context.Context, name *string) ([]*Customer, error) {
	db := config.GetDB()
	var results []*Customer

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ? OR phone LIKE ?", "%"+*name+"%", "%"+*name+"%").
			Limit(config.SearchLimit)
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ResolveCustomer finds a customer by id, or by name/phone, creating one
// when only a name is supplied. Runs on the caller's transaction so the
// resolved row commits with the sale.
func ResolveCustomer(tx *gorm.DB, customerId int, name string, phone string) (*Customer, error) {
	if customerId > 0 {
		var customer Customer
		if err := tx.First(&customer, customerId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		return &customer, nil
	}
	if name == "" && phone == "" {
		return nil, nil
	}

	var customer Customer
	dbCtx := tx
	if phone != "" {
		dbCtx = dbCtx.Where("phone = ?", phone)
	} else {
		dbCtx = dbCtx.Where("name = ?", name)
	}
	err := dbCtx.First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	customer = Customer{Name: name, Phone: phone}
	if customer.Name == "" {
		customer.Name = phone
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
