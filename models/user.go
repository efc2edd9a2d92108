package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

// User is the acting cashier/operator referenced by documents and ledger
// entries. Authentication lives outside this core.
type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100;uniqueIndex" json:"email"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if input.Name == "" {
		return nil, NewValidationError("user name is required")
	}
	if input.Email != "" {
		if !utils.IsValidEmail(input.Email) {
			return nil, NewValidationError("invalid user email")
		}
		if err := utils.ValidateUnique[User](ctx, "email", input.Email, 0); err != nil {
			return nil, NewValidationError("email already exists")
		}
	}

	user := User{
		Name:     input.Name,
		Email:    input.Email,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchModel[User](ctx, id)
}

func GetUsersAll(ctx context.Context) ([]*User, error) {
	return utils.FetchAllModels[User](ctx)
}
