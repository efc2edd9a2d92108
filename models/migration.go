package models

import (
	"bitbucket.org/mmdatafocus/pos_backend/config"
)

// MigrateTable auto-migrates every persistent model. Carts are session
// state in redis and have no table.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&User{},
		&Customer{},
		&Supplier{},
		&Product{},
		&StockMutation{},
		&Sale{},
		&SaleItem{},
		&Purchase{},
		&PurchaseItem{},
		&PurchasePayment{},
		&Adjustment{},
		&AdjustmentItem{},
	)
}
