package workflow

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

// LockProduct loads the product row FOR UPDATE on the caller's
// transaction. Every commit path that moves stock must go through this
// so concurrent writers serialize per product.
func LockProduct(tx *gorm.DB, productId int) (*models.Product, error) {
	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, productId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ApplyStockIn increments the locked product's balance and appends the
// matching ledger entry. The product struct is updated in place so the
// caller can chain further movements.
func ApplyStockIn(tx *gorm.DB, product *models.Product, quantity int,
	refType models.StockReferenceType, refId int, notes string, userId int) error {

	previous := product.QuantityOnHand
	current := previous + quantity

	mutation := models.StockMutation{
		ProductId:     product.ID,
		MutationType:  models.MutationTypeIn,
		Quantity:      quantity,
		PreviousStock: previous,
		CurrentStock:  current,
		ReferenceType: refType,
		ReferenceID:   refId,
		Notes:         notes,
		UserId:        userId,
	}
	if err := tx.Create(&mutation).Error; err != nil {
		return err
	}
	if err := tx.Model(product).Update("quantity_on_hand", current).Error; err != nil {
		return err
	}
	product.QuantityOnHand = current
	return nil
}

// ApplyStockOut decrements the locked product's balance, failing with
// InsufficientStockError when the balance would go negative. No partial
// fulfillment.
func ApplyStockOut(tx *gorm.DB, product *models.Product, quantity int,
	refType models.StockReferenceType, refId int, notes string, userId int) error {

	previous := product.QuantityOnHand
	if quantity > previous {
		return &models.InsufficientStockError{
			ProductId: product.ID,
			Requested: quantity,
			Available: previous,
		}
	}
	current := previous - quantity

	mutation := models.StockMutation{
		ProductId:     product.ID,
		MutationType:  models.MutationTypeOut,
		Quantity:      quantity,
		PreviousStock: previous,
		CurrentStock:  current,
		ReferenceType: refType,
		ReferenceID:   refId,
		Notes:         notes,
		UserId:        userId,
	}
	if err := tx.Create(&mutation).Error; err != nil {
		return err
	}
	if err := tx.Model(product).Update("quantity_on_hand", current).Error; err != nil {
		return err
	}
	product.QuantityOnHand = current
	return nil
}

// ApplyStockCorrection sets the locked product's balance to an absolute
// target and records an adjustment entry whose quantity is the magnitude
// of the change. A no-op when the balance already equals the target.
func ApplyStockCorrection(tx *gorm.DB, product *models.Product, target int,
	refType models.StockReferenceType, refId int, notes string, userId int) error {

	previous := product.QuantityOnHand
	if target == previous {
		return nil
	}
	magnitude := target - previous
	if magnitude < 0 {
		magnitude = -magnitude
	}

	mutation := models.StockMutation{
		ProductId:     product.ID,
		MutationType:  models.MutationTypeAdjustment,
		Quantity:      magnitude,
		PreviousStock: previous,
		CurrentStock:  target,
		ReferenceType: refType,
		ReferenceID:   refId,
		Notes:         notes,
		UserId:        userId,
	}
	if err := tx.Create(&mutation).Error; err != nil {
		return err
	}
	if err := tx.Model(product).Update("quantity_on_hand", target).Error; err != nil {
		return err
	}
	product.QuantityOnHand = target
	return nil
}

// BulkSetStock sets absolute balances for many products in one
// transaction, typically from a physical stocktake import. Each changed
// product gets a bulk-update ledger entry; unchanged targets are skipped.
func BulkSetStock(ctx context.Context, targets map[int]int, notes string) error {
	if len(targets) == 0 {
		return nil
	}
	productIds := make([]int, 0, len(targets))
	for id, target := range targets {
		if target < 0 {
			return models.NewValidationError("target balance cannot be negative for product %d", id)
		}
		productIds = append(productIds, id)
	}
	sort.Ints(productIds)

	db := config.GetDB()
	userId, _ := utils.GetUserIdFromContext(ctx)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range productIds {
			product, err := LockProduct(tx, id)
			if err != nil {
				return err
			}
			if err := ApplyStockCorrection(tx, product, targets[id],
				models.StockReferenceTypeBulkUpdate, product.ID, notes, userId); err != nil {
				return err
			}
		}
		return nil
	})
}
