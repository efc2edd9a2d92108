package workflow

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

const adjustmentModuleName = "workflow/adjustmentWorkflow"

// CreateAdjustment commits a manual stock adjustment: addition and
// subtraction move the balance by the line quantity, correction sets it
// to the line quantity as an absolute target.
func CreateAdjustment(ctx context.Context, input *models.NewAdjustment) (*models.Adjustment, error) {
	logger := config.GetLogger()

	if err := input.Validate(ctx); err != nil {
		return nil, err
	}

	var adjustment *models.Adjustment
	var err error
	for attempt := 1; attempt <= maxNumberRetries; attempt++ {
		adjustment, err = createAdjustmentOnce(ctx, input)
		if err == nil {
			return adjustment, nil
		}
		if !IsDuplicateKeyErr(err) {
			break
		}
	}
	err = conflictAfterRetries(err)
	config.LogError(logger, adjustmentModuleName, "CreateAdjustment", "commit", input, err)
	return nil, err
}

func createAdjustmentOnce(ctx context.Context, input *models.NewAdjustment) (*models.Adjustment, error) {
	db := config.GetDB()
	userId, _ := utils.GetUserIdFromContext(ctx)

	adjustmentDate := input.AdjustmentDate
	if adjustmentDate.IsZero() {
		adjustmentDate = time.Now()
	}

	var adjustment models.Adjustment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		adjustmentNumber, err := NextDailyNumber(tx, "adjustments", "adjustment_number", "ADJ", adjustmentDate)
		if err != nil {
			return err
		}

		items := append([]models.NewAdjustmentItem(nil), input.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductId < items[j].ProductId })

		adjustment = models.Adjustment{
			AdjustmentNumber: adjustmentNumber,
			AdjustmentDate:   adjustmentDate,
			AdjustmentType:   input.AdjustmentType,
			Reason:           input.Reason,
			UserId:           userId,
		}
		for _, item := range items {
			adjustment.Items = append(adjustment.Items, models.AdjustmentItem{
				ProductId: item.ProductId,
				Quantity:  item.Quantity,
				Notes:     item.Notes,
			})
		}
		if err := tx.Create(&adjustment).Error; err != nil {
			return err
		}

		notes := "Adjustment " + adjustmentNumber + ": " + input.Reason
		for _, item := range adjustment.Items {
			product, err := LockProduct(tx, item.ProductId)
			if err != nil {
				return err
			}
			switch input.AdjustmentType {
			case models.AdjustmentTypeAddition:
				err = ApplyStockIn(tx, product, item.Quantity,
					models.StockReferenceTypeAdjustment, adjustment.ID, notes, userId)
			case models.AdjustmentTypeSubtraction:
				err = ApplyStockOut(tx, product, item.Quantity,
					models.StockReferenceTypeAdjustment, adjustment.ID, notes, userId)
			case models.AdjustmentTypeCorrection:
				err = ApplyStockCorrection(tx, product, item.Quantity,
					models.StockReferenceTypeAdjustment, adjustment.ID, notes, userId)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &adjustment, nil
}

// revertMutation undoes one ledger entry's effect on the locked product's
// balance. An "in" is taken back out, an "out" is put back, and an
// adjustment restores the balance the entry overwrote.
func revertMutation(tx *gorm.DB, product *models.Product, m *models.StockMutation) error {
	var target int
	switch m.MutationType {
	case models.MutationTypeIn:
		target = product.QuantityOnHand - m.Quantity
	case models.MutationTypeOut:
		target = product.QuantityOnHand + m.Quantity
	case models.MutationTypeAdjustment:
		target = product.QuantityOnHand - (m.CurrentStock - m.PreviousStock)
	default:
		return models.NewValidationError("cannot revert mutation type %q", m.MutationType)
	}
	if target < 0 {
		return &models.InsufficientStockError{
			ProductId: product.ID,
			Requested: product.QuantityOnHand - target,
			Available: product.QuantityOnHand,
		}
	}
	if err := tx.Model(product).Update("quantity_on_hand", target).Error; err != nil {
		return err
	}
	product.QuantityOnHand = target
	return nil
}

// DeleteAdjustment removes an adjustment entirely: each of its ledger
// entries is reverted against the current balance and then erased along
// with the lines and the header. Unlike sale cancellation no compensating
// entries are written, since the entries being compensated are deleted in
// the same transaction.
func DeleteAdjustment(ctx context.Context, adjustmentId int) error {
	logger := config.GetLogger()
	db := config.GetDB()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var adjustment models.Adjustment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&adjustment, adjustmentId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		var mutations []*models.StockMutation
		if err := tx.Where("reference_type = ? AND reference_id = ?",
			models.StockReferenceTypeAdjustment, adjustment.ID).
			Order("product_id, id").Find(&mutations).Error; err != nil {
			return err
		}

		byProduct := make(map[int][]*models.StockMutation, len(mutations))
		productIds := make([]int, 0, len(mutations))
		for _, m := range mutations {
			byProduct[m.ProductId] = append(byProduct[m.ProductId], m)
			productIds = append(productIds, m.ProductId)
		}
		for _, productId := range utils.UniqueSlice(productIds) {
			product, err := LockProduct(tx, productId)
			if err != nil {
				return err
			}
			for _, m := range byProduct[productId] {
				if err := revertMutation(tx, product, m); err != nil {
					return err
				}
			}
		}

		if err := tx.Where("adjustment_id = ?", adjustment.ID).
			Delete(&models.AdjustmentItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reference_type = ? AND reference_id = ?",
			models.StockReferenceTypeAdjustment, adjustment.ID).
			Delete(&models.StockMutation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&adjustment).Error
	})
	if err != nil {
		config.LogError(logger, adjustmentModuleName, "DeleteAdjustment", "revert", adjustmentId, err)
		return err
	}
	return nil
}
