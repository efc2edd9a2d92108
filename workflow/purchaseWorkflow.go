package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

const purchaseModuleName = "workflow/purchaseWorkflow"

// resolvePurchasePayment decides the recorded payment, due amount and
// status. Cash settles in full at receipt; anything else books the
// shortfall against the supplier.
func resolvePurchasePayment(method models.PaymentMethod, paid decimal.Decimal, grandTotal decimal.Decimal) (models.PaymentStatus, decimal.Decimal, decimal.Decimal) {
	if method == models.PaymentMethodCash || paid.GreaterThanOrEqual(grandTotal) {
		return models.PaymentStatusPaid, grandTotal, decimal.Zero
	}
	if paid.IsPositive() {
		return models.PaymentStatusPartial, paid, grandTotal.Sub(paid)
	}
	return models.PaymentStatusUnpaid, decimal.Zero, grandTotal
}

// ProcessPurchase commits a goods receipt atomically: document number,
// header, lines, one "in" ledger entry per line, optional cost update on
// the product, and the supplier's outstanding balance for any due amount.
func ProcessPurchase(ctx context.Context, input *models.NewPurchase) (*models.Purchase, error) {
	logger := config.GetLogger()

	if err := input.Validate(ctx); err != nil {
		return nil, err
	}

	var purchase *models.Purchase
	var err error
	for attempt := 1; attempt <= maxNumberRetries; attempt++ {
		purchase, err = processPurchaseOnce(ctx, input)
		if err == nil {
			return purchase, nil
		}
		if !IsDuplicateKeyErr(err) {
			break
		}
	}
	err = conflictAfterRetries(err)
	config.LogError(logger, purchaseModuleName, "ProcessPurchase", "commit", input, err)
	return nil, err
}

func processPurchaseOnce(ctx context.Context, input *models.NewPurchase) (*models.Purchase, error) {
	db := config.GetDB()
	userId, _ := utils.GetUserIdFromContext(ctx)

	purchaseDate := input.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now()
	}
	updatePrice := input.UpdateProductPrice == nil || *input.UpdateProductPrice

	var purchase models.Purchase
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchaseNumber, err := NextDailyNumber(tx, "purchases", "purchase_number", "PUR", purchaseDate)
		if err != nil {
			return err
		}

		items := append([]models.NewPurchaseItem(nil), input.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductId < items[j].ProductId })

		products := make(map[int]*models.Product, len(items))
		for _, item := range items {
			product, err := LockProduct(tx, item.ProductId)
			if err != nil {
				return err
			}
			products[item.ProductId] = product
		}

		subtotal := decimal.Zero
		purchaseItems := make([]models.PurchaseItem, 0, len(items))
		for _, item := range items {
			unitCost := item.UnitCost
			if unitCost.IsZero() {
				unitCost = products[item.ProductId].PurchasePrice
			}
			lineTotal := unitCost.Mul(decimal.NewFromInt(int64(item.Quantity)))
			purchaseItems = append(purchaseItems, models.PurchaseItem{
				ProductId:   item.ProductId,
				Quantity:    item.Quantity,
				UnitCost:    unitCost,
				Subtotal:    lineTotal,
				BatchNumber: item.BatchNumber,
				ExpiryDate:  item.ExpiryDate,
			})
			subtotal = subtotal.Add(lineTotal)
		}

		taxable := subtotal.Sub(input.DiscountAmount)
		if taxable.IsNegative() {
			return models.NewValidationError("discount %s exceeds subtotal %s", input.DiscountAmount.String(), subtotal.String())
		}
		taxAmount := taxable.Mul(input.TaxRate).Div(decimal.NewFromInt(100))
		grandTotal := taxable.Add(taxAmount).Add(input.ShippingAmount)

		status, paid, due := resolvePurchasePayment(input.PaymentMethod, input.PaidAmount, grandTotal)

		purchase = models.Purchase{
			PurchaseNumber: purchaseNumber,
			PurchaseDate:   purchaseDate,
			SupplierId:     input.SupplierId,
			UserId:         userId,
			Items:          purchaseItems,
			Subtotal:       subtotal,
			DiscountAmount: input.DiscountAmount,
			TaxAmount:      taxAmount,
			ShippingAmount: input.ShippingAmount,
			GrandTotal:     grandTotal,
			PaymentStatus:  status,
			PaymentMethod:  input.PaymentMethod,
			PaidAmount:     paid,
			DueAmount:      due,
			DueDate:        input.DueDate,
			Notes:          input.Notes,
		}
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}

		for _, item := range purchase.Items {
			product := products[item.ProductId]
			if err := ApplyStockIn(tx, product, item.Quantity,
				models.StockReferenceTypePurchase, purchase.ID,
				"Purchase "+purchaseNumber, userId); err != nil {
				return err
			}
			if updatePrice && !product.PurchasePrice.Equal(item.UnitCost) {
				if err := tx.Model(product).
					Update("purchase_price", item.UnitCost).Error; err != nil {
					return err
				}
			}
		}

		if paid.IsPositive() {
			initial := models.PurchasePayment{
				PurchaseId:    purchase.ID,
				Amount:        paid,
				PaymentMethod: input.PaymentMethod,
				PaymentDate:   purchaseDate,
				UserId:        userId,
				Notes:         "Payment at receipt",
			}
			if err := tx.Create(&initial).Error; err != nil {
				return err
			}
		}
		return models.AdjustSupplierBalance(tx, purchase.SupplierId, due)
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// AddPurchasePayment settles part or all of a purchase's due amount.
// Payments never touch the stock ledger; only the header's payment fields
// and the supplier's outstanding balance move.
func AddPurchasePayment(ctx context.Context, purchaseId int, input *models.NewPurchasePayment) (*models.Purchase, error) {
	logger := config.GetLogger()

	if err := input.Validate(ctx); err != nil {
		return nil, err
	}

	db := config.GetDB()
	userId, _ := utils.GetUserIdFromContext(ctx)

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	var purchase models.Purchase
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&purchase, purchaseId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if purchase.PaymentStatus == models.PaymentStatusCancelled {
			return models.NewValidationError("purchase %d is cancelled", purchase.ID)
		}
		if input.Amount.GreaterThan(purchase.DueAmount) {
			return &models.OverPaymentError{
				PurchaseId: purchase.ID,
				Amount:     input.Amount,
				Due:        purchase.DueAmount,
			}
		}

		payment := models.PurchasePayment{
			PurchaseId:    purchase.ID,
			Amount:        input.Amount,
			PaymentMethod: input.PaymentMethod,
			PaymentDate:   paymentDate,
			UserId:        userId,
			Notes:         input.Notes,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		purchase.PaidAmount = purchase.PaidAmount.Add(input.Amount)
		purchase.DueAmount = purchase.DueAmount.Sub(input.Amount)
		if purchase.DueAmount.LessThanOrEqual(decimal.Zero) {
			purchase.PaymentStatus = models.PaymentStatusPaid
		} else {
			purchase.PaymentStatus = models.PaymentStatusPartial
		}
		if err := tx.Model(&purchase).Updates(map[string]interface{}{
			"paid_amount":    purchase.PaidAmount,
			"due_amount":     purchase.DueAmount,
			"payment_status": purchase.PaymentStatus,
		}).Error; err != nil {
			return err
		}
		return models.AdjustSupplierBalance(tx, purchase.SupplierId, input.Amount.Neg())
	})
	if err != nil {
		config.LogError(logger, purchaseModuleName, "AddPurchasePayment", "settle", purchaseId, err)
		return nil, err
	}
	return &purchase, nil
}
