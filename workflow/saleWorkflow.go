package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

const saleModuleName = "workflow/saleWorkflow"

// loyaltyPointsFor awards one point per 10,000 of grand total, floored.
func loyaltyPointsFor(grandTotal decimal.Decimal) int {
	if !grandTotal.IsPositive() {
		return 0
	}
	return int(grandTotal.Div(decimal.NewFromInt(10000)).IntPart())
}

// resolveSalePayment decides the recorded payment, change and status.
// Cash must cover the total and returns change; card and transfer settle
// exactly; credit books the shortfall as unpaid or partial.
func resolveSalePayment(method models.PaymentMethod, paid decimal.Decimal, grandTotal decimal.Decimal) (models.PaymentStatus, decimal.Decimal, decimal.Decimal, error) {
	switch method {
	case models.PaymentMethodCash:
		if paid.LessThan(grandTotal) {
			return "", decimal.Zero, decimal.Zero,
				models.NewValidationError("cash tendered %s is less than total %s", paid.String(), grandTotal.String())
		}
		return models.PaymentStatusPaid, grandTotal, paid.Sub(grandTotal), nil
	case models.PaymentMethodCard, models.PaymentMethodTransfer:
		return models.PaymentStatusPaid, grandTotal, decimal.Zero, nil
	case models.PaymentMethodCredit:
		if paid.GreaterThanOrEqual(grandTotal) {
			return models.PaymentStatusPaid, grandTotal, paid.Sub(grandTotal), nil
		}
		if paid.IsPositive() {
			return models.PaymentStatusPartial, paid, decimal.Zero, nil
		}
		return models.PaymentStatusUnpaid, decimal.Zero, decimal.Zero, nil
	}
	return "", decimal.Zero, decimal.Zero, models.NewValidationError("invalid payment method %q", method)
}

// ProcessSale commits a sale atomically: document number, header, lines,
// one ledger entry per line, customer rollup. Any failure rolls the whole
// sale back. A duplicate invoice number from a concurrent commit retries
// the entire transaction.
func ProcessSale(ctx context.Context, input *models.NewSale) (*models.Sale, error) {
	logger := config.GetLogger()

	if err := input.Validate(ctx); err != nil {
		return nil, err
	}

	var sale *models.Sale
	var err error
	for attempt := 1; attempt <= maxNumberRetries; attempt++ {
		sale, err = processSaleOnce(ctx, input)
		if err == nil {
			return sale, nil
		}
		if !IsDuplicateKeyErr(err) {
			break
		}
	}
	err = conflictAfterRetries(err)
	config.LogError(logger, saleModuleName, "ProcessSale", "commit", input, err)
	return nil, err
}

func processSaleOnce(ctx context.Context, input *models.NewSale) (*models.Sale, error) {
	db := config.GetDB()
	userId, _ := utils.GetUserIdFromContext(ctx)

	saleDate := input.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now()
	}

	var sale models.Sale
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoiceNumber, err := NextDailyNumber(tx, "sales", "invoice_number", "INV", saleDate)
		if err != nil {
			return err
		}

		customer, err := models.ResolveCustomer(tx, input.CustomerId, input.CustomerName, input.CustomerPhone)
		if err != nil {
			return err
		}

		// Lock in ascending product id order so concurrent sales cannot
		// deadlock on each other's rows.
		items := append([]models.NewSaleItem(nil), input.Items...)
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
		saleItems := make([]models.SaleItem, 0, len(items))
		for _, item := range items {
			unitPrice := item.UnitPrice
			if unitPrice.IsZero() {
				unitPrice = products[item.ProductId].SellingPrice
			}
			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.Discount)
			if lineTotal.IsNegative() {
				return models.NewValidationError("line discount exceeds line total for product %d", item.ProductId)
			}
			saleItems = append(saleItems, models.SaleItem{
				ProductId: item.ProductId,
				Quantity:  item.Quantity,
				UnitPrice: unitPrice,
				Discount:  item.Discount,
				Subtotal:  lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
		}

		taxable := subtotal.Sub(input.DiscountAmount)
		if taxable.IsNegative() {
			return models.NewValidationError("discount %s exceeds subtotal %s", input.DiscountAmount.String(), subtotal.String())
		}
		taxAmount := taxable.Mul(input.TaxRate).Div(decimal.NewFromInt(100))
		grandTotal := taxable.Add(taxAmount)

		status, paid, change, err := resolveSalePayment(input.PaymentMethod, input.PaidAmount, grandTotal)
		if err != nil {
			return err
		}

		sale = models.Sale{
			InvoiceNumber:  invoiceNumber,
			SaleDate:       saleDate,
			UserId:         userId,
			Items:          saleItems,
			Subtotal:       subtotal,
			DiscountAmount: input.DiscountAmount,
			TaxAmount:      taxAmount,
			GrandTotal:     grandTotal,
			PaymentStatus:  status,
			PaymentMethod:  input.PaymentMethod,
			PaidAmount:     paid,
			ChangeAmount:   change,
			Notes:          input.Notes,
		}
		if customer != nil {
			sale.CustomerId = utils.NewInt(customer.ID)
		}
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}

		for _, item := range sale.Items {
			if err := ApplyStockOut(tx, products[item.ProductId], item.Quantity,
				models.StockReferenceTypeSale, sale.ID, "Sale "+invoiceNumber, userId); err != nil {
				return err
			}
		}

		if customer != nil {
			points := loyaltyPointsFor(grandTotal)
			if err := tx.Model(customer).Updates(map[string]interface{}{
				"total_spent":    gorm.Expr("total_spent + ?", grandTotal),
				"loyalty_points": gorm.Expr("loyalty_points + ?", points),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// CancelSale compensates a committed sale: one "in" ledger entry per line
// restores the stock, the original entries stay untouched, and the header
// flips to cancelled. Cancelling twice fails.
func CancelSale(ctx context.Context, saleId int, reason string) (*models.Sale, error) {
	logger := config.GetLogger()
	db := config.GetDB()
	userId, _ := utils.GetUserIdFromContext(ctx)

	var sale models.Sale
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").First(&sale, saleId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if sale.PaymentStatus == models.PaymentStatusCancelled {
			return &models.AlreadyCancelledError{SaleId: sale.ID}
		}

		items := append([]models.SaleItem(nil), sale.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductId < items[j].ProductId })
		for _, item := range items {
			product, err := LockProduct(tx, item.ProductId)
			if err != nil {
				return err
			}
			if err := ApplyStockIn(tx, product, item.Quantity,
				models.StockReferenceTypeSale, sale.ID,
				"Cancellation of "+sale.InvoiceNumber, userId); err != nil {
				return err
			}
		}

		now := time.Now()
		sale.PaymentStatus = models.PaymentStatusCancelled
		sale.CancelledAt = &now
		sale.CancelReason = reason
		return tx.Model(&sale).Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusCancelled,
			"cancelled_at":   now,
			"cancel_reason":  reason,
		}).Error
	})
	if err != nil {
		config.LogError(logger, saleModuleName, "CancelSale", "cancel", saleId, err)
		return nil, err
	}
	return &sale, nil
}

// CheckoutInput finalizes a staged cart into a sale.
type CheckoutInput struct {
	CustomerId    int                  `json:"customer_id"`
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PaidAmount    decimal.Decimal      `json:"paid_amount"`
	Notes         string               `json:"notes"`
}

const checkoutLockTTL = 10 * time.Second

// CheckoutCart converts the session's cart into a sale through ProcessSale
// and clears the cart only after the sale commits. A per-session redis
// lock keeps a double-submitted checkout from committing twice; when redis
// is not configured the database-level stock checks still hold.
func CheckoutCart(ctx context.Context, store models.CartStore, sessionId string, payment *CheckoutInput) (*models.Sale, error) {
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "checkout:"+sessionId, checkoutLockTTL, nil)
		if err == redislock.ErrNotObtained {
			return nil, models.NewValidationError("checkout already in progress for session %s", sessionId)
		}
		if err != nil {
			return nil, err
		}
		defer lock.Release(ctx)
	}

	cart, err := store.Load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, models.NewValidationError("cart is empty")
	}

	method := payment.PaymentMethod
	if method == "" {
		method = cart.PaymentMethod
	}

	// A percentage discount is resolved against the staged subtotal here;
	// the sale itself only ever records flat amounts.
	summary := cart.Summary()

	input := &models.NewSale{
		CustomerId:     payment.CustomerId,
		CustomerName:   payment.CustomerName,
		CustomerPhone:  payment.CustomerPhone,
		DiscountAmount: summary.Discount,
		TaxRate:        cart.TaxRate,
		PaymentMethod:  method,
		PaidAmount:     payment.PaidAmount,
		Notes:          payment.Notes,
	}
	for _, item := range cart.Items {
		input.Items = append(input.Items, models.NewSaleItem{
			ProductId: item.ProductId,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
		})
	}

	sale, err := ProcessSale(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := models.ClearCart(ctx, store, sessionId); err != nil {
		config.LogError(config.GetLogger(), saleModuleName, "CheckoutCart", "clear cart after commit", sessionId, err)
	}
	return sale, nil
}
