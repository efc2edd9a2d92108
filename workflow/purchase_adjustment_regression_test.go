package workflow_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/pos_backend/config"
	"bitbucket.org/mmdatafocus/pos_backend/models"
	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
)

func TestProcessPurchase_ReceivesStockAndBooksSupplierDue(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	red := mustCreateProduct(t, ctx, "RED-001", 10, 5000)
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Golden Valley Trading"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	purchase, err := workflow.ProcessPurchase(ctx, &models.NewPurchase{
		SupplierId: supplier.ID,
		Items: []models.NewPurchaseItem{
			{ProductId: red.ID, Quantity: 40, UnitCost: decimal.NewFromInt(2800), BatchNumber: "B-2024-01"},
		},
		ShippingAmount: decimal.NewFromInt(5000),
		PaymentMethod:  models.PaymentMethodCredit,
		PaidAmount:     decimal.NewFromInt(50000),
	})
	if err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	// 40*2800 = 112000 + 5000 shipping = 117000; paid 50000 -> partial, due 67000
	if !purchase.GrandTotal.Equal(decimal.NewFromInt(117000)) {
		t.Fatalf("expected grand total 117000, got %s", purchase.GrandTotal.String())
	}
	if purchase.PaymentStatus != models.PaymentStatusPartial {
		t.Fatalf("expected partial, got %s", purchase.PaymentStatus)
	}
	if !purchase.DueAmount.Equal(decimal.NewFromInt(67000)) {
		t.Fatalf("expected due 67000, got %s", purchase.DueAmount.String())
	}

	redAfter, _ := models.GetProduct(ctx, red.ID)
	if redAfter.QuantityOnHand != 50 {
		t.Fatalf("expected 50 on hand, got %d", redAfter.QuantityOnHand)
	}
	// Cost follows the latest receipt by default.
	if !redAfter.PurchasePrice.Equal(decimal.NewFromInt(2800)) {
		t.Fatalf("expected purchase price updated to 2800, got %s", redAfter.PurchasePrice.String())
	}

	supplierAfter, _ := models.GetSupplier(ctx, supplier.ID)
	if !supplierAfter.OutstandingBalance.Equal(decimal.NewFromInt(67000)) {
		t.Fatalf("expected outstanding 67000, got %s", supplierAfter.OutstandingBalance.String())
	}

	// The initial payment at receipt is on record.
	full, err := models.GetPurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("GetPurchase: %v", err)
	}
	if len(full.Payments) != 1 || !full.Payments[0].Amount.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("expected one payment of 50000, got %+v", full.Payments)
	}

	assertLedgerMatchesQuantity(t, ctx, red.ID)
}

func TestProcessPurchase_KeepCostFlagLeavesPriceAlone(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	red := mustCreateProduct(t, ctx, "RED-001", 0, 5000)
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Golden Valley Trading"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	before, _ := models.GetProduct(ctx, red.ID)
	_, err = workflow.ProcessPurchase(ctx, &models.NewPurchase{
		SupplierId: supplier.ID,
		Items: []models.NewPurchaseItem{
			{ProductId: red.ID, Quantity: 5, UnitCost: decimal.NewFromInt(9999)},
		},
		PaymentMethod:      models.PaymentMethodCash,
		UpdateProductPrice: utils.NewFalse(),
	})
	if err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	after, _ := models.GetProduct(ctx, red.ID)
	if !after.PurchasePrice.Equal(before.PurchasePrice) {
		t.Fatalf("expected purchase price unchanged at %s, got %s",
			before.PurchasePrice.String(), after.PurchasePrice.String())
	}
}

func TestAddPurchasePayment_SettlesDueWithoutTouchingLedger(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	red := mustCreateProduct(t, ctx, "RED-001", 0, 5000)
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Golden Valley Trading"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	purchase, err := workflow.ProcessPurchase(ctx, &models.NewPurchase{
		SupplierId: supplier.ID,
		Items: []models.NewPurchaseItem{
			{ProductId: red.ID, Quantity: 10, UnitCost: decimal.NewFromInt(1000)},
		},
		PaymentMethod: models.PaymentMethodCredit,
	})
	if err != nil {
		t.Fatalf("ProcessPurchase: %v", err)
	}
	if purchase.PaymentStatus != models.PaymentStatusUnpaid {
		t.Fatalf("expected unpaid, got %s", purchase.PaymentStatus)
	}

	db := config.GetDB()
	var ledgerBefore int64
	db.Model(&models.StockMutation{}).Count(&ledgerBefore)

	// Overpayment is rejected before anything moves.
	_, err = workflow.AddPurchasePayment(ctx, purchase.ID, &models.NewPurchasePayment{
		Amount:        decimal.NewFromInt(20000),
		PaymentMethod: models.PaymentMethodTransfer,
	})
	var overErr *models.OverPaymentError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected OverPaymentError, got %v", err)
	}
	if !overErr.Due.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("unexpected due in error: %s", overErr.Due.String())
	}

	updated, err := workflow.AddPurchasePayment(ctx, purchase.ID, &models.NewPurchasePayment{
		Amount:        decimal.NewFromInt(4000),
		PaymentMethod: models.PaymentMethodTransfer,
	})
	if err != nil {
		t.Fatalf("AddPurchasePayment: %v", err)
	}
	if updated.PaymentStatus != models.PaymentStatusPartial || !updated.DueAmount.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("expected partial with due 6000, got %s/%s", updated.PaymentStatus, updated.DueAmount.String())
	}

	updated, err = workflow.AddPurchasePayment(ctx, purchase.ID, &models.NewPurchasePayment{
		Amount:        decimal.NewFromInt(6000),
		PaymentMethod: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("AddPurchasePayment final: %v", err)
	}
	if updated.PaymentStatus != models.PaymentStatusPaid || !updated.DueAmount.IsZero() {
		t.Fatalf("expected fully paid, got %s/%s", updated.PaymentStatus, updated.DueAmount.String())
	}

	supplierAfter, _ := models.GetSupplier(ctx, supplier.ID)
	if !supplierAfter.OutstandingBalance.IsZero() {
		t.Fatalf("expected supplier settled, got %s", supplierAfter.OutstandingBalance.String())
	}

	var ledgerAfter int64
	db.Model(&models.StockMutation{}).Count(&ledgerAfter)
	if ledgerAfter != ledgerBefore {
		t.Fatalf("payments must not write ledger entries: %d -> %d", ledgerBefore, ledgerAfter)
	}
}

func TestCreateAdjustment_AllThreeTypes(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	red := mustCreateProduct(t, ctx, "RED-001", 50, 5000)

	add, err := workflow.CreateAdjustment(ctx, &models.NewAdjustment{
		AdjustmentType: models.AdjustmentTypeAddition,
		Reason:         "found misplaced carton",
		Items:          []models.NewAdjustmentItem{{ProductId: red.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("CreateAdjustment(addition): %v", err)
	}
	after, _ := models.GetProduct(ctx, red.ID)
	if after.QuantityOnHand != 55 {
		t.Fatalf("expected 55 after addition, got %d", after.QuantityOnHand)
	}

	_, err = workflow.CreateAdjustment(ctx, &models.NewAdjustment{
		AdjustmentType: models.AdjustmentTypeSubtraction,
		Reason:         "breakage",
		Items:          []models.NewAdjustmentItem{{ProductId: red.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("CreateAdjustment(subtraction): %v", err)
	}
	after, _ = models.GetProduct(ctx, red.ID)
	if after.QuantityOnHand != 52 {
		t.Fatalf("expected 52 after subtraction, got %d", after.QuantityOnHand)
	}

	correction, err := workflow.CreateAdjustment(ctx, &models.NewAdjustment{
		AdjustmentType: models.AdjustmentTypeCorrection,
		Reason:         "stocktake count",
		Items:          []models.NewAdjustmentItem{{ProductId: red.ID, Quantity: 40}},
	})
	if err != nil {
		t.Fatalf("CreateAdjustment(correction): %v", err)
	}
	after, _ = models.GetProduct(ctx, red.ID)
	if after.QuantityOnHand != 40 {
		t.Fatalf("expected 40 after correction, got %d", after.QuantityOnHand)
	}

	// The correction entry records the magnitude with both balances.
	db := config.GetDB()
	var entry models.StockMutation
	if err := db.Where("reference_type = ? AND reference_id = ?",
		models.StockReferenceTypeAdjustment, correction.ID).First(&entry).Error; err != nil {
		t.Fatalf("load correction entry: %v", err)
	}
	if entry.MutationType != models.MutationTypeAdjustment ||
		entry.Quantity != 12 || entry.PreviousStock != 52 || entry.CurrentStock != 40 {
		t.Fatalf("unexpected correction entry: %+v", entry)
	}

	if add.AdjustmentNumber == correction.AdjustmentNumber {
		t.Fatal("adjustment numbers must be distinct")
	}

	// Oversubtraction fails without side effects.
	_, err = workflow.CreateAdjustment(ctx, &models.NewAdjustment{
		AdjustmentType: models.AdjustmentTypeSubtraction,
		Reason:         "impossible",
		Items:          []models.NewAdjustmentItem{{ProductId: red.ID, Quantity: 999}},
	})
	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	after, _ = models.GetProduct(ctx, red.ID)
	if after.QuantityOnHand != 40 {
		t.Fatalf("failed adjustment must not move stock, got %d", after.QuantityOnHand)
	}

	assertLedgerMatchesQuantity(t, ctx, red.ID)
}

func TestDeleteAdjustment_RevertsEffectsAndErasesEntries(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	red := mustCreateProduct(t, ctx, "RED-001", 50, 5000)
	blue := mustCreateProduct(t, ctx, "BLUE-001", 20, 3000)

	adjustment, err := workflow.CreateAdjustment(ctx, &models.NewAdjustment{
		AdjustmentType: models.AdjustmentTypeAddition,
		Reason:         "recount",
		Items: []models.NewAdjustmentItem{
			{ProductId: red.ID, Quantity: 5},
			{ProductId: blue.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateAdjustment: %v", err)
	}

	if err := workflow.DeleteAdjustment(ctx, adjustment.ID); err != nil {
		t.Fatalf("DeleteAdjustment: %v", err)
	}

	redAfter, _ := models.GetProduct(ctx, red.ID)
	if redAfter.QuantityOnHand != 50 {
		t.Fatalf("expected red back at 50, got %d", redAfter.QuantityOnHand)
	}
	blueAfter, _ := models.GetProduct(ctx, blue.ID)
	if blueAfter.QuantityOnHand != 20 {
		t.Fatalf("expected blue back at 20, got %d", blueAfter.QuantityOnHand)
	}

	db := config.GetDB()
	var entryCount int64
	db.Model(&models.StockMutation{}).
		Where("reference_type = ? AND reference_id = ?",
			models.StockReferenceTypeAdjustment, adjustment.ID).Count(&entryCount)
	if entryCount != 0 {
		t.Fatalf("expected adjustment ledger entries erased, got %d", entryCount)
	}
	if _, err := models.GetAdjustment(ctx, adjustment.ID); err == nil {
		t.Fatal("expected adjustment header gone")
	}

	assertLedgerMatchesQuantity(t, ctx, red.ID)
	assertLedgerMatchesQuantity(t, ctx, blue.ID)
}

func TestDeleteAdjustment_RestoresBalanceOverwrittenByCorrection(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	red := mustCreateProduct(t, ctx, "RED-001", 50, 5000)

	correction, err := workflow.CreateAdjustment(ctx, &models.NewAdjustment{
		AdjustmentType: models.AdjustmentTypeCorrection,
		Reason:         "stocktake count",
		Items:          []models.NewAdjustmentItem{{ProductId: red.ID, Quantity: 30}},
	})
	if err != nil {
		t.Fatalf("CreateAdjustment: %v", err)
	}
	after, _ := models.GetProduct(ctx, red.ID)
	if after.QuantityOnHand != 30 {
		t.Fatalf("expected 30 after correction, got %d", after.QuantityOnHand)
	}

	if err := workflow.DeleteAdjustment(ctx, correction.ID); err != nil {
		t.Fatalf("DeleteAdjustment: %v", err)
	}
	after, _ = models.GetProduct(ctx, red.ID)
	if after.QuantityOnHand != 50 {
		t.Fatalf("expected correction revert to restore 50, got %d", after.QuantityOnHand)
	}
	assertLedgerMatchesQuantity(t, ctx, red.ID)
}

func TestDeleteAdjustment_FailsWhenRevertWouldGoNegative(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	red := mustCreateProduct(t, ctx, "RED-001", 10, 5000)

	adjustment, err := workflow.CreateAdjustment(ctx, &models.NewAdjustment{
		AdjustmentType: models.AdjustmentTypeAddition,
		Reason:         "recount",
		Items:          []models.NewAdjustmentItem{{ProductId: red.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("CreateAdjustment: %v", err)
	}

	// Sell through the adjusted-in stock so the revert would go negative.
	if _, err := workflow.ProcessSale(ctx, &models.NewSale{
		Items:         []models.NewSaleItem{{ProductId: red.ID, Quantity: 12}},
		PaymentMethod: models.PaymentMethodCard,
	}); err != nil {
		t.Fatalf("ProcessSale: %v", err)
	}

	err = workflow.DeleteAdjustment(ctx, adjustment.ID)
	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	// The adjustment and its entries survive the failed delete.
	if _, err := models.GetAdjustment(ctx, adjustment.ID); err != nil {
		t.Fatalf("adjustment should still exist: %v", err)
	}
	after, _ := models.GetProduct(ctx, red.ID)
	if after.QuantityOnHand != 3 {
		t.Fatalf("expected 3 on hand, got %d", after.QuantityOnHand)
	}
	assertLedgerMatchesQuantity(t, ctx, red.ID)
}

func TestBulkSetStock_WritesBulkUpdateEntries(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	red := mustCreateProduct(t, ctx, "RED-001", 50, 5000)
	blue := mustCreateProduct(t, ctx, "BLUE-001", 20, 3000)

	err := workflow.BulkSetStock(ctx, map[int]int{
		red.ID:  45,
		blue.ID: 20, // unchanged, no entry
	}, "Annual stocktake")
	if err != nil {
		t.Fatalf("BulkSetStock: %v", err)
	}

	redAfter, _ := models.GetProduct(ctx, red.ID)
	if redAfter.QuantityOnHand != 45 {
		t.Fatalf("expected 45, got %d", redAfter.QuantityOnHand)
	}

	db := config.GetDB()
	var bulkCount int64
	db.Model(&models.StockMutation{}).
		Where("reference_type = ?", models.StockReferenceTypeBulkUpdate).Count(&bulkCount)
	if bulkCount != 1 {
		t.Fatalf("expected one bulk-update entry, got %d", bulkCount)
	}

	assertLedgerMatchesQuantity(t, ctx, red.ID)
	assertLedgerMatchesQuantity(t, ctx, blue.ID)
}
