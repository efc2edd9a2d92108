package models

type MutationType string

const (
	MutationTypeIn         MutationType = "in"
	MutationTypeOut        MutationType = "out"
	MutationTypeAdjustment MutationType = "adjustment"
)

func (t MutationType) IsValid() bool {
	switch t {
	case MutationTypeIn, MutationTypeOut, MutationTypeAdjustment:
		return true
	}
	return false
}

// StockReferenceType identifies the document that caused a stock mutation.
// Lookup only, never an ownership relation.
type StockReferenceType string

const (
	StockReferenceTypeSale       StockReferenceType = "SL"
	StockReferenceTypePurchase   StockReferenceType = "PU"
	StockReferenceTypeAdjustment StockReferenceType = "AJ"
	StockReferenceTypeInitial    StockReferenceType = "INIT"
	StockReferenceTypeBulkUpdate StockReferenceType = "BU"
)

type PaymentStatus string

const (
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusUnpaid    PaymentStatus = "unpaid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCredit   PaymentMethod = "credit"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodCredit:
		return true
	}
	return false
}

type AdjustmentType string

const (
	AdjustmentTypeAddition    AdjustmentType = "addition"
	AdjustmentTypeSubtraction AdjustmentType = "subtraction"
	AdjustmentTypeCorrection  AdjustmentType = "correction"
)

func (t AdjustmentType) IsValid() bool {
	switch t {
	case AdjustmentTypeAddition, AdjustmentTypeSubtraction, AdjustmentTypeCorrection:
		return true
	}
	return false
}

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "P"
	DiscountTypeAmount     DiscountType = "A"
)
