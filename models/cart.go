package models

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/pos_backend/utils"
)

// Cart is the ephemeral staging area for a sale in progress. It lives in
// the cart store keyed by session, never in MySQL, and reserves nothing:
// stock is only checked against the balance at staging time and enforced
// for real at checkout.
type Cart struct {
	SessionId      string          `json:"session_id"`
	Items          []CartItem      `json:"items"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   DiscountType    `json:"discount_type"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type CartItem struct {
	ProductId   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type CartSummary struct {
	ItemCount  int             `json:"item_count"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// CartShortfall names one product whose staged quantity exceeds what is
// currently on hand.
type CartShortfall struct {
	ProductId int `json:"product_id"`
	Requested int `json:"requested"`
	Available int `json:"available"`
}

func newCart(sessionId string) *Cart {
	return &Cart{
		SessionId:      sessionId,
		Items:          []CartItem{},
		DiscountAmount: decimal.Zero,
		DiscountType:   DiscountTypeAmount,
		TaxRate:        decimal.Zero,
	}
}

func (c *Cart) findItem(productId int) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductId == productId {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) recalcItem(item *CartItem) {
	lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	item.Subtotal = lineTotal.Sub(item.Discount)
	if item.Subtotal.IsNegative() {
		item.Subtotal = decimal.Zero
	}
}

// Summary totals the cart. The cart-level discount may be a flat amount
// or a percentage of the subtotal; tax applies to the discounted subtotal.
func (c *Cart) Summary() CartSummary {
	summary := CartSummary{
		Subtotal:   decimal.Zero,
		Discount:   decimal.Zero,
		Tax:        decimal.Zero,
		GrandTotal: decimal.Zero,
	}
	for _, item := range c.Items {
		summary.ItemCount += item.Quantity
		summary.Subtotal = summary.Subtotal.Add(item.Subtotal)
	}
	summary.Discount = utils.CalculateDiscountAmount(summary.Subtotal, c.DiscountAmount, string(c.DiscountType))
	taxable := summary.Subtotal.Sub(summary.Discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	summary.Tax = taxable.Mul(c.TaxRate).Div(decimal.NewFromInt(100))
	summary.GrandTotal = taxable.Add(summary.Tax)
	return summary
}

// Shortfalls compares staged quantities against the supplied balances and
// returns every line that could not be fulfilled, ordered by product id.
func (c *Cart) Shortfalls(stocks map[int]int) []CartShortfall {
	var shortfalls []CartShortfall
	for _, item := range c.Items {
		available, ok := stocks[item.ProductId]
		if !ok || available < item.Quantity {
			shortfalls = append(shortfalls, CartShortfall{
				ProductId: item.ProductId,
				Requested: item.Quantity,
				Available: available,
			})
		}
	}
	sort.Slice(shortfalls, func(i, j int) bool {
		return shortfalls[i].ProductId < shortfalls[j].ProductId
	})
	return shortfalls
}

// AddCartLine stages quantity of a product on the session's cart, merging
// into an existing line. The cumulative staged quantity is checked against
// the current balance; the check is advisory and nothing is reserved.
func AddCartLine(ctx context.Context, store CartStore, sessionId string, productId int, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, NewValidationError("cart quantity must be positive")
	}
	if sessionId == "" {
		if fromCtx, ok := utils.GetSessionIdFromContext(ctx); ok && fromCtx != "" {
			sessionId = fromCtx
		} else {
			sessionId = NewCartSessionId()
		}
	}
	product, err := GetProduct(ctx, productId)
	if err != nil {
		return nil, err
	}

	cart, err := store.Load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = newCart(sessionId)
	}

	staged := 0
	if existing := cart.findItem(productId); existing != nil {
		staged = existing.Quantity
	}
	if staged+quantity > product.QuantityOnHand {
		return nil, &InsufficientStockError{
			ProductId: productId,
			Requested: staged + quantity,
			Available: product.QuantityOnHand,
		}
	}

	if existing := cart.findItem(productId); existing != nil {
		existing.Quantity += quantity
		cart.recalcItem(existing)
	} else {
		item := CartItem{
			ProductId:   productId,
			ProductName: product.Name,
			Quantity:    quantity,
			UnitPrice:   product.SellingPrice,
			Discount:    decimal.Zero,
		}
		cart.recalcItem(&item)
		cart.Items = append(cart.Items, item)
	}
	cart.UpdatedAt = time.Now()

	if err := store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateCartLine sets a line's quantity outright. Zero removes the line.
func UpdateCartLine(ctx context.Context, store CartStore, sessionId string, productId int, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, NewValidationError("cart quantity cannot be negative")
	}
	cart, err := store.Load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.findItem(productId) == nil {
		return nil, NewValidationError("product %d is not in the cart", productId)
	}

	if quantity == 0 {
		return RemoveCartLine(ctx, store, sessionId, productId)
	}

	product, err := GetProduct(ctx, productId)
	if err != nil {
		return nil, err
	}
	if quantity > product.QuantityOnHand {
		return nil, &InsufficientStockError{
			ProductId: productId,
			Requested: quantity,
			Available: product.QuantityOnHand,
		}
	}

	item := cart.findItem(productId)
	item.Quantity = quantity
	cart.recalcItem(item)
	cart.UpdatedAt = time.Now()

	if err := store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveCartLine drops the product's line from the session's cart.
// Idempotent: removing an absent line, or removing from a session with no
// cart, succeeds as a no-op.
func RemoveCartLine(ctx context.Context, store CartStore, sessionId string, productId int) (*Cart, error) {
	cart, err := store.Load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return newCart(sessionId), nil
	}

	kept := cart.Items[:0]
	found := false
	for _, item := range cart.Items {
		if item.ProductId == productId {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return cart, nil
	}
	cart.Items = kept
	cart.UpdatedAt = time.Now()

	if err := store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ClearCart drops the whole staged state including any discount, tax and
// payment method staging.
func ClearCart(ctx context.Context, store CartStore, sessionId string) error {
	return store.Delete(ctx, sessionId)
}

// SetCartCharges stages cart-level discount, tax rate and payment method
// ahead of checkout. The discount is a percentage of the subtotal when
// discountType is "P", a flat amount otherwise.
func SetCartCharges(ctx context.Context, store CartStore, sessionId string, discount decimal.Decimal, discountType DiscountType, taxRate decimal.Decimal, method PaymentMethod) (*Cart, error) {
	if discount.IsNegative() {
		return nil, NewValidationError("discount cannot be negative")
	}
	if discountType == "" {
		discountType = DiscountTypeAmount
	}
	if discountType != DiscountTypeAmount && discountType != DiscountTypePercentage {
		return nil, NewValidationError("invalid discount type %q", discountType)
	}
	if discountType == DiscountTypePercentage && discount.GreaterThan(decimal.NewFromInt(100)) {
		return nil, NewValidationError("percentage discount cannot exceed 100")
	}
	if taxRate.IsNegative() {
		return nil, NewValidationError("tax rate cannot be negative")
	}
	if method != "" && !method.IsValid() {
		return nil, NewValidationError("invalid payment method %q", method)
	}
	cart, err := store.Load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, NewValidationError("cart is empty")
	}

	cart.DiscountAmount = discount
	cart.DiscountType = discountType
	cart.TaxRate = taxRate
	if method != "" {
		cart.PaymentMethod = method
	}
	cart.UpdatedAt = time.Now()

	if err := store.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ValidateCartAvailability re-reads current balances for every staged line
// and reports the shortfalls. An empty result means the cart is
// fulfillable at this instant. A product deleted since staging counts as
// zero available; any other fetch error aborts the check.
func ValidateCartAvailability(ctx context.Context, cart *Cart) ([]CartShortfall, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, nil
	}
	stocks := make(map[int]int, len(cart.Items))
	for _, item := range cart.Items {
		product, err := GetProduct(ctx, item.ProductId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				stocks[item.ProductId] = 0
				continue
			}
			return nil, err
		}
		stocks[item.ProductId] = product.QuantityOnHand
	}
	return cart.Shortfalls(stocks), nil
}
