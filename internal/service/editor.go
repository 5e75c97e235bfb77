package service

import (
	"sync"

	"github.com/dukerupert/tabletill/internal/history"
	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/shopspring/decimal"
)

// Direction records which side of the order was edited last and is therefore
// authoritative for the next recompute.
type Direction string

const (
	// DirectionOrder means the order discount was edited and must be
	// distributed to the items.
	DirectionOrder Direction = "order"
	// DirectionItems means an item discount was edited and the order discount
	// follows the sum of the items.
	DirectionItems Direction = "items"
)

// DiscountMode is how the cashier entered the order discount.
type DiscountMode string

const (
	DiscountAmount  DiscountMode = "amount"
	DiscountPercent DiscountMode = "percent"
)

// EditorItem is one line of an order being edited. ID is set for lines that
// already exist in the order API and empty for lines added in this session.
type EditorItem struct {
	ID             string          `json:"id,omitempty"`
	ProductID      string          `json:"productId" validate:"required"`
	Name           string          `json:"name,omitempty"`
	Quantity       int             `json:"quantity" validate:"gte=0"`
	UnitPrice      decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	TaxRatePercent decimal.Decimal `json:"taxRate" validate:"gte=0"`
	Discount       decimal.Decimal `json:"discount" validate:"gte=0"`
}

// Persisted reports whether the line was loaded from an existing order.
func (i EditorItem) Persisted() bool {
	return i.ID != ""
}

func (i EditorItem) lineItem() pricing.LineItem {
	return pricing.LineItem{
		ProductID:      i.ProductID,
		Name:           i.Name,
		Quantity:       i.Quantity,
		UnitPrice:      i.UnitPrice,
		TaxRatePercent: i.TaxRatePercent,
		Discount:       i.Discount,
	}
}

// OrderEditor owns the transient state of one order while it is being edited:
// the loaded lines, lines added in this session, the order discount and the
// direction of the last discount edit. Persisted lines come first, followed by
// new lines, and indexes refer to that combined order.
//
// An OrderEditor is safe for concurrent use.
type OrderEditor struct {
	mu sync.Mutex

	orderID   string
	policy    pricing.TaxPolicy
	items     []EditorItem
	removed   []EditorItem
	discount  decimal.Decimal
	percent   decimal.Decimal
	mode      DiscountMode
	direction Direction
	committed bool

	baseline         map[string]EditorItem
	baselineDiscount decimal.Decimal
}

// NewOrderEditor starts an editing session for orderID. An empty orderID edits
// a new order that does not exist in the order API yet.
//
// The loaded discounts must be consistent with the loaded lines. An order
// discount above the order total, or a line discount above its line total, is
// rejected and no editor is returned. When the order discount and the line
// discounts disagree, the order discount is redistributed across the lines
// right away.
func NewOrderEditor(orderID string, existing []EditorItem, orderDiscount decimal.Decimal, policy pricing.TaxPolicy) (*OrderEditor, error) {
	const op = "service.NewOrderEditor"

	if orderDiscount.IsNegative() {
		return nil, opError(op, pricing.ErrNegativeDiscount)
	}

	e := &OrderEditor{
		orderID:          orderID,
		policy:           policy,
		items:            make([]EditorItem, 0, len(existing)),
		discount:         orderDiscount,
		mode:             DiscountAmount,
		direction:        DirectionItems,
		baseline:         make(map[string]EditorItem, len(existing)),
		baselineDiscount: orderDiscount,
	}
	for _, item := range existing {
		e.items = append(e.items, item)
		if item.Persisted() {
			e.baseline[item.ID] = item
		}
	}

	if err := pricing.ValidateItems(op, e.lineItems()); err != nil {
		return nil, err
	}

	if pricing.Diverged(orderDiscount, e.lineItems()) {
		if err := e.allocate(orderDiscount); err != nil {
			return nil, err
		}
		return e, nil
	}
	if _, err := pricing.RecomputeOrderFromItems(e.lineItems(), policy); err != nil {
		return nil, err
	}
	return e, nil
}

// OrderID returns the id of the order being edited, or "" for a new order.
func (e *OrderEditor) OrderID() string {
	return e.orderID
}

// Items returns a copy of the current lines.
func (e *OrderEditor) Items() []EditorItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]EditorItem(nil), e.items...)
}

// Discount returns the current order discount amount.
func (e *OrderEditor) Discount() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discount
}

// Direction returns the direction of the last discount edit.
func (e *OrderEditor) Direction() Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.direction
}

// Mode returns how the order discount was last entered.
func (e *OrderEditor) Mode() DiscountMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// AddItem adds a new line. Adding a product that is already among the new lines
// increases that line's quantity instead. The new line enters with discount 0
// and a fully allocated order discount is left alone, unless the discount was entered as a
// percentage of the order, in which case it is recomputed for the larger order
// and redistributed.
func (e *OrderEditor) AddItem(item EditorItem) error {
	const op = "service.AddItem"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writable(op); err != nil {
		return err
	}
	if err := pricing.ValidateItems(op, []pricing.LineItem{item.lineItem()}); err != nil {
		return err
	}
	if item.Quantity <= 0 {
		return opError(op, ErrInvalidQuantity)
	}

	item.ID = ""
	item.Discount = decimal.Zero

	merged := false
	for i := range e.items {
		if !e.items[i].Persisted() && e.items[i].ProductID == item.ProductID {
			e.items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		e.items = append(e.items, item)
	}

	if e.mode == DiscountPercent && e.direction == DirectionOrder {
		return e.allocate(pricing.DiscountFromPercent(pricing.GrossTotal(e.lineItems()), e.percent))
	}
	// An order discount that is not fully carried by the lines still has to be
	// distributed, now including the new line.
	if pricing.Diverged(e.discount, e.lineItems()) {
		e.direction = DirectionOrder
	} else {
		e.direction = DirectionItems
	}
	return nil
}

// SetQuantity changes the quantity of the line at index. A quantity of 0
// removes the line. A lower quantity scales the line's discount down in
// proportion and takes the difference off the order discount. A higher
// quantity leaves both discounts unchanged.
func (e *OrderEditor) SetQuantity(index, qty int) error {
	const op = "service.SetQuantity"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writable(op); err != nil {
		return err
	}
	if err := e.checkIndex(op, index); err != nil {
		return err
	}
	if qty < 0 {
		return opError(op, ErrNegativeQuantity)
	}
	if qty == 0 {
		e.remove(index)
		return nil
	}

	item := &e.items[index]
	if qty < item.Quantity {
		scaled := pricing.ScaleDiscount(item.Discount, item.Quantity, qty)
		e.discount = pricing.ReduceDiscount(e.discount, item.Discount.Sub(scaled))
		item.Discount = scaled
	}
	item.Quantity = qty
	return nil
}

// RemoveItem removes the line at index and takes its discount off the order
// discount.
func (e *OrderEditor) RemoveItem(index int) error {
	const op = "service.RemoveItem"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writable(op); err != nil {
		return err
	}
	if err := e.checkIndex(op, index); err != nil {
		return err
	}
	e.remove(index)
	return nil
}

// SetOrderDiscount sets the order discount amount and distributes it across
// the lines. A negative amount or one above the order total resets the order
// discount and every line discount to 0 and returns the error.
func (e *OrderEditor) SetOrderDiscount(amount decimal.Decimal) error {
	const op = "service.SetOrderDiscount"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writable(op); err != nil {
		return err
	}
	e.mode = DiscountAmount
	e.percent = decimal.Zero
	return e.allocate(amount)
}

// SetOrderDiscountPercent sets the order discount as a percentage of the order
// total and distributes it across the lines.
func (e *OrderEditor) SetOrderDiscountPercent(percent decimal.Decimal) error {
	const op = "service.SetOrderDiscountPercent"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writable(op); err != nil {
		return err
	}
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		e.clearDiscounts()
		return opError(op, ErrInvalidPercent)
	}

	e.mode = DiscountPercent
	e.percent = percent
	return e.allocate(pricing.DiscountFromPercent(pricing.GrossTotal(e.lineItems()), percent))
}

// SetItemDiscount sets the discount of the line at index. The order discount
// becomes the sum of all line discounts. An amount that is negative or above
// the line total resets that line's discount to 0 and returns the error.
func (e *OrderEditor) SetItemDiscount(index int, amount decimal.Decimal) error {
	const op = "service.SetItemDiscount"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writable(op); err != nil {
		return err
	}
	if err := e.checkIndex(op, index); err != nil {
		return err
	}
	return e.setItemDiscount(op, index, amount)
}

// SetItemDiscountPercent sets the discount of the line at index as a
// percentage of that line's total.
func (e *OrderEditor) SetItemDiscountPercent(index int, percent decimal.Decimal) error {
	const op = "service.SetItemDiscountPercent"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writable(op); err != nil {
		return err
	}
	if err := e.checkIndex(op, index); err != nil {
		return err
	}
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		e.clearItemDiscount(index)
		return opError(op, ErrInvalidPercent)
	}

	base := pricing.LineGross(e.items[index].lineItem())
	return e.setItemDiscount(op, index, pricing.DiscountFromPercent(base, percent))
}

// Totals reconciles the order and returns the allocation for display.
func (e *OrderEditor) Totals() (pricing.Allocation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconcile()
}

// Changes lists what the session changed relative to the order as loaded.
func (e *OrderEditor) Changes() []history.Change {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changes()
}

// Commit reconciles the order one last time and returns everything needed to
// persist it. The editor accepts no further edits afterwards.
func (e *OrderEditor) Commit() (*CommitRequest, error) {
	const op = "service.Commit"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writable(op); err != nil {
		return nil, err
	}
	if len(e.items) == 0 && len(e.removed) == 0 {
		return nil, opError(op, ErrEmptyOrder)
	}

	a, err := e.reconcile()
	if err != nil {
		return nil, err
	}
	for i := range e.items {
		e.items[i].Discount = a.Items[i].Discount
	}
	e.discount = a.Discount

	req := newCommitRequest(e.orderID, e.items, e.removed, a)
	req.Changes = e.changes()
	e.committed = true
	return req, nil
}

func (e *OrderEditor) writable(op string) error {
	if e.committed {
		return opError(op, ErrSessionClosed)
	}
	return nil
}

func (e *OrderEditor) checkIndex(op string, index int) error {
	if index < 0 || index >= len(e.items) {
		return opError(op, ErrItemNotFound)
	}
	return nil
}

func (e *OrderEditor) lineItems() []pricing.LineItem {
	out := make([]pricing.LineItem, len(e.items))
	for i, item := range e.items {
		out[i] = item.lineItem()
	}
	return out
}

func (e *OrderEditor) remove(index int) {
	item := e.items[index]
	e.discount = pricing.ReduceDiscount(e.discount, item.Discount)
	e.items = append(e.items[:index], e.items[index+1:]...)
	if item.Persisted() {
		e.removed = append(e.removed, item)
	}
}

// allocate distributes amount over the current lines. A rejected amount clears
// every discount.
func (e *OrderEditor) allocate(amount decimal.Decimal) error {
	e.direction = DirectionOrder

	a, err := pricing.AllocateFromOrderDiscount(e.lineItems(), amount, e.policy)
	if err != nil {
		e.clearDiscounts()
		return err
	}
	for i := range e.items {
		e.items[i].Discount = a.Items[i].Discount
	}
	e.discount = a.Discount
	return nil
}

func (e *OrderEditor) clearDiscounts() {
	for i := range e.items {
		e.items[i].Discount = decimal.Zero
	}
	e.discount = decimal.Zero
	e.percent = decimal.Zero
}

// setItemDiscount makes the line's discount authoritative. A rejected amount
// clears that line's discount.
func (e *OrderEditor) setItemDiscount(op string, index int, amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		e.clearItemDiscount(index)
		return opError(op, pricing.ErrNegativeDiscount)
	case amount.GreaterThan(pricing.LineGross(e.items[index].lineItem())):
		e.clearItemDiscount(index)
		return opError(op, pricing.ErrItemDiscountExceedsLine)
	}
	e.putItemDiscount(index, amount)
	return nil
}

func (e *OrderEditor) clearItemDiscount(index int) {
	e.putItemDiscount(index, decimal.Zero)
}

func (e *OrderEditor) putItemDiscount(index int, amount decimal.Decimal) {
	e.direction = DirectionItems
	e.mode = DiscountAmount
	e.percent = decimal.Zero
	e.items[index].Discount = amount
	e.discount = pricing.SumDiscounts(e.lineItems())
}

func (e *OrderEditor) reconcile() (pricing.Allocation, error) {
	items := e.lineItems()
	if e.direction == DirectionOrder {
		return pricing.AllocateFromOrderDiscount(items, e.discount, e.policy)
	}
	return pricing.Reconcile(items, e.discount, e.policy)
}

func (e *OrderEditor) changes() []history.Change {
	var out []history.Change

	for _, item := range e.items {
		if !item.Persisted() {
			c := history.New(e.orderID, history.ActionAddItem)
			fillItem(&c, item)
			c.NewQuantity = item.Quantity
			c.NewDiscount = item.Discount
			out = append(out, c)
			continue
		}

		before, ok := e.baseline[item.ID]
		if !ok {
			continue
		}
		if before.Quantity != item.Quantity {
			c := history.New(e.orderID, history.ActionUpdateQuantity)
			fillItem(&c, item)
			c.OldQuantity = before.Quantity
			c.NewQuantity = item.Quantity
			out = append(out, c)
		}
		if !before.Discount.Equal(item.Discount) {
			c := history.New(e.orderID, history.ActionUpdateDiscount)
			fillItem(&c, item)
			c.OldDiscount = before.Discount
			c.NewDiscount = item.Discount
			out = append(out, c)
		}
	}

	for _, item := range e.removed {
		c := history.New(e.orderID, history.ActionRemoveItem)
		fillItem(&c, item)
		c.OldQuantity = item.Quantity
		c.OldDiscount = item.Discount
		if before, ok := e.baseline[item.ID]; ok {
			c.OldQuantity = before.Quantity
			c.OldDiscount = before.Discount
			c.Quantity = before.Quantity
		}
		out = append(out, c)
	}

	if !e.baselineDiscount.Equal(e.discount) {
		c := history.New(e.orderID, history.ActionUpdateOrderDiscount)
		c.OldDiscount = e.baselineDiscount
		c.NewDiscount = e.discount
		out = append(out, c)
	}

	return out
}

func fillItem(c *history.Change, item EditorItem) {
	c.ProductID = item.ProductID
	c.ProductName = item.Name
	c.Quantity = item.Quantity
	c.UnitPrice = item.UnitPrice
}

// reopen undoes Commit after the commit could not be handed off.
func (e *OrderEditor) reopen() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.committed = false
}
