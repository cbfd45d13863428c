// Package cart holds the working line-item list for one in-progress sale.
// It never touches the network: stock ceilings come from the product snapshot
// captured when a line is added, and the gateway re-validates everything at
// checkout.
package cart

import (
	"bumdespos/terminal/internal/domain"
)

// Line is one cart row. UnitPrice is copied at add time and not live-updated;
// stockSnapshot is the last-known stock for the product and bounds Qty.
type Line struct {
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	Unit          string `json:"unit"`
	UnitPrice     int64  `json:"unitPrice"`
	Qty           int    `json:"qty"`
	StockSnapshot int    `json:"stockSnapshot"`
}

type Cart struct {
	ID         string `json:"id"`
	Lines      []Line `json:"lines"`
	CustomerID string `json:"customerId,omitempty"`
	Note       string `json:"note,omitempty"`
	AmountPaid int64  `json:"amountPaid"`
	Method     string `json:"method"`
}

// Notice is a non-fatal warning surfaced to the cashier (toast-style). It is
// deliberately not an error: the mutation either applied in clamped form or
// was skipped, and the cart is always left consistent.
type Notice string

const (
	NoticeOutOfStock   Notice = "out of stock"
	NoticeExceedsStock Notice = "quantity exceeds stock"
	NoticeClamped      Notice = "quantity adjusted to stock"
)

func New(id string) *Cart {
	return &Cart{
		ID:     id,
		Lines:  make([]Line, 0, 8),
		Method: domain.PaymentMethodCash,
	}
}

// AddLine inserts a new line with qty 1, or increments the existing line for
// the same product. Exactly one line exists per product id. The returned
// notice is empty when the add applied.
func (c *Cart) AddLine(p domain.Product) Notice {
	for i := range c.Lines {
		if c.Lines[i].ProductID != p.ID {
			continue
		}
		// Refresh the snapshot: the caller just fetched the product. A
		// shrunken snapshot pulls the existing quantity back into range.
		c.Lines[i].StockSnapshot = p.StockQty
		if clamped := clampQty(c.Lines[i].Qty, p.StockQty); clamped != c.Lines[i].Qty {
			c.Lines[i].Qty = clamped
			return NoticeClamped
		}
		if c.Lines[i].Qty+1 > p.StockQty {
			return NoticeExceedsStock
		}
		c.Lines[i].Qty++
		return ""
	}

	if p.StockQty <= 0 {
		return NoticeOutOfStock
	}
	c.Lines = append(c.Lines, Line{
		ProductID:     p.ID,
		ProductName:   p.Name,
		Unit:          p.Unit,
		UnitPrice:     p.SellPrice,
		Qty:           1,
		StockSnapshot: p.StockQty,
	})
	return ""
}

// SetQuantity clamps the requested quantity to the stock snapshot, never
// below 1, and applies it. An out-of-range request is silently clamped; the
// notice lets the UI mention the adjustment. Unknown product ids are a no-op.
func (c *Cart) SetQuantity(productID string, qty int) Notice {
	for i := range c.Lines {
		if c.Lines[i].ProductID != productID {
			continue
		}
		safe := clampQty(qty, c.Lines[i].StockSnapshot)
		c.Lines[i].Qty = safe
		if safe != qty {
			return NoticeClamped
		}
		return ""
	}
	return ""
}

// clampQty bounds a quantity to the stock snapshot with the 1 floor applied
// last, so a line never holds less than 1 even when the snapshot is 0.
func clampQty(qty, snapshot int) int {
	if qty > snapshot {
		qty = snapshot
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}

// RemoveLine deletes the line for the product; no-op when absent.
func (c *Cart) RemoveLine(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, line := range c.Lines {
		sum += line.UnitPrice * int64(line.Qty)
	}
	return sum
}

// GrandTotal equals the subtotal: no tax or discount modeling at the counter.
func (c *Cart) GrandTotal() int64 {
	return c.Subtotal()
}

func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Clone returns a deep copy so callers can hold a stable view while the
// original keeps mutating.
func (c *Cart) Clone() *Cart {
	dup := *c
	dup.Lines = append(make([]Line, 0, len(c.Lines)), c.Lines...)
	return &dup
}
