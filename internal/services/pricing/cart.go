package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"pos-terminal/internal/models"
)

// ErrLineNotFound is returned when a line id is not in the cart
var ErrLineNotFound = errors.New("cart line not found")

// Cart is the order in progress. It is not safe for concurrent use; the
// owning session serializes access.
type Cart struct {
	engine *Engine
	lines  []models.CartLine
}

// NewCart creates an empty cart priced by engine
func NewCart(engine *Engine) *Cart {
	return &Cart{engine: engine}
}

// Add prices the selection and either merges it into a matching line or
// appends a new one. Weighted selections always become a new line.
func (c *Cart) Add(item models.CatalogItem, in Input) (models.CartLine, error) {
	priced, err := c.engine.PriceLine(item, in)
	if err != nil {
		return models.CartLine{}, err
	}

	for i := range c.lines {
		line := &c.lines[i]
		if line.Mode == priced.Mode && line.Mergeable(priced.ItemID, priced.Variant) {
			// The snapshot from the first add wins.
			line.Quantity += priced.Quantity
			line.LineTotal = LineTotal(line.UnitPrice, line.Quantity)
			return *line, nil
		}
	}

	c.lines = append(c.lines, priced)
	return priced, nil
}

// SetQuantity sets a FIXED or VARIANT line's quantity, clamped to at least 1
func (c *Cart) SetQuantity(lineID string, quantity int) (models.CartLine, error) {
	line, err := c.find(lineID)
	if err != nil {
		return models.CartLine{}, err
	}
	if line.Mode == models.PricingWeighted {
		return models.CartLine{}, models.NewInvalidInput("quantity", "weighted lines have no quantity; remove and re-weigh instead")
	}
	if quantity < 1 {
		quantity = 1
	}
	line.Quantity = quantity
	line.LineTotal = LineTotal(line.UnitPrice, line.Quantity)
	return *line, nil
}

// Increment adds one to a line's quantity
func (c *Cart) Increment(lineID string) (models.CartLine, error) {
	line, err := c.find(lineID)
	if err != nil {
		return models.CartLine{}, err
	}
	return c.SetQuantity(lineID, line.Quantity+1)
}

// Decrement removes one from a line's quantity. At 1 it is a no-op; removal
// is a separate action.
func (c *Cart) Decrement(lineID string) (models.CartLine, error) {
	line, err := c.find(lineID)
	if err != nil {
		return models.CartLine{}, err
	}
	return c.SetQuantity(lineID, line.Quantity-1)
}

// Remove deletes a line
func (c *Cart) Remove(lineID string) error {
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// Lines returns a copy of the lines in insertion order
func (c *Cart) Lines() []models.CartLine {
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines
func (c *Cart) Len() int {
	return len(c.lines)
}

// Subtotal sums the line totals
func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.lines)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) find(lineID string) (*models.CartLine, error) {
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			return &c.lines[i], nil
		}
	}
	return nil, ErrLineNotFound
}

// Subtotal sums line totals
func Subtotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return models.RoundMoney(total)
}
