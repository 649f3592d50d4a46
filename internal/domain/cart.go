package domain

// CartLine is one cart entry. Product is a snapshot copied at add time,
// so later catalog edits never change the line's pricing.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product_details"`
}

// Cart is the sequence of cart lines, unique by ProductID. Version is a
// monotonic revision bumped on every mutation; checkout uses it as a
// fencing token so a stale attempt cannot finalize a changed cart.
type Cart struct {
	Lines   []CartLine `json:"lines"`
	Version int64      `json:"version"`
}

// Total sums snapshot price times quantity. Snapshot prices only, never a
// live catalog lookup.
func (c *Cart) Total() float64 {
	var total float64
	for _, line := range c.Lines {
		total += line.Product.Price * float64(line.Quantity)
	}
	return total
}

// ItemCount sums quantities across all lines.
func (c *Cart) ItemCount() int {
	count := 0
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

// Line returns the line for productID, or nil when absent.
func (c *Cart) Line(productID string) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
