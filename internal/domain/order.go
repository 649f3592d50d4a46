package domain

import "time"

// PaymentMethod identifies how an order was paid
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "COD"
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodUPI  PaymentMethod = "UPI"
)

// Valid reports whether m is one of the supported payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI:
		return true
	}
	return false
}

// Order status labels
const (
	OrderStatusPlacedCOD = "Placed (COD)"
	OrderStatusPaid      = "Paid"
)

// Order is a finalized purchase. Orders are immutable once created and
// live in an append-only ledger keyed by the owning user's email.
type Order struct {
	ID            string        `json:"id"`
	Date          time.Time     `json:"date"`
	UserID        string        `json:"user_id"`
	Items         []CartLine    `json:"items"`
	Total         float64       `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        string        `json:"status"`
}
