package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID         int             `json:"id"`
	CustomerID int             `json:"customerId"`
	CreatedAt  time.Time       `json:"createdAt"`
	Customer   *Customer       `json:"customer,omitempty"`
	Items      []OrderLine     `json:"items"`
	Total      decimal.Decimal `json:"total"`
}

// OrderItem is the junction row between an order and a product.
type OrderItem struct {
	ID        int       `json:"id"`
	OrderID   int       `json:"orderId"`
	ProductID int       `json:"productId"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderLine is an OrderItem joined with the product fields needed for display.
type OrderLine struct {
	OrderItem
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// ComputeTotals fills line subtotals and the order total from price and amount.
func (o *Order) ComputeTotals() {
	total := decimal.Zero
	for i := range o.Items {
		line := &o.Items[i]
		line.Subtotal = line.Price.Mul(decimal.NewFromInt(int64(line.Amount)))
		total = total.Add(line.Subtotal)
	}
	o.Total = total
}
