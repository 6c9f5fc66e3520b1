package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	CategoryID  int             `json:"categoryId"`
	CreatedAt   time.Time       `json:"createdAt"`
}
