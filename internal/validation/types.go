package validation

import "github.com/shopspring/decimal"

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	CustomerID int `json:"customerId" validate:"required,gt=0"`
}

// ProductLine is one requested product with its quantity.
type ProductLine struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
	Amount    int `json:"amount" validate:"required,min=1"`
}

// CreateOrderWithProductsRequest is the payload for POST /orders/with-products.
type CreateOrderWithProductsRequest struct {
	CustomerID int           `json:"customerId" validate:"required,gt=0"`
	Products   []ProductLine `json:"products" validate:"omitempty,dive"`
}

// AddItemRequest is the payload for POST /orders/add-item.
type AddItemRequest struct {
	OrderID   int `json:"orderId" validate:"required,gt=0"`
	ProductID int `json:"productId" validate:"required,gt=0"`
	Amount    int `json:"amount" validate:"required,min=1"`
}

type UpdateOrderRequest struct {
	CustomerID int `json:"customerId" validate:"required,gt=0"`
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=customer"`
}

// CreateCustomerRequest either links an existing user or carries a new one.
type CreateCustomerRequest struct {
	Name     string             `json:"name" validate:"required,max=255"`
	LastName string             `json:"lastName" validate:"required,max=255"`
	Phone    string             `json:"phone" validate:"required,max=50"`
	UserID   int                `json:"userId" validate:"omitempty,gt=0"`
	User     *CreateUserRequest `json:"user" validate:"omitempty"`
}

type UpdateCustomerRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	LastName *string `json:"lastName" validate:"omitempty,min=1,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,min=1,max=50"`
	UserID   *int    `json:"userId" validate:"omitempty,gt=0"`
}

// ProfileCustomerRequest is the payload for POST /profile/create-customer.
type ProfileCustomerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	LastName string `json:"lastName" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"required,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateCategoryRequest struct {
	Name  string `json:"name" validate:"required,min=3,max=255"`
	Image string `json:"image" validate:"omitempty,url"`
}

type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,min=3,max=255"`
	Price       decimal.Decimal `json:"price" validate:"required,gt=0"`
	Image       string          `json:"image" validate:"omitempty,url"`
	Description string          `json:"description" validate:"omitempty,max=2000"`
	CategoryID  int             `json:"categoryId" validate:"required,gt=0"`
}

// ProductQuery carries the optional listing parameters of GET /products.
type ProductQuery struct {
	CategoryID int `validate:"omitempty,gt=0"`
	Limit      int `validate:"omitempty,gt=0,max=100"`
	Offset     int `validate:"omitempty,gte=0"`
}
