// Package store is the relational persistence contract for users, customers,
// catalog entries, orders and order line items.
package store

import (
	"context"
	"errors"

	"github.com/jogardn/storefront/pkg/models"
)

// ErrNotFound is returned by single-row lookups, updates and deletes that match nothing.
// Unique-constraint violations are reported as apperr.ErrConflict.
var ErrNotFound = errors.New("record not found")

type ProductFilter struct {
	CategoryID int
	Limit      int
	Offset     int
}

// OrderFilter selects hydrated orders. A zero UserID selects every order.
type OrderFilter struct {
	UserID int
}

// Store offers atomic single-row operations. Multi-row atomicity is only
// available through InTx.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// CreateCustomer fails with apperr.ErrConflict when the user already has a customer.
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	// GetCustomer returns the customer with its owning user attached.
	GetCustomer(ctx context.Context, id int) (*models.Customer, error)
	GetCustomerByUser(ctx context.Context, userID int) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	UpdateCustomer(ctx context.Context, customer *models.Customer) error
	DeleteCustomer(ctx context.Context, id int) error

	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id int) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)

	CreateOrder(ctx context.Context, order *models.Order) error
	// GetOrder returns the order header only.
	GetOrder(ctx context.Context, id int) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id int) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error

	// FindOrder returns the order hydrated with customer, user and product lines.
	FindOrder(ctx context.Context, id int) (*models.Order, error)
	// FindOrders returns hydrated orders, newest first.
	FindOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)

	// InTx runs fn against a transactional view of the store. Every write made
	// through tx is discarded when fn returns an error.
	InTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
