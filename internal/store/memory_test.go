package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) (*Memory, *models.Customer, *models.Product) {
	t.Helper()
	ctx := context.Background()
	m := NewMemory()

	user := &models.User{Email: "ana@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, m.CreateUser(ctx, user))
	customer := &models.Customer{Name: "Ana", LastName: "Diaz", Phone: "555", UserID: user.ID}
	require.NoError(t, m.CreateCustomer(ctx, customer))
	category := &models.Category{Name: "Coffee"}
	require.NoError(t, m.CreateCategory(ctx, category))
	product := &models.Product{Name: "Beans", Price: decimal.RequireFromString("12.50"), CategoryID: category.ID}
	require.NoError(t, m.CreateProduct(ctx, product))

	return m, customer, product
}

func TestMemoryCustomerUniquePerUser(t *testing.T) {
	ctx := context.Background()
	m, customer, _ := seedMemory(t)

	err := m.CreateCustomer(ctx, &models.Customer{Name: "Dup", UserID: customer.UserID})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := m.GetCustomerByUser(ctx, customer.UserID)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)
	require.NotNil(t, got.User)
	assert.Equal(t, "ana@example.com", got.User.Email)
}

func TestMemoryHydratesOrderLinesInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m, customer, product := seedMemory(t)

	order := &models.Order{CustomerID: customer.ID}
	require.NoError(t, m.CreateOrder(ctx, order))
	require.NoError(t, m.CreateOrderItem(ctx, &models.OrderItem{OrderID: order.ID, ProductID: product.ID, Amount: 2}))
	require.NoError(t, m.CreateOrderItem(ctx, &models.OrderItem{OrderID: order.ID, ProductID: product.ID, Amount: 1}))

	got, err := m.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 2, got.Items[0].Amount)
	assert.Equal(t, 1, got.Items[1].Amount)
	assert.Equal(t, "Beans", got.Items[0].Name)
	assert.True(t, decimal.RequireFromString("37.50").Equal(got.Total))
	require.NotNil(t, got.Customer)
	require.NotNil(t, got.Customer.User)
}

func TestMemoryFindOrdersByUser(t *testing.T) {
	ctx := context.Background()
	m, customer, _ := seedMemory(t)

	require.NoError(t, m.CreateOrder(ctx, &models.Order{CustomerID: customer.ID}))
	require.NoError(t, m.CreateOrder(ctx, &models.Order{CustomerID: customer.ID}))

	orders, err := m.FindOrders(ctx, OrderFilter{UserID: customer.UserID})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = m.FindOrders(ctx, OrderFilter{UserID: 4242})
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestMemoryInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m, customer, _ := seedMemory(t)
	boom := errors.New("boom")

	err := m.InTx(ctx, func(tx Store) error {
		if err := tx.CreateOrder(ctx, &models.Order{CustomerID: customer.ID}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	orders, err := m.FindOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestMemoryInTxCommits(t *testing.T) {
	ctx := context.Background()
	m, customer, _ := seedMemory(t)

	var id int
	err := m.InTx(ctx, func(tx Store) error {
		order := &models.Order{CustomerID: customer.ID}
		err := tx.CreateOrder(ctx, order)
		id = order.ID
		return err
	})
	require.NoError(t, err)

	_, err = m.GetOrder(ctx, id)
	assert.NoError(t, err)
}

func TestMemoryDeleteCustomerCascades(t *testing.T) {
	ctx := context.Background()
	m, customer, product := seedMemory(t)

	order := &models.Order{CustomerID: customer.ID}
	require.NoError(t, m.CreateOrder(ctx, order))
	require.NoError(t, m.CreateOrderItem(ctx, &models.OrderItem{OrderID: order.ID, ProductID: product.ID, Amount: 1}))

	require.NoError(t, m.DeleteCustomer(ctx, customer.ID))

	_, err := m.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.DeleteCustomer(ctx, customer.ID), ErrNotFound)
}

func TestMemoryListProductsPaging(t *testing.T) {
	ctx := context.Background()
	m, _, product := seedMemory(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.CreateProduct(ctx, &models.Product{Name: "More", Price: decimal.NewFromInt(1), CategoryID: product.CategoryID}))
	}

	page, err := m.ListProducts(ctx, ProductFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].ID)

	page, err = m.ListProducts(ctx, ProductFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}
