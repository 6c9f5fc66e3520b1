package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/pkg/models"
)

// Memory is an in-process Store used by tests and local runs without Postgres.
// It mirrors the unique and cascade rules of the Postgres schema.
type Memory struct {
	mu sync.Mutex

	users      map[int]models.User
	customers  map[int]models.Customer
	categories map[int]models.Category
	products   map[int]models.Product
	orders     map[int]models.Order
	items      map[int]models.OrderItem

	seq     map[string]int
	nowFunc func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:      make(map[int]models.User),
		customers:  make(map[int]models.Customer),
		categories: make(map[int]models.Category),
		products:   make(map[int]models.Product),
		orders:     make(map[int]models.Order),
		items:      make(map[int]models.OrderItem),
		seq:        make(map[string]int),
		nowFunc:    time.Now,
	}
}

func (m *Memory) next(table string) int {
	m.seq[table]++
	return m.seq[table]
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("create user %q: %w", user.Email, apperr.ErrConflict)
		}
	}
	user.ID = m.next("users")
	user.CreatedAt = m.nowFunc()
	stored := *user
	stored.Customer = nil
	m.users[user.ID] = stored
	return nil
}

func (m *Memory) GetUser(_ context.Context, id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreateCustomer(_ context.Context, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[customer.UserID]; !ok {
		return fmt.Errorf("create customer: user %d does not exist", customer.UserID)
	}
	for _, c := range m.customers {
		if c.UserID == customer.UserID {
			return fmt.Errorf("create customer for user %d: %w", customer.UserID, apperr.ErrConflict)
		}
	}
	customer.ID = m.next("customers")
	customer.CreatedAt = m.nowFunc()
	stored := *customer
	stored.User = nil
	m.customers[customer.ID] = stored
	return nil
}

func (m *Memory) GetCustomer(_ context.Context, id int) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.withUser(c), nil
}

func (m *Memory) GetCustomerByUser(_ context.Context, userID int) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.customers {
		if c.UserID == userID {
			return m.withUser(c), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListCustomers(_ context.Context) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, *m.withUser(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateCustomer(_ context.Context, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[customer.ID]; !ok {
		return ErrNotFound
	}
	for _, c := range m.customers {
		if c.ID != customer.ID && c.UserID == customer.UserID {
			return fmt.Errorf("update customer %d: %w", customer.ID, apperr.ErrConflict)
		}
	}
	stored := *customer
	stored.User = nil
	m.customers[customer.ID] = stored
	return nil
}

func (m *Memory) DeleteCustomer(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[id]; !ok {
		return ErrNotFound
	}
	delete(m.customers, id)
	for oid, o := range m.orders {
		if o.CustomerID == id {
			m.deleteOrderLocked(oid)
		}
	}
	return nil
}

func (m *Memory) CreateCategory(_ context.Context, category *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.categories {
		if strings.EqualFold(c.Name, category.Name) {
			return fmt.Errorf("create category %q: %w", category.Name, apperr.ErrConflict)
		}
	}
	category.ID = m.next("categories")
	category.CreatedAt = m.nowFunc()
	m.categories[category.ID] = *category
	return nil
}

func (m *Memory) GetCategory(_ context.Context, id int) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) ListCategories(_ context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	product.ID = m.next("products")
	product.CreatedAt = m.nowFunc()
	m.products[product.ID] = *product
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id int) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListProducts(_ context.Context, filter ProductFilter) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		if filter.CategoryID != 0 && p.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.Product{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[order.CustomerID]; !ok {
		return fmt.Errorf("create order: customer %d does not exist", order.CustomerID)
	}
	order.ID = m.next("orders")
	order.CreatedAt = m.nowFunc()
	m.orders[order.ID] = models.Order{ID: order.ID, CustomerID: order.CustomerID, CreatedAt: order.CreatedAt}
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id int) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *Memory) UpdateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	stored.CustomerID = order.CustomerID
	m.orders[order.ID] = stored
	return nil
}

func (m *Memory) DeleteOrder(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	m.deleteOrderLocked(id)
	return nil
}

func (m *Memory) deleteOrderLocked(id int) {
	delete(m.orders, id)
	for iid, it := range m.items {
		if it.OrderID == id {
			delete(m.items, iid)
		}
	}
}

func (m *Memory) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[item.OrderID]; !ok {
		return fmt.Errorf("create order item: order %d does not exist", item.OrderID)
	}
	if _, ok := m.products[item.ProductID]; !ok {
		return fmt.Errorf("create order item: product %d does not exist", item.ProductID)
	}
	item.ID = m.next("orders_products")
	item.CreatedAt = m.nowFunc()
	m.items[item.ID] = *item
	return nil
}

func (m *Memory) FindOrder(_ context.Context, id int) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.hydrate(o), nil
}

func (m *Memory) FindOrders(_ context.Context, filter OrderFilter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Order, 0)
	for _, o := range m.orders {
		if filter.UserID != 0 {
			c, ok := m.customers[o.CustomerID]
			if !ok || c.UserID != filter.UserID {
				continue
			}
		}
		out = append(out, *m.hydrate(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// InTx runs fn against a copy of the store and publishes the copy only when
// fn succeeds. Other callers block for the duration of the transaction.
func (m *Memory) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := m.cloneLocked()
	if err := fn(tx); err != nil {
		return err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	m.users, m.customers, m.categories = tx.users, tx.customers, tx.categories
	m.products, m.orders, m.items, m.seq = tx.products, tx.orders, tx.items, tx.seq
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) cloneLocked() *Memory {
	c := NewMemory()
	c.nowFunc = m.nowFunc
	for k, v := range m.users {
		c.users[k] = v
	}
	for k, v := range m.customers {
		c.customers[k] = v
	}
	for k, v := range m.categories {
		c.categories[k] = v
	}
	for k, v := range m.products {
		c.products[k] = v
	}
	for k, v := range m.orders {
		c.orders[k] = v
	}
	for k, v := range m.items {
		c.items[k] = v
	}
	for k, v := range m.seq {
		c.seq[k] = v
	}
	return c
}

func (m *Memory) withUser(c models.Customer) *models.Customer {
	if u, ok := m.users[c.UserID]; ok {
		c.User = &u
	}
	return &c
}

func (m *Memory) hydrate(o models.Order) *models.Order {
	if c, ok := m.customers[o.CustomerID]; ok {
		o.Customer = m.withUser(c)
	}

	o.Items = make([]models.OrderLine, 0)
	for _, it := range m.items {
		if it.OrderID != o.ID {
			continue
		}
		p := m.products[it.ProductID]
		o.Items = append(o.Items, models.OrderLine{
			OrderItem:   it,
			Name:        p.Name,
			Price:       p.Price,
			Image:       p.Image,
			Description: p.Description,
		})
	}
	sort.Slice(o.Items, func(i, j int) bool { return o.Items[i].ID < o.Items[j].ID })
	o.ComputeTotals()
	return &o
}
