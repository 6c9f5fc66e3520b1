package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/internal/events"
	"github.com/jogardn/storefront/internal/store"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu      sync.Mutex
	created []events.OrderCreatedEvent
	added   []events.OrderItemAddedEvent
	err     error
}

func (p *fakePublisher) PublishOrderCreated(_ context.Context, event events.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return p.err
}

func (p *fakePublisher) PublishOrderItemAdded(_ context.Context, event events.OrderItemAddedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, event)
	return p.err
}

// countingStore records reads and writes that touch order items.
type countingStore struct {
	store.Store
	calls int
}

func (c *countingStore) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	c.calls++
	return c.Store.GetProduct(ctx, id)
}

func (c *countingStore) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	c.calls++
	return c.Store.GetOrder(ctx, id)
}

func (c *countingStore) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	c.calls++
	return c.Store.CreateOrderItem(ctx, item)
}

type fixture struct {
	store     *store.Memory
	publisher *fakePublisher
	service   *Service
	user      *models.User
	customer  *models.Customer
	coffee    *models.Product
	tea       *models.Product
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	user := &models.User{Email: "buyer@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, st.CreateUser(ctx, user))
	customer := &models.Customer{Name: "Lu", LastName: "Park", Phone: "555-0101", UserID: user.ID}
	require.NoError(t, st.CreateCustomer(ctx, customer))
	category := &models.Category{Name: "Drinks"}
	require.NoError(t, st.CreateCategory(ctx, category))
	coffee := &models.Product{Name: "Coffee", Price: decimal.RequireFromString("4.50"), CategoryID: category.ID}
	require.NoError(t, st.CreateProduct(ctx, coffee))
	tea := &models.Product{Name: "Tea", Price: decimal.RequireFromString("3.00"), CategoryID: category.ID}
	require.NoError(t, st.CreateProduct(ctx, tea))

	publisher := &fakePublisher{}
	return &fixture{
		store:     st,
		publisher: publisher,
		service:   NewService(st, publisher, quietLogger(), opts),
		user:      user,
		customer:  customer,
		coffee:    coffee,
		tea:       tea,
	}
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	all, err := f.store.FindOrders(context.Background(), store.OrderFilter{})
	require.NoError(t, err)
	return len(all)
}

func TestCreateSimple(t *testing.T) {
	f := newFixture(t, Options{})

	order, err := f.service.CreateSimple(context.Background(), f.customer.ID)
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, f.customer.ID, order.CustomerID)
	assert.Empty(t, order.Items)
	assert.False(t, order.CreatedAt.IsZero())

	require.Len(t, f.publisher.created, 1)
	assert.Equal(t, order.ID, f.publisher.created[0].OrderID)
	assert.Equal(t, 0, f.publisher.created[0].ItemsCount)
}

func TestCreateSimpleUnknownCustomer(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.service.CreateSimple(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err, "customer"))
	assert.Equal(t, "customer not found", err.Error())
	assert.Equal(t, 0, f.orderCount(t))
	assert.Empty(t, f.publisher.created)
}

func TestCreateWithProductsComposition(t *testing.T) {
	f := newFixture(t, Options{})

	order, err := f.service.CreateWithProducts(context.Background(), f.customer.ID, []Line{
		{ProductID: f.coffee.ID, Amount: 2},
		{ProductID: f.tea.ID, Amount: 1},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 2)
	assert.Equal(t, f.coffee.ID, order.Items[0].ProductID)
	assert.Equal(t, 2, order.Items[0].Amount)
	assert.Equal(t, "Coffee", order.Items[0].Name)
	assert.Equal(t, f.tea.ID, order.Items[1].ProductID)
	assert.Equal(t, 1, order.Items[1].Amount)
	assert.True(t, decimal.RequireFromString("12.00").Equal(order.Total))

	require.NotNil(t, order.Customer)
	assert.Equal(t, f.customer.ID, order.Customer.ID)
	require.NotNil(t, order.Customer.User)
	assert.Equal(t, "buyer@example.com", order.Customer.User.Email)

	require.Len(t, f.publisher.created, 1)
	assert.Equal(t, 2, f.publisher.created[0].ItemsCount)
}

func TestCreateWithProductsEmptyList(t *testing.T) {
	f := newFixture(t, Options{})

	order, err := f.service.CreateWithProducts(context.Background(), f.customer.ID, nil)
	require.NoError(t, err)
	assert.NotNil(t, order.Items)
	assert.Empty(t, order.Items)
	assert.Equal(t, 1, f.orderCount(t))
}

func TestCreateWithProductsUnknownCustomer(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.service.CreateWithProducts(context.Background(), 999, []Line{{ProductID: f.coffee.ID, Amount: 1}})
	assert.True(t, apperr.IsNotFound(err, "customer"))
	assert.Equal(t, 0, f.orderCount(t))
}

func TestCreateWithProductsKeepsRowsWrittenBeforeMissingProduct(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.service.CreateWithProducts(ctx, f.customer.ID, []Line{
		{ProductID: f.coffee.ID, Amount: 2},
		{ProductID: 999, Amount: 1},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err, "product"))
	assert.Equal(t, "product with id 999 not found", err.Error())
	assert.Empty(t, f.publisher.created)

	orders, err := f.service.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, f.coffee.ID, orders[0].Items[0].ProductID)
	assert.Equal(t, 2, orders[0].Items[0].Amount)
}

func TestCreateWithProductsAtomicRollsBack(t *testing.T) {
	f := newFixture(t, Options{AtomicCreate: true})
	ctx := context.Background()

	_, err := f.service.CreateWithProducts(ctx, f.customer.ID, []Line{
		{ProductID: f.coffee.ID, Amount: 2},
		{ProductID: 999, Amount: 1},
	})
	assert.True(t, apperr.IsNotFound(err, "product"))
	assert.Equal(t, 0, f.orderCount(t))

	order, err := f.service.CreateWithProducts(ctx, f.customer.ID, []Line{{ProductID: f.tea.ID, Amount: 3}})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, f.orderCount(t))
}

func TestCreateWithProductsRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.service.CreateWithProducts(context.Background(), f.customer.ID, []Line{
		{ProductID: f.coffee.ID, Amount: 1},
		{ProductID: f.tea.ID, Amount: 0},
	})
	var invalid *apperr.ValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Fields, "products[1].amount")
	assert.Equal(t, 0, f.orderCount(t))
}

func TestAddItem(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	order, err := f.service.CreateSimple(ctx, f.customer.ID)
	require.NoError(t, err)

	item, err := f.service.AddItem(ctx, order.ID, f.tea.ID, 2)
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.Equal(t, order.ID, item.OrderID)
	assert.Equal(t, f.tea.ID, item.ProductID)
	assert.Equal(t, 2, item.Amount)

	require.Len(t, f.publisher.added, 1)
	assert.Equal(t, item.ID, f.publisher.added[0].ItemID)

	got, err := f.service.FindOne(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, item.ID, got.Items[0].ID)
}

func TestAddItemTwiceCreatesSeparateRows(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	order, err := f.service.CreateSimple(ctx, f.customer.ID)
	require.NoError(t, err)

	first, err := f.service.AddItem(ctx, order.ID, f.coffee.ID, 1)
	require.NoError(t, err)
	second, err := f.service.AddItem(ctx, order.ID, f.coffee.ID, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := f.service.FindOne(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
}

func TestAddItemRejectsAmountBeforeTouchingStore(t *testing.T) {
	f := newFixture(t, Options{})
	counting := &countingStore{Store: f.store}
	svc := NewService(counting, nil, quietLogger(), Options{})

	for _, amount := range []int{0, -3} {
		_, err := svc.AddItem(context.Background(), 1, f.coffee.ID, amount)
		assert.True(t, apperr.IsValidation(err))
	}
	assert.Equal(t, 0, counting.calls)
}

func TestAddItemNotFound(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	order, err := f.service.CreateSimple(ctx, f.customer.ID)
	require.NoError(t, err)

	_, err = f.service.AddItem(ctx, order.ID, 999, 1)
	assert.True(t, apperr.IsNotFound(err, "product"))
	assert.Equal(t, "product not found", err.Error())

	_, err = f.service.AddItem(ctx, 999, f.coffee.ID, 1)
	assert.True(t, apperr.IsNotFound(err, "order"))

	// Product is checked before the order.
	_, err = f.service.AddItem(ctx, 999, 999, 1)
	assert.True(t, apperr.IsNotFound(err, "product"))
}

func TestFindOneNotFound(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.service.FindOne(context.Background(), 12345)
	assert.True(t, apperr.IsNotFound(err, "order"))
	assert.Equal(t, "order not found", err.Error())
}

func TestFindByUser(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first, err := f.service.CreateSimple(ctx, f.customer.ID)
	require.NoError(t, err)
	second, err := f.service.CreateWithProducts(ctx, f.customer.ID, []Line{{ProductID: f.coffee.ID, Amount: 1}})
	require.NoError(t, err)

	orders, err := f.service.FindByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	ids := []int{orders[0].ID, orders[1].ID}
	assert.ElementsMatch(t, []int{first.ID, second.ID}, ids)
	for _, o := range orders {
		assert.Equal(t, f.customer.ID, o.CustomerID)
	}
}

func TestFindByUserWithoutProfile(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	loner := &models.User{Email: "loner@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, f.store.CreateUser(ctx, loner))

	orders, err := f.service.FindByUser(ctx, loner.ID)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, Options{})
	f.publisher.err = errors.New("kafka: broker unavailable")
	ctx := context.Background()

	order, err := f.service.CreateWithProducts(ctx, f.customer.ID, []Line{{ProductID: f.tea.ID, Amount: 1}})
	require.NoError(t, err)

	_, err = f.service.AddItem(ctx, order.ID, f.coffee.ID, 1)
	require.NoError(t, err)

	assert.Len(t, f.publisher.created, 1)
	assert.Len(t, f.publisher.added, 1)
}

func TestNilPublisher(t *testing.T) {
	f := newFixture(t, Options{})
	svc := NewService(f.store, nil, quietLogger(), Options{})

	_, err := svc.CreateSimple(context.Background(), f.customer.ID)
	assert.NoError(t, err)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	other := &models.User{Email: "other@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, f.store.CreateUser(ctx, other))
	otherCustomer := &models.Customer{Name: "Mo", LastName: "Kim", Phone: "555-0102", UserID: other.ID}
	require.NoError(t, f.store.CreateCustomer(ctx, otherCustomer))

	order, err := f.service.CreateWithProducts(ctx, f.customer.ID, []Line{{ProductID: f.coffee.ID, Amount: 1}})
	require.NoError(t, err)

	updated, err := f.service.Update(ctx, order.ID, otherCustomer.ID)
	require.NoError(t, err)
	assert.Equal(t, otherCustomer.ID, updated.CustomerID)
	assert.Len(t, updated.Items, 1)

	_, err = f.service.Update(ctx, order.ID, 999)
	assert.True(t, apperr.IsNotFound(err, "customer"))
	_, err = f.service.Update(ctx, 999, otherCustomer.ID)
	assert.True(t, apperr.IsNotFound(err, "order"))

	require.NoError(t, f.service.Delete(ctx, order.ID))
	_, err = f.service.FindOne(ctx, order.ID)
	assert.True(t, apperr.IsNotFound(err, "order"))

	err = f.service.Delete(ctx, order.ID)
	assert.True(t, apperr.IsNotFound(err, "order"))
}
