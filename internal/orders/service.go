// Package orders is the order assembly engine: it creates orders with their
// line items while checking referential integrity, and reads them back fully
// hydrated.
package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/internal/events"
	"github.com/jogardn/storefront/internal/store"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

// EventPublisher receives notifications about committed order changes.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event events.OrderCreatedEvent) error
	PublishOrderItemAdded(ctx context.Context, event events.OrderItemAddedEvent) error
}

// Line is one requested product and its quantity.
type Line struct {
	ProductID int
	Amount    int
}

type Options struct {
	// AtomicCreate rolls back the header and earlier lines when a later
	// product is missing. When false, rows written before the failure stay.
	AtomicCreate bool
}

type Service struct {
	store     store.Store
	publisher EventPublisher
	logger    *logrus.Logger
	opts      Options
}

// NewService builds the engine. publisher may be nil when events are disabled.
func NewService(st store.Store, publisher EventPublisher, logger *logrus.Logger, opts Options) *Service {
	return &Service{
		store:     st,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// CreateSimple creates an order header with no items.
func (s *Service) CreateSimple(ctx context.Context, customerID int) (*models.Order, error) {
	if err := s.requireCustomer(ctx, s.store, customerID); err != nil {
		return nil, err
	}

	order := &models.Order{CustomerID: customerID}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	order.Items = []models.OrderLine{}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"customer_id": customerID,
	}).Info("Order created")

	s.publishCreated(ctx, order)
	return order, nil
}

// CreateWithProducts creates an order and one line item per requested line,
// in input order, then returns the hydrated order. Lines are checked and
// written one at a time: unless AtomicCreate is set, a missing product leaves
// the header and every earlier line persisted.
func (s *Service) CreateWithProducts(ctx context.Context, customerID int, lines []Line) (*models.Order, error) {
	for i, line := range lines {
		if line.Amount < 1 {
			return nil, apperr.Invalid(fmt.Sprintf("products[%d].amount", i), "must be at least 1")
		}
	}

	var orderID int
	create := func(st store.Store) error {
		var err error
		orderID, err = s.assemble(ctx, st, customerID, lines)
		return err
	}

	var err error
	if s.opts.AtomicCreate {
		err = s.store.InTx(ctx, create)
	} else {
		err = create(s.store)
	}
	if err != nil {
		log := s.logger.WithError(err).WithFields(logrus.Fields{
			"customer_id": customerID,
			"items_count": len(lines),
		})
		if orderID != 0 && !s.opts.AtomicCreate {
			log = log.WithField("order_id", orderID)
		}
		log.Warn("Order creation aborted")
		return nil, err
	}

	order, err := s.FindOne(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"customer_id": customerID,
		"items_count": len(order.Items),
	}).Info("Order created with products")

	s.publishCreated(ctx, order)
	return order, nil
}

func (s *Service) assemble(ctx context.Context, st store.Store, customerID int, lines []Line) (int, error) {
	if err := s.requireCustomer(ctx, st, customerID); err != nil {
		return 0, err
	}

	order := &models.Order{CustomerID: customerID}
	if err := st.CreateOrder(ctx, order); err != nil {
		return 0, err
	}

	for _, line := range lines {
		if err := s.requireProduct(ctx, st, line.ProductID, true); err != nil {
			return order.ID, err
		}
		item := &models.OrderItem{OrderID: order.ID, ProductID: line.ProductID, Amount: line.Amount}
		if err := st.CreateOrderItem(ctx, item); err != nil {
			return order.ID, err
		}
	}
	return order.ID, nil
}

// AddItem appends a line to an existing order. Repeated calls for the same
// product create separate rows.
func (s *Service) AddItem(ctx context.Context, orderID, productID, amount int) (*models.OrderItem, error) {
	if amount < 1 {
		return nil, apperr.Invalid("amount", "must be at least 1")
	}
	if err := s.requireProduct(ctx, s.store, productID, false); err != nil {
		return nil, err
	}
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("order")
		}
		return nil, err
	}

	item := &models.OrderItem{OrderID: orderID, ProductID: productID, Amount: amount}
	if err := s.store.CreateOrderItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   orderID,
		"product_id": productID,
		"amount":     amount,
	}).Info("Item added to order")

	if s.publisher != nil {
		err := s.publisher.PublishOrderItemAdded(ctx, events.OrderItemAddedEvent{
			OrderID:   orderID,
			ItemID:    item.ID,
			ProductID: productID,
			Amount:    amount,
		})
		if err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Error("Failed to publish item added event")
		}
	}
	return item, nil
}

// FindOne returns the order with customer, user and product lines.
func (s *Service) FindOne(ctx context.Context, orderID int) (*models.Order, error) {
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("order")
		}
		return nil, err
	}
	return order, nil
}

// FindByUser returns the hydrated orders of the customer linked to userID.
// A user without a customer profile has no orders.
func (s *Service) FindByUser(ctx context.Context, userID int) ([]models.Order, error) {
	return s.store.FindOrders(ctx, store.OrderFilter{UserID: userID})
}

func (s *Service) List(ctx context.Context) ([]models.Order, error) {
	return s.store.FindOrders(ctx, store.OrderFilter{})
}

// Update moves an order to another existing customer.
func (s *Service) Update(ctx context.Context, orderID, customerID int) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("order")
		}
		return nil, err
	}
	if err := s.requireCustomer(ctx, s.store, customerID); err != nil {
		return nil, err
	}

	order.CustomerID = customerID
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("order")
		}
		return nil, err
	}
	return s.FindOne(ctx, orderID)
}

func (s *Service) Delete(ctx context.Context, orderID int) error {
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("order")
		}
		return err
	}
	s.logger.WithField("order_id", orderID).Info("Order deleted")
	return nil
}

func (s *Service) requireCustomer(ctx context.Context, st store.Store, customerID int) error {
	if _, err := st.GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("customer")
		}
		return err
	}
	return nil
}

func (s *Service) requireProduct(ctx context.Context, st store.Store, productID int, withID bool) error {
	if _, err := st.GetProduct(ctx, productID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if withID {
			return apperr.NotFoundWithID("product", productID)
		}
		return apperr.NotFound("product")
	}
	return nil
}

func (s *Service) publishCreated(ctx context.Context, order *models.Order) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishOrderCreated(ctx, events.OrderCreatedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ItemsCount: len(order.Items),
		Total:      order.Total,
		CreatedAt:  order.CreatedAt,
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to publish order created event")
	}
}
