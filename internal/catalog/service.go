// Package catalog serves the read-mostly product and category listings.
package catalog

import (
	"context"
	"errors"

	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/internal/store"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPageSize = 50

type NewProduct struct {
	Name        string
	Price       decimal.Decimal
	Image       string
	Description string
	CategoryID  int
}

type Service struct {
	store  store.Store
	logger *logrus.Logger
}

func NewService(st store.Store, logger *logrus.Logger) *Service {
	return &Service{store: st, logger: logger}
}

func (s *Service) Products(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultPageSize
	}
	return s.store.ListProducts(ctx, filter)
}

func (s *Service) Product(ctx context.Context, id int) (*models.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, err
	}
	return p, nil
}

// CreateProduct stores a product under an existing category.
func (s *Service) CreateProduct(ctx context.Context, in NewProduct) (*models.Product, error) {
	if _, err := s.store.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("category")
		}
		return nil, err
	}

	p := &models.Product{
		Name:        in.Name,
		Price:       in.Price.Round(2),
		Image:       in.Image,
		Description: in.Description,
		CategoryID:  in.CategoryID,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id":  p.ID,
		"category_id": p.CategoryID,
		"price":       p.Price.String(),
	}).Info("Product created")
	return p, nil
}

func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, name, image string) (*models.Category, error) {
	c := &models.Category{Name: name, Image: image}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.logger.WithField("category_id", c.ID).Info("Category created")
	return c, nil
}
