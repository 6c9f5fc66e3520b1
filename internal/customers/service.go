// Package customers links user identities to customer profiles and manages
// the customer records themselves.
package customers

import (
	"context"
	"errors"

	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/internal/auth"
	"github.com/jogardn/storefront/internal/store"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type Profile struct {
	Name     string
	LastName string
	Phone    string
}

type NewUser struct {
	Email    string
	Password string
	Role     string
}

// NewCustomer links the profile to UserID, or to a freshly registered User
// when User is set.
type NewCustomer struct {
	Profile
	UserID int
	User   *NewUser
}

// Changes holds the fields of an update; nil fields are left untouched.
type Changes struct {
	Name     *string
	LastName *string
	Phone    *string
	UserID   *int
}

type Service struct {
	store  store.Store
	logger *logrus.Logger
}

func NewService(st store.Store, logger *logrus.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// EnsureProfile returns the customer linked to userID, creating it from p when
// none exists. created reports whether this call inserted the row. A
// concurrent insert that loses on the unique user link returns the winner.
func (s *Service) EnsureProfile(ctx context.Context, userID int, p Profile) (customer *models.Customer, created bool, err error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, false, notFound(err, "user")
	}

	existing, err := s.store.GetCustomerByUser(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	customer = &models.Customer{
		Name:     p.Name,
		LastName: p.LastName,
		Phone:    p.Phone,
		UserID:   userID,
	}
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, false, err
		}
		existing, err := s.store.GetCustomerByUser(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id": customer.ID,
		"user_id":     userID,
	}).Info("Customer profile created")

	return s.reload(ctx, customer.ID)
}

func (s *Service) reload(ctx context.Context, id int) (*models.Customer, bool, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Create stores a customer. With a nested user, the user and the customer are
// written in one transaction and the password is stored only as a hash.
func (s *Service) Create(ctx context.Context, in NewCustomer) (*models.Customer, error) {
	customer := &models.Customer{
		Name:     in.Name,
		LastName: in.LastName,
		Phone:    in.Phone,
		UserID:   in.UserID,
	}

	if in.User == nil {
		if _, err := s.store.GetUser(ctx, in.UserID); err != nil {
			return nil, notFound(err, "user")
		}
		if err := s.store.CreateCustomer(ctx, customer); err != nil {
			return nil, err
		}
	} else {
		hash, err := auth.HashPassword(in.User.Password)
		if err != nil {
			return nil, err
		}
		role := in.User.Role
		if role == "" {
			role = models.RoleCustomer
		}

		err = s.store.InTx(ctx, func(tx store.Store) error {
			user := &models.User{Email: in.User.Email, PasswordHash: hash, Role: role}
			if err := tx.CreateUser(ctx, user); err != nil {
				return err
			}
			customer.UserID = user.ID
			return tx.CreateCustomer(ctx, customer)
		})
		if err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"customer_id": customer.ID,
		"user_id":     customer.UserID,
		"new_user":    in.User != nil,
	}).Info("Customer created")

	return s.FindOne(ctx, customer.ID)
}

func (s *Service) Find(ctx context.Context) ([]models.Customer, error) {
	return s.store.ListCustomers(ctx)
}

func (s *Service) FindOne(ctx context.Context, id int) (*models.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, notFound(err, "customer")
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, id int, ch Changes) (*models.Customer, error) {
	c, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if ch.Name != nil {
		c.Name = *ch.Name
	}
	if ch.LastName != nil {
		c.LastName = *ch.LastName
	}
	if ch.Phone != nil {
		c.Phone = *ch.Phone
	}
	if ch.UserID != nil && *ch.UserID != c.UserID {
		if _, err := s.store.GetUser(ctx, *ch.UserID); err != nil {
			return nil, notFound(err, "user")
		}
		c.UserID = *ch.UserID
	}

	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return nil, notFound(err, "customer")
	}
	return s.FindOne(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return notFound(err, "customer")
	}
	s.logger.WithField("customer_id", id).Info("Customer deleted")
	return nil
}

// Me returns the user with its linked customer, if any.
func (s *Service) Me(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}

	c, err := s.store.GetCustomerByUser(ctx, userID)
	switch {
	case err == nil:
		c.User = nil
		user.Customer = c
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return user, nil
}

func notFound(err error, entity string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(entity)
	}
	return err
}
