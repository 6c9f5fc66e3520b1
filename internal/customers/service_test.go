package customers

import (
	"context"
	"sync"
	"testing"

	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/internal/auth"
	"github.com/jogardn/storefront/internal/store"
	"github.com/jogardn/storefront/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newUser(t *testing.T, st store.Store, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u
}

func TestEnsureProfileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewService(st, quietLogger())
	user := newUser(t, st, "ana@example.com")

	first, created, err := svc.EnsureProfile(ctx, user.ID, Profile{Name: "Ana", LastName: "Diaz", Phone: "555"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, user.ID, first.UserID)

	second, created, err := svc.EnsureProfile(ctx, user.ID, Profile{Name: "Other", LastName: "Name", Phone: "000"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana", second.Name)

	all, err := st.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEnsureProfileConcurrentCallsCreateOneRow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewService(st, quietLogger())
	user := newUser(t, st, "ana@example.com")

	const callers = 8
	ids := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, _, err := svc.EnsureProfile(ctx, user.ID, Profile{Name: "Ana", LastName: "Diaz", Phone: "555"})
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := st.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEnsureProfileUnknownUser(t *testing.T) {
	svc := NewService(store.NewMemory(), quietLogger())

	_, _, err := svc.EnsureProfile(context.Background(), 77, Profile{Name: "Ana"})
	assert.True(t, apperr.IsNotFound(err, "user"))
}

func TestCreateWithNestedUser(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewService(st, quietLogger())

	c, err := svc.Create(ctx, NewCustomer{
		Profile: Profile{Name: "Bo", LastName: "Li", Phone: "555"},
		User:    &NewUser{Email: "bo@example.com", Password: "long-enough"},
	})
	require.NoError(t, err)
	require.NotNil(t, c.User)
	assert.Equal(t, "bo@example.com", c.User.Email)
	assert.Equal(t, models.RoleCustomer, c.User.Role)

	stored, err := st.GetUserByEmail(ctx, "bo@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "long-enough", stored.PasswordHash)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "long-enough"))
}

func TestCreateDuplicateEmailRollsBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewService(st, quietLogger())
	newUser(t, st, "bo@example.com")

	_, err := svc.Create(ctx, NewCustomer{
		Profile: Profile{Name: "Bo", LastName: "Li", Phone: "555"},
		User:    &NewUser{Email: "bo@example.com", Password: "long-enough"},
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	all, err := st.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateForExistingUser(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewService(st, quietLogger())
	user := newUser(t, st, "cy@example.com")

	c, err := svc.Create(ctx, NewCustomer{Profile: Profile{Name: "Cy"}, UserID: user.ID})
	require.NoError(t, err)
	assert.Equal(t, user.ID, c.UserID)

	_, err = svc.Create(ctx, NewCustomer{Profile: Profile{Name: "Cy"}, UserID: user.ID})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Create(ctx, NewCustomer{Profile: Profile{Name: "Cy"}, UserID: 404})
	assert.True(t, apperr.IsNotFound(err, "user"))
}

func TestUpdateDeleteAndMe(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewService(st, quietLogger())
	user := newUser(t, st, "di@example.com")

	c, _, err := svc.EnsureProfile(ctx, user.ID, Profile{Name: "Di", LastName: "Ng", Phone: "1"})
	require.NoError(t, err)

	phone := "2"
	updated, err := svc.Update(ctx, c.ID, Changes{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "2", updated.Phone)
	assert.Equal(t, "Di", updated.Name)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, me.Customer)
	assert.Equal(t, c.ID, me.Customer.ID)

	require.NoError(t, svc.Delete(ctx, c.ID))
	_, err = svc.FindOne(ctx, c.ID)
	assert.True(t, apperr.IsNotFound(err, "customer"))
	assert.True(t, apperr.IsNotFound(svc.Delete(ctx, c.ID), "customer"))

	me, err = svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, me.Customer)
}
