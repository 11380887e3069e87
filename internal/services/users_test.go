package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

func boolPtr(v bool) *bool { return &v }

func TestUserServiceRoles(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	users := NewUserService(f.store.Accounts(), logging.Discard())
	admin := f.account(models.RoleAdmin, "Eva")
	customer := f.account(models.RoleCustomer, "Ana")

	_, err := users.UpdateRole(ctx, admin, customer.ID, UpdateRoleInput{Role: models.RoleCourier})
	require.ErrorIs(t, err, ErrValidation, "couriers need a vehicle")

	updated, err := users.UpdateRole(ctx, admin, customer.ID, UpdateRoleInput{Role: models.RoleCourier, Vehicle: models.VehicleCar})
	require.NoError(t, err)
	require.Equal(t, models.RoleCourier, updated.Role)
	require.Equal(t, models.VehicleCar, updated.Vehicle)

	couriers, err := users.ListCouriers(ctx)
	require.NoError(t, err)
	require.Len(t, couriers, 1)

	back, err := users.UpdateRole(ctx, admin, customer.ID, UpdateRoleInput{Role: models.RoleCustomer})
	require.NoError(t, err)
	require.Empty(t, back.Vehicle)

	_, err = users.UpdateRole(ctx, admin, admin.ID, UpdateRoleInput{Role: models.RoleCustomer})
	require.ErrorIs(t, err, ErrConflict)
	_, err = users.UpdateRole(ctx, admin, uuid.New(), UpdateRoleInput{Role: models.RoleCustomer})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = users.UpdateRole(ctx, admin, customer.ID, UpdateRoleInput{Role: "jefe"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = users.List(ctx, "jefe")
	require.ErrorIs(t, err, ErrValidation)
	all, err := users.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUserServiceSetActive(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	users := NewUserService(f.store.Accounts(), logging.Discard())
	admin := f.account(models.RoleAdmin, "Eva")
	courier := f.account(models.RoleCourier, "Carlos")

	updated, err := users.SetActive(ctx, admin, courier.ID, UpdateStatusAccountInput{Active: boolPtr(false)})
	require.NoError(t, err)
	require.False(t, updated.Active)

	couriers, err := users.ListCouriers(ctx)
	require.NoError(t, err)
	require.Empty(t, couriers)

	_, err = users.SetActive(ctx, admin, courier.ID, UpdateStatusAccountInput{})
	require.ErrorIs(t, err, ErrValidation)
	_, err = users.SetActive(ctx, admin, admin.ID, UpdateStatusAccountInput{Active: boolPtr(false)})
	require.ErrorIs(t, err, ErrConflict)

	// Inactive couriers cannot be assigned.
	customer := f.account(models.RoleCustomer, "Ana")
	order := placeOrder(t, f, customer)
	_, err = f.orders.Assign(ctx, admin, order.ID, courier.ID)
	require.ErrorIs(t, err, ErrValidation)
}
