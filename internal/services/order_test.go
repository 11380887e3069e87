package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/cache"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/realtime"
)

func mustDecimal(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func orderInput(items ...LineItemInput) CreateOrderInput {
	return CreateOrderInput{
		Items:         items,
		Address: models.Address{
			Street:       "Av. Reforma",
			Number:       "222",
			Neighborhood: "Juárez",
			City:         "CDMX",
			Coordinates:  models.Coordinates{Lat: 19.4284, Lng: -99.1635},
		},
		Subtotal:      mustDecimal("25"),
		Tax:           mustDecimal("2.5"),
		ShippingCost:  decimal.Zero,
		Total:         mustDecimal("27.5"),
		PaymentMethod: models.PaymentCash,
	}
}

// placeOrder creates an order for customer with one unit of a fresh product.
func placeOrder(t *testing.T, f *fixture, customer auth.Identity) *OrderView {
	t.Helper()
	product := f.product(fmt.Sprintf("Producto %s", uuid.NewString()[:8]), 10, "10")
	view, err := f.orders.Create(context.Background(), customer, orderInput(
		LineItemInput{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price},
	), "")
	require.NoError(t, err)
	return view
}

func deliver(t *testing.T, f *fixture, orderID uuid.UUID, courier auth.Identity) {
	t.Helper()
	ctx := context.Background()
	_, err := f.orders.Take(ctx, courier, orderID)
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, courier, orderID, UpdateStatusInput{Status: models.StatusDelivered})
	require.NoError(t, err)
}

func TestCreateOrderDecrementsStockAndPassesTotalsThrough(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	customer := f.account(models.RoleCustomer, "Ana")
	beer := f.product("Corona", 10, "10")
	ice := f.product("Hielo", 5, "5")

	view, err := f.orders.Create(ctx, customer, orderInput(
		LineItemInput{ProductID: beer.ID, Quantity: 2, UnitPrice: mustDecimal("10")},
		LineItemInput{ProductID: ice.ID, Quantity: 1, UnitPrice: mustDecimal("5")},
	), "")
	require.NoError(t, err)

	require.Equal(t, models.StatusReceived, view.Status)
	require.True(t, view.Total.Equal(mustDecimal("27.5")), "total %s", view.Total)
	require.True(t, view.Subtotal.Equal(mustDecimal("25")))
	require.Len(t, view.History, 1)
	require.Equal(t, "Corona", view.Items[0].Name, "missing names are filled from the catalog")
	require.NotNil(t, view.Customer)
	require.Equal(t, "Ana", view.Customer.Name)
	require.WithinDuration(t, time.Now().Add(DefaultEstimatedDelivery), view.EstimatedDeliveryAt, 5*time.Second)

	stock, sales := f.stock(beer.ID)
	require.Equal(t, 8, stock)
	require.Equal(t, 2, sales)
	stock, sales = f.stock(ice.ID)
	require.Equal(t, 4, stock)
	require.Equal(t, 1, sales)

	f.orders.Wait()
	require.Equal(t, []string{realtime.EventOrderCreated}, f.notifier.types(realtime.AdminTopic))
	require.Equal(t, []string{view.Number}, f.emails.confirmed)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	t.Parallel()

	f := newFixture()
	customer := f.account(models.RoleCustomer, "Ana")
	product := f.product("Tequila", 3, "300")

	_, err := f.orders.Create(context.Background(), customer, orderInput(
		LineItemInput{ProductID: product.ID, Quantity: 4, UnitPrice: product.Price},
	), "")

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 3, stockErr.Available)
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "Solo hay 3 disponibles")

	stock, sales := f.stock(product.ID)
	require.Equal(t, 3, stock)
	require.Zero(t, sales)
}

func TestCreateOrderCountsRepeatedProductsTogether(t *testing.T) {
	t.Parallel()

	f := newFixture()
	customer := f.account(models.RoleCustomer, "Ana")
	product := f.product("Mezcal", 3, "400")

	_, err := f.orders.Create(context.Background(), customer, orderInput(
		LineItemInput{ProductID: product.ID, Quantity: 2, UnitPrice: product.Price},
		LineItemInput{ProductID: product.ID, Quantity: 2, UnitPrice: product.Price},
	), "")
	require.ErrorIs(t, err, ErrValidation)

	stock, _ := f.stock(product.ID)
	require.Equal(t, 3, stock)
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	customer := f.account(models.RoleCustomer, "Ana")
	product := f.product("Corona", 10, "10")
	inactive := f.product("Descontinuado", 10, "10")
	f.store.UpdateProduct(inactive.ID, func(p *models.Product) { p.Active = false })

	item := LineItemInput{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price}

	tests := []struct {
		name   string
		mutate func(in *CreateOrderInput)
		want   error
	}{
		{name: "no items", mutate: func(in *CreateOrderInput) { in.Items = nil }, want: ErrValidation},
		{name: "zero quantity", mutate: func(in *CreateOrderInput) { in.Items[0].Quantity = 0 }, want: ErrValidation},
		{name: "negative total", mutate: func(in *CreateOrderInput) { in.Total = mustDecimal("-1") }, want: ErrValidation},
		{name: "negative price", mutate: func(in *CreateOrderInput) { in.Items[0].UnitPrice = mustDecimal("-1") }, want: ErrValidation},
		{name: "unknown payment", mutate: func(in *CreateOrderInput) { in.PaymentMethod = "bitcoin" }, want: ErrValidation},
		{name: "missing street", mutate: func(in *CreateOrderInput) { in.Address.Street = "" }, want: ErrValidation},
		{name: "missing coordinates", mutate: func(in *CreateOrderInput) { in.Address.Coordinates = models.Coordinates{} }, want: ErrValidation},
		{name: "latitude out of range", mutate: func(in *CreateOrderInput) { in.Address.Coordinates.Lat = 91 }, want: ErrValidation},
		{name: "three decimal total", mutate: func(in *CreateOrderInput) { in.Total = mustDecimal("27.505") }, want: ErrValidation},
		{name: "three decimal tax", mutate: func(in *CreateOrderInput) { in.Tax = mustDecimal("2.125") }, want: ErrValidation},
		{name: "long notes", mutate: func(in *CreateOrderInput) { in.Notes = string(make([]byte, 201)) }, want: ErrValidation},
		{name: "unknown product", mutate: func(in *CreateOrderInput) { in.Items[0].ProductID = uuid.New() }, want: ErrNotFound},
		{name: "inactive product", mutate: func(in *CreateOrderInput) { in.Items[0].ProductID = inactive.ID }, want: ErrNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			input := orderInput(item)
			tt.mutate(&input)
			_, err := f.orders.Create(context.Background(), customer, input, "")
			require.ErrorIs(t, err, tt.want)
		})
	}

	stock, _ := f.stock(product.ID)
	require.Equal(t, 10, stock)
}

func TestOrderNumbersAreSequentialUnderConcurrency(t *testing.T) {
	t.Parallel()

	f := newFixture()
	customer := f.account(models.RoleCustomer, "Ana")
	product := f.product("Corona", 1000, "10")

	const n = 25
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := f.orders.Create(context.Background(), customer, orderInput(
				LineItemInput{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price},
			), "")
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			numbers <- view.Number
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for number := range numbers {
		require.False(t, seen[number], "duplicate order number %s", number)
		seen[number] = true
	}
	require.Len(t, seen, n)
	today := time.Now().UTC()
	for seq := 1; seq <= n; seq++ {
		require.True(t, seen[fmt.Sprintf("DC%s-%04d", today.Format("060102"), seq)], "missing sequence %d", seq)
	}
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	t.Parallel()

	f := newFixture()
	provider, err := cache.NewMemoryProvider()
	require.NoError(t, err)
	f.orders.idempotency = provider

	customer := f.account(models.RoleCustomer, "Ana")
	other := f.account(models.RoleCustomer, "Beto")
	product := f.product("Corona", 10, "10")
	input := orderInput(LineItemInput{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price})
	ctx := context.Background()

	first, err := f.orders.Create(ctx, customer, input, "abc")
	require.NoError(t, err)
	again, err := f.orders.Create(ctx, customer, input, "abc")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	_, err = f.orders.Create(ctx, other, input, "abc")
	require.NoError(t, err)

	stock, _ := f.stock(product.ID)
	require.Equal(t, 8, stock, "the repeated request must not reserve stock")

	require.NoError(t, provider.Set(ctx, cache.IdempotencyKey(customer.ID.String(), "busy"), idempotencyPending, time.Minute))
	_, err = f.orders.Create(ctx, customer, input, "busy")
	require.ErrorIs(t, err, ErrConflict)
}

func TestGetOrderAccessControl(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	owner := f.account(models.RoleCustomer, "Ana")
	stranger := f.account(models.RoleCustomer, "Beto")
	courier := f.account(models.RoleCourier, "Carlos")
	otherCourier := f.account(models.RoleCourier, "Dani")
	admin := f.account(models.RoleAdmin, "Eva")

	order := placeOrder(t, f, owner)
	_, err := f.orders.Take(ctx, courier, order.ID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		actor auth.Identity
		want  error
	}{
		{name: "owner", actor: owner},
		{name: "admin", actor: admin},
		{name: "assigned courier", actor: courier},
		{name: "other customer", actor: stranger, want: ErrForbidden},
		{name: "other courier", actor: otherCourier, want: ErrForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.orders.Get(ctx, tt.actor, order.ID)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			require.Equal(t, order.ID, view.ID)
			require.NotNil(t, view.Courier)
			require.Equal(t, "Carlos", view.Courier.Name)
		})
	}

	_, err = f.orders.Get(ctx, admin, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTakeOrderConcurrently(t *testing.T) {
	t.Parallel()

	f := newFixture()
	customer := f.account(models.RoleCustomer, "Ana")
	order := placeOrder(t, f, customer)

	couriers := []auth.Identity{
		f.account(models.RoleCourier, "A"),
		f.account(models.RoleCourier, "B"),
		f.account(models.RoleCourier, "C"),
		f.account(models.RoleCourier, "D"),
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []uuid.UUID
		conflicts int
	)
	for _, courier := range couriers {
		courier := courier
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.Take(context.Background(), courier, order.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, courier.ID)
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Equal(t, len(couriers)-1, conflicts)

	stored, err := f.orders.Get(context.Background(), auth.Identity{ID: customer.ID, Role: models.RoleCustomer}, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusEnRoute, stored.Status)
	require.True(t, stored.IsCourier(winners[0]))

	f.orders.Wait()
	require.Contains(t, f.notifier.types(realtime.OrderTopic(order.ID)), realtime.EventStatusChanged)
}

func TestAssignOrder(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	admin := f.account(models.RoleAdmin, "Eva")
	customer := f.account(models.RoleCustomer, "Ana")
	courier := f.account(models.RoleCourier, "Carlos")
	other := f.account(models.RoleCourier, "Dani")

	order := placeOrder(t, f, customer)

	_, err := f.orders.Assign(ctx, admin, order.ID, customer.ID)
	require.ErrorIs(t, err, ErrNotFound, "customers cannot be assigned")
	_, err = f.orders.Assign(ctx, admin, order.ID, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	view, err := f.orders.Assign(ctx, admin, order.ID, courier.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPreparing, view.Status)
	require.True(t, view.IsCourier(courier.ID))

	again, err := f.orders.Assign(ctx, admin, order.ID, courier.ID)
	require.NoError(t, err)
	require.Len(t, again.History, 2, "reassigning the same courier does not add history")

	_, err = f.orders.Assign(ctx, admin, order.ID, other.ID)
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.orders.Take(ctx, other, order.ID)
	require.ErrorIs(t, err, ErrConflict)

	f.orders.Wait()
	require.Contains(t, f.notifier.types(realtime.AdminTopic), realtime.EventOrderAssigned)
}

func TestUpdateStatusRules(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	admin := f.account(models.RoleAdmin, "Eva")
	customer := f.account(models.RoleCustomer, "Ana")
	courier := f.account(models.RoleCourier, "Carlos")
	other := f.account(models.RoleCourier, "Dani")

	order := placeOrder(t, f, customer)

	_, err := f.orders.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: "perdido"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.orders.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: models.StatusEnRoute})
	require.ErrorIs(t, err, ErrConflict, "en route needs a courier")

	same, err := f.orders.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: models.StatusReceived})
	require.NoError(t, err)
	require.Len(t, same.History, 1, "same status is a no-op")

	_, err = f.orders.Assign(ctx, admin, order.ID, courier.ID)
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, other, order.ID, UpdateStatusInput{Status: models.StatusEnRoute})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.orders.UpdateStatus(ctx, courier, order.ID, UpdateStatusInput{Status: models.StatusReceived})
	require.ErrorIs(t, err, ErrConflict, "statuses only move forward")

	_, err = f.orders.UpdateStatus(ctx, courier, order.ID, UpdateStatusInput{Status: models.StatusEnRoute})
	require.NoError(t, err)

	delivered, err := f.orders.UpdateStatus(ctx, courier, order.ID, UpdateStatusInput{Status: models.StatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)
	require.Equal(t, []models.OrderStatus{
		models.StatusReceived, models.StatusPreparing, models.StatusEnRoute, models.StatusDelivered,
	}, statuses(delivered.History))

	_, err = f.orders.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: models.StatusCanceled})
	require.ErrorIs(t, err, ErrConflict, "delivered is terminal")

	f.orders.Wait()
	require.Equal(t, []string{delivered.Number}, f.emails.delivered)
	account, ok := f.store.Account(courier.ID)
	require.True(t, ok)
	require.Equal(t, 1, account.DeliveredCount)
}

func statuses(history []models.StatusChange) []models.OrderStatus {
	out := make([]models.OrderStatus, 0, len(history))
	for _, change := range history {
		out = append(out, change.Status)
	}
	return out
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	admin := f.account(models.RoleAdmin, "Eva")
	customer := f.account(models.RoleCustomer, "Ana")
	product := f.product("Whisky", 5, "500")

	view, err := f.orders.Create(ctx, customer, orderInput(
		LineItemInput{ProductID: product.ID, Quantity: 2, UnitPrice: product.Price},
	), "")
	require.NoError(t, err)

	canceled, err := f.orders.UpdateStatus(ctx, admin, view.ID, UpdateStatusInput{Status: models.StatusCanceled, Note: "sin cobertura"})
	require.NoError(t, err)
	require.Equal(t, models.StatusCanceled, canceled.Status)
	require.Equal(t, "sin cobertura", canceled.History[len(canceled.History)-1].Note)

	stock, sales := f.stock(product.ID)
	require.Equal(t, 5, stock)
	require.Zero(t, sales)
}

func TestRateOrder(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	customer := f.account(models.RoleCustomer, "Ana")
	stranger := f.account(models.RoleCustomer, "Beto")
	courier := f.account(models.RoleCourier, "Carlos")

	pending := placeOrder(t, f, customer)
	_, err := f.orders.Rate(ctx, customer, pending.ID, RateInput{Score: 5})
	require.ErrorIs(t, err, ErrValidation, "only delivered orders can be rated")

	first := placeOrder(t, f, customer)
	deliver(t, f, first.ID, courier)

	_, err = f.orders.Rate(ctx, stranger, first.ID, RateInput{Score: 5})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.orders.Rate(ctx, customer, first.ID, RateInput{Score: 6})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.orders.Rate(ctx, customer, uuid.New(), RateInput{Score: 5})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.orders.Rate(ctx, customer, first.ID, RateInput{Score: 5, Comment: strings.Repeat("a", 201)})
	require.ErrorIs(t, err, ErrValidation)

	rated, err := f.orders.Rate(ctx, customer, first.ID, RateInput{Score: 4, Comment: " " + strings.Repeat("á", 200) + " "})
	require.NoError(t, err)
	require.Len(t, []rune(rated.Rating.Comment), 200)

	first = placeOrder(t, f, customer)
	deliver(t, f, first.ID, courier)
	rated, err = f.orders.Rate(ctx, customer, first.ID, RateInput{Score: 4, Comment: " rápido "})
	require.NoError(t, err)
	require.Equal(t, 4, rated.Rating.Score)
	require.Equal(t, "rápido", rated.Rating.Comment)
	require.Equal(t, 4.0, f.courierRating(courier.ID))

	_, err = f.orders.Rate(ctx, customer, first.ID, RateInput{Score: 1})
	require.ErrorIs(t, err, ErrConflict)

	second := placeOrder(t, f, customer)
	deliver(t, f, second.ID, courier)
	_, err = f.orders.Rate(ctx, customer, second.ID, RateInput{Score: 5})
	require.NoError(t, err)
	third := placeOrder(t, f, customer)
	deliver(t, f, third.ID, courier)
	_, err = f.orders.Rate(ctx, customer, third.ID, RateInput{Score: 2})
	require.NoError(t, err)

	require.InDelta(t, 15.0/4.0, f.courierRating(courier.ID), 1e-9)
}

func TestRateOrderConcurrentSubmissions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	customer := f.account(models.RoleCustomer, "Ana")
	courier := f.account(models.RoleCourier, "Carlos")
	order := placeOrder(t, f, customer)
	deliver(t, f, order.ID, courier)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.Rate(context.Background(), customer, order.ID, RateInput{Score: 5})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestListOrders(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	ana := f.account(models.RoleCustomer, "Ana")
	beto := f.account(models.RoleCustomer, "Beto")
	courier := f.account(models.RoleCourier, "Carlos")

	first := placeOrder(t, f, ana)
	second := placeOrder(t, f, ana)
	placeOrder(t, f, beto)

	mine, err := f.orders.ListMine(ctx, ana)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, second.ID, mine[0].ID, "newest first")

	_, err = f.orders.Take(ctx, courier, first.ID)
	require.NoError(t, err)

	available, err := f.orders.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)
	require.Equal(t, second.ID, available[0].ID, "oldest first")

	assigned, err := f.orders.ListMine(ctx, courier)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, first.ID, assigned[0].ID)

	enRoute, err := f.orders.ListAll(ctx, models.StatusEnRoute)
	require.NoError(t, err)
	require.Len(t, enRoute, 1)

	_, err = f.orders.ListAll(ctx, "perdido")
	require.ErrorIs(t, err, ErrValidation)
}

func TestShareLocation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	customer := f.account(models.RoleCustomer, "Ana")
	courier := f.account(models.RoleCourier, "Carlos")
	other := f.account(models.RoleCourier, "Dani")
	order := placeOrder(t, f, customer)

	err := f.orders.ShareLocation(ctx, courier, order.ID, LocationInput{Lat: 19.4, Lng: -99.1})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.orders.Take(ctx, courier, order.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.orders.ShareLocation(ctx, other, order.ID, LocationInput{Lat: 19.4, Lng: -99.1}), ErrForbidden)
	require.ErrorIs(t, f.orders.ShareLocation(ctx, courier, order.ID, LocationInput{Lat: 91, Lng: 0}), ErrValidation)
	require.NoError(t, f.orders.ShareLocation(ctx, courier, order.ID, LocationInput{Lat: 19.4, Lng: -99.1}))

	f.orders.Wait()
	require.Contains(t, f.notifier.types(realtime.OrderTopic(order.ID)), realtime.EventDeliveryLocation)
}

func TestNotificationFailureDoesNotFailStateChange(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.notifier.err = errors.New("redis down")
	customer := f.account(models.RoleCustomer, "Ana")
	courier := f.account(models.RoleCourier, "Carlos")

	order := placeOrder(t, f, customer)
	_, err := f.orders.Take(context.Background(), courier, order.ID)
	require.NoError(t, err)
	f.orders.Wait()
}

func TestSubscribeRequiresReadAccess(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	customer := f.account(models.RoleCustomer, "Ana")
	stranger := f.account(models.RoleCustomer, "Beto")
	admin := f.account(models.RoleAdmin, "Eva")
	order := placeOrder(t, f, customer)

	_, cancel, err := f.orders.Subscribe(ctx, customer, order.ID)
	require.NoError(t, err)
	cancel()

	_, _, err = f.orders.Subscribe(ctx, stranger, order.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, _, err = f.orders.Subscribe(ctx, customer, uuid.Nil)
	require.ErrorIs(t, err, ErrForbidden)

	_, cancel, err = f.orders.Subscribe(ctx, admin, uuid.Nil)
	require.NoError(t, err)
	cancel()
}
