package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db/dbtest"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/realtime"
)

// recordingNotifier keeps every published event.
type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]realtime.Event
	err    error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[string][]realtime.Event)}
}

func (n *recordingNotifier) Publish(_ context.Context, topic string, event realtime.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[topic] = append(n.events[topic], event)
	return n.err
}

func (n *recordingNotifier) Subscribe(context.Context, string) (<-chan realtime.Event, func(), error) {
	ch := make(chan realtime.Event)
	close(ch)
	return ch, func() {}, nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) types(topic string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []string{}
	for _, event := range n.events[topic] {
		out = append(out, event.Type)
	}
	return out
}

type recordingEmailSender struct {
	mu        sync.Mutex
	confirmed []string
	delivered []string
}

func (r *recordingEmailSender) SendOrderConfirmation(_ context.Context, order *models.Order, _ *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, order.Number)
	return nil
}

func (r *recordingEmailSender) SendOrderDelivered(_ context.Context, order *models.Order, _ *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, order.Number)
	return nil
}

// fixture wires every service over one in-memory store.
type fixture struct {
	store    *dbtest.Store
	orders   *OrderService
	messages *MessageService
	notifier *recordingNotifier
	emails   *recordingEmailSender
}

func newFixture() *fixture {
	store := dbtest.NewStore()
	notifier := newRecordingNotifier()
	emails := &recordingEmailSender{}
	logger := logging.Discard()

	return &fixture{
		store:    store,
		notifier: notifier,
		emails:   emails,
		orders: NewOrderService(store.Orders(), store.Products(), store.Accounts(), OrderServiceOptions{
			Events:      notifier,
			EmailSender: emails,
		}, logger),
		messages: NewMessageService(store.Messages(), store.Orders(), store.Accounts(), notifier, logger),
	}
}

func (f *fixture) account(role models.Role, name string) auth.Identity {
	account := &models.Account{
		ID:     uuid.New(),
		Name:   name,
		Email:  strings.ToLower(name) + "@example.com",
		Role:   role,
		Active: true,
	}
	if role == models.RoleCourier {
		account.Vehicle = models.VehicleMotorbike
		account.RatingAverage = models.DefaultCourierRating
	}
	f.store.PutAccount(account)
	return auth.Identity{ID: account.ID, Role: role}
}

func (f *fixture) product(name string, stock int, price string) *models.Product {
	product := &models.Product{
		ID:       uuid.New(),
		Name:     name,
		Price:    mustDecimal(price),
		Category: models.CategoryBeer,
		Stock:    stock,
		Active:   true,
	}
	f.store.PutProduct(product)
	return product
}

func (f *fixture) stock(id uuid.UUID) (stock, sales int) {
	product, _ := f.store.Product(id)
	return product.Stock, product.Sales
}

func (f *fixture) courierRating(id uuid.UUID) float64 {
	account, _ := f.store.Account(id)
	return account.RatingAverage
}
