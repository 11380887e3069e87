// Package dbtest provides in-memory implementations of the db stores for
// tests. Every operation holds one lock for its whole duration, matching the
// all-or-nothing behavior of the conditional updates and transactions of
// the Postgres stores, and failures use the db package sentinels.
package dbtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

// Store holds the data behind every fake store.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	orders   map[uuid.UUID]*models.Order
	products map[uuid.UUID]*models.Product
	accounts map[uuid.UUID]*models.Account
	messages []*models.Message
	counters map[string]int
}

func NewStore() *Store {
	return &Store{
		now:      time.Now,
		orders:   make(map[uuid.UUID]*models.Order),
		products: make(map[uuid.UUID]*models.Product),
		accounts: make(map[uuid.UUID]*models.Account),
		counters: make(map[string]int),
	}
}

func (s *Store) Orders() Orders     { return Orders{s} }
func (s *Store) Products() Products { return Products{s} }
func (s *Store) Accounts() Accounts { return Accounts{s} }
func (s *Store) Messages() Messages { return Messages{s} }

// PutAccount inserts or replaces an account as given, bypassing Create's
// defaults.
func (s *Store) PutAccount(a *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = cloneAccount(a)
}

// PutProduct inserts or replaces a product as given.
func (s *Store) PutProduct(p *models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = cloneProduct(p)
}

func (s *Store) Account(id uuid.UUID) (*models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	return cloneAccount(a), true
}

func (s *Store) Product(id uuid.UUID) (*models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, false
	}
	return cloneProduct(p), true
}

// UpdateProduct applies fn to a stored product under the store lock.
func (s *Store) UpdateProduct(id uuid.UUID, fn func(*models.Product)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if ok {
		fn(p)
	}
	return ok
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.LineItem(nil), o.Items...)
	c.History = append([]models.StatusChange(nil), o.History...)
	if o.CourierID != nil {
		id := *o.CourierID
		c.CourierID = &id
	}
	if o.Rating != nil {
		r := *o.Rating
		c.Rating = &r
	}
	return &c
}

func cloneProduct(p *models.Product) *models.Product {
	c := *p
	return &c
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

type Orders struct{ s *Store }

func (f Orders) Place(_ context.Context, order *models.Order) error {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[uuid.UUID]int)
	for _, item := range order.Items {
		wanted[item.ProductID] += item.Quantity
	}
	for id, qty := range wanted {
		product, ok := s.products[id]
		if !ok {
			return db.ErrNotFound
		}
		if product.Stock < qty {
			return &db.InsufficientStockError{ProductID: id, Name: product.Name, Available: product.Stock}
		}
	}
	for id, qty := range wanted {
		s.products[id].Stock -= qty
		s.products[id].Sales += qty
	}

	now := s.now().UTC()
	day := now.Format("2006-01-02")
	s.counters[day]++

	order.ID = uuid.New()
	order.Number = db.FormatOrderNumber(now, s.counters[day])
	order.Status = models.StatusReceived
	order.CourierID = nil
	order.CreatedAt = now
	order.UpdatedAt = now
	order.History = []models.StatusChange{{Status: models.StatusReceived, At: now}}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (f Orders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	order, ok := f.s.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (f Orders) filter(keep func(*models.Order) bool, oldestFirst bool) []*models.Order {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Order{}
	for _, order := range f.s.orders {
		if keep(order) {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if oldestFirst {
			return out[i].Number < out[j].Number
		}
		return out[i].Number > out[j].Number
	})
	return out
}

func (f Orders) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]*models.Order, error) {
	return f.filter(func(o *models.Order) bool { return o.CustomerID == customerID }, false), nil
}

func (f Orders) ListByCourier(_ context.Context, courierID uuid.UUID) ([]*models.Order, error) {
	return f.filter(func(o *models.Order) bool { return o.IsCourier(courierID) }, false), nil
}

func (f Orders) List(_ context.Context, status models.OrderStatus) ([]*models.Order, error) {
	return f.filter(func(o *models.Order) bool { return status == "" || o.Status == status }, false), nil
}

func (f Orders) ListAvailable(context.Context) ([]*models.Order, error) {
	return f.filter(func(o *models.Order) bool {
		return !o.HasCourier() && (o.Status == models.StatusReceived || o.Status == models.StatusPreparing)
	}, true), nil
}

func (f Orders) Claim(_ context.Context, id, courierID uuid.UUID) (*models.Order, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if order.HasCourier() {
		return nil, db.ErrAlreadyClaimed
	}
	if order.Status != models.StatusReceived && order.Status != models.StatusPreparing {
		return nil, db.ErrInvalidStatusTransition
	}
	order.CourierID = &courierID
	order.Status = models.StatusEnRoute
	order.History = append(order.History, models.StatusChange{Status: models.StatusEnRoute, At: s.now()})
	return cloneOrder(order), nil
}

func (f Orders) Assign(_ context.Context, id, courierID uuid.UUID) (*models.Order, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if order.HasCourier() && !order.IsCourier(courierID) {
		return nil, db.ErrAlreadyClaimed
	}
	if order.Status != models.StatusReceived && order.Status != models.StatusPreparing {
		return nil, db.ErrInvalidStatusTransition
	}
	order.CourierID = &courierID
	if order.Status != models.StatusPreparing {
		order.Status = models.StatusPreparing
		order.History = append(order.History, models.StatusChange{Status: models.StatusPreparing, At: s.now()})
	}
	return cloneOrder(order), nil
}

func (f Orders) ChangeStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus, note string) (*models.Order, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	if order.Status != from || (to == models.StatusEnRoute && !order.HasCourier()) {
		return nil, db.ErrInvalidStatusTransition
	}
	now := s.now()
	order.Status = to
	order.History = append(order.History, models.StatusChange{Status: to, At: now, Note: note})
	switch to {
	case models.StatusDelivered:
		order.DeliveredAt = &now
		if order.HasCourier() {
			if courier, ok := s.accounts[*order.CourierID]; ok {
				courier.DeliveredCount++
			}
		}
	case models.StatusCanceled:
		for _, item := range order.Items {
			if product, ok := s.products[item.ProductID]; ok {
				product.Stock += item.Quantity
				product.Sales -= item.Quantity
			}
		}
	}
	return cloneOrder(order), nil
}

func (f Orders) Rate(_ context.Context, id, customerID uuid.UUID, score int, comment string) (*models.Order, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || order.CustomerID != customerID {
		return nil, db.ErrNotFound
	}
	if order.Rating != nil {
		return nil, db.ErrAlreadyRated
	}
	if order.Status != models.StatusDelivered {
		return nil, db.ErrInvalidStatusTransition
	}
	order.Rating = &models.Rating{Score: score, Comment: comment, RatedAt: s.now()}
	return cloneOrder(order), nil
}

func (f Orders) CourierRatingStats(_ context.Context, courierID uuid.UUID) (float64, int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var sum, count int
	for _, order := range f.s.orders {
		if order.IsCourier(courierID) && order.Status == models.StatusDelivered && order.Rating != nil {
			sum += order.Rating.Score
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

type Products struct{ s *Store }

func (f Products) Create(_ context.Context, p *models.Product) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.products {
		if strings.EqualFold(existing.Name, p.Name) {
			return db.ErrDuplicateProduct
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.s.products[p.ID] = cloneProduct(p)
	return nil
}

func (f Products) Update(_ context.Context, p *models.Product) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	existing, ok := f.s.products[p.ID]
	if !ok {
		return db.ErrNotFound
	}
	p.Sales = existing.Sales
	f.s.products[p.ID] = cloneProduct(p)
	return nil
}

func (f Products) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	product, ok := f.s.products[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneProduct(product), nil
}

func (f Products) List(_ context.Context, filter db.ProductFilter) ([]*models.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Product{}
	for _, p := range f.s.products {
		if !filter.IncludeAll && !p.Active {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.FeaturedOnly && !p.Featured {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f Products) ListLowStock(context.Context) ([]*models.Product, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Product{}
	for _, p := range f.s.products {
		if p.Active && p.LowStock() {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (f Products) Deactivate(_ context.Context, id uuid.UUID) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	product, ok := f.s.products[id]
	if !ok {
		return db.ErrNotFound
	}
	product.Active = false
	return nil
}

type Accounts struct{ s *Store }

func (f Accounts) Create(_ context.Context, a *models.Account) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, existing := range f.s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return db.ErrDuplicateEmail
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.RatingAverage == 0 {
		a.RatingAverage = models.DefaultCourierRating
	}
	a.Active = true
	f.s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (f Accounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	account, ok := f.s.accounts[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneAccount(account), nil
}

func (f Accounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, account := range f.s.accounts {
		if strings.EqualFold(account.Email, strings.TrimSpace(email)) {
			return cloneAccount(account), nil
		}
	}
	return nil, db.ErrNotFound
}

func (f Accounts) ListByRole(_ context.Context, role models.Role) ([]*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Account{}
	for _, account := range f.s.accounts {
		if role == "" || account.Role == role {
			out = append(out, cloneAccount(account))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f Accounts) SetCourierRating(_ context.Context, id uuid.UUID, average float64) error {
	return f.update(id, func(a *models.Account) { a.RatingAverage = average })
}

func (f Accounts) UpdateRole(_ context.Context, id uuid.UUID, role models.Role, vehicle models.Vehicle) error {
	return f.update(id, func(a *models.Account) {
		a.Role = role
		a.Vehicle = vehicle
	})
}

func (f Accounts) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return f.update(id, func(a *models.Account) { a.Active = active })
}

func (f Accounts) UpdateProfile(_ context.Context, id uuid.UUID, name, phone string) (*models.Account, error) {
	if err := f.update(id, func(a *models.Account) {
		a.Name = name
		a.Phone = phone
	}); err != nil {
		return nil, err
	}
	return f.GetByID(context.Background(), id)
}

func (f Accounts) update(id uuid.UUID, fn func(*models.Account)) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	account, ok := f.s.accounts[id]
	if !ok {
		return db.ErrNotFound
	}
	fn(account)
	return nil
}

type Messages struct{ s *Store }

func (f Messages) Create(_ context.Context, m *models.Message) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = f.s.now()
	c := *m
	f.s.messages = append(f.s.messages, &c)
	return nil
}

func (f Messages) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*models.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []*models.Message{}
	for _, m := range f.s.messages {
		if m.OrderID == orderID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}
