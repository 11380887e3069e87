package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

// The interfaces below are satisfied by the Postgres stores in internal/db.
// Implementations report failures with the db package sentinels.

type OrderRepository interface {
	Place(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Order, error)
	ListByCourier(ctx context.Context, courierID uuid.UUID) ([]*models.Order, error)
	List(ctx context.Context, status models.OrderStatus) ([]*models.Order, error)
	ListAvailable(ctx context.Context) ([]*models.Order, error)
	Claim(ctx context.Context, id, courierID uuid.UUID) (*models.Order, error)
	Assign(ctx context.Context, id, courierID uuid.UUID) (*models.Order, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, note string) (*models.Order, error)
	Rate(ctx context.Context, id, customerID uuid.UUID, score int, comment string) (*models.Order, error)
	CourierRatingStats(ctx context.Context, courierID uuid.UUID) (average float64, count int, err error)
}

type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter db.ProductFilter) ([]*models.Product, error)
	ListLowStock(ctx context.Context) ([]*models.Product, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type AccountRepository interface {
	Create(ctx context.Context, a *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.Account, error)
	SetCourierRating(ctx context.Context, id uuid.UUID, average float64) error
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, vehicle models.Vehicle) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*models.Account, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Message, error)
}

var (
	_ OrderRepository   = (*db.OrderStore)(nil)
	_ ProductRepository = (*db.ProductStore)(nil)
	_ AccountRepository = (*db.AccountStore)(nil)
	_ MessageRepository = (*db.MessageStore)(nil)
)
