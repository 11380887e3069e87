package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Clients read money fields as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	StatusReceived  OrderStatus = "recibido"
	StatusPreparing OrderStatus = "preparando"
	StatusEnRoute   OrderStatus = "en_camino"
	StatusDelivered OrderStatus = "entregado"
	StatusCanceled  OrderStatus = "cancelado"
)

var orderStatusRank = map[OrderStatus]int{
	StatusReceived:  0,
	StatusPreparing: 1,
	StatusEnRoute:   2,
	StatusDelivered: 3,
}

func (s OrderStatus) Valid() bool {
	if s == StatusCanceled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// Terminal reports whether no further status change is accepted.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// CanTransitionTo reports whether an order may move from s to next.
// Statuses only move forward; cancellation is allowed from any non-terminal
// status. Same-status writes are not transitions.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() || s == next {
		return false
	}
	if next == StatusCanceled {
		return true
	}
	return orderStatusRank[next] > orderStatusRank[s]
}

// Claimable lists the statuses in which a courier may still pick up an order.
var Claimable = []OrderStatus{StatusReceived, StatusPreparing}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "efectivo"
	PaymentTransfer PaymentMethod = "transferencia"
	PaymentCard     PaymentMethod = "tarjeta"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCard:
		return true
	default:
		return false
	}
}

// LineItem is a product snapshot taken when the order was placed.
type LineItem struct {
	ProductID uuid.UUID       `json:"producto"`
	Name      string          `json:"nombre"`
	Image     string          `json:"imagen,omitempty"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precio"`
}

type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type Address struct {
	Street       string      `json:"calle" validate:"required,max=120"`
	Number       string      `json:"numero" validate:"required,max=20"`
	Neighborhood string      `json:"colonia,omitempty" validate:"max=80"`
	City         string      `json:"ciudad" validate:"required,max=80"`
	PostalCode   string      `json:"codigoPostal,omitempty" validate:"omitempty,numeric,len=5"`
	References   string      `json:"referencias,omitempty" validate:"max=200"`
	Coordinates  Coordinates `json:"coordenadas" validate:"required"`
}

type Rating struct {
	Score   int       `json:"puntuacion"`
	Comment string    `json:"comentario,omitempty"`
	RatedAt time.Time `json:"fecha"`
}

type StatusChange struct {
	Status OrderStatus `json:"estado"`
	At     time.Time   `json:"fecha"`
	Note   string      `json:"nota,omitempty"`
}

type Order struct {
	ID                  uuid.UUID       `json:"id"`
	Number              string          `json:"numeroPedido"`
	CustomerID          uuid.UUID       `json:"cliente"`
	CourierID           *uuid.UUID      `json:"repartidor,omitempty"`
	Items               []LineItem      `json:"productos"`
	Address             Address         `json:"direccionEntrega"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Tax                 decimal.Decimal `json:"impuestos"`
	ShippingCost        decimal.Decimal `json:"costoEnvio"`
	Total               decimal.Decimal `json:"total"`
	PaymentMethod       PaymentMethod   `json:"metodoPago"`
	Status              OrderStatus     `json:"estado"`
	EstimatedDeliveryAt time.Time       `json:"fechaEntregaEstimada"`
	DeliveredAt         *time.Time      `json:"fechaEntregaReal,omitempty"`
	Rating              *Rating         `json:"calificacion,omitempty"`
	History             []StatusChange  `json:"historialEstados"`
	Notes               string          `json:"notasEspeciales,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

func (o *Order) HasCourier() bool {
	return o != nil && o.CourierID != nil && *o.CourierID != uuid.Nil
}

// IsCourier reports whether id is the courier assigned to the order.
func (o *Order) IsCourier(id uuid.UUID) bool {
	return o.HasCourier() && *o.CourierID == id
}

func (o *Order) IsCustomer(id uuid.UUID) bool {
	return o != nil && o.CustomerID == id
}
