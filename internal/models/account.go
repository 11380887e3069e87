package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer Role = "cliente"
	RoleAdmin    Role = "admin"
	RoleCourier  Role = "repartidor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleCourier:
		return true
	default:
		return false
	}
}

type Vehicle string

const (
	VehicleMotorbike Vehicle = "moto"
	VehicleCar       Vehicle = "auto"
	VehicleBicycle   Vehicle = "bicicleta"
	VehicleOther     Vehicle = "otro"
)

func (v Vehicle) Valid() bool {
	switch v {
	case VehicleMotorbike, VehicleCar, VehicleBicycle, VehicleOther:
		return true
	default:
		return false
	}
}

const DefaultCourierRating = 5.0

type Account struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"nombre"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Phone          string    `json:"telefono"`
	Role           Role      `json:"rol"`
	Vehicle        Vehicle   `json:"vehiculo,omitempty"`
	Available      bool      `json:"disponible"`
	DeliveredCount int       `json:"pedidosEntregados"`
	RatingAverage  float64   `json:"calificacionPromedio"`
	Active         bool      `json:"activo"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AccountSummary is the public view of an account embedded in orders and messages.
type AccountSummary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"nombre"`
	Phone         string    `json:"telefono,omitempty"`
	Email         string    `json:"email,omitempty"`
	Vehicle       Vehicle   `json:"vehiculo,omitempty"`
	RatingAverage *float64  `json:"calificacionPromedio,omitempty"`
}

func (a *Account) Summary() *AccountSummary {
	if a == nil {
		return nil
	}
	summary := &AccountSummary{
		ID:    a.ID,
		Name:  a.Name,
		Phone: a.Phone,
		Email: a.Email,
	}
	if a.Role == RoleCourier {
		rating := a.RatingAverage
		summary.Vehicle = a.Vehicle
		summary.RatingAverage = &rating
	}
	return summary
}
