package models

import (
	"time"

	"github.com/google/uuid"
)

type SenderRole string

const (
	SenderCustomer SenderRole = "cliente"
	SenderCourier  SenderRole = "repartidor"
)

type Message struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"pedido"`
	SenderID   uuid.UUID       `json:"remitente"`
	SenderRole SenderRole      `json:"tipoRemitente"`
	Body       string          `json:"mensaje"`
	CreatedAt  time.Time       `json:"createdAt"`
	Sender     *AccountSummary `json:"remitenteInfo,omitempty"`
}
