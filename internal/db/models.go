package db

import "github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"

type Order = models.Order
type OrderStatus = models.OrderStatus
type LineItem = models.LineItem
type StatusChange = models.StatusChange
type Product = models.Product
type Account = models.Account
type Message = models.Message

const (
	StatusReceived  = models.StatusReceived
	StatusPreparing = models.StatusPreparing
	StatusEnRoute   = models.StatusEnRoute
	StatusDelivered = models.StatusDelivered
	StatusCanceled  = models.StatusCanceled
)
