package db

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound                = errors.New("record not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrAlreadyClaimed          = errors.New("order already has a courier")
	ErrAlreadyRated            = errors.New("order already rated")
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrDuplicateProduct        = errors.New("product name already exists")
)

// InsufficientStockError is returned when a stock decrement would go below zero.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Name      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: only %d available", e.ProductID, e.Available)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
