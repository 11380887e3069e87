package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

type OrderStore struct {
	pool     *pgxpool.Pool
	location *time.Location
	now      func() time.Time
}

// NewOrderStore returns an order store whose daily order numbers roll over at
// midnight in location (UTC when nil).
func NewOrderStore(pool *pgxpool.Pool, location *time.Location) *OrderStore {
	if location == nil {
		location = time.UTC
	}
	return &OrderStore{
		pool:     pool,
		location: location,
		now:      time.Now,
	}
}

const orderColumns = `id, number, customer_id, courier_id, items, address, subtotal, tax, shipping_cost, total,
	payment_method, status, estimated_delivery_at, delivered_at, rating_score, rating_comment, rated_at,
	history, notes, created_at, updated_at`

// Place persists a new order and takes its line items out of stock in one
// transaction. Either the order exists and every product was decremented,
// or nothing changed. The order number comes from a per-day counter row
// updated inside the same transaction.
func (s *OrderStore) Place(ctx context.Context, order *Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}

	now := s.now().UTC()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.Status = StatusReceived
	order.CourierID = nil
	order.CreatedAt = now
	order.UpdatedAt = now
	order.History = []StatusChange{{Status: StatusReceived, At: now}}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	addressJSON, err := json.Marshal(order.Address)
	if err != nil {
		return err
	}
	historyJSON, err := json.Marshal(order.History)
	if err != nil {
		return err
	}

	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, r := range reservations(order.Items) {
			if err := decrementStock(ctx, tx, r.productID, r.quantity); err != nil {
				return err
			}
		}

		day := now.In(s.location)
		seq, err := nextOrderSequence(ctx, tx, day)
		if err != nil {
			return err
		}
		order.Number = FormatOrderNumber(day, seq)

		_, err = tx.Exec(ctx, `
			INSERT INTO orders (id, number, customer_id, items, address, subtotal, tax, shipping_cost, total,
				payment_method, status, estimated_delivery_at, history, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
			order.ID, order.Number, order.CustomerID, itemsJSON, addressJSON, order.Subtotal, order.Tax,
			order.ShippingCost, order.Total, string(order.PaymentMethod), string(order.Status),
			order.EstimatedDeliveryAt, historyJSON, order.Notes, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return nil
	})
}

func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
}

// ListByCustomer returns a customer's orders, newest first.
func (s *OrderStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error) {
	return s.queryOrders(ctx, "SELECT "+orderColumns+" FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
}

// ListByCourier returns the orders assigned to a courier, newest first.
func (s *OrderStore) ListByCourier(ctx context.Context, courierID uuid.UUID) ([]*Order, error) {
	return s.queryOrders(ctx, "SELECT "+orderColumns+" FROM orders WHERE courier_id = $1 ORDER BY created_at DESC", courierID)
}

// List returns every order, newest first, optionally filtered by status.
func (s *OrderStore) List(ctx context.Context, status models.OrderStatus) ([]*Order, error) {
	if status == "" {
		return s.queryOrders(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	}
	return s.queryOrders(ctx, "SELECT "+orderColumns+" FROM orders WHERE status = $1 ORDER BY created_at DESC", string(status))
}

// ListAvailable returns unassigned orders couriers can still claim, oldest first.
func (s *OrderStore) ListAvailable(ctx context.Context) ([]*Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE courier_id IS NULL AND status IN ('recibido', 'preparando')
		ORDER BY created_at ASC`)
}

// Claim sets the courier of an unassigned, claimable order and moves it to
// en route in a single conditional update.
func (s *OrderStore) Claim(ctx context.Context, id, courierID uuid.UUID) (*Order, error) {
	now := s.now().UTC()
	entry, err := historyEntry(StatusEnRoute, now, "")
	if err != nil {
		return nil, err
	}

	order, err := scanOrder(s.pool.QueryRow(ctx, `
		UPDATE orders
		SET courier_id = $2, status = 'en_camino', history = history || $3::jsonb, updated_at = $4
		WHERE id = $1 AND courier_id IS NULL AND status IN ('recibido', 'preparando')
		RETURNING `+orderColumns, id, courierID, entry, now))
	if errors.Is(err, ErrNotFound) {
		return nil, s.classifyCourierConflict(ctx, id, func(current *Order) bool {
			return current.HasCourier()
		})
	}
	return order, err
}

// Assign sets the courier chosen by an operator and moves the order to
// preparing. An order that already has a different courier, or that left
// the claimable statuses, is not modified.
func (s *OrderStore) Assign(ctx context.Context, id, courierID uuid.UUID) (*Order, error) {
	now := s.now().UTC()
	entry, err := historyEntry(StatusPreparing, now, "")
	if err != nil {
		return nil, err
	}

	order, err := scanOrder(s.pool.QueryRow(ctx, `
		UPDATE orders
		SET courier_id = $2,
		    status = 'preparando',
		    history = CASE WHEN status <> 'preparando' THEN history || $3::jsonb ELSE history END,
		    updated_at = $4
		WHERE id = $1 AND (courier_id IS NULL OR courier_id = $2) AND status IN ('recibido', 'preparando')
		RETURNING `+orderColumns, id, courierID, entry, now))
	if errors.Is(err, ErrNotFound) {
		return nil, s.classifyCourierConflict(ctx, id, func(current *Order) bool {
			return current.HasCourier() && !current.IsCourier(courierID)
		})
	}
	return order, err
}

// ChangeStatus moves an order from status `from` to `to` only if it is still
// in `from`. Entering delivered stamps the delivery time and counts the
// delivery for the courier; entering canceled puts the line items back in
// stock. All of it happens in one transaction.
func (s *OrderStore) ChangeStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, note string) (*Order, error) {
	now := s.now().UTC()
	entry, err := historyEntry(to, now, note)
	if err != nil {
		return nil, err
	}

	var updated *Order
	err = inTx(ctx, s.pool, func(tx pgx.Tx) error {
		order, err := scanOrder(tx.QueryRow(ctx, `
			UPDATE orders
			SET status = $3,
			    history = history || $4::jsonb,
			    delivered_at = CASE WHEN $3::text = 'entregado' THEN $5::timestamptz ELSE delivered_at END,
			    updated_at = $5
			WHERE id = $1 AND status = $2 AND ($3::text <> 'en_camino' OR courier_id IS NOT NULL)
			RETURNING `+orderColumns, id, string(from), string(to), entry, now))
		if errors.Is(err, ErrNotFound) {
			if _, getErr := scanOrder(tx.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)); getErr != nil {
				return getErr
			}
			return fmt.Errorf("%w: expected %s", ErrInvalidStatusTransition, from)
		}
		if err != nil {
			return err
		}

		switch to {
		case StatusCanceled:
			for _, r := range reservations(order.Items) {
				if err := restoreStock(ctx, tx, r.productID, r.quantity); err != nil {
					return fmt.Errorf("failed to restore stock: %w", err)
				}
			}
		case StatusDelivered:
			if order.HasCourier() {
				if err := incrementDelivered(ctx, tx, *order.CourierID); err != nil {
					return fmt.Errorf("failed to count delivery: %w", err)
				}
			}
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Rate stores the customer's rating of a delivered, not yet rated order.
func (s *OrderStore) Rate(ctx context.Context, id, customerID uuid.UUID, score int, comment string) (*Order, error) {
	now := s.now().UTC()
	order, err := scanOrder(s.pool.QueryRow(ctx, `
		UPDATE orders
		SET rating_score = $3, rating_comment = $4, rated_at = $5, updated_at = $5
		WHERE id = $1 AND customer_id = $2 AND status = 'entregado' AND rating_score IS NULL
		RETURNING `+orderColumns,
		id, customerID, score, pgtype.Text{String: comment, Valid: comment != ""}, now))
	if !errors.Is(err, ErrNotFound) {
		return order, err
	}

	current, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	switch {
	case current.CustomerID != customerID:
		return nil, ErrNotFound
	case current.Rating != nil:
		return nil, ErrAlreadyRated
	default:
		return nil, fmt.Errorf("%w: expected %s", ErrInvalidStatusTransition, StatusDelivered)
	}
}

// CourierRatingStats aggregates every rating given to a courier's delivered orders.
func (s *OrderStore) CourierRatingStats(ctx context.Context, courierID uuid.UUID) (average float64, count int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating_score)::double precision, 0), COUNT(rating_score)
		FROM orders
		WHERE courier_id = $1 AND status = 'entregado' AND rating_score IS NOT NULL`, courierID).Scan(&average, &count)
	return average, count, err
}

// classifyCourierConflict explains why a conditional courier update matched
// no row: the order is missing, taken, or no longer claimable.
func (s *OrderStore) classifyCourierConflict(ctx context.Context, id uuid.UUID, taken func(*Order) bool) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if taken(current) {
		return ErrAlreadyClaimed
	}
	return fmt.Errorf("%w: order is %s", ErrInvalidStatusTransition, current.Status)
}

func (s *OrderStore) queryOrders(ctx context.Context, query string, args ...any) ([]*Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// FormatOrderNumber renders the human readable order number for the
// seq-th order placed on day, e.g. DC261017-0003.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("DC%s-%04d", day.Format("060102"), seq)
}

func nextOrderSequence(ctx context.Context, q querier, day time.Time) (int, error) {
	var seq int
	err := q.QueryRow(ctx, `
		INSERT INTO order_counters (day, value) VALUES ($1::date, 1)
		ON CONFLICT (day) DO UPDATE SET value = order_counters.value + 1
		RETURNING value`, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate order number: %w", err)
	}
	return seq, nil
}

type reservation struct {
	productID uuid.UUID
	quantity  int
}

// reservations sums quantities per product and orders them by id so
// concurrent placements lock product rows in the same order.
func reservations(items []LineItem) []reservation {
	totals := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		totals[item.ProductID] += item.Quantity
	}

	out := make([]reservation, 0, len(totals))
	for id, qty := range totals {
		out = append(out, reservation{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].productID[:], out[j].productID[:]) < 0
	})
	return out
}

func historyEntry(status models.OrderStatus, at time.Time, note string) ([]byte, error) {
	return json.Marshal([]StatusChange{{Status: status, At: at, Note: note}})
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order         Order
		courierID     pgtype.UUID
		itemsJSON     []byte
		addressJSON   []byte
		historyJSON   []byte
		paymentMethod string
		status        string
		deliveredAt   pgtype.Timestamptz
		ratingScore   pgtype.Int2
		ratingComment pgtype.Text
		ratedAt       pgtype.Timestamptz
	)
	err := row.Scan(
		&order.ID, &order.Number, &order.CustomerID, &courierID, &itemsJSON, &addressJSON,
		&order.Subtotal, &order.Tax, &order.ShippingCost, &order.Total,
		&paymentMethod, &status, &order.EstimatedDeliveryAt, &deliveredAt,
		&ratingScore, &ratingComment, &ratedAt,
		&historyJSON, &order.Notes, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	order.PaymentMethod = models.PaymentMethod(paymentMethod)
	order.Status = models.OrderStatus(status)
	if courierID.Valid {
		id := uuid.UUID(courierID.Bytes)
		order.CourierID = &id
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		order.DeliveredAt = &t
	}
	if ratingScore.Valid {
		order.Rating = &models.Rating{
			Score:   int(ratingScore.Int16),
			Comment: ratingComment.String,
			RatedAt: ratedAt.Time,
		}
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.Address); err != nil {
		return nil, fmt.Errorf("failed to decode order address: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &order.History); err != nil {
		return nil, fmt.Errorf("failed to decode order history: %w", err)
	}

	return &order, nil
}
