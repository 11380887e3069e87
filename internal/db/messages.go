package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Create appends a message to the order's chat log.
func (s *MessageStore) Create(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, order_id, sender_id, sender_role, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		m.ID, m.OrderID, m.SenderID, string(m.SenderRole), m.Body,
	).Scan(&m.CreatedAt)
}

// ListByOrder returns the chat log in insertion order with sender details.
func (s *MessageStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.order_id, m.sender_id, m.sender_role, m.body, m.created_at, a.name
		FROM messages m
		JOIN accounts a ON a.id = m.sender_id
		WHERE m.order_id = $1
		ORDER BY m.created_at ASC, m.seq ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var (
			m          Message
			senderRole string
			senderName string
		)
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &senderRole, &m.Body, &m.CreatedAt, &senderName); err != nil {
			return nil, err
		}
		m.SenderRole = models.SenderRole(senderRole)
		m.Sender = &models.AccountSummary{ID: m.SenderID, Name: senderName}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
