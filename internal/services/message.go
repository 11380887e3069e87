package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/realtime"
)

const maxMessageLength = 500

// MessageService is the chat between an order's customer and its courier.
type MessageService struct {
	messages MessageRepository
	orders   OrderRepository
	accounts AccountRepository
	events   realtime.Notifier
	bg       background
	logger   *slog.Logger
}

func NewMessageService(messages MessageRepository, orders OrderRepository, accounts AccountRepository, events realtime.Notifier, logger *slog.Logger) *MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		messages: messages,
		orders:   orders,
		accounts: accounts,
		events:   events,
		logger:   logger.With("component", "message_service"),
	}
}

func (s *MessageService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *MessageService) Wait() {
	s.bg.Wait()
}

type SendMessageInput struct {
	Body string `json:"mensaje"`
}

// Send posts a message as the order's customer or assigned courier.
func (s *MessageService) Send(ctx context.Context, actor auth.Identity, orderID uuid.UUID, input SendMessageInput) (*models.Message, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, invalid("El mensaje no puede estar vacío")
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return nil, invalid("El mensaje no puede exceder %d caracteres", maxMessageLength)
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var role models.SenderRole
	switch {
	case order.IsCustomer(actor.ID):
		role = models.SenderCustomer
	case order.IsCourier(actor.ID):
		role = models.SenderCourier
	default:
		return nil, forbidden("No tienes acceso a este chat")
	}

	message := &models.Message{
		OrderID:    order.ID,
		SenderID:   actor.ID,
		SenderRole: role,
		Body:       body,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	sender, err := s.accounts.GetByID(ctx, actor.ID)
	if err != nil {
		s.loggerFromContext(ctx).Debug("sender lookup failed", "account_id", actor.ID, "error", err)
	}
	message.Sender = sender.Summary()

	logger := s.loggerFromContext(ctx).With("order_id", order.ID)
	logger.Debug("message sent", "message_id", message.ID, "sender_role", role)
	publish(ctx, &s.bg, s.events, logger, realtime.EventNewMessage, order.ID, message, realtime.OrderTopic(order.ID))

	return message, nil
}

// List returns the chat log oldest first. Participants and admins may read it.
func (s *MessageService) List(ctx context.Context, actor auth.Identity, orderID uuid.UUID) ([]*models.Message, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsCustomer(actor.ID) && !order.IsCourier(actor.ID) && actor.Role != models.RoleAdmin {
		return nil, forbidden("No tienes acceso a este chat")
	}

	messages, err := s.messages.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (s *MessageService) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound("Pedido no encontrado")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}
