package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/email"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

type OrderEmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, customer *models.Account) error
	SendOrderDelivered(ctx context.Context, order *models.Order, customer *models.Account) error
}

// ProviderOrderEmailSender renders order emails and sends them through a
// single configured provider.
type ProviderOrderEmailSender struct {
	provider email.Provider
	renderer *email.Renderer
	storeURL string
	location *time.Location
}

func NewProviderOrderEmailSender(provider email.Provider, storeURL string, location *time.Location) (*ProviderOrderEmailSender, error) {
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return &ProviderOrderEmailSender{
		provider: provider,
		renderer: renderer,
		storeURL: storeURL,
		location: location,
	}, nil
}

func (s *ProviderOrderEmailSender) SendOrderConfirmation(ctx context.Context, order *models.Order, customer *models.Account) error {
	return s.send(ctx, email.TemplateOrderConfirmation, order, customer)
}

func (s *ProviderOrderEmailSender) SendOrderDelivered(ctx context.Context, order *models.Order, customer *models.Account) error {
	return s.send(ctx, email.TemplateOrderDelivered, order, customer)
}

func (s *ProviderOrderEmailSender) send(ctx context.Context, templateName string, order *models.Order, customer *models.Account) error {
	if order == nil || customer == nil {
		return fmt.Errorf("order and customer are required")
	}
	info := email.BuildOrderInfo(order, customer, s.storeURL, s.location)
	return s.renderer.Send(ctx, s.provider, templateName, info)
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendOrderConfirmation(context.Context, *models.Order, *models.Account) error {
	return nil
}

func (noopOrderEmailSender) SendOrderDelivered(context.Context, *models.Order, *models.Account) error {
	return nil
}
