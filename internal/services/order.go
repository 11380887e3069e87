package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/cache"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/catalog"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/observability"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/realtime"
)

const (
	DefaultEstimatedDelivery = 30 * time.Minute
	idempotencyTTL           = 24 * time.Hour
	idempotencyPending       = "pending"
	maxRatingComment         = 200
)

type OrderService struct {
	orders            OrderRepository
	products          ProductRepository
	accounts          AccountRepository
	events            realtime.Broker
	idempotency       cache.Provider
	emailSender       OrderEmailSender
	estimatedDelivery time.Duration
	now               func() time.Time
	bg                background
	logger            *slog.Logger
}

type OrderServiceOptions struct {
	Events            realtime.Broker
	Idempotency       cache.Provider
	EmailSender       OrderEmailSender
	EstimatedDelivery time.Duration
}

func NewOrderService(orders OrderRepository, products ProductRepository, accounts AccountRepository, opts OrderServiceOptions, logger *slog.Logger) *OrderService {
	if opts.EmailSender == nil {
		opts.EmailSender = noopOrderEmailSender{}
	}
	if opts.EstimatedDelivery <= 0 {
		opts.EstimatedDelivery = DefaultEstimatedDelivery
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OrderService{
		orders:            orders,
		products:          products,
		accounts:          accounts,
		events:            opts.Events,
		idempotency:       opts.Idempotency,
		emailSender:       opts.EmailSender,
		estimatedDelivery: opts.EstimatedDelivery,
		now:               time.Now,
		logger:            logger.With("component", "order_service"),
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Wait blocks until background notifications have been sent.
func (s *OrderService) Wait() {
	s.bg.Wait()
}

// OrderView is an order with the parties involved resolved for display.
type OrderView struct {
	*models.Order
	Customer *models.AccountSummary `json:"clienteInfo,omitempty"`
	Courier  *models.AccountSummary `json:"repartidorInfo,omitempty"`
}

type LineItemInput struct {
	ProductID uuid.UUID       `json:"producto" validate:"required"`
	Name      string          `json:"nombre" validate:"max=100"`
	Image     string          `json:"imagen" validate:"max=500"`
	Quantity  int             `json:"cantidad" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"precio"`
}

type CreateOrderInput struct {
	Items         []LineItemInput      `json:"productos" validate:"required,min=1,dive"`
	Address       models.Address       `json:"direccionEntrega" validate:"required"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Tax           decimal.Decimal      `json:"impuestos"`
	ShippingCost  decimal.Decimal      `json:"costoEnvio"`
	Total         decimal.Decimal      `json:"total"`
	PaymentMethod models.PaymentMethod `json:"metodoPago" validate:"required"`
	Notes         string               `json:"notasEspeciales" validate:"max=200"`
}

func (in *CreateOrderInput) validate() error {
	if err := validateInput(in); err != nil {
		return err
	}
	if !in.PaymentMethod.Valid() {
		return invalid("Método de pago no válido")
	}
	for _, amount := range []decimal.Decimal{in.Subtotal, in.Tax, in.ShippingCost, in.Total} {
		if amount.IsNegative() {
			return invalid("Los montos no pueden ser negativos")
		}
		// Amounts are stored as NUMERIC(12,2) and must not be rounded on write.
		if !amount.Equal(amount.Round(2)) {
			return invalid("Los montos admiten como máximo dos decimales")
		}
	}
	for _, item := range in.Items {
		if item.UnitPrice.IsNegative() {
			return invalid("El precio de un producto no puede ser negativo")
		}
	}
	return nil
}

// Create places an order for the calling customer. Stock is checked up
// front for a clear error and then reserved atomically with the insert. A
// repeated idempotencyKey from the same customer returns the first order.
func (s *OrderService) Create(ctx context.Context, actor auth.Identity, input CreateOrderInput, idempotencyKey string) (_ *OrderView, err error) {
	ctx, op := observability.StartOperation(ctx, "service.order", "Create", "order.create")
	defer func() { op.End(err) }()

	if err := input.validate(); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" && s.idempotency != nil {
		cacheKey := cache.IdempotencyKey(actor.ID.String(), key)
		existing, reserved, err := s.reserveIdempotencyKey(ctx, cacheKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		if reserved {
			view, err := s.create(ctx, actor, input)
			if err != nil {
				if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), cacheKey); delErr != nil {
					s.loggerFromContext(ctx).Warn("failed to release idempotency key", "error", delErr)
				}
				return nil, err
			}
			if err := s.idempotency.Set(ctx, cacheKey, view.ID.String(), idempotencyTTL); err != nil {
				s.loggerFromContext(ctx).Warn("failed to store idempotency key", "order_id", view.ID, "error", err)
			}
			return view, nil
		}
	}

	return s.create(ctx, actor, input)
}

// reserveIdempotencyKey either returns the order a key already produced or
// claims the key for this request. When the cache is unreachable the order
// is placed without deduplication.
func (s *OrderService) reserveIdempotencyKey(ctx context.Context, cacheKey string) (*OrderView, bool, error) {
	reserved, err := s.idempotency.SetIfAbsent(ctx, cacheKey, idempotencyPending, idempotencyTTL)
	if err != nil {
		s.loggerFromContext(ctx).Warn("idempotency cache unavailable", "error", err)
		return nil, false, nil
	}
	if reserved {
		return nil, true, nil
	}

	value, err := s.idempotency.Get(ctx, cacheKey)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, false, conflict("La solicitud anterior con esta clave aún se está procesando")
		}
		s.loggerFromContext(ctx).Warn("idempotency cache unavailable", "error", err)
		return nil, false, nil
	}
	if value == idempotencyPending {
		return nil, false, conflict("La solicitud anterior con esta clave aún se está procesando")
	}
	orderID, err := uuid.Parse(value)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt idempotency entry: %w", err)
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, false, s.translate(err)
	}
	return s.view(ctx, order), false, nil
}

func (s *OrderService) create(ctx context.Context, actor auth.Identity, input CreateOrderInput) (*OrderView, error) {
	logger := s.loggerFromContext(ctx)

	requested := make(map[uuid.UUID]int, len(input.Items))
	for _, item := range input.Items {
		requested[item.ProductID] += item.Quantity
	}

	catalogItems := make(map[uuid.UUID]*models.Product, len(requested))
	for _, item := range input.Items {
		if _, seen := catalogItems[item.ProductID]; seen {
			continue
		}
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, notFound("Producto %s no encontrado", item.ProductID)
			}
			return nil, fmt.Errorf("failed to load product: %w", err)
		}
		if !product.Active {
			return nil, notFound("Producto %s no encontrado", item.ProductID)
		}
		if product.Stock < requested[item.ProductID] {
			return nil, &InsufficientStockError{ProductID: product.ID, Name: product.Name, Available: product.Stock}
		}
		catalogItems[item.ProductID] = product
	}

	items := make([]models.LineItem, 0, len(input.Items))
	for _, item := range input.Items {
		product := catalogItems[item.ProductID]
		lineItem := models.LineItem{
			ProductID: item.ProductID,
			Name:      strings.TrimSpace(item.Name),
			Image:     strings.TrimSpace(item.Image),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if lineItem.Name == "" {
			lineItem.Name = product.Name
		}
		if lineItem.Image == "" {
			lineItem.Image = product.Image
		}
		items = append(items, lineItem)
	}

	order := &models.Order{
		CustomerID:          actor.ID,
		Items:               items,
		Address:             input.Address,
		Subtotal:            input.Subtotal,
		Tax:                 input.Tax,
		ShippingCost:        input.ShippingCost,
		Total:               input.Total,
		PaymentMethod:       input.PaymentMethod,
		EstimatedDeliveryAt: s.now().UTC().Add(s.estimatedDelivery),
		Notes:               strings.TrimSpace(input.Notes),
	}

	if err := s.orders.Place(ctx, order); err != nil {
		return nil, s.translate(err)
	}

	logger = logger.With("order_id", order.ID, "order_number", order.Number)
	if computed := catalog.Subtotal(order.Items); !computed.Equal(order.Subtotal) {
		logger.Info("order subtotal differs from line items", "subtotal", order.Subtotal, "line_items", computed)
	}
	logger.Info("order placed", "items", len(order.Items), "total", order.Total)

	view := s.view(ctx, order)
	publish(ctx, &s.bg, s.events, logger, realtime.EventOrderCreated, order.ID, view, realtime.AdminTopic)
	s.bg.Go(ctx, logger, "order confirmation email", func(ctx context.Context) error {
		customer, err := s.accounts.GetByID(ctx, order.CustomerID)
		if err != nil {
			return err
		}
		return s.emailSender.SendOrderConfirmation(ctx, order, customer)
	})

	return view, nil
}

// Get returns an order the caller may read: its customer, its assigned
// courier, or an admin.
func (s *OrderService) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*OrderView, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(actor, order) {
		return nil, forbidden("No tienes acceso a este pedido")
	}
	return s.view(ctx, order), nil
}

// ListMine returns the caller's orders, newest first: placed orders for
// customers, assigned orders for couriers.
func (s *OrderService) ListMine(ctx context.Context, actor auth.Identity) ([]*OrderView, error) {
	var (
		orders []*models.Order
		err    error
	)
	if actor.Role == models.RoleCourier {
		orders, err = s.orders.ListByCourier(ctx, actor.ID)
	} else {
		orders, err = s.orders.ListByCustomer(ctx, actor.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.views(ctx, orders), nil
}

// ListAll returns every order, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status models.OrderStatus) ([]*OrderView, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("Estado no válido")
	}
	orders, err := s.orders.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.views(ctx, orders), nil
}

// ListAvailable returns orders couriers can still take, oldest first.
func (s *OrderService) ListAvailable(ctx context.Context) ([]*OrderView, error) {
	orders, err := s.orders.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list available orders: %w", err)
	}
	return s.views(ctx, orders), nil
}

// Assign hands an order to a courier on behalf of an operator.
func (s *OrderService) Assign(ctx context.Context, actor auth.Identity, id, courierID uuid.UUID) (_ *OrderView, err error) {
	ctx, op := observability.StartOperation(ctx, "service.order", "Assign", "order.assign")
	op.SetData("order_id", id.String())
	defer func() { op.End(err) }()

	if courierID == uuid.Nil {
		return nil, invalid("El campo repartidorId es obligatorio")
	}
	courier, err := s.accounts.GetByID(ctx, courierID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound("Repartidor no encontrado")
		}
		return nil, fmt.Errorf("failed to load courier: %w", err)
	}
	if courier.Role != models.RoleCourier {
		return nil, notFound("Repartidor no encontrado")
	}
	if !courier.Active {
		return nil, invalid("El repartidor está inactivo")
	}

	order, err := s.orders.Assign(ctx, id, courierID)
	if err != nil {
		return nil, s.translate(err)
	}

	logger := s.loggerFromContext(ctx).With("order_id", order.ID)
	logger.Info("courier assigned", "courier_id", courierID, "by", actor.ID)

	view := s.view(ctx, order)
	publish(ctx, &s.bg, s.events, logger, realtime.EventOrderAssigned, order.ID, view, realtime.OrderTopic(order.ID), realtime.AdminTopic)
	publish(ctx, &s.bg, s.events, logger, realtime.EventStatusChanged, order.ID, statusPayload(order), realtime.OrderTopic(order.ID))
	return view, nil
}

// Take lets a courier claim an unassigned order. Exactly one of several
// concurrent claims succeeds; the rest get a conflict.
func (s *OrderService) Take(ctx context.Context, actor auth.Identity, id uuid.UUID) (_ *OrderView, err error) {
	ctx, op := observability.StartOperation(ctx, "service.order", "Take", "order.take")
	op.SetData("order_id", id.String())
	defer func() { op.End(err) }()

	order, err := s.orders.Claim(ctx, id, actor.ID)
	if err != nil {
		return nil, s.translate(err)
	}

	logger := s.loggerFromContext(ctx).With("order_id", order.ID)
	logger.Info("order taken", "courier_id", actor.ID)

	view := s.view(ctx, order)
	publish(ctx, &s.bg, s.events, logger, realtime.EventOrderAssigned, order.ID, view, realtime.AdminTopic)
	publish(ctx, &s.bg, s.events, logger, realtime.EventStatusChanged, order.ID, statusPayload(order), realtime.OrderTopic(order.ID))
	return view, nil
}

type UpdateStatusInput struct {
	Status models.OrderStatus `json:"estado" validate:"required"`
	Note   string             `json:"nota" validate:"max=200"`
}

// UpdateStatus moves an order forward. Writing the current status again is
// a no-op; terminal orders reject changes. Couriers may only update orders
// assigned to them.
func (s *OrderService) UpdateStatus(ctx context.Context, actor auth.Identity, id uuid.UUID, input UpdateStatusInput) (_ *OrderView, err error) {
	ctx, op := observability.StartOperation(ctx, "service.order", "UpdateStatus", "order.status_change")
	op.SetData("order_id", id.String())
	op.SetData("status", string(input.Status))
	defer func() { op.End(err) }()

	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if !input.Status.Valid() {
		return nil, invalid("Estado no válido")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCourier && !order.IsCourier(actor.ID) {
		return nil, forbidden("Este pedido no está asignado a ti")
	}
	if order.Status == input.Status {
		return s.view(ctx, order), nil
	}
	if order.Status.Terminal() {
		return nil, conflict("El pedido ya está %s y no puede cambiar de estado", order.Status)
	}
	if !order.Status.CanTransitionTo(input.Status) {
		return nil, conflict("No se puede cambiar el estado de %s a %s", order.Status, input.Status)
	}
	if input.Status == models.StatusEnRoute && !order.HasCourier() {
		return nil, conflict("El pedido necesita un repartidor asignado para salir a entrega")
	}

	updated, err := s.orders.ChangeStatus(ctx, id, order.Status, input.Status, strings.TrimSpace(input.Note))
	if err != nil {
		return nil, s.translate(err)
	}

	logger := s.loggerFromContext(ctx).With("order_id", updated.ID)
	logger.Info("order status changed", "from", order.Status, "to", updated.Status, "by", actor.ID)

	publish(ctx, &s.bg, s.events, logger, realtime.EventStatusChanged, updated.ID, statusPayload(updated), realtime.OrderTopic(updated.ID), realtime.AdminTopic)
	if updated.Status == models.StatusDelivered {
		s.bg.Go(ctx, logger, "order delivered email", func(ctx context.Context) error {
			customer, err := s.accounts.GetByID(ctx, updated.CustomerID)
			if err != nil {
				return err
			}
			return s.emailSender.SendOrderDelivered(ctx, updated, customer)
		})
	}

	return s.view(ctx, updated), nil
}

type RateInput struct {
	Score   int    `json:"puntuacion"`
	Comment string `json:"comentario"`
}

// Rate records the customer's rating of a delivered order and refreshes the
// courier's average. Checks run in a fixed order so the caller gets the
// most specific failure.
func (s *OrderService) Rate(ctx context.Context, actor auth.Identity, id uuid.UUID, input RateInput) (_ *OrderView, err error) {
	ctx, op := observability.StartOperation(ctx, "service.order", "Rate", "order.rate")
	op.SetData("order_id", id.String())
	defer func() { op.End(err) }()

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsCustomer(actor.ID) {
		return nil, forbidden("Solo el cliente del pedido puede calificarlo")
	}
	if order.Status != models.StatusDelivered {
		return nil, invalid("Solo puedes calificar pedidos entregados")
	}
	if order.Rating != nil {
		return nil, conflict("Este pedido ya fue calificado")
	}
	if input.Score < 1 || input.Score > 5 {
		return nil, invalid("La puntuación debe estar entre 1 y 5")
	}
	comment := strings.TrimSpace(input.Comment)
	if len([]rune(comment)) > maxRatingComment {
		return nil, invalid("El comentario no puede exceder %d caracteres", maxRatingComment)
	}

	rated, err := s.orders.Rate(ctx, id, actor.ID, input.Score, comment)
	if err != nil {
		return nil, s.translate(err)
	}

	logger := s.loggerFromContext(ctx).With("order_id", rated.ID)
	logger.Info("order rated", "score", input.Score)

	if rated.HasCourier() {
		if err := s.refreshCourierRating(ctx, *rated.CourierID); err != nil {
			// The next rating recomputes the average from scratch.
			logger.Error("failed to refresh courier rating", "courier_id", *rated.CourierID, "error", err)
		}
	}

	return s.view(ctx, rated), nil
}

func (s *OrderService) refreshCourierRating(ctx context.Context, courierID uuid.UUID) error {
	average, count, err := s.orders.CourierRatingStats(ctx, courierID)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return s.accounts.SetCourierRating(ctx, courierID, average)
}

type LocationInput struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// ShareLocation broadcasts the assigned courier's position on the order's
// topic. Nothing is persisted.
func (s *OrderService) ShareLocation(ctx context.Context, actor auth.Identity, id uuid.UUID, input LocationInput) error {
	if err := validateInput(&input); err != nil {
		return err
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !order.IsCourier(actor.ID) {
		return forbidden("Este pedido no está asignado a ti")
	}
	if order.Status != models.StatusEnRoute {
		return conflict("Solo puedes compartir tu ubicación con pedidos en camino")
	}

	publish(ctx, &s.bg, s.events, s.loggerFromContext(ctx), realtime.EventDeliveryLocation, order.ID, models.Coordinates{Lat: input.Lat, Lng: input.Lng}, realtime.OrderTopic(order.ID))
	return nil
}

// Subscribe streams events for one order to a caller allowed to read it.
// Admins may pass uuid.Nil to follow every order.
func (s *OrderService) Subscribe(ctx context.Context, actor auth.Identity, id uuid.UUID) (<-chan realtime.Event, func(), error) {
	if s.events == nil {
		return nil, nil, fmt.Errorf("%w: realtime events are disabled", ErrServiceUnavailable)
	}

	topic := realtime.AdminTopic
	if id != uuid.Nil {
		order, err := s.load(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !canRead(actor, order) {
			return nil, nil, forbidden("No tienes acceso a este pedido")
		}
		topic = realtime.OrderTopic(order.ID)
	} else if actor.Role != models.RoleAdmin {
		return nil, nil, forbidden("No tienes acceso a todos los pedidos")
	}

	return s.events.Subscribe(ctx, topic)
}

func (s *OrderService) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	return order, nil
}

// translate maps store failures to domain errors.
func (s *OrderService) translate(err error) error {
	var stockErr *db.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return &InsufficientStockError{ProductID: stockErr.ProductID, Name: stockErr.Name, Available: stockErr.Available}
	case errors.Is(err, db.ErrNotFound):
		return notFound("Pedido no encontrado")
	case errors.Is(err, db.ErrAlreadyClaimed):
		return conflict("Este pedido ya fue tomado por otro repartidor")
	case errors.Is(err, db.ErrAlreadyRated):
		return conflict("Este pedido ya fue calificado")
	case errors.Is(err, db.ErrInvalidStatusTransition):
		return conflict("El pedido cambió de estado, vuelve a consultarlo")
	default:
		return err
	}
}

func canRead(actor auth.Identity, order *models.Order) bool {
	switch {
	case order.IsCustomer(actor.ID):
		return true
	case actor.Role == models.RoleAdmin:
		return true
	case actor.Role == models.RoleCourier && order.IsCourier(actor.ID):
		return true
	default:
		return false
	}
}

type statusEvent struct {
	Status      models.OrderStatus `json:"estado"`
	CourierID   *uuid.UUID         `json:"repartidor,omitempty"`
	DeliveredAt *time.Time         `json:"fechaEntregaReal,omitempty"`
}

func statusPayload(order *models.Order) statusEvent {
	return statusEvent{Status: order.Status, CourierID: order.CourierID, DeliveredAt: order.DeliveredAt}
}

func (s *OrderService) view(ctx context.Context, order *models.Order) *OrderView {
	return s.views(ctx, []*models.Order{order})[0]
}

// views resolves customer and courier summaries once per account. Lookup
// failures leave the summary empty rather than failing the read.
func (s *OrderService) views(ctx context.Context, orders []*models.Order) []*OrderView {
	summaries := make(map[uuid.UUID]*models.AccountSummary)
	summary := func(id uuid.UUID) *models.AccountSummary {
		if cached, ok := summaries[id]; ok {
			return cached
		}
		account, err := s.accounts.GetByID(ctx, id)
		if err != nil {
			s.loggerFromContext(ctx).Debug("account lookup for order view failed", "account_id", id, "error", err)
		}
		summaries[id] = account.Summary()
		return summaries[id]
	}

	views := make([]*OrderView, 0, len(orders))
	for _, order := range orders {
		view := &OrderView{Order: order, Customer: summary(order.CustomerID)}
		if order.HasCourier() {
			view.Courier = summary(*order.CourierID)
		}
		views = append(views, view)
	}
	return views
}
