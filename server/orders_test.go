package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/authz"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/cache"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/config"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/crypto"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db/dbtest"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/handlers"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/realtime"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

// orderAPI is the full router over in-memory stores.
type orderAPI struct {
	handler http.Handler
	store   *dbtest.Store
	tokens  *auth.TokenManager
}

func newOrderAPI(t *testing.T) *orderAPI {
	t.Helper()

	cfg := &config.Config{Port: "0", FrontendURL: "https://tienda.example.com"}
	logger := logging.Discard()
	store := dbtest.NewStore()

	tokens, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	enforcer, err := authz.NewEnforcer()
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	hasher, err := crypto.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	authService, err := services.NewAuthService(store.Accounts(), hasher, tokens, logger)
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}
	idempotency, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() { _ = broker.Close() })

	orders := services.NewOrderService(store.Orders(), store.Products(), store.Accounts(), services.OrderServiceOptions{
		Events:      broker,
		Idempotency: idempotency,
	}, logger)
	messages := services.NewMessageService(store.Messages(), store.Orders(), store.Accounts(), broker, logger)
	t.Cleanup(func() {
		orders.Wait()
		messages.Wait()
	})

	h, err := handlers.New(handlers.Dependencies{
		Config:         cfg,
		DB:             healthyDB{},
		Tokens:         tokens,
		Authorizer:     enforcer,
		AuthService:    authService,
		OrderService:   orders,
		MessageService: messages,
		ProductService: services.NewProductService(store.Products(), logger),
		UserService:    services.NewUserService(store.Accounts(), logger),
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("handlers.New() error = %v", err)
	}
	srv, err := New(cfg, logger, h)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &orderAPI{handler: srv.Handler(), store: store, tokens: tokens}
}

// login stores an active account with the given role and returns its token.
func (a *orderAPI) login(t *testing.T, role models.Role, name string) (uuid.UUID, string) {
	t.Helper()
	account := &models.Account{
		ID:     uuid.New(),
		Name:   name,
		Email:  uuid.NewString() + "@example.com",
		Role:   role,
		Active: true,
	}
	if role == models.RoleCourier {
		account.Vehicle = models.VehicleMotorbike
		account.RatingAverage = models.DefaultCourierRating
	}
	a.store.PutAccount(account)
	token, err := a.tokens.Issue(account)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return account.ID, token
}

func (a *orderAPI) product(stock int) *models.Product {
	product := &models.Product{
		ID:       uuid.New(),
		Name:     "Modelo Especial " + uuid.NewString()[:8],
		Price:    decimal.RequireFromString("25"),
		Category: models.CategoryBeer,
		Stock:    stock,
		Active:   true,
	}
	a.store.PutProduct(product)
	return product
}

func (a *orderAPI) do(t *testing.T, method, path, token string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
}

type orderBody struct {
	ID        uuid.UUID  `json:"id"`
	Status    string     `json:"estado"`
	CourierID *uuid.UUID `json:"repartidor"`
	Rating    *struct {
		Score   int    `json:"puntuacion"`
		Comment string `json:"comentario"`
	} `json:"calificacion"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int) apiResponse {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, rec.Code, rec.Body.String())
	}
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if want := wantStatus < http.StatusBadRequest; resp.Success != want {
		t.Fatalf("expected success=%v for status %d", want, wantStatus)
	}
	return resp
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int) orderBody {
	t.Helper()
	resp := decodeResponse(t, rec, wantStatus)
	var order orderBody
	if err := json.Unmarshal(resp.Data, &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	return order
}

// orderRequest is the body a storefront sends, using the wire field names.
func orderRequest(product *models.Product, quantity int) map[string]any {
	return map[string]any{
		"productos": []map[string]any{
			{"producto": product.ID, "cantidad": quantity, "precio": 25},
		},
		"direccionEntrega": map[string]any{
			"calle":       "Insurgentes Sur",
			"numero":      "1602",
			"ciudad":      "CDMX",
			"coordenadas": map[string]any{"lat": 19.3645, "lng": -99.1826},
		},
		"subtotal":   25 * quantity,
		"impuestos":  0,
		"costoEnvio": 0,
		"total":      25 * quantity,
		"metodoPago": "efectivo",
	}
}

func TestCreateOrderOverHTTP(t *testing.T) {
	t.Parallel()

	api := newOrderAPI(t)
	_, customer := api.login(t, models.RoleCustomer, "Lucía")
	product := api.product(5)

	key := http.Header{"Idempotency-Key": []string{"checkout-7f3a"}}
	first := decodeOrder(t, api.do(t, http.MethodPost, "/orders", customer, orderRequest(product, 2), key), http.StatusCreated)
	if first.ID == uuid.Nil {
		t.Fatal("expected created order id")
	}
	if first.Status != string(models.StatusReceived) {
		t.Fatalf("expected status %q, got %q", models.StatusReceived, first.Status)
	}

	repeat := decodeOrder(t, api.do(t, http.MethodPost, "/orders", customer, orderRequest(product, 2), key), http.StatusCreated)
	if repeat.ID != first.ID {
		t.Fatalf("expected idempotent retry to return order %s, got %s", first.ID, repeat.ID)
	}
	if stored, _ := api.store.Product(product.ID); stored.Stock != 3 {
		t.Fatalf("expected stock reserved once (3 left), got %d", stored.Stock)
	}

	other := decodeOrder(t, api.do(t, http.MethodPost, "/orders", customer, orderRequest(product, 1), nil), http.StatusCreated)
	if other.ID == first.ID {
		t.Fatal("expected a request without Idempotency-Key to place a new order")
	}
}

func TestCreateOrderRejectsMissingCoordinates(t *testing.T) {
	t.Parallel()

	api := newOrderAPI(t)
	_, customer := api.login(t, models.RoleCustomer, "Lucía")
	product := api.product(5)

	body := orderRequest(product, 1)
	delete(body["direccionEntrega"].(map[string]any), "coordenadas")

	resp := decodeResponse(t, api.do(t, http.MethodPost, "/orders", customer, body, nil), http.StatusBadRequest)
	if resp.Message == "" {
		t.Fatal("expected validation message")
	}
	if stored, _ := api.store.Product(product.ID); stored.Stock != 5 {
		t.Fatalf("expected stock untouched, got %d", stored.Stock)
	}
}

func TestListOrdersFiltersByEstado(t *testing.T) {
	t.Parallel()

	api := newOrderAPI(t)
	_, customer := api.login(t, models.RoleCustomer, "Lucía")
	courierID, courier := api.login(t, models.RoleCourier, "Mario")
	_, admin := api.login(t, models.RoleAdmin, "Don Chupilas")
	product := api.product(10)

	waiting := decodeOrder(t, api.do(t, http.MethodPost, "/orders", customer, orderRequest(product, 1), nil), http.StatusCreated)
	taken := decodeOrder(t, api.do(t, http.MethodPost, "/orders", customer, orderRequest(product, 1), nil), http.StatusCreated)
	decodeOrder(t, api.do(t, http.MethodPut, "/orders/"+taken.ID.String()+"/take", courier, nil, nil), http.StatusOK)

	tests := []struct {
		name  string
		query string
		want  []uuid.UUID
	}{
		{name: "received", query: "?estado=recibido", want: []uuid.UUID{waiting.ID}},
		{name: "en route", query: "?estado=en_camino", want: []uuid.UUID{taken.ID}},
		{name: "delivered", query: "?estado=entregado", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeResponse(t, api.do(t, http.MethodGet, "/orders"+tt.query, admin, nil, nil), http.StatusOK)
			var orders []orderBody
			if err := json.Unmarshal(resp.Data, &orders); err != nil {
				t.Fatalf("decode orders: %v", err)
			}
			if resp.Count == nil || *resp.Count != len(tt.want) {
				t.Fatalf("expected count %d, got %v", len(tt.want), resp.Count)
			}
			for i, id := range tt.want {
				if orders[i].ID != id {
					t.Fatalf("expected order %s at %d, got %s", id, i, orders[i].ID)
				}
			}
		})
	}

	if got := decodeOrder(t, api.do(t, http.MethodGet, "/orders/"+taken.ID.String(), admin, nil, nil), http.StatusOK); got.CourierID == nil || *got.CourierID != courierID {
		t.Fatalf("expected courier %s on taken order, got %v", courierID, got.CourierID)
	}

	decodeResponse(t, api.do(t, http.MethodGet, "/orders?estado=perdido", admin, nil, nil), http.StatusBadRequest)
	decodeResponse(t, api.do(t, http.MethodGet, "/orders", customer, nil, nil), http.StatusForbidden)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	api := newOrderAPI(t)
	_, customer := api.login(t, models.RoleCustomer, "Lucía")
	courierID, courier := api.login(t, models.RoleCourier, "Mario")
	_, rival := api.login(t, models.RoleCourier, "Pepe")
	_, admin := api.login(t, models.RoleAdmin, "Don Chupilas")
	product := api.product(10)

	assigned := decodeOrder(t, api.do(t, http.MethodPost, "/orders", customer, orderRequest(product, 1), nil), http.StatusCreated)
	path := "/orders/" + assigned.ID.String()

	got := decodeOrder(t, api.do(t, http.MethodPut, path+"/assign", admin, map[string]any{"repartidorId": courierID}, nil), http.StatusOK)
	if got.CourierID == nil || *got.CourierID != courierID {
		t.Fatalf("expected courier %s assigned, got %v", courierID, got.CourierID)
	}
	if got.Status != string(models.StatusPreparing) {
		t.Fatalf("expected status %q after assign, got %q", models.StatusPreparing, got.Status)
	}
	decodeResponse(t, api.do(t, http.MethodPut, path+"/assign", admin, map[string]any{}, nil), http.StatusBadRequest)

	got = decodeOrder(t, api.do(t, http.MethodPut, path+"/status", courier, map[string]any{"estado": "en_camino", "nota": "Saliendo"}, nil), http.StatusOK)
	if got.Status != string(models.StatusEnRoute) {
		t.Fatalf("expected status %q, got %q", models.StatusEnRoute, got.Status)
	}
	decodeResponse(t, api.do(t, http.MethodPut, path+"/status", rival, map[string]any{"estado": "entregado"}, nil), http.StatusForbidden)
	got = decodeOrder(t, api.do(t, http.MethodPut, path+"/status", courier, map[string]any{"estado": "entregado"}, nil), http.StatusOK)
	if got.Status != string(models.StatusDelivered) {
		t.Fatalf("expected status %q, got %q", models.StatusDelivered, got.Status)
	}
	decodeResponse(t, api.do(t, http.MethodPut, path+"/status", admin, map[string]any{"estado": "cancelado"}, nil), http.StatusConflict)

	got = decodeOrder(t, api.do(t, http.MethodPost, path+"/rating", customer, map[string]any{"puntuacion": 4, "comentario": "Llegó frío"}, nil), http.StatusOK)
	if got.Rating == nil || got.Rating.Score != 4 || got.Rating.Comment != "Llegó frío" {
		t.Fatalf("expected rating 4 with comment, got %+v", got.Rating)
	}
	decodeResponse(t, api.do(t, http.MethodPost, path+"/rating", customer, map[string]any{"puntuacion": 5}, nil), http.StatusConflict)

	if account, _ := api.store.Account(courierID); account.RatingAverage != 4 {
		t.Fatalf("expected courier average 4, got %v", account.RatingAverage)
	}
}

func TestTakeOrderTwiceConflicts(t *testing.T) {
	t.Parallel()

	api := newOrderAPI(t)
	_, customer := api.login(t, models.RoleCustomer, "Lucía")
	courierID, courier := api.login(t, models.RoleCourier, "Mario")
	_, rival := api.login(t, models.RoleCourier, "Pepe")
	product := api.product(10)

	order := decodeOrder(t, api.do(t, http.MethodPost, "/orders", customer, orderRequest(product, 1), nil), http.StatusCreated)
	path := "/orders/" + order.ID.String() + "/take"

	taken := decodeOrder(t, api.do(t, http.MethodPut, path, courier, nil, nil), http.StatusOK)
	if taken.CourierID == nil || *taken.CourierID != courierID {
		t.Fatalf("expected courier %s, got %v", courierID, taken.CourierID)
	}

	for name, token := range map[string]string{"rival": rival, "same courier": courier} {
		resp := decodeResponse(t, api.do(t, http.MethodPut, path, token, nil, nil), http.StatusConflict)
		if resp.Message == "" {
			t.Fatalf("%s: expected conflict message", name)
		}
	}
	decodeResponse(t, api.do(t, http.MethodPut, path, customer, nil, nil), http.StatusForbidden)
}

func TestOrderAndChatAreHiddenFromStrangers(t *testing.T) {
	t.Parallel()

	api := newOrderAPI(t)
	_, customer := api.login(t, models.RoleCustomer, "Lucía")
	_, stranger := api.login(t, models.RoleCustomer, "Rodrigo")
	_, courier := api.login(t, models.RoleCourier, "Mario")
	_, outsider := api.login(t, models.RoleCourier, "Pepe")
	product := api.product(10)

	order := decodeOrder(t, api.do(t, http.MethodPost, "/orders", customer, orderRequest(product, 1), nil), http.StatusCreated)
	decodeOrder(t, api.do(t, http.MethodPut, "/orders/"+order.ID.String()+"/take", courier, nil, nil), http.StatusOK)

	sent := decodeResponse(t, api.do(t, http.MethodPost, "/messages/"+order.ID.String(), customer, map[string]any{"mensaje": "Toco el timbre?"}, nil), http.StatusCreated)
	var message struct {
		OrderID uuid.UUID `json:"pedido"`
	}
	if err := json.Unmarshal(sent.Data, &message); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if message.OrderID != order.ID {
		t.Fatalf("expected message for order %s, got %s", order.ID, message.OrderID)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{name: "owner reads order", method: http.MethodGet, path: "/orders/" + order.ID.String(), token: customer, status: http.StatusOK},
		{name: "courier reads order", method: http.MethodGet, path: "/orders/" + order.ID.String(), token: courier, status: http.StatusOK},
		{name: "other customer reads order", method: http.MethodGet, path: "/orders/" + order.ID.String(), token: stranger, status: http.StatusForbidden},
		{name: "other courier reads order", method: http.MethodGet, path: "/orders/" + order.ID.String(), token: outsider, status: http.StatusForbidden},
		{name: "courier reads chat", method: http.MethodGet, path: "/messages/" + order.ID.String(), token: courier, status: http.StatusOK},
		{name: "other customer reads chat", method: http.MethodGet, path: "/messages/" + order.ID.String(), token: stranger, status: http.StatusForbidden},
		{name: "other courier reads chat", method: http.MethodGet, path: "/messages/" + order.ID.String(), token: outsider, status: http.StatusForbidden},
		{name: "other customer writes chat", method: http.MethodPost, path: "/messages/" + order.ID.String(), token: stranger, body: map[string]any{"mensaje": "hola"}, status: http.StatusForbidden},
		{name: "unknown order", method: http.MethodGet, path: "/orders/" + uuid.NewString(), token: customer, status: http.StatusNotFound},
		{name: "anonymous", method: http.MethodGet, path: "/orders/" + order.ID.String(), status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeResponse(t, api.do(t, tt.method, tt.path, tt.token, tt.body, nil), tt.status)
			if tt.status == http.StatusOK && len(resp.Data) == 0 {
				t.Fatal("expected data")
			}
		})
	}
}
