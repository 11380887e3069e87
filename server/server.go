package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/authz"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/config"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Handler returns the full middleware chain. CORS wraps the router so
// preflight requests are answered before route matching.
func (s *Server) Handler() http.Handler {
	return s.handlers.CORS(s.buildRouter())
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"Ruta no encontrada"}` + "\n"))
	})

	// Public routes
	r.HandleFunc("/auth/register", h.Register).Methods("POST").Name("auth.register")
	r.HandleFunc("/auth/login", h.Login).Methods("POST").Name("auth.login")
	r.HandleFunc("/products", h.ListProducts).Methods("GET").Name("products.list")

	// Authenticated routes
	api := r.NewRoute().Subrouter()
	api.Use(h.RequireAuth)

	guard := func(permission authz.Permission, fn http.HandlerFunc) http.Handler {
		return h.RequirePermission(permission)(fn)
	}

	api.HandleFunc("/auth/me", h.Me).Methods("GET").Name("auth.me")
	api.HandleFunc("/auth/updateprofile", h.UpdateProfile).Methods("PUT").Name("auth.update_profile")

	api.Handle("/orders", guard(authz.OrderCreate, h.CreateOrder)).Methods("POST").Name("orders.create")
	api.Handle("/orders", guard(authz.OrderListAll, h.ListOrders)).Methods("GET").Name("orders.list")
	api.Handle("/orders/myorders", guard(authz.OrderListOwn, h.MyOrders)).Methods("GET").Name("orders.mine")
	api.Handle("/orders/available", guard(authz.OrderListAvailable, h.AvailableOrders)).Methods("GET").Name("orders.available")
	api.Handle("/orders/events", guard(authz.OrderListAll, h.AllOrderEvents)).Methods("GET").Name("orders.events")
	api.Handle("/orders/{id}", guard(authz.OrderRead, h.GetOrder)).Methods("GET").Name("orders.get")
	api.Handle("/orders/{id}/status", guard(authz.OrderUpdateStatus, h.UpdateOrderStatus)).Methods("PUT").Name("orders.status")
	api.Handle("/orders/{id}/assign", guard(authz.OrderAssign, h.AssignOrder)).Methods("PUT").Name("orders.assign")
	api.Handle("/orders/{id}/take", guard(authz.OrderTake, h.TakeOrder)).Methods("PUT").Name("orders.take")
	api.Handle("/orders/{id}/rating", guard(authz.OrderRate, h.RateOrder)).Methods("POST").Name("orders.rating")
	api.Handle("/orders/{id}/events", guard(authz.OrderRead, h.OrderEvents)).Methods("GET").Name("orders.order_events")
	api.Handle("/orders/{id}/location", guard(authz.OrderLocation, h.ShareLocation)).Methods("POST").Name("orders.location")

	api.Handle("/messages/{orderId}", guard(authz.MessageRead, h.ListMessages)).Methods("GET").Name("messages.list")
	api.Handle("/messages/{orderId}", guard(authz.MessageSend, h.SendMessage)).Methods("POST").Name("messages.send")

	api.Handle("/users", guard(authz.UserManage, h.ListUsers)).Methods("GET").Name("users.list")
	api.Handle("/users/couriers", guard(authz.UserManage, h.ListCouriers)).Methods("GET").Name("users.couriers")
	api.Handle("/users/{id}/role", guard(authz.UserManage, h.UpdateUserRole)).Methods("PUT").Name("users.role")
	api.Handle("/users/{id}/status", guard(authz.UserManage, h.UpdateUserStatus)).Methods("PUT").Name("users.status")

	api.Handle("/products", guard(authz.ProductManage, h.CreateProduct)).Methods("POST").Name("products.create")
	api.Handle("/products/low-stock", guard(authz.ProductManage, h.LowStockProducts)).Methods("GET").Name("products.low_stock")
	api.Handle("/products/{id}", guard(authz.ProductManage, h.UpdateProduct)).Methods("PUT").Name("products.update")
	api.Handle("/products/{id}", guard(authz.ProductManage, h.DeleteProduct)).Methods("DELETE").Name("products.delete")

	// Registered after /products/low-stock so the literal path wins.
	r.HandleFunc("/products/{id}", h.GetProduct).Methods("GET").Name("products.get")

	return r
}
