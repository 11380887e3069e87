package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/authz"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/config"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/services"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

const defaultKeepAlive = 25 * time.Second

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type TokenValidator interface {
	Validate(token string) (auth.Identity, error)
}

// Authenticator resolves a token identity to a live account.
type Authenticator interface {
	Authenticate(ctx context.Context, identity auth.Identity) (auth.Identity, error)
}

type Authorizer interface {
	Allowed(role models.Role, permission authz.Permission) (bool, error)
}

// Handlers provides the HTTP API for the delivery service.
type Handlers struct {
	config          *config.Config
	db              Pinger
	tokens          TokenValidator
	authenticator   Authenticator
	authorizer      Authorizer
	authService     *services.AuthService
	orderService    *services.OrderService
	messageService  *services.MessageService
	productService  *services.ProductService
	userService     *services.UserService
	eventsKeepAlive time.Duration
	logger          *slog.Logger
}

type Dependencies struct {
	Config         *config.Config
	DB             Pinger
	Tokens         TokenValidator
	Authorizer     Authorizer
	AuthService    *services.AuthService
	OrderService   *services.OrderService
	MessageService *services.MessageService
	ProductService *services.ProductService
	UserService    *services.UserService
	Logger         *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("handlers dependencies: tokens is required")
	}
	if deps.Authorizer == nil {
		return nil, fmt.Errorf("handlers dependencies: authorizer is required")
	}
	if deps.AuthService == nil {
		return nil, fmt.Errorf("handlers dependencies: authService is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.MessageService == nil {
		return nil, fmt.Errorf("handlers dependencies: messageService is required")
	}
	if deps.ProductService == nil {
		return nil, fmt.Errorf("handlers dependencies: productService is required")
	}
	if deps.UserService == nil {
		return nil, fmt.Errorf("handlers dependencies: userService is required")
	}

	return &Handlers{
		config:          deps.Config,
		db:              deps.DB,
		tokens:          deps.Tokens,
		authenticator:   deps.AuthService,
		authorizer:      deps.Authorizer,
		authService:     deps.AuthService,
		orderService:    deps.OrderService,
		messageService:  deps.MessageService,
		productService:  deps.ProductService,
		userService:     deps.UserService,
		eventsKeepAlive: defaultKeepAlive,
		logger:          logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		writeJSON(w, r, http.StatusServiceUnavailable, envelope{Message: "Base de datos no disponible"})
		return
	}

	writeJSON(w, r, http.StatusOK, envelope{Success: true, Data: map[string]string{"status": "healthy"}})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
