package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/crypto"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

var ErrAuthUnavailable = errors.New("auth service unavailable")

type TokenIssuer interface {
	Issue(account *models.Account) (string, error)
}

type AuthService struct {
	accounts AccountRepository
	hasher   crypto.Hasher
	tokens   TokenIssuer
	logger   *slog.Logger
}

func NewAuthService(accounts AccountRepository, hasher crypto.Hasher, tokens TokenIssuer, logger *slog.Logger) (*AuthService, error) {
	if accounts == nil || hasher == nil || tokens == nil {
		return nil, ErrAuthUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger.With("component", "auth_service"),
	}, nil
}

func (s *AuthService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type RegisterInput struct {
	Name     string         `json:"nombre" validate:"required,max=100"`
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password" validate:"required,min=6,max=72"`
	Phone    string         `json:"telefono" validate:"required,max=20"`
	Role     models.Role    `json:"rol"`
	Vehicle  models.Vehicle `json:"vehiculo"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is what a successful register or login hands back to the client.
type Session struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"usuario"`
}

// Register creates a customer or courier account and signs the caller in.
// Admin accounts are only created from the CLI.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if role != models.RoleCustomer && role != models.RoleCourier {
		return nil, invalid("Rol no válido")
	}

	account, err := s.createAccount(ctx, input, role)
	if err != nil {
		return nil, err
	}
	return s.session(account)
}

// CreateAdmin creates an operator account.
func (s *AuthService) CreateAdmin(ctx context.Context, input RegisterInput) (*models.Account, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	return s.createAccount(ctx, input, models.RoleAdmin)
}

func (s *AuthService) createAccount(ctx context.Context, input RegisterInput, role models.Role) (*models.Account, error) {
	var vehicle models.Vehicle
	if role == models.RoleCourier {
		if !input.Vehicle.Valid() {
			return nil, invalid("Los repartidores deben indicar un vehículo válido")
		}
		vehicle = input.Vehicle
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooShort) || errors.Is(err, crypto.ErrPasswordTooLong) {
			return nil, invalid("La contraseña debe tener entre 6 y 72 caracteres")
		}
		return nil, err
	}

	account := &models.Account{
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		Phone:        strings.TrimSpace(input.Phone),
		Role:         role,
		Vehicle:      vehicle,
		Available:    role == models.RoleCourier,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			return nil, conflict("El email ya está registrado")
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.loggerFromContext(ctx).Info("account created", "account_id", account.ID, "role", role)
	return account, nil
}

// Login checks the credentials and issues a token. Unknown emails and bad
// passwords get the same answer.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, unauthorized("Credenciales inválidas")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if err := s.hasher.Compare(account.PasswordHash, input.Password); err != nil {
		if errors.Is(err, crypto.ErrMismatch) {
			return nil, unauthorized("Credenciales inválidas")
		}
		return nil, err
	}
	if !account.Active {
		return nil, forbidden("Tu cuenta está desactivada")
	}

	s.loggerFromContext(ctx).Info("account signed in", "account_id", account.ID, "role", account.Role)
	return s.session(account)
}

// Me returns the caller's account. Tokens of deactivated or deleted
// accounts stop working here and in Authenticate.
func (s *AuthService) Me(ctx context.Context, actor auth.Identity) (*models.Account, error) {
	return s.activeAccount(ctx, actor.ID)
}

// Authenticate resolves a token identity to a live account and its current
// role, so role changes apply without waiting for the token to expire.
func (s *AuthService) Authenticate(ctx context.Context, identity auth.Identity) (auth.Identity, error) {
	account, err := s.activeAccount(ctx, identity.ID)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{ID: account.ID, Role: account.Role}, nil
}

type UpdateProfileInput struct {
	Name  string `json:"nombre" validate:"required,max=100"`
	Phone string `json:"telefono" validate:"required,max=20"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, actor auth.Identity, input UpdateProfileInput) (*models.Account, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	account, err := s.accounts.UpdateProfile(ctx, actor.ID, strings.TrimSpace(input.Name), strings.TrimSpace(input.Phone))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound("Usuario no encontrado")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return account, nil
}

func (s *AuthService) activeAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, unauthorized("Usuario no encontrado")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if !account.Active {
		return nil, unauthorized("Tu cuenta está desactivada")
	}
	return account, nil
}

func (s *AuthService) session(account *models.Account) (*Session, error) {
	token, err := s.tokens.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, Account: account}, nil
}
