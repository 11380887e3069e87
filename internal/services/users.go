package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/auth"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

// UserService is the operator's view of accounts.
type UserService struct {
	accounts AccountRepository
	logger   *slog.Logger
}

func NewUserService(accounts AccountRepository, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{accounts: accounts, logger: logger.With("component", "user_service")}
}

func (s *UserService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// List returns accounts newest first, optionally only those with role.
func (s *UserService) List(ctx context.Context, role models.Role) ([]*models.Account, error) {
	if role != "" && !role.Valid() {
		return nil, invalid("Rol no válido")
	}
	accounts, err := s.accounts.ListByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// ListCouriers returns active couriers for the assignment picker.
func (s *UserService) ListCouriers(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.List(ctx, models.RoleCourier)
	if err != nil {
		return nil, err
	}
	active := make([]*models.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.Active {
			active = append(active, account)
		}
	}
	return active, nil
}

type UpdateRoleInput struct {
	Role    models.Role    `json:"rol" validate:"required"`
	Vehicle models.Vehicle `json:"vehiculo"`
}

func (s *UserService) UpdateRole(ctx context.Context, actor auth.Identity, id uuid.UUID, input UpdateRoleInput) (*models.Account, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, invalid("Rol no válido")
	}
	if id == actor.ID && input.Role != models.RoleAdmin {
		return nil, conflict("No puedes quitarte el rol de administrador")
	}

	account, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	vehicle := input.Vehicle
	if input.Role == models.RoleCourier {
		if vehicle == "" {
			vehicle = account.Vehicle
		}
		if !vehicle.Valid() {
			return nil, invalid("Los repartidores deben indicar un vehículo válido")
		}
	} else {
		vehicle = ""
	}

	if err := s.accounts.UpdateRole(ctx, id, input.Role, vehicle); err != nil {
		return nil, s.translate(err)
	}
	s.loggerFromContext(ctx).Info("account role changed", "account_id", id, "from", account.Role, "to", input.Role, "by", actor.ID)

	account.Role = input.Role
	account.Vehicle = vehicle
	return account, nil
}

type UpdateStatusAccountInput struct {
	Active *bool `json:"activo" validate:"required"`
}

func (s *UserService) SetActive(ctx context.Context, actor auth.Identity, id uuid.UUID, input UpdateStatusAccountInput) (*models.Account, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if id == actor.ID && !*input.Active {
		return nil, conflict("No puedes desactivar tu propia cuenta")
	}
	if err := s.accounts.SetActive(ctx, id, *input.Active); err != nil {
		return nil, s.translate(err)
	}
	s.loggerFromContext(ctx).Info("account status changed", "account_id", id, "active", *input.Active, "by", actor.ID)
	return s.get(ctx, id)
}

func (s *UserService) get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	return account, nil
}

func (s *UserService) translate(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return notFound("Usuario no encontrado")
	}
	return err
}
