package db

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

type AccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

const accountColumns = `id, name, email, password_hash, phone, role, vehicle, available,
	delivered_count, rating_average, active, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a       Account
		role    string
		vehicle pgtype.Text
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Phone, &role, &vehicle, &a.Available,
		&a.DeliveredCount, &a.RatingAverage, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	a.Role = models.Role(role)
	if vehicle.Valid {
		a.Vehicle = models.Vehicle(vehicle.String)
	}
	return &a, nil
}

func (s *AccountStore) Create(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.RatingAverage == 0 {
		a.RatingAverage = models.DefaultCourierRating
	}
	vehicle := pgtype.Text{String: string(a.Vehicle), Valid: a.Vehicle != ""}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, phone, role, vehicle, rating_average, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING active, created_at, updated_at`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Phone, string(a.Role), vehicle, a.RatingAverage,
	)
	if err := row.Scan(&a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE lower(email) = lower($1)", strings.TrimSpace(email)))
}

// ListByRole lists accounts newest first; an empty role lists everyone.
func (s *AccountStore) ListByRole(ctx context.Context, role models.Role) ([]*Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts"
	var args []any
	if role != "" {
		query += " WHERE role = $1"
		args = append(args, string(role))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []*Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetCourierRating persists a recomputed rating average, clamped to [0, 5].
func (s *AccountStore) SetCourierRating(ctx context.Context, id uuid.UUID, average float64) error {
	return s.exec(ctx, `
		UPDATE accounts SET rating_average = LEAST(GREATEST($2::double precision, 0), 5), updated_at = NOW()
		WHERE id = $1 AND role = 'repartidor'`, id, average)
}

func (s *AccountStore) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, vehicle models.Vehicle) error {
	return s.exec(ctx, `
		UPDATE accounts SET role = $2, vehicle = COALESCE($3, vehicle), updated_at = NOW()
		WHERE id = $1`, id, string(role), pgtype.Text{String: string(vehicle), Valid: vehicle != ""})
}

func (s *AccountStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.exec(ctx, "UPDATE accounts SET active = $2, updated_at = NOW() WHERE id = $1", id, active)
}

func (s *AccountStore) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	return s.exec(ctx, "UPDATE accounts SET available = $2, updated_at = NOW() WHERE id = $1 AND role = 'repartidor'", id, available)
}

func (s *AccountStore) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		UPDATE accounts SET name = $2, phone = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns, id, name, phone))
}

func (s *AccountStore) exec(ctx context.Context, query string, args ...any) error {
	cmdTag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func incrementDelivered(ctx context.Context, q querier, courierID uuid.UUID) error {
	_, err := q.Exec(ctx, `
		UPDATE accounts SET delivered_count = delivered_count + 1, updated_at = NOW()
		WHERE id = $1`, courierID)
	return err
}
