package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// ProductFilter narrows catalog listings. Zero values do not filter.
type ProductFilter struct {
	Category     models.Category
	Search       string
	FeaturedOnly bool
	IncludeAll   bool
}

const productColumns = `id, name, description, price, discount_price, category, subcategory, image,
	brand, volume, stock, stock_alert, featured, active, sales, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var category string
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.DiscountPrice, &category, &p.Subcategory, &p.Image,
		&p.Brand, &p.Volume, &p.Stock, &p.StockAlert, &p.Featured, &p.Active, &p.Sales, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	p.Category = models.Category(category)
	return &p, nil
}

func (s *ProductStore) Create(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, description, price, discount_price, category, subcategory, image,
			brand, volume, stock, stock_alert, featured, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING sales, created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Price, p.DiscountPrice, string(p.Category), p.Subcategory, p.Image,
		p.Brand, p.Volume, p.Stock, p.StockAlert, p.Featured, p.Active,
	)
	if err := row.Scan(&p.Sales, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateProduct
		}
		return err
	}
	return nil
}

// Update overwrites the editable fields of a product. Sales are never
// written here.
func (s *ProductStore) Update(ctx context.Context, p *Product) error {
	row := s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, discount_price = $5, category = $6, subcategory = $7,
		    image = $8, brand = $9, volume = $10, stock = $11, stock_alert = $12, featured = $13,
		    active = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING sales, created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Price, p.DiscountPrice, string(p.Category), p.Subcategory,
		p.Image, p.Brand, p.Volume, p.Stock, p.StockAlert, p.Featured, p.Active,
	)
	if err := row.Scan(&p.Sales, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateProduct
		}
		return notFound(err)
	}
	return nil
}

// UpsertByName creates the product or refreshes an existing product with the
// same (case-insensitive) name. Stock and sales of existing rows are kept.
func (s *ProductStore) UpsertByName(ctx context.Context, p *Product) (created bool, err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, description, price, discount_price, category, subcategory, image,
			brand, volume, stock, stock_alert, featured, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT ((lower(name))) DO UPDATE
		SET description = EXCLUDED.description, price = EXCLUDED.price, discount_price = EXCLUDED.discount_price,
		    category = EXCLUDED.category, subcategory = EXCLUDED.subcategory, image = EXCLUDED.image,
		    brand = EXCLUDED.brand, volume = EXCLUDED.volume, stock_alert = EXCLUDED.stock_alert,
		    featured = EXCLUDED.featured, active = EXCLUDED.active, updated_at = NOW()
		RETURNING id, stock, sales, created_at, updated_at, (xmax = 0)`,
		p.ID, p.Name, p.Description, p.Price, p.DiscountPrice, string(p.Category), p.Subcategory, p.Image,
		p.Brand, p.Volume, p.Stock, p.StockAlert, p.Featured, p.Active,
	)
	err = row.Scan(&p.ID, &p.Stock, &p.Sales, &p.CreatedAt, &p.UpdatedAt, &created)
	return created, err
}

func (s *ProductStore) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return scanProduct(s.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
}

func (s *ProductStore) List(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	var (
		conditions []string
		args       []any
	)
	if !filter.IncludeAll {
		conditions = append(conditions, "active")
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if filter.FeaturedOnly {
		conditions = append(conditions, "featured")
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY featured DESC, name ASC"

	return s.queryProducts(ctx, query, args...)
}

// ListLowStock returns active products whose stock reached the alert threshold.
func (s *ProductStore) ListLowStock(ctx context.Context) ([]*Product, error) {
	return s.queryProducts(ctx, "SELECT "+productColumns+" FROM products WHERE active AND stock <= stock_alert ORDER BY stock ASC, name ASC")
}

// Deactivate hides a product from the catalog. Products are never deleted so
// order snapshots keep pointing at a valid record.
func (s *ProductStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, "UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock atomically takes qty units out of stock and adds them to
// the sales counter, failing without changes if stock would go negative.
func (s *ProductStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return decrementStock(ctx, s.pool, id, qty)
}

func (s *ProductStore) queryProducts(ctx context.Context, query string, args ...any) ([]*Product, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func decrementStock(ctx context.Context, q querier, id uuid.UUID, qty int) error {
	if qty < 1 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}

	var remaining int
	err := q.QueryRow(ctx, `
		UPDATE products
		SET stock = stock - $2, sales = sales + $2, updated_at = $3
		WHERE id = $1 AND stock >= $2
		RETURNING stock`, id, qty, time.Now()).Scan(&remaining)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var (
		available int
		name      string
	)
	if err := q.QueryRow(ctx, "SELECT stock, name FROM products WHERE id = $1", id).Scan(&available, &name); err != nil {
		return notFound(err)
	}
	return &InsufficientStockError{ProductID: id, Name: name, Available: available}
}

// restoreStock reverses decrementStock for a canceled order line.
func restoreStock(ctx context.Context, q querier, id uuid.UUID, qty int) error {
	_, err := q.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, sales = GREATEST(sales - $2, 0), updated_at = $3
		WHERE id = $1`, id, qty, time.Now())
	return err
}
