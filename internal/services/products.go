package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/catalog"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/db"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

type ProductService struct {
	products  ProductRepository
	validator *catalog.Validator
	logger    *slog.Logger
}

func NewProductService(products ProductRepository, logger *slog.Logger) *ProductService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductService{
		products:  products,
		validator: catalog.NewValidator(),
		logger:    logger.With("component", "product_service"),
	}
}

func (s *ProductService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type ProductQuery struct {
	Category string
	Search   string
	Featured bool
}

// List returns the active catalog.
func (s *ProductService) List(ctx context.Context, query ProductQuery) ([]*models.Product, error) {
	category := models.Category(strings.TrimSpace(query.Category))
	if category != "" && !category.Valid() {
		return nil, invalid("Categoría no válida")
	}
	products, err := s.products.List(ctx, db.ProductFilter{
		Category:     category,
		Search:       query.Search,
		FeaturedOnly: query.Featured,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Get returns an active product. Operators also see inactive ones.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	if !product.Active && !includeInactive {
		return nil, notFound("Producto no encontrado")
	}
	return product, nil
}

func (s *ProductService) ListLowStock(ctx context.Context) ([]*models.Product, error) {
	products, err := s.products.ListLowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return products, nil
}

type ProductInput struct {
	Name          string           `json:"nombre"`
	Description   string           `json:"descripcion"`
	Price         decimal.Decimal  `json:"precio"`
	DiscountPrice *decimal.Decimal `json:"precioDescuento"`
	Category      string           `json:"categoria"`
	Subcategory   string           `json:"subcategoria"`
	Image         string           `json:"imagen"`
	Brand         string           `json:"marca"`
	Volume        string           `json:"volumen"`
	Stock         int              `json:"stock"`
	StockAlert    *int             `json:"stockMinimo"`
	Featured      bool             `json:"destacado"`
	Active        *bool            `json:"activo"`
}

func (in ProductInput) config() catalog.ProductConfig {
	return catalog.ProductConfig{
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		Category:      strings.TrimSpace(in.Category),
		Subcategory:   strings.TrimSpace(in.Subcategory),
		Image:         strings.TrimSpace(in.Image),
		Brand:         strings.TrimSpace(in.Brand),
		Volume:        strings.TrimSpace(in.Volume),
		Stock:         in.Stock,
		StockAlert:    in.StockAlert,
		Featured:      in.Featured,
		Active:        in.Active,
	}
}

func (s *ProductService) Create(ctx context.Context, input ProductInput) (*models.Product, error) {
	cfg := input.config()
	if err := s.validator.ValidateProduct(&cfg); err != nil {
		return nil, invalid("%s", err.Error())
	}
	product := catalog.ToProduct(cfg)
	if err := s.products.Create(ctx, product); err != nil {
		return nil, s.translate(err)
	}
	s.loggerFromContext(ctx).Info("product created", "product_id", product.ID, "name", product.Name)
	return product, nil
}

// Update replaces the editable fields of a product. Sales are kept.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*models.Product, error) {
	cfg := input.config()
	if err := s.validator.ValidateProduct(&cfg); err != nil {
		return nil, invalid("%s", err.Error())
	}
	existing, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}

	product := catalog.ToProduct(cfg)
	product.ID = existing.ID
	if cfg.StockAlert == nil {
		product.StockAlert = existing.StockAlert
	}
	if cfg.Active == nil {
		product.Active = existing.Active
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, s.translate(err)
	}
	s.loggerFromContext(ctx).Info("product updated", "product_id", product.ID)
	return product, nil
}

// Deactivate hides the product. Orders that reference it are unaffected.
func (s *ProductService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Deactivate(ctx, id); err != nil {
		return s.translate(err)
	}
	s.loggerFromContext(ctx).Info("product deactivated", "product_id", id)
	return nil
}

func (s *ProductService) translate(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return notFound("Producto no encontrado")
	case errors.Is(err, db.ErrDuplicateProduct):
		return conflict("Ya existe un producto con ese nombre")
	default:
		return err
	}
}
