package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

// ProductUpserter stores a product keyed by its case-insensitive name.
type ProductUpserter interface {
	UpsertByName(ctx context.Context, p *models.Product) (created bool, err error)
}

type SeedResult struct {
	Created int
	Updated int
}

type Seeder struct {
	parser    *Parser
	validator *Validator
	store     ProductUpserter
	logger    *slog.Logger
}

func NewSeeder(store ProductUpserter, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		parser:    NewParser(),
		validator: NewValidator(),
		store:     store,
		logger:    logger.With("component", "catalog_seeder"),
	}
}

// SeedFile parses, validates and applies a seed file. Validation covers the
// whole file before any product is written.
func (s *Seeder) SeedFile(ctx context.Context, path string) (SeedResult, error) {
	seed, err := s.parser.ParseFile(path)
	if err != nil {
		return SeedResult{}, err
	}
	return s.Seed(ctx, seed)
}

func (s *Seeder) Seed(ctx context.Context, seed *SeedFile) (SeedResult, error) {
	if err := s.validator.Validate(seed); err != nil {
		return SeedResult{}, fmt.Errorf("invalid catalog seed: %w", err)
	}

	var result SeedResult
	for _, cfg := range seed.Products {
		created, err := s.store.UpsertByName(ctx, ToProduct(cfg))
		if err != nil {
			return result, fmt.Errorf("upsert product %q: %w", cfg.Name, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.logger.InfoContext(ctx, "catalog seeded", "created", result.Created, "updated", result.Updated)
	return result, nil
}
