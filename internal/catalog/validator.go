package catalog

import (
	"fmt"
	"strings"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(seed *SeedFile) error {
	if seed == nil || len(seed.Products) == 0 {
		return fmt.Errorf("at least one product is required")
	}

	names := make(map[string]bool)
	for i, product := range seed.Products {
		if err := v.ValidateProduct(&product); err != nil {
			return fmt.Errorf("product %d validation failed: %w", i, err)
		}

		key := strings.ToLower(strings.TrimSpace(product.Name))
		if names[key] {
			return fmt.Errorf("duplicate product name: %s", product.Name)
		}
		names[key] = true
	}

	return nil
}

func (v *Validator) ValidateProduct(product *ProductConfig) error {
	name := strings.TrimSpace(product.Name)
	if name == "" {
		return fmt.Errorf("product name is required")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("product name must be at most %d characters", maxNameLength)
	}

	if strings.TrimSpace(product.Description) == "" {
		return fmt.Errorf("product description is required")
	}
	if len(product.Description) > maxDescriptionLength {
		return fmt.Errorf("product description must be at most %d characters", maxDescriptionLength)
	}

	if !product.Price.IsPositive() {
		return fmt.Errorf("product price must be positive")
	}

	if product.DiscountPrice != nil {
		if product.DiscountPrice.IsNegative() {
			return fmt.Errorf("discount price cannot be negative")
		}
		if product.DiscountPrice.GreaterThanOrEqual(product.Price) {
			return fmt.Errorf("discount price must be lower than price")
		}
	}

	if !models.Category(product.Category).Valid() {
		return fmt.Errorf("unsupported category %q", product.Category)
	}

	if product.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	if product.StockAlert != nil && *product.StockAlert < 0 {
		return fmt.Errorf("stock alert cannot be negative")
	}

	return nil
}
