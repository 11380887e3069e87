package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

// defaultStockAlert is the low-stock threshold for seeded products that do
// not set one.
const defaultStockAlert = 10

// Subtotal sums quantity times snapshot price over the line items. Orders
// store the caller's totals verbatim; this is only used to flag mismatches.
func Subtotal(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ToProduct builds the catalog record a seed entry describes.
func ToProduct(cfg ProductConfig) *models.Product {
	stockAlert := defaultStockAlert
	if cfg.StockAlert != nil {
		stockAlert = *cfg.StockAlert
	}
	active := true
	if cfg.Active != nil {
		active = *cfg.Active
	}

	return &models.Product{
		Name:          cfg.Name,
		Description:   cfg.Description,
		Price:         cfg.Price,
		DiscountPrice: cfg.DiscountPrice,
		Category:      models.Category(cfg.Category),
		Subcategory:   cfg.Subcategory,
		Image:         cfg.Image,
		Brand:         cfg.Brand,
		Volume:        cfg.Volume,
		Stock:         cfg.Stock,
		StockAlert:    stockAlert,
		Featured:      cfg.Featured,
		Active:        active,
	}
}
