package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryBeer    Category = "cervezas"
	CategorySpirits Category = "destilados"
	CategoryWine    Category = "vinos"
	CategorySnacks  Category = "snacks"
	CategoryIce     Category = "hielos"
	CategoryMixers  Category = "mezcladores"
	CategoryCombos  Category = "combos"
)

var Categories = []Category{
	CategoryBeer,
	CategorySpirits,
	CategoryWine,
	CategorySnacks,
	CategoryIce,
	CategoryMixers,
	CategoryCombos,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Product struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"nombre"`
	Description   string           `json:"descripcion"`
	Price         decimal.Decimal  `json:"precio"`
	DiscountPrice *decimal.Decimal `json:"precioDescuento,omitempty"`
	Category      Category         `json:"categoria"`
	Subcategory   string           `json:"subcategoria,omitempty"`
	Image         string           `json:"imagen"`
	Brand         string           `json:"marca,omitempty"`
	Volume        string           `json:"volumen,omitempty"`
	Stock         int              `json:"stock"`
	StockAlert    int              `json:"stockMinimo"`
	Featured      bool             `json:"destacado"`
	Active        bool             `json:"activo"`
	Sales         int              `json:"ventas"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// LowStock reports whether the stock reached the alert threshold.
func (p *Product) LowStock() bool {
	return p.Stock <= p.StockAlert
}

// EffectivePrice is the discounted price when one is set.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.LessThan(p.Price) {
		return *p.DiscountPrice
	}
	return p.Price
}
