package catalog

// Package catalog parses and applies catalog seed files.

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document loaded by `cli seed` and CATALOG_SEED_FILE.
type SeedFile struct {
	Products []ProductConfig `yaml:"products"`
}

type ProductConfig struct {
	Name          string           `yaml:"name"`
	Description   string           `yaml:"description"`
	Price         decimal.Decimal  `yaml:"price"`
	DiscountPrice *decimal.Decimal `yaml:"discount_price"`
	Category      string           `yaml:"category"`
	Subcategory   string           `yaml:"subcategory"`
	Image         string           `yaml:"image"`
	Brand         string           `yaml:"brand"`
	Volume        string           `yaml:"volume"`
	Stock         int              `yaml:"stock"`
	StockAlert    *int             `yaml:"stock_alert"`
	Featured      bool             `yaml:"featured"`
	Active        *bool            `yaml:"active"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &seed, nil
}

func (p *Parser) ParseFromString(content string) (*SeedFile, error) {
	return p.Parse([]byte(content))
}

func (p *Parser) ParseFile(path string) (*SeedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed %s: %w", path, err)
	}
	return p.Parse(content)
}
