package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout used to load or refresh the catalog.
//
//	products:
//	  - code: A001
//	    name: クレヨン
//	    specification: 16色
//	    price: 500
//	    age_groups: [2, 3]
type SeedFile struct {
	Products []SeedProduct `yaml:"products"`
}

type SeedProduct struct {
	Code          string  `yaml:"code"`
	Name          string  `yaml:"name"`
	Specification string  `yaml:"specification"`
	Price         int64   `yaml:"price"`
	Remarks       string  `yaml:"remarks"`
	SortOrder     int32   `yaml:"sort_order"`
	Inactive      bool    `yaml:"inactive"`
	AgeGroups     []int16 `yaml:"age_groups"`
}

// SeedStore defines the DB methods needed to import a seed file.
// Satisfied by *database.Queries; narrow interface for testability.
type SeedStore interface {
	UpsertProduct(ctx context.Context, arg database.UpsertProductParams) (database.Product, error)
	UpsertAgeGroupProduct(ctx context.Context, arg database.UpsertAgeGroupProductParams) (database.AgeGroupProduct, error)
}

// LoadSeedFile reads and validates a catalog seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (*SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *SeedFile) Validate() error {
	if len(f.Products) == 0 {
		return errors.New("seed file has no products")
	}
	codes := map[string]bool{}
	for i, p := range f.Products {
		switch {
		case p.Code == "":
			return fmt.Errorf("products[%d]: code is required", i)
		case p.Name == "":
			return fmt.Errorf("products[%d]: name is required", i)
		case p.Price < 0:
			return fmt.Errorf("products[%d]: price must be >= 0", i)
		case codes[p.Code]:
			return fmt.Errorf("products[%d]: duplicate code %q", i, p.Code)
		}
		codes[p.Code] = true
		for _, ag := range p.AgeGroups {
			if !enum.IsValidAgeGroup(ag) {
				return fmt.Errorf("products[%d]: invalid age group %d", i, ag)
			}
		}
	}
	return nil
}

// Import upserts every product and its age group assignments. Run it inside a
// transaction so a bad row leaves the catalog untouched.
func Import(ctx context.Context, store SeedStore, f *SeedFile) (int, error) {
	for i, sp := range f.Products {
		var price pgtype.Numeric
		if err := price.Scan(decimal.NewFromInt(sp.Price).String()); err != nil {
			return i, fmt.Errorf("products[%d]: price: %w", i, err)
		}
		p, err := store.UpsertProduct(ctx, database.UpsertProductParams{
			ProductCode:   sp.Code,
			ProductName:   sp.Name,
			Specification: sp.Specification,
			Price:         price,
			Remarks:       sp.Remarks,
			IsActive:      !sp.Inactive,
			SortOrder:     sp.SortOrder,
		})
		if err != nil {
			return i, fmt.Errorf("products[%d]: upsert product: %w", i, err)
		}
		for _, ag := range sp.AgeGroups {
			if _, err := store.UpsertAgeGroupProduct(ctx, database.UpsertAgeGroupProductParams{
				AgeGroup:  ag,
				ProductID: p.ID,
				IsActive:  true,
				SortOrder: sp.SortOrder,
			}); err != nil {
				return i, fmt.Errorf("products[%d]: assign age group %d: %w", i, ag, err)
			}
		}
	}
	return len(f.Products), nil
}
