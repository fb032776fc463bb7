package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Product is one sellable item. Nil CategoryID, LastCountQuantity or
// ParLevel mean the value is unknown.
type Product struct {
	ID                int    `json:"id" yaml:"id" validate:"required"`
	Name              string `json:"name" yaml:"name" validate:"required"`
	CategoryID        *int   `json:"categoryId,omitempty" yaml:"category_id" validate:"omitempty,gt=0"`
	LastCountQuantity *int   `json:"lastCountQuantity,omitempty" yaml:"last_count_quantity" validate:"omitempty,gte=0"`
	ParLevel          *int   `json:"parLevel,omitempty" yaml:"par_level" validate:"omitempty,gte=0"`
}

// Provider supplies the current product catalog.
type Provider interface {
	Products(ctx context.Context) ([]Product, error)
}

type catalogFile struct {
	Products []Product `yaml:"products" validate:"dive"`
}

var validate = validator.New()

// MemoryCatalog is a concurrency-safe in-memory catalog.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products []Product
}

func NewMemoryCatalog(products ...Product) *MemoryCatalog {
	c := &MemoryCatalog{}
	c.Replace(products)
	return c
}

// LoadFile reads a YAML catalog. A missing file yields an empty catalog.
func LoadFile(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewMemoryCatalog(), nil
		}
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*MemoryCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[int]struct{}, len(f.Products))
	for _, p := range f.Products {
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("invalid catalog: duplicate product id %d", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return NewMemoryCatalog(f.Products...), nil
}

// Products returns a copy of the catalog in file order.
func (c *MemoryCatalog) Products(_ context.Context) ([]Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

// Replace swaps the whole catalog.
func (c *MemoryCatalog) Replace(products []Product) {
	cp := make([]Product, len(products))
	copy(cp, products)

	c.mu.Lock()
	c.products = cp
	c.mu.Unlock()
}

func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Int returns a pointer to v, for building products in code.
func Int(v int) *int {
	return &v
}
