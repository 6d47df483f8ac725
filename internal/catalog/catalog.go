// Package catalog is the file-backed product inventory. The ledger and
// cart only read prices and names from it and ask for stock mutations;
// catalog CRUD exists for the admin surface.
package catalog

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"sportpos/backend/internal/domain"
)

// DefaultMaxProducts caps the inventory size. Configurable; zero
// disables the cap.
const DefaultMaxProducts = 100

// LowStockThreshold marks products that need reordering.
const LowStockThreshold = 5

type Catalog struct {
	mu          sync.Mutex
	store       *FileStore
	log         zerolog.Logger
	maxProducts int
	products    []domain.Product
	skipped     int
}

// Open loads the product file (absent means empty inventory).
func Open(ctx context.Context, store *FileStore, maxProducts int, log zerolog.Logger) (*Catalog, error) {
	if maxProducts < 0 {
		maxProducts = DefaultMaxProducts
	}

	products, skipped, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Warn().Int("skipped_lines", skipped).Msg("catalog load dropped unparseable lines")
	}

	return &Catalog{
		store:       store,
		log:         log,
		maxProducts: maxProducts,
		products:    products,
		skipped:     skipped,
	}, nil
}

func (c *Catalog) List() []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, copyProduct(p))
	}
	return out
}

func (c *Catalog) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.products)
}

// NextID proposes the next free numeric product id.
func (c *Catalog) NextID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	max := 0
	for _, p := range c.products {
		if n, err := strconv.Atoi(p.ID); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

func (c *Catalog) Add(ctx context.Context, p domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxProducts > 0 && len(c.products) >= c.maxProducts {
		return domain.ErrCatalogFull
	}
	for _, existing := range c.products {
		if existing.ID == p.ID {
			return domain.ErrDuplicateProduct
		}
	}

	c.products = append(c.products, copyProduct(p))
	c.persist(ctx)
	return nil
}

func (c *Catalog) FindByID(id string) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.products {
		if p.ID == id {
			return copyProduct(p), nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

// Search matches product id or name, case-insensitively.
func (c *Catalog) Search(query string) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.products {
		if strings.EqualFold(p.ID, query) || strings.EqualFold(p.Name, query) {
			return copyProduct(p), nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

func (c *Catalog) UpdateStock(ctx context.Context, id string, newStock int) error {
	if newStock < 0 {
		return domain.ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.products {
		if c.products[i].ID == id {
			c.products[i].Stock = newStock
			c.persist(ctx)
			return nil
		}
	}
	return domain.ErrProductNotFound
}

// ReduceStock subtracts quantity from the product's stock, failing
// without mutation if the result would be negative.
func (c *Catalog) ReduceStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.products {
		if c.products[i].ID != id {
			continue
		}
		if c.products[i].Stock < quantity {
			return domain.ErrInsufficientStock
		}
		c.products[i].Stock -= quantity
		c.persist(ctx)
		return nil
	}
	return domain.ErrProductNotFound
}

// IncreaseStock adds quantity back, used by returns and restocking.
func (c *Catalog) IncreaseStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.products {
		if c.products[i].ID == id {
			c.products[i].Stock += quantity
			c.persist(ctx)
			return nil
		}
	}
	return domain.ErrProductNotFound
}

// Delete removes the product, shifting later entries down so display
// order is preserved.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.products {
		if c.products[i].ID == id {
			c.products = append(c.products[:i], c.products[i+1:]...)
			c.persist(ctx)
			return nil
		}
	}
	return domain.ErrProductNotFound
}

func (c *Catalog) LowStock() []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.Product
	for _, p := range c.products {
		if p.Stock <= LowStockThreshold {
			out = append(out, copyProduct(p))
		}
	}
	return out
}

func (c *Catalog) TotalUnits() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, p := range c.products {
		total += p.Stock
	}
	return total
}

func (c *Catalog) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Save(ctx, c.products)
}

func (c *Catalog) persist(ctx context.Context) {
	if err := c.store.Save(ctx, c.products); err != nil {
		c.log.Error().Err(err).Msg("catalog save failed; in-memory state remains authoritative")
	}
}

func copyProduct(p domain.Product) domain.Product {
	out := p
	if p.Category.Shoe != nil {
		attrs := *p.Category.Shoe
		out.Category.Shoe = &attrs
	}
	if p.Category.Clothing != nil {
		attrs := *p.Category.Clothing
		out.Category.Clothing = &attrs
	}
	if p.Category.Accessory != nil {
		attrs := *p.Category.Accessory
		out.Category.Accessory = &attrs
	}
	return out
}
