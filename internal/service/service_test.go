package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sportpos/backend/internal/catalog"
	"sportpos/backend/internal/domain"
	"sportpos/backend/internal/ledger"
	"sportpos/backend/internal/users"
)

// mapHeldCartCache is an in-memory HeldCartCache for exercising the
// hold/resume flow without Redis.
type mapHeldCartCache struct {
	mu    sync.Mutex
	carts map[string]*domain.HeldCart
}

func newMapHeldCartCache() *mapHeldCartCache {
	return &mapHeldCartCache{carts: make(map[string]*domain.HeldCart)}
}

func (c *mapHeldCartCache) Get(_ context.Context, terminalID string) (*domain.HeldCart, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.carts[terminalID]
	return cart, ok, nil
}

func (c *mapHeldCartCache) Set(_ context.Context, terminalID string, cart *domain.HeldCart, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[terminalID] = cart
	return nil
}

func (c *mapHeldCartCache) Delete(_ context.Context, terminalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, terminalID)
	return nil
}

type fixture struct {
	svc       *Service
	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	ledgerMem *ledger.MemStore
	held      *mapHeldCartCache
}

func newFixture(t *testing.T, maxInvoices int) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()
	dir := t.TempDir()

	cat, err := catalog.Open(ctx, catalog.NewFileStore(filepath.Join(dir, "products.txt"), log), catalog.DefaultMaxProducts, log)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}

	mem := ledger.NewMemStore()
	led, err := ledger.Open(ctx, mem, maxInvoices, log)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	usr, err := users.Open(ctx, filepath.Join(dir, "users.txt"), users.DefaultMaxUsers, log)
	if err != nil {
		t.Fatalf("open users: %v", err)
	}

	held := newMapHeldCartCache()
	svc := New(cat, led, usr, held, 0.13, 50, time.Hour, log)
	return &fixture{svc: svc, catalog: cat, ledger: led, ledgerMem: mem, held: held}
}

func (f *fixture) addProduct(t *testing.T, id string, price float64, stock int) {
	t.Helper()
	p := domain.Product{
		ID:        id,
		Name:      "Product " + id,
		UnitPrice: price,
		Stock:     stock,
		Category: domain.Category{
			Kind: domain.KindShoe,
			Shoe: &domain.ShoeAttrs{Size: "42", Color: "black", Type: domain.ShoeRunning},
		},
	}
	if err := f.catalog.Add(context.Background(), p); err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "ana", Role: domain.RoleCashier})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "root", Role: domain.RoleAdmin})
}

func TestCheckoutHappyPath(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "7", 100, 10)
	ctx := cashierCtx()

	if _, err := f.svc.AddItem(ctx, "t1", "7", 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.svc.SetItemDiscount(ctx, "t1", 0, 0.10); err != nil {
		t.Fatalf("item discount: %v", err)
	}
	if _, err := f.svc.SetGlobalDiscount(ctx, "t1", 0.05); err != nil {
		t.Fatalf("global discount: %v", err)
	}

	receipt, err := f.svc.Checkout(ctx, "t1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if receipt.Invoice.ID != 1 || receipt.Invoice.CashierName != "ana" {
		t.Fatalf("bad invoice header: %+v", receipt.Invoice)
	}
	if math.Abs(receipt.Invoice.Total-171) > 1e-9 {
		t.Fatalf("expected pre-tax total 171, got %v", receipt.Invoice.Total)
	}
	if math.Abs(receipt.Invoice.Lines[0].EffectiveUnitPrice-85.5) > 1e-9 {
		t.Fatalf("expected effective price 85.5, got %v", receipt.Invoice.Lines[0].EffectiveUnitPrice)
	}
	// Tax is display-only, 13% on top of the stored total.
	if math.Abs(receipt.TaxAmount-171*0.13) > 1e-9 || math.Abs(receipt.TotalWithTax-171*1.13) > 1e-9 {
		t.Fatalf("bad tax math: %+v", receipt)
	}

	if p, _ := f.catalog.FindByID("7"); p.Stock != 8 {
		t.Fatalf("expected stock 8 after checkout, got %d", p.Stock)
	}
	if view := f.svc.Cart(ctx, "t1"); len(view.Lines) != 0 || view.GlobalDiscount != 0 {
		t.Fatalf("cart must be cleared after checkout: %+v", view)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	if _, err := f.svc.Checkout(cashierCtx(), "t1"); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckoutRequiresActor(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "7", 100, 10)
	ctx := cashierCtx()
	if _, err := f.svc.AddItem(ctx, "t1", "7", 1); err != nil {
		t.Fatalf("add item: %v", err)
	}

	if _, err := f.svc.Checkout(context.Background(), "t1"); err == nil {
		t.Fatalf("checkout without an authenticated cashier must fail")
	}
}

func TestCheckoutCompensatesStockOnFailure(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "1", 10, 5)
	f.addProduct(t, "2", 20, 5)
	ctx := cashierCtx()

	if _, err := f.svc.AddItem(ctx, "t1", "1", 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.svc.AddItem(ctx, "t1", "2", 5); err != nil {
		t.Fatalf("add item: %v", err)
	}

	// Another terminal sells product 2 out from under this cart.
	if err := f.catalog.ReduceStock(context.Background(), "2", 3); err != nil {
		t.Fatalf("external sale: %v", err)
	}

	if _, err := f.svc.Checkout(ctx, "t1"); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Product 1 was reduced before the failure and must be restored.
	if p, _ := f.catalog.FindByID("1"); p.Stock != 5 {
		t.Fatalf("stock for product 1 not compensated: %d", p.Stock)
	}
	if p, _ := f.catalog.FindByID("2"); p.Stock != 2 {
		t.Fatalf("external sale must stand: %d", p.Stock)
	}
	if view := f.svc.Cart(ctx, "t1"); len(view.Lines) != 2 {
		t.Fatalf("failed checkout must leave the cart intact: %+v", view)
	}
}

func TestCheckoutCompensatesStockWhenLedgerFull(t *testing.T) {
	f := newFixture(t, 1)
	f.addProduct(t, "1", 10, 5)
	ctx := cashierCtx()

	if _, err := f.svc.AddItem(ctx, "t1", "1", 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.svc.Checkout(ctx, "t1"); err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	if _, err := f.svc.AddItem(ctx, "t1", "1", 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.svc.Checkout(ctx, "t1"); !errors.Is(err, domain.ErrLedgerFull) {
		t.Fatalf("expected ErrLedgerFull, got %v", err)
	}
	if p, _ := f.catalog.FindByID("1"); p.Stock != 4 {
		t.Fatalf("expected only the first sale to stick, stock %d", p.Stock)
	}
}

func TestProcessReturnRestoresStock(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "7", 100, 10)
	ctx := cashierCtx()

	if _, err := f.svc.AddItem(ctx, "t1", "7", 3); err != nil {
		t.Fatalf("add item: %v", err)
	}
	receipt, err := f.svc.Checkout(ctx, "t1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	resp, err := f.svc.ProcessReturn(ctx, domain.ReturnRequest{
		InvoiceID: receipt.Invoice.ID,
		ProductID: "7",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if resp.RestockedQty != 2 || resp.LineRemoved {
		t.Fatalf("bad return response: %+v", resp)
	}
	if resp.Invoice.Lines[0].Quantity != 1 {
		t.Fatalf("expected 1 remaining on the invoice, got %d", resp.Invoice.Lines[0].Quantity)
	}
	if p, _ := f.catalog.FindByID("7"); p.Stock != 9 {
		t.Fatalf("expected stock 9 after return, got %d", p.Stock)
	}
}

func TestProcessReturnUnknownProduct(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "7", 100, 10)
	ctx := cashierCtx()
	if _, err := f.svc.AddItem(ctx, "t1", "7", 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	receipt, err := f.svc.Checkout(ctx, "t1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	_, err = f.svc.ProcessReturn(ctx, domain.ReturnRequest{
		InvoiceID: receipt.Invoice.ID,
		ProductID: "404",
		Quantity:  1,
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestHoldAndResumeCart(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "7", 100, 10)
	ctx := cashierCtx()

	if _, err := f.svc.AddItem(ctx, "t1", "7", 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.svc.SetGlobalDiscount(ctx, "t1", 0.1); err != nil {
		t.Fatalf("discount: %v", err)
	}

	if err := f.svc.HoldCart(ctx, "t1"); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if view := f.svc.Cart(ctx, "t1"); len(view.Lines) != 0 {
		t.Fatalf("hold must empty the live cart: %+v", view)
	}

	view, err := f.svc.ResumeCart(ctx, "t1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 2 || view.GlobalDiscount != 0.1 {
		t.Fatalf("resumed cart wrong: %+v", view)
	}
	if math.Abs(view.Total-180) > 1e-9 {
		t.Fatalf("expected resumed total 180, got %v", view.Total)
	}

	// The parked copy is consumed by resume.
	if _, err := f.svc.ResumeCart(ctx, "t1"); !errors.Is(err, domain.ErrNoHeldCart) {
		t.Fatalf("expected ErrNoHeldCart on second resume, got %v", err)
	}
}

func TestHoldEmptyCart(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	if err := f.svc.HoldCart(cashierCtx(), "t1"); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestConcurrentAddsOnOneTerminal(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "7", 10, 1000)
	ctx := cashierCtx()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := f.svc.AddItem(ctx, "t1", "7", 1); err != nil {
					t.Errorf("concurrent add: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	view := f.svc.Cart(ctx, "t1")
	if len(view.Lines) != 1 || view.Lines[0].Quantity != 80 {
		t.Fatalf("expected one merged line with quantity 80, got %+v", view.Lines)
	}
}

func TestHoldCartRecordsCurrentCashier(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "7", 100, 10)

	// ana opens the session on t1, then bea takes over the terminal.
	if _, err := f.svc.AddItem(cashierCtx(), "t1", "7", 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	bea := WithActor(context.Background(), domain.Actor{Username: "bea", Role: domain.RoleCashier})
	if _, err := f.svc.AddItem(bea, "t1", "7", 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := f.svc.HoldCart(bea, "t1"); err != nil {
		t.Fatalf("hold: %v", err)
	}

	held, ok, err := f.held.Get(context.Background(), "t1")
	if err != nil || !ok {
		t.Fatalf("held cart missing: %v", err)
	}
	if held.CashierName != "bea" {
		t.Fatalf("held cart must record the current cashier, got %q", held.CashierName)
	}
}

func TestTerminalsHaveIndependentCarts(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "7", 100, 10)
	ctx := cashierCtx()

	if _, err := f.svc.AddItem(ctx, "t1", "7", 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if view := f.svc.Cart(ctx, "t2"); len(view.Lines) != 0 {
		t.Fatalf("terminal t2 must start empty: %+v", view)
	}
}

func TestAdminGuards(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	ctx := cashierCtx()

	if _, err := f.svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name: "Cap", UnitPrice: 10, Stock: 1, Kind: "accessory", Type: "CAP", Brand: "Northline",
	}); err == nil {
		t.Fatalf("cashier must not create products")
	}
	if _, err := f.svc.Dashboard(ctx); err == nil {
		t.Fatalf("cashier must not read the dashboard")
	}
	if _, err := f.svc.ListUsers(ctx); err == nil {
		t.Fatalf("cashier must not list users")
	}
}

func TestCreateProductAssignsNextID(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "4", 10, 1)

	product, err := f.svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name: "Winter Boots", Description: "lined", UnitPrice: 150, Stock: 3,
		Kind: "shoe", Size: "44", Color: "brown", Type: "BOOTS",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if product.ID != "5" {
		t.Fatalf("expected id 5, got %s", product.ID)
	}
	if product.Category.Shoe == nil || product.Category.Shoe.Type != domain.ShoeBoots {
		t.Fatalf("category not built: %+v", product.Category)
	}
}

func TestDashboardAggregates(t *testing.T) {
	f := newFixture(t, ledger.DefaultMaxRecords)
	f.addProduct(t, "1", 100, 3)
	f.addProduct(t, "2", 50, 20)
	ctx := cashierCtx()

	if _, err := f.svc.AddItem(ctx, "t1", "1", 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.svc.Checkout(ctx, "t1"); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	view, err := f.svc.Dashboard(adminCtx())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if view.InvoiceCount != 1 {
		t.Fatalf("expected 1 invoice, got %d", view.InvoiceCount)
	}
	if math.Abs(view.RevenueWithTax-100*1.13) > 1e-9 {
		t.Fatalf("expected revenue 113, got %v", view.RevenueWithTax)
	}
	// Product 1 dropped to 2 units, which is at or below the threshold.
	if view.LowStockCount != 1 {
		t.Fatalf("expected 1 low-stock product, got %d", view.LowStockCount)
	}
	if view.TotalUnits != 22 {
		t.Fatalf("expected 22 units on hand, got %d", view.TotalUnits)
	}
}
