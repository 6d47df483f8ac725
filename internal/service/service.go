// Package service wires the cart sessions, the catalog and the invoice
// ledger together: checkout, returns, held carts and the admin
// surface. All mutations are synchronous; every call returns or fails
// before the caller proceeds.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sportpos/backend/internal/cache"
	"sportpos/backend/internal/cart"
	"sportpos/backend/internal/catalog"
	"sportpos/backend/internal/domain"
	"sportpos/backend/internal/ledger"
	"sportpos/backend/internal/users"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	catalog      *catalog.Catalog
	ledger       *ledger.Ledger
	users        *users.Manager
	held         cache.HeldCartCache
	log          zerolog.Logger
	taxRate      float64
	maxCartLines int
	heldTTL      time.Duration

	mu       sync.Mutex
	sessions map[string]*terminalCart
}

// terminalCart pairs a session with the lock that serializes whole
// flows on one terminal. The session guards its own fields; this lock
// keeps multi-step sequences (checkout's read-reduce-invoice-clear,
// hold, resume) atomic against single mutations arriving concurrently
// for the same X-Terminal-ID.
type terminalCart struct {
	mu   sync.Mutex
	sess *cart.Session
}

func New(cat *catalog.Catalog, led *ledger.Ledger, usr *users.Manager, held cache.HeldCartCache, taxRate float64, maxCartLines int, heldTTL time.Duration, log zerolog.Logger) *Service {
	if held == nil {
		held = cache.NoopHeldCartCache{}
	}
	if heldTTL <= 0 {
		heldTTL = 24 * time.Hour
	}

	return &Service{
		catalog:      cat,
		ledger:       led,
		users:        usr,
		held:         held,
		log:          log,
		taxRate:      taxRate,
		maxCartLines: maxCartLines,
		heldTTL:      heldTTL,
		sessions:     make(map[string]*terminalCart),
	}
}

// terminal returns the terminal's cart, creating one owned by the
// calling cashier on first use.
func (s *Service) terminal(ctx context.Context, terminalID string) *terminalCart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tc, ok := s.sessions[terminalID]; ok {
		return tc
	}
	cashier := "unknown"
	if actor, ok := ActorFromContext(ctx); ok {
		cashier = actor.Username
	}
	tc := &terminalCart{sess: cart.NewSession(cashier, s.maxCartLines)}
	s.sessions[terminalID] = tc
	return tc
}

// claim re-pins the session to whichever cashier is driving the
// terminal now, so a held cart records the current operator rather
// than whoever opened the session first.
func claim(ctx context.Context, sess *cart.Session) {
	if actor, ok := ActorFromContext(ctx); ok {
		sess.SetCashierName(actor.Username)
	}
}

// --- Cart operations ---

func (s *Service) Cart(ctx context.Context, terminalID string) domain.CartView {
	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return s.cartView(terminalID, tc.sess)
}

func (s *Service) AddItem(ctx context.Context, terminalID string, productID string, quantity int) (domain.CartView, error) {
	product, err := s.catalog.FindByID(productID)
	if err != nil {
		return domain.CartView{}, err
	}

	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	claim(ctx, tc.sess)
	if err := tc.sess.AddItem(product, quantity); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID, tc.sess), nil
}

func (s *Service) RemoveItem(ctx context.Context, terminalID string, productID string) domain.CartView {
	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	claim(ctx, tc.sess)
	tc.sess.RemoveItem(productID)
	return s.cartView(terminalID, tc.sess)
}

func (s *Service) SetItemDiscount(ctx context.Context, terminalID string, lineIndex int, percent float64) (domain.CartView, error) {
	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	claim(ctx, tc.sess)
	if err := tc.sess.SetItemDiscount(lineIndex, percent); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID, tc.sess), nil
}

func (s *Service) SetGlobalDiscount(ctx context.Context, terminalID string, percent float64) (domain.CartView, error) {
	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	claim(ctx, tc.sess)
	if err := tc.sess.SetGlobalDiscount(percent); err != nil {
		return domain.CartView{}, err
	}
	return s.cartView(terminalID, tc.sess), nil
}

func (s *Service) ClearCart(ctx context.Context, terminalID string) domain.CartView {
	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	claim(ctx, tc.sess)
	tc.sess.Clear()
	return s.cartView(terminalID, tc.sess)
}

// HoldCart parks the terminal's cart in the cache and empties the
// session so the cashier can serve the next customer.
func (s *Service) HoldCart(ctx context.Context, terminalID string) error {
	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	claim(ctx, tc.sess)

	lines := tc.sess.Lines()
	if len(lines) == 0 {
		return domain.ErrEmptyCart
	}

	held := &domain.HeldCart{
		TerminalID:     terminalID,
		CashierName:    tc.sess.CashierName(),
		Lines:          lines,
		GlobalDiscount: tc.sess.GlobalDiscount(),
		HeldAt:         time.Now().UTC(),
	}
	if err := s.held.Set(ctx, terminalID, held, s.heldTTL); err != nil {
		return fmt.Errorf("hold cart: %w", err)
	}
	tc.sess.Clear()
	return nil
}

func (s *Service) ResumeCart(ctx context.Context, terminalID string) (domain.CartView, error) {
	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	claim(ctx, tc.sess)

	held, found, err := s.held.Get(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, fmt.Errorf("resume cart: %w", err)
	}
	if !found {
		return domain.CartView{}, domain.ErrNoHeldCart
	}

	tc.sess.Restore(held.Lines, held.GlobalDiscount)
	if err := s.held.Delete(ctx, terminalID); err != nil {
		s.log.Warn().Err(err).Str("terminal", terminalID).Msg("failed to evict held cart after resume")
	}
	return s.cartView(terminalID, tc.sess), nil
}

// --- Checkout ---

// Checkout reduces catalog stock for every line, freezes the cart into
// a new invoice and clears the session. Stock reductions are
// compensated if anything later in the sequence fails, so a rejected
// checkout leaves both catalog and ledger as they were. The terminal
// lock is held for the whole sequence: a concurrent add on the same
// terminal waits and lands in the next sale instead of being dropped
// between the snapshot and the clear.
func (s *Service) Checkout(ctx context.Context, terminalID string) (domain.Receipt, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Receipt{}, errors.New("authenticated cashier required")
	}

	tc := s.terminal(ctx, terminalID)
	tc.mu.Lock()
	defer tc.mu.Unlock()

	lines := tc.sess.Lines()
	if len(lines) == 0 {
		return domain.Receipt{}, domain.ErrEmptyCart
	}

	reduced := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		if err := s.catalog.ReduceStock(ctx, line.Product.ID, line.Quantity); err != nil {
			s.compensateStock(ctx, reduced)
			return domain.Receipt{}, fmt.Errorf("reduce stock for %s: %w", line.Product.ID, err)
		}
		reduced = append(reduced, line)
	}

	rec, err := s.ledger.CreateInvoice(ctx, lines, actor.Username, tc.sess.GlobalDiscount(), tc.sess.Total())
	if err != nil {
		s.compensateStock(ctx, reduced)
		return domain.Receipt{}, err
	}

	tc.sess.Clear()
	if err := s.held.Delete(ctx, terminalID); err != nil {
		s.log.Warn().Err(err).Str("terminal", terminalID).Msg("failed to evict held cart after checkout")
	}

	s.log.Info().
		Int("invoice_id", rec.ID).
		Str("cashier", rec.CashierName).
		Float64("total", rec.Total).
		Int("lines", len(rec.Lines)).
		Msg("checkout completed")

	return s.receipt(rec), nil
}

func (s *Service) compensateStock(ctx context.Context, reduced []domain.CartLine) {
	for _, line := range reduced {
		if err := s.catalog.IncreaseStock(ctx, line.Product.ID, line.Quantity); err != nil {
			s.log.Error().Err(err).Str("product", line.Product.ID).Msg("failed to compensate stock reduction")
		}
	}
}

// --- Invoices and returns ---

func (s *Service) Invoices() []domain.InvoiceRecord {
	return s.ledger.AllRecords()
}

func (s *Service) Invoice(id int) (domain.Receipt, error) {
	rec, err := s.ledger.FindByID(id)
	if err != nil {
		return domain.Receipt{}, err
	}
	return s.receipt(rec), nil
}

// ProcessReturn amends the invoice first (all validation lives in the
// ledger) and only then restores catalog stock, so a rejected return
// never restocks.
func (s *Service) ProcessReturn(ctx context.Context, req domain.ReturnRequest) (domain.ReturnResponse, error) {
	if _, err := s.catalog.FindByID(req.ProductID); err != nil {
		return domain.ReturnResponse{}, err
	}

	rec, removed, err := s.ledger.ProcessReturn(ctx, req.InvoiceID, req.ProductID, req.Quantity)
	if err != nil {
		return domain.ReturnResponse{}, err
	}

	if err := s.catalog.IncreaseStock(ctx, req.ProductID, req.Quantity); err != nil {
		s.log.Error().Err(err).Str("product", req.ProductID).Msg("ledger amended but stock restore failed")
	}

	s.log.Info().
		Int("invoice_id", req.InvoiceID).
		Str("product", req.ProductID).
		Int("qty", req.Quantity).
		Bool("line_removed", removed).
		Msg("return processed")

	return domain.ReturnResponse{
		Invoice:      rec,
		RestockedQty: req.Quantity,
		LineRemoved:  removed,
	}, nil
}

// --- Catalog surface ---

func (s *Service) ListProducts() []domain.Product {
	return s.catalog.List()
}

func (s *Service) SearchProduct(query string) (domain.Product, error) {
	return s.catalog.Search(strings.TrimSpace(query))
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	category, err := catalog.BuildCategory(req.Kind, req.Size, req.Color, req.Type, req.Brand)
	if err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:          s.catalog.NextID(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		UnitPrice:   req.UnitPrice,
		Stock:       req.Stock,
		Category:    category,
	}
	if product.Name == "" {
		return domain.Product{}, errors.New("product name is required")
	}

	if err := s.catalog.Add(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) UpdateProductStock(ctx context.Context, productID string, stock int) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := s.catalog.UpdateStock(ctx, productID, stock); err != nil {
		return domain.Product{}, err
	}
	return s.catalog.FindByID(productID)
}

func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.catalog.Delete(ctx, productID)
}

func (s *Service) LowStockProducts() []domain.Product {
	return s.catalog.LowStock()
}

// --- Users surface ---

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.users.List(), nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.UserView{}, err
	}
	return s.users.Add(ctx, req.Username, req.Password, req.Role)
}

func (s *Service) UpdateUser(ctx context.Context, id int, req domain.UserUpdateRequest) (domain.UserView, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.UserView{}, err
	}
	return s.users.Update(ctx, id, req.Username, req.Password, req.Role)
}

func (s *Service) DeleteUser(ctx context.Context, id int) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.users.Delete(ctx, id)
}

// --- Dashboard ---

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardView, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.DashboardView{}, err
	}

	revenue := 0.0
	records := s.ledger.AllRecords()
	for _, rec := range records {
		revenue += rec.Total * (1.0 + s.taxRate)
	}

	lowStock := s.catalog.LowStock()
	return domain.DashboardView{
		InvoiceCount:   len(records),
		RevenueWithTax: revenue,
		LowStockCount:  len(lowStock),
		LowStock:       lowStock,
		TotalUnits:     s.catalog.TotalUnits(),
	}, nil
}

// --- helpers ---

func (s *Service) cartView(terminalID string, sess *cart.Session) domain.CartView {
	return domain.CartView{
		TerminalID:     terminalID,
		Lines:          sess.Lines(),
		GlobalDiscount: sess.GlobalDiscount(),
		Total:          sess.Total(),
	}
}

func (s *Service) receipt(rec domain.InvoiceRecord) domain.Receipt {
	tax := rec.Total * s.taxRate
	return domain.Receipt{
		Invoice:      rec,
		TaxRate:      s.taxRate,
		TaxAmount:    tax,
		TotalWithTax: rec.Total + tax,
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	return nil
}
