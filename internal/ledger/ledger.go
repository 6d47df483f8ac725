// Package ledger is the append/amend record of completed sales. It is
// loaded once at startup, mutated in memory, and re-persisted in full
// after every create or return amendment. Persistence failures are
// logged; the in-memory state stays authoritative for the rest of the
// session.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sportpos/backend/internal/domain"
)

// DefaultMaxRecords caps ledger history. Configurable; zero disables
// the cap.
const DefaultMaxRecords = 100

type Ledger struct {
	mu         sync.Mutex
	store      Store
	log        zerolog.Logger
	maxRecords int
	records    []domain.InvoiceRecord
	nextID     int
	skipped    int
	now        func() time.Time
}

// Open loads the persisted ledger through store and prepares the id
// sequence: max seen id + 1, or 1 for an empty ledger. If the load
// pulled any legacy delimited lines the file is rewritten once in the
// versioned format.
func Open(ctx context.Context, store Store, maxRecords int, log zerolog.Logger) (*Ledger, error) {
	if maxRecords < 0 {
		maxRecords = DefaultMaxRecords
	}

	records, stats, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	nextID := 1
	for _, rec := range records {
		if rec.ID >= nextID {
			nextID = rec.ID + 1
		}
	}

	l := &Ledger{
		store:      store,
		log:        log,
		maxRecords: maxRecords,
		records:    records,
		nextID:     nextID,
		skipped:    stats.Skipped,
		now:        time.Now,
	}

	if stats.Skipped > 0 {
		log.Warn().Int("skipped_lines", stats.Skipped).Msg("ledger load dropped unparseable lines")
	}
	if stats.Legacy > 0 {
		log.Info().Int("legacy_records", stats.Legacy).Msg("migrating ledger to versioned format")
		if err := store.Save(ctx, records); err != nil {
			log.Error().Err(err).Msg("ledger migration rewrite failed")
		}
	}

	return l, nil
}

// CreateInvoice freezes the cart lines into snapshots and appends a new
// record. The effective unit price bakes in both discounts at this
// moment; later catalog price changes never touch history. The caller
// passes the cart's own total, which the ledger stores as-is.
func (l *Ledger) CreateInvoice(ctx context.Context, cartLines []domain.CartLine, cashierName string, globalDiscount float64, total float64) (domain.InvoiceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxRecords > 0 && len(l.records) >= l.maxRecords {
		return domain.InvoiceRecord{}, domain.ErrLedgerFull
	}

	lines := make([]domain.InvoiceLine, 0, len(cartLines))
	for _, cl := range cartLines {
		lines = append(lines, domain.InvoiceLine{
			ProductID:          cl.Product.ID,
			ProductName:        cl.Product.Name,
			Quantity:           cl.Quantity,
			EffectiveUnitPrice: cl.Product.UnitPrice * (1.0 - cl.ItemDiscount) * (1.0 - globalDiscount),
			ItemDiscount:       cl.ItemDiscount,
		})
	}

	rec := domain.InvoiceRecord{
		ID:             l.nextID,
		Total:          total,
		Date:           l.now().UTC().Format(time.RFC3339),
		CashierName:    cashierName,
		GlobalDiscount: globalDiscount,
		Lines:          lines,
	}
	l.nextID++
	l.records = append(l.records, rec)
	l.persist(ctx)

	return copyRecord(rec), nil
}

// FindByID scans in insertion order for the matching record.
func (l *Ledger) FindByID(id int) (domain.InvoiceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range l.records {
		if rec.ID == id {
			return copyRecord(rec), nil
		}
	}
	return domain.InvoiceRecord{}, domain.ErrInvoiceNotFound
}

// AllRecords returns a snapshot of the history in ascending id order.
func (l *Ledger) AllRecords() []domain.InvoiceRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.InvoiceRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, copyRecord(rec))
	}
	return out
}

// ProcessReturn reduces or removes one line of a historical invoice and
// recomputes its total from the surviving lines. The agreed effective
// unit price never changes. Quantity must be within (0, sold]; the
// invoice is untouched on any failure. Restoring catalog stock is the
// caller's job.
func (l *Ledger) ProcessReturn(ctx context.Context, invoiceID int, productID string, returnQty int) (domain.InvoiceRecord, bool, error) {
	if returnQty <= 0 {
		return domain.InvoiceRecord{}, false, domain.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	recIdx := -1
	for i := range l.records {
		if l.records[i].ID == invoiceID {
			recIdx = i
			break
		}
	}
	if recIdx == -1 {
		return domain.InvoiceRecord{}, false, domain.ErrInvoiceNotFound
	}

	rec := l.records[recIdx]
	lineIdx := -1
	for i := range rec.Lines {
		if rec.Lines[i].ProductID == productID {
			lineIdx = i
			break
		}
	}
	if lineIdx == -1 {
		return domain.InvoiceRecord{}, false, domain.ErrLineNotFound
	}
	if returnQty > rec.Lines[lineIdx].Quantity {
		return domain.InvoiceRecord{}, false, domain.ErrInvalidReturnQuantity
	}

	newQty := rec.Lines[lineIdx].Quantity - returnQty
	removed := newQty <= 0

	newLines := make([]domain.InvoiceLine, 0, len(rec.Lines))
	for i, line := range rec.Lines {
		if i == lineIdx {
			if removed {
				continue
			}
			line.Quantity = newQty
		}
		newLines = append(newLines, line)
	}

	newTotal := 0.0
	for _, line := range newLines {
		newTotal += float64(line.Quantity) * line.EffectiveUnitPrice
	}

	rec.Lines = newLines
	rec.Total = newTotal
	l.records[recIdx] = rec
	l.persist(ctx)

	return copyRecord(rec), removed, nil
}

// Flush writes the full ledger out, returning the error instead of
// swallowing it. Used on graceful shutdown.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Save(ctx, l.records)
}

// SkippedLines reports how many persisted lines the startup load had
// to drop.
func (l *Ledger) SkippedLines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.skipped
}

func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// persist saves under the held lock so readers never observe a state
// that was not (or is not about to be) written. A failed save is
// logged and the in-memory mutation stands.
func (l *Ledger) persist(ctx context.Context) {
	if err := l.store.Save(ctx, l.records); err != nil {
		l.log.Error().Err(err).Int("records", len(l.records)).Msg("ledger save failed; in-memory state remains authoritative")
	}
}

func copyRecord(rec domain.InvoiceRecord) domain.InvoiceRecord {
	out := rec
	out.Lines = make([]domain.InvoiceLine, len(rec.Lines))
	copy(out.Lines, rec.Lines)
	return out
}
