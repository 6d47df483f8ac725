package ledger

import (
	"context"

	"sportpos/backend/internal/domain"
)

// LoadStats reports what a load encountered besides clean records.
type LoadStats struct {
	// Skipped counts lines that failed to parse and were dropped.
	Skipped int
	// Legacy counts records read from the delimited grammar; a nonzero
	// count makes the ledger rewrite the file in the versioned format.
	Legacy int
}

// Store persists the whole ledger. Save always writes a full dump;
// there is no incremental append, matching the mutate-then-rewrite
// lifecycle of the ledger.
type Store interface {
	Load(ctx context.Context) ([]domain.InvoiceRecord, LoadStats, error)
	Save(ctx context.Context, records []domain.InvoiceRecord) error
	Close() error
}
