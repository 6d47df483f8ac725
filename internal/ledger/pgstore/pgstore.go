// Package pgstore persists the invoice ledger in PostgreSQL behind the
// same full-dump Store contract as the flat file: Load reads every
// record, Save replaces the whole table in one transaction. Selected
// over the file store when DATABASE_URL is set.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sportpos/backend/internal/domain"
	"sportpos/backend/internal/ledger"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS invoices (
			id     BIGINT PRIMARY KEY,
			record JSONB  NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure invoices table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) ([]domain.InvoiceRecord, ledger.LoadStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM invoices ORDER BY id`)
	if err != nil {
		return nil, ledger.LoadStats{}, err
	}
	defer rows.Close()

	records := make([]domain.InvoiceRecord, 0, 64)
	var stats ledger.LoadStats
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, ledger.LoadStats{}, err
		}
		rec, err := ledger.UnmarshalRecord(payload)
		if err != nil {
			stats.Skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.LoadStats{}, err
	}

	return records, stats, nil
}

func (s *Store) Save(ctx context.Context, records []domain.InvoiceRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `TRUNCATE invoices`); err != nil {
		return err
	}
	for _, rec := range records {
		payload, err := ledger.MarshalRecord(rec)
		if err != nil {
			return fmt.Errorf("encode invoice %d: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invoices (id, record) VALUES ($1, $2)
		`, rec.ID, payload); err != nil {
			return err
		}
	}

	return tx.Commit()
}
