package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"sportpos/backend/internal/domain"
)

// FileStore keeps the ledger in a flat file, one invoice per line. An
// absent file is an empty ledger. Writes go to a temp file in the same
// directory and are renamed over the target, so a crash mid-write
// leaves the previous dump intact.
type FileStore struct {
	path string
	log  zerolog.Logger
}

func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Load(_ context.Context) ([]domain.InvoiceRecord, LoadStats, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.InvoiceRecord{}, LoadStats{}, nil
		}
		return nil, LoadStats{}, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	var (
		records []domain.InvoiceRecord
		stats   LoadStats
		lineNo  int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, legacy, err := DecodeLine(line)
		if err != nil {
			// One corrupt line must not lose the rest of history.
			stats.Skipped++
			s.log.Warn().Int("line", lineNo).Err(err).Msg("skipping unparseable ledger line")
			continue
		}
		if legacy {
			stats.Legacy++
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, LoadStats{}, fmt.Errorf("read ledger file: %w", err)
	}
	if records == nil {
		records = []domain.InvoiceRecord{}
	}
	return records, stats, nil
}

func (s *FileStore) Save(_ context.Context, records []domain.InvoiceRecord) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".invoices-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	defer func() {
		// No-ops once the rename has happened.
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		data, err := MarshalRecord(rec)
		if err != nil {
			return fmt.Errorf("encode invoice %d: %w", rec.ID, err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
