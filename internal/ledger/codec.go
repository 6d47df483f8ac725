package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"sportpos/backend/internal/domain"
)

// The ledger file carries one invoice per line in one of two shapes.
//
// Versioned (current, JSON Lines):
//
//	{"v":2,"id":3,"total":171,...,"lines":[...]}
//
// Legacy delimited:
//
//	id;total;date;cashier;globalDiscount;items
//
// where items is a |-joined list of
// productId:quantity:effectiveUnitPrice:productName:itemDiscount
// snapshots. Two older legacy variants are still accepted: a header
// with no globalDiscount column (items in the 5th field) and item
// snapshots with no trailing discount field. Names containing ';', '|'
// or ':' corrupt the legacy format; there is no escaping. The
// versioned format has no such limitation, which is why loads rewrite
// legacy files.

const recordVersion = 2

type versionedRecord struct {
	Version int `json:"v"`
	domain.InvoiceRecord
}

// MarshalRecord encodes one invoice as a versioned JSON line, without
// the trailing newline.
func MarshalRecord(rec domain.InvoiceRecord) ([]byte, error) {
	return json.Marshal(versionedRecord{Version: recordVersion, InvoiceRecord: rec})
}

// UnmarshalRecord decodes a versioned JSON line.
func UnmarshalRecord(data []byte) (domain.InvoiceRecord, error) {
	var rec versionedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.InvoiceRecord{}, err
	}
	if rec.Version != recordVersion {
		return domain.InvoiceRecord{}, fmt.Errorf("unsupported record version %d", rec.Version)
	}
	if rec.Lines == nil {
		rec.Lines = []domain.InvoiceLine{}
	}
	return rec.InvoiceRecord, nil
}

// DecodeLine parses one persisted line in either shape. The second
// return reports whether the line used the legacy delimited grammar,
// so the caller can schedule a rewrite.
func DecodeLine(line string) (domain.InvoiceRecord, bool, error) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		rec, err := UnmarshalRecord([]byte(trimmed))
		return rec, false, err
	}
	rec, err := decodeLegacy(trimmed)
	return rec, true, err
}

func decodeLegacy(line string) (domain.InvoiceRecord, error) {
	fields := strings.Split(line, ";")
	if len(fields) < 5 {
		return domain.InvoiceRecord{}, fmt.Errorf("want at least 5 header fields, got %d", len(fields))
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return domain.InvoiceRecord{}, fmt.Errorf("invoice id: %w", err)
	}
	total, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return domain.InvoiceRecord{}, fmt.Errorf("invoice total: %w", err)
	}

	rec := domain.InvoiceRecord{
		ID:          id,
		Total:       total,
		Date:        fields[2],
		CashierName: fields[3],
		Lines:       []domain.InvoiceLine{},
	}

	// Old files have no globalDiscount column; the items blob then sits
	// in the 5th field instead of the 6th.
	var itemsBlob string
	if len(fields) >= 6 {
		disc, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return domain.InvoiceRecord{}, fmt.Errorf("invoice %d global discount: %w", id, err)
		}
		rec.GlobalDiscount = disc
		itemsBlob = fields[5]
	} else {
		itemsBlob = fields[4]
	}

	if itemsBlob == "" {
		return rec, nil
	}

	for _, raw := range strings.Split(itemsBlob, "|") {
		line, err := decodeLegacyItem(raw)
		if err != nil {
			return domain.InvoiceRecord{}, fmt.Errorf("invoice %d item %q: %w", id, raw, err)
		}
		rec.Lines = append(rec.Lines, line)
	}
	return rec, nil
}

func decodeLegacyItem(raw string) (domain.InvoiceLine, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 4 {
		return domain.InvoiceLine{}, fmt.Errorf("want at least 4 fields, got %d", len(parts))
	}

	qty, err := strconv.Atoi(parts[1])
	if err != nil {
		return domain.InvoiceLine{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return domain.InvoiceLine{}, fmt.Errorf("unit price: %w", err)
	}

	item := domain.InvoiceLine{
		ProductID:          parts[0],
		Quantity:           qty,
		EffectiveUnitPrice: price,
		ProductName:        parts[3],
	}
	// The item discount column arrived later; absent means zero.
	if len(parts) > 4 {
		disc, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			return domain.InvoiceLine{}, fmt.Errorf("item discount: %w", err)
		}
		item.ItemDiscount = disc
	}
	return item, nil
}

// EncodeLegacy renders the delimited grammar. Kept for fixtures and
// interop with files written by the original system; new writes always
// use MarshalRecord.
func EncodeLegacy(rec domain.InvoiceRecord) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(rec.ID))
	b.WriteByte(';')
	b.WriteString(formatAmount(rec.Total))
	b.WriteByte(';')
	b.WriteString(rec.Date)
	b.WriteByte(';')
	b.WriteString(rec.CashierName)
	b.WriteByte(';')
	b.WriteString(formatAmount(rec.GlobalDiscount))
	b.WriteByte(';')
	for i, line := range rec.Lines {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(line.ProductID)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(line.Quantity))
		b.WriteByte(':')
		b.WriteString(formatAmount(line.EffectiveUnitPrice))
		b.WriteByte(':')
		b.WriteString(line.ProductName)
		b.WriteByte(':')
		b.WriteString(formatAmount(line.ItemDiscount))
	}
	return b.String()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
