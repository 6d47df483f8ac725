package ledger

import (
	"strings"
	"testing"

	"sportpos/backend/internal/domain"
)

func TestDecodeLegacyLine(t *testing.T) {
	line := "3;171;2024-05-01T10:00:00Z;ana;0.05;7:2:85.5:Trail Runner:0.1"

	rec, legacy, err := DecodeLine(line)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !legacy {
		t.Fatalf("delimited line must be reported as legacy")
	}
	if rec.ID != 3 || rec.Total != 171 || rec.CashierName != "ana" {
		t.Fatalf("bad header: %+v", rec)
	}
	if rec.GlobalDiscount != 0.05 {
		t.Fatalf("expected global discount 0.05, got %v", rec.GlobalDiscount)
	}
	if len(rec.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(rec.Lines))
	}
	item := rec.Lines[0]
	if item.ProductID != "7" || item.Quantity != 2 || item.EffectiveUnitPrice != 85.5 {
		t.Fatalf("bad item: %+v", item)
	}
	if item.ProductName != "Trail Runner" || item.ItemDiscount != 0.1 {
		t.Fatalf("bad item tail: %+v", item)
	}
}

func TestDecodeLegacyLineWithoutGlobalDiscountColumn(t *testing.T) {
	// The oldest files have the items blob in the 5th field and no item
	// discount column at all.
	line := "1;200;2023-01-01T00:00:00Z;bud;5:4:50:Cap"

	rec, legacy, err := DecodeLine(line)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !legacy {
		t.Fatalf("expected legacy")
	}
	if rec.GlobalDiscount != 0 {
		t.Fatalf("missing column must decode as zero discount, got %v", rec.GlobalDiscount)
	}
	if len(rec.Lines) != 1 || rec.Lines[0].ItemDiscount != 0 {
		t.Fatalf("missing item discount must decode as zero: %+v", rec.Lines)
	}
	if rec.Lines[0].Quantity != 4 || rec.Lines[0].ProductName != "Cap" {
		t.Fatalf("bad item: %+v", rec.Lines[0])
	}
}

func TestDecodeLegacyMultipleItems(t *testing.T) {
	line := "9;305;2024-06-10T12:00:00Z;cal;0;1:1:100:Boots:0|2:3:68.333:Shirt:0.2"

	rec, _, err := DecodeLine(line)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(rec.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(rec.Lines))
	}
	if rec.Lines[1].ProductName != "Shirt" || rec.Lines[1].Quantity != 3 {
		t.Fatalf("second line wrong: %+v", rec.Lines[1])
	}
}

func TestDecodeLegacyRejectsTruncatedLines(t *testing.T) {
	for _, line := range []string{
		"",
		"1;2;3",
		"x;100;d;c;0;1:1:10:n:0",
		"1;abc;d;c;0;1:1:10:n:0",
		"1;100;d;c;0;1:1:ten:n:0",
		"1;100;d;c;0;1:1:10",
	} {
		if _, _, err := DecodeLine(line); err == nil {
			t.Fatalf("expected decode of %q to fail", line)
		}
	}
}

func TestDecodeLegacyRejectsBadGlobalDiscount(t *testing.T) {
	// A corrupt discount column must fail the whole line rather than
	// silently decode as zero and change the record's provenance.
	line := "3;171;2024-05-01T10:00:00Z;ana;oops;7:2:85.5:Trail Runner:0.1"
	if _, _, err := DecodeLine(line); err == nil {
		t.Fatalf("expected decode of %q to fail", line)
	}
}

func TestVersionedRoundTrip(t *testing.T) {
	rec := domain.InvoiceRecord{
		ID:             4,
		Total:          171,
		Date:           "2024-05-01T10:00:00Z",
		CashierName:    "ana",
		GlobalDiscount: 0.05,
		Lines: []domain.InvoiceLine{
			{ProductID: "7", ProductName: "Trail Runner", Quantity: 2, EffectiveUnitPrice: 85.5, ItemDiscount: 0.1},
		},
	}

	data, err := MarshalRecord(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "{") {
		t.Fatalf("versioned record must be a JSON object, got %s", data)
	}

	got, legacy, err := DecodeLine(string(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if legacy {
		t.Fatalf("JSON line must not be reported as legacy")
	}
	if got.ID != rec.ID || got.Total != rec.Total || got.CashierName != rec.CashierName {
		t.Fatalf("round trip changed header: %+v", got)
	}
	if len(got.Lines) != 1 || got.Lines[0] != rec.Lines[0] {
		t.Fatalf("round trip changed lines: %+v", got.Lines)
	}
}

func TestUnmarshalRejectsUnknownVersion(t *testing.T) {
	if _, err := UnmarshalRecord([]byte(`{"v":99,"id":1}`)); err == nil {
		t.Fatalf("expected version check to fail")
	}
}

func TestEncodeLegacyMatchesDecoder(t *testing.T) {
	rec := domain.InvoiceRecord{
		ID:             12,
		Total:          85.5,
		Date:           "2024-02-02T08:30:00Z",
		CashierName:    "dee",
		GlobalDiscount: 0.1,
		Lines: []domain.InvoiceLine{
			{ProductID: "3", ProductName: "Gloves", Quantity: 1, EffectiveUnitPrice: 85.5, ItemDiscount: 0},
		},
	}

	got, legacy, err := DecodeLine(EncodeLegacy(rec))
	if err != nil {
		t.Fatalf("decode of encoded record failed: %v", err)
	}
	if !legacy {
		t.Fatalf("expected legacy grammar")
	}
	if got.ID != rec.ID || got.Total != rec.Total || got.GlobalDiscount != rec.GlobalDiscount {
		t.Fatalf("round trip changed header: %+v", got)
	}
	if len(got.Lines) != 1 || got.Lines[0] != rec.Lines[0] {
		t.Fatalf("round trip changed lines: %+v", got.Lines)
	}
}
