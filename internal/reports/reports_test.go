package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"github.com/medstock-labs/medstock/internal/inventory"
	"github.com/medstock-labs/medstock/internal/storage"
)

var reportNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T) (*Generator, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	mock := clock.NewMock()
	mock.Set(reportNow)
	return NewGenerator(store, mock, 30), store
}

func addRecord(t *testing.T, store storage.Store, medicine, batch string, expiry time.Time, in, out int) {
	t.Helper()
	cost := decimal.NewFromFloat(2.50)
	expiry = time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	rec := &inventory.Record{
		Date:          reportNow.AddDate(0, 0, -3),
		MedicineName:  medicine,
		DosageForm:    "tablet",
		BatchNo:       batch,
		ExpiryDate:    expiry,
		QuantityIn:    in,
		QuantityOut:   out,
		SupplierName:  "MediCorp",
		UnitCost:      &cost,
		MinStockLevel: 10,
		CreatedBy:     "tester",
	}
	if out > 0 {
		rec.DispensedTo = "Ward 1"
	}
	if err := store.Records().Create(context.Background(), rec); err != nil {
		t.Fatalf("failed to add record: %v", err)
	}
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV output: %v", err)
	}
	return rows
}

// TestType_IsValid checks report type validation.
func TestType_IsValid(t *testing.T) {
	for _, typ := range AllTypes() {
		if !typ.IsValid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	if Type("bogus").IsValid() {
		t.Error("bogus type should not be valid")
	}
}

// TestGenerator_Inventory checks the inventory export rows and the running
// balance column.
func TestGenerator_Inventory(t *testing.T) {
	gen, store := newTestGenerator(t)
	expiry := reportNow.AddDate(1, 0, 0)
	addRecord(t, store, "Paracetamol", "P1", expiry, 100, 0)
	addRecord(t, store, "Paracetamol", "P1", expiry, 0, 30)
	addRecord(t, store, "Amoxicillin", "A1", expiry, 50, 0)

	var buf bytes.Buffer
	if err := gen.Write(context.Background(), TypeInventory, &buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rows := readCSV(t, &buf)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "Medicine Name" || rows[0][8] != "Balance" {
		t.Errorf("header = %v", rows[0])
	}

	// Sorted by medicine name, so Amoxicillin comes first.
	if rows[1][0] != "Amoxicillin" || rows[1][8] != "50" {
		t.Errorf("first row = %v", rows[1])
	}
	// Both Paracetamol rows carry the same batch balance of 70.
	for _, row := range rows[2:] {
		if row[0] != "Paracetamol" || row[8] != "70" {
			t.Errorf("paracetamol row = %v", row)
		}
	}
	if rows[1][11] != "2.50" {
		t.Errorf("unit cost = %q, want 2.50", rows[1][11])
	}
}

// TestGenerator_Expiry checks status labels and days-to-expiry arithmetic.
func TestGenerator_Expiry(t *testing.T) {
	gen, store := newTestGenerator(t)
	addRecord(t, store, "Old Pills", "O1", reportNow.AddDate(0, 0, -10), 20, 0)
	addRecord(t, store, "Soon Pills", "S1", reportNow.AddDate(0, 0, 14), 20, 0)
	addRecord(t, store, "Fine Pills", "F1", reportNow.AddDate(1, 0, 0), 20, 0)

	var buf bytes.Buffer
	if err := gen.Write(context.Background(), TypeExpiry, &buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rows := readCSV(t, &buf)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}

	// Sorted by expiry date ascending.
	want := []struct {
		medicine string
		days     string
		status   string
	}{
		{"Old Pills", "-10", "Expired"},
		{"Soon Pills", "14", "Expiring Soon"},
		{"Fine Pills", "365", "Good"},
	}
	for i, w := range want {
		row := rows[i+1]
		if row[0] != w.medicine || row[3] != w.days || row[4] != w.status {
			t.Errorf("row %d = %v, want %s/%s/%s", i+1, row, w.medicine, w.days, w.status)
		}
	}
}

// TestGenerator_Dispense checks the dispense history export.
func TestGenerator_Dispense(t *testing.T) {
	gen, store := newTestGenerator(t)
	ev := &inventory.DispenseEvent{
		Date:              time.Date(2026, 5, 30, 10, 30, 0, 0, time.UTC),
		MedicineName:      "Paracetamol",
		BatchNo:           "P1",
		DispensedTo:       "R. Kumar",
		QuantityOut:       12,
		DispensedBy:       "tester",
		PrescribingDoctor: "Dr. Rao",
	}
	if err := store.Dispense().Create(context.Background(), ev); err != nil {
		t.Fatalf("failed to add event: %v", err)
	}

	var buf bytes.Buffer
	if err := gen.Write(context.Background(), TypeDispense, &buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	rows := readCSV(t, &buf)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	row := rows[1]
	if row[0] != "2026-05-30 10:30" {
		t.Errorf("date = %q", row[0])
	}
	if row[3] != "R. Kumar" || row[4] != "12" || row[6] != "Dr. Rao" {
		t.Errorf("row = %v", row)
	}
}

// TestGenerator_UnknownType checks the error path.
func TestGenerator_UnknownType(t *testing.T) {
	gen, _ := newTestGenerator(t)
	var buf bytes.Buffer
	if err := gen.Write(context.Background(), Type("bogus"), &buf); err == nil {
		t.Fatal("expected error for unknown report type")
	}
}
