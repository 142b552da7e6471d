package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/storage"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stock.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func newTestImporter(store storage.Store) (*Importer, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	return New(store, zap.NewNop(), nil, mock), mock
}

const sampleCSV = `Date,Medicine Name,Generic Name,Dosage/Form,Batch No.,Expiry Date,Quantity IN,Quantity OUT,Dispensed To,Supplier Name,Storage Conditions,Cost
2026-05-01,Paracetamol,Acetaminophen,Tablet,P100,2027-05-01,200,0,,MediCorp,Room temperature,1.50
02/05/2026,Amoxicillin,,Capsule,A200,2027-01-15,50,10,Ward 2,MediCorp,Refrigerated,
2026-05-03,e.g. Aspirin,,Tablet,X1,2027-01-01,10,0,,,,
2026-05-04,,,,B1,2027-01-01,5,0,,,,
2026-05-05,Cough Syrup,,Syrup,,not-a-date,20,0,,,,
2026-05-06,Insulin,,Injection,,2026-12-01,30,0,,BioPharm,Keep frozen,
`

func TestImporter_CSV(t *testing.T) {
	store := storage.NewMemoryStore()
	imp, _ := newTestImporter(store)
	ctx := context.Background()

	path := writeTempCSV(t, sampleCSV)
	result, err := imp.Run(ctx, path, Options{CreatedBy: "asha"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Imported != 3 {
		t.Errorf("Imported = %d, want 3", result.Imported)
	}
	if len(result.Skipped) != 3 {
		t.Fatalf("Skipped = %d, want 3", len(result.Skipped))
	}
	reasons := map[int]string{}
	for _, issue := range result.Skipped {
		reasons[issue.Row] = issue.Reason
	}
	if reasons[4] != "template/example data" {
		t.Errorf("row 4 skip reason = %q", reasons[4])
	}
	if reasons[5] != "no medicine name" {
		t.Errorf("row 5 skip reason = %q", reasons[5])
	}
	if reasons[6] != "no valid expiry date" {
		t.Errorf("row 6 skip reason = %q", reasons[6])
	}

	// Suppliers are registered once per distinct name.
	if result.SuppliersCreated != 2 {
		t.Errorf("SuppliersCreated = %d, want 2", result.SuppliersCreated)
	}
	// One row has a quantity out with a recipient.
	if result.DispensesCreated != 1 {
		t.Errorf("DispensesCreated = %d, want 1", result.DispensesCreated)
	}

	records, total, err := store.Records().List(ctx, storage.RecordFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("stored records = %d, want 3", total)
	}

	byName := map[string]int{}
	for i, r := range records {
		byName[r.MedicineName] = i
	}

	para := records[byName["Paracetamol"]]
	if para.DosageForm != "tablet" {
		t.Errorf("dosage form not lowercased: %q", para.DosageForm)
	}
	if para.UnitCost == nil || para.UnitCost.StringFixed(2) != "1.50" {
		t.Errorf("unit cost not parsed: %v", para.UnitCost)
	}
	if para.CreatedBy != "asha" {
		t.Errorf("created_by = %q", para.CreatedBy)
	}

	amox := records[byName["Amoxicillin"]]
	// Day-first date format.
	if !amox.Date.Equal(time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date parsed as %s, want 2026-05-02", amox.Date.Format("2006-01-02"))
	}
	if amox.StorageCondition != "refrigerated" {
		t.Errorf("storage = %q, want refrigerated", amox.StorageCondition)
	}

	insulin := records[byName["Insulin"]]
	// Row 7 of the file has no batch number.
	if insulin.BatchNo != "BATCH_7" {
		t.Errorf("placeholder batch = %q, want BATCH_7", insulin.BatchNo)
	}
	if insulin.StorageCondition != "frozen" {
		t.Errorf("storage = %q, want frozen", insulin.StorageCondition)
	}
}

func TestImporter_DryRun(t *testing.T) {
	store := storage.NewMemoryStore()
	imp, _ := newTestImporter(store)
	ctx := context.Background()

	path := writeTempCSV(t, sampleCSV)
	result, err := imp.Run(ctx, path, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.DryRun {
		t.Error("result should report dry run")
	}
	if result.Imported != 3 || len(result.Preview) != 3 {
		t.Errorf("dry run imported=%d preview=%d, want 3/3", result.Imported, len(result.Preview))
	}
	if result.Mapping[FieldMedicineName] != "Medicine Name" {
		t.Errorf("mapping = %q", result.Mapping[FieldMedicineName])
	}

	if n, _ := store.Records().Count(ctx); n != 0 {
		t.Errorf("dry run wrote %d records", n)
	}
}

func TestImporter_ClearExisting(t *testing.T) {
	store := storage.NewMemoryStore()
	imp, _ := newTestImporter(store)
	ctx := context.Background()

	seed := writeTempCSV(t, sampleCSV)
	if _, err := imp.Run(ctx, seed, Options{}); err != nil {
		t.Fatalf("seed import failed: %v", err)
	}

	second := writeTempCSV(t, `Medicine Name,Batch No.,Expiry Date,Quantity IN
Ibuprofen,I1,2027-08-01,40
`)
	result, err := imp.Run(ctx, second, Options{ClearExisting: true})
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}

	n, _ := store.Records().Count(ctx)
	if n != 1 {
		t.Errorf("records after clear = %d, want 1", n)
	}
}

// TestImporter_ClearExistingKeepsDataOnBadFile checks that --clear-existing
// does not wipe the ledger when the incoming file yields nothing to import.
func TestImporter_ClearExistingKeepsDataOnBadFile(t *testing.T) {
	store := storage.NewMemoryStore()
	imp, _ := newTestImporter(store)
	ctx := context.Background()

	seed := writeTempCSV(t, sampleCSV)
	if _, err := imp.Run(ctx, seed, Options{}); err != nil {
		t.Fatalf("seed import failed: %v", err)
	}
	before, _ := store.Records().Count(ctx)
	if before == 0 {
		t.Fatal("seed import wrote no records")
	}

	// Every row is unimportable: no parseable expiry date.
	bad := writeTempCSV(t, `Medicine Name,Batch No.,Expiry Date,Quantity IN
Ibuprofen,I1,not-a-date,40
`)
	if _, err := imp.Run(ctx, bad, Options{ClearExisting: true}); err == nil {
		t.Fatal("expected error when clearing for a file with no importable rows")
	}

	after, _ := store.Records().Count(ctx)
	if after != before {
		t.Errorf("records = %d, want %d untouched", after, before)
	}
}

func TestImporter_NoMedicineColumn(t *testing.T) {
	store := storage.NewMemoryStore()
	imp, _ := newTestImporter(store)

	path := writeTempCSV(t, "Foo,Bar\n1,2\n")
	if _, err := imp.Run(context.Background(), path, Options{}); err == nil {
		t.Error("expected error for missing medicine column")
	}
}

func TestImporter_EmptyFile(t *testing.T) {
	store := storage.NewMemoryStore()
	imp, _ := newTestImporter(store)

	path := writeTempCSV(t, "Medicine Name,Batch No.\n")
	if _, err := imp.Run(context.Background(), path, Options{}); err == nil {
		t.Error("expected error for file without data rows")
	}
}

// TestImporter_FormatOverride checks that Options.Format beats the file
// extension.
func TestImporter_FormatOverride(t *testing.T) {
	store := storage.NewMemoryStore()
	imp, _ := newTestImporter(store)

	// A spreadsheet hiding behind a generic extension.
	odsPath := writeTestODS(t, testContentXML)
	path := filepath.Join(filepath.Dir(odsPath), "upload.dat")
	if err := os.Rename(odsPath, path); err != nil {
		t.Fatalf("failed to rename: %v", err)
	}

	if _, err := imp.Run(context.Background(), path, Options{}); err == nil {
		t.Fatal("zip content should not parse as delimited text")
	}

	result, err := imp.Run(context.Background(), path, Options{Format: "ods"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("imported = %d, want 1", result.Imported)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-05-01", "2026-05-01", true},
		{"02/05/2026", "2026-05-02", true},
		{"02-05-2026", "2026-05-02", true},
		{"2026/05/01", "2026-05-01", true},
		{"2026-05-01T14:30:00", "2026-05-01", true},
		{"  2026-05-01  ", "2026-05-01", true},
		{"", "", false},
		{"soon", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.Format("2006-01-02") != tt.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.want)
		}
	}
}

func TestParseCost(t *testing.T) {
	if c := parseCost("$12.50"); c == nil || c.StringFixed(2) != "12.50" {
		t.Errorf("parseCost($12.50) = %v", c)
	}
	if c := parseCost("₹ 99"); c == nil || c.StringFixed(2) != "99.00" {
		t.Errorf("parseCost(₹ 99) = %v", c)
	}
	if c := parseCost("n/a"); c != nil {
		t.Errorf("parseCost(n/a) = %v, want nil", c)
	}
	if c := parseCost(""); c != nil {
		t.Errorf("parseCost(empty) = %v, want nil", c)
	}
}

func TestNormalizeStorage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Store in refrigerator", "refrigerated"},
		{"Cold chain", "refrigerated"},
		{"Keep frozen", "frozen"},
		{"Controlled temperature", "controlled_temp"},
		{"Room temperature", "room_temp"},
		{"Ambient", "room_temp"},
		{"On the shelf", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeStorage(tt.in); string(got) != tt.want {
			t.Errorf("normalizeStorage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
