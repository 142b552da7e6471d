// Package importer loads inventory ledger records from ODS and CSV files.
// Columns are auto-detected from the header row, template rows are skipped,
// and dispense history and suppliers are derived from the imported records.
package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/errors"
	"github.com/medstock-labs/medstock/internal/inventory"
	"github.com/medstock-labs/medstock/internal/observability"
	"github.com/medstock-labs/medstock/internal/storage"
)

// dateFormats are the accepted date layouts, tried in order. Day-first
// formats win over month-first, matching the source spreadsheets.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
}

// previewRows is how many mapped records a dry run reports.
const previewRows = 5

// Options control one import run.
type Options struct {
	// Format forces the input format: "csv" or "ods". Empty selects by
	// file extension.
	Format string

	// Sheet selects the ODS sheet by name or index. Empty means the first
	// sheet. Ignored for CSV files.
	Sheet string

	// DryRun previews the column mapping and row outcomes without writing.
	DryRun bool

	// ClearExisting deletes all records and dispense history first.
	ClearExisting bool

	// CreatedBy is recorded on every imported record.
	CreatedBy string
}

// RowIssue describes why a source row was not imported.
type RowIssue struct {
	// Row is the 1-based row number in the source file, header included.
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result summarizes an import run.
type Result struct {
	// Mapping reports the detected header column for each field. Unmapped
	// fields are absent.
	Mapping map[Field]string `json:"mapping"`

	Imported         int        `json:"imported"`
	Skipped          []RowIssue `json:"skipped,omitempty"`
	Failed           []RowIssue `json:"failed,omitempty"`
	SuppliersCreated int        `json:"suppliers_created"`
	DispensesCreated int        `json:"dispenses_created"`

	// DryRun echoes whether this was a preview.
	DryRun bool `json:"dry_run"`

	// Preview holds the first mapped records of a dry run.
	Preview []*inventory.Record `json:"preview,omitempty"`
}

// Importer runs file imports against a store.
type Importer struct {
	store   storage.Store
	logger  *zap.Logger
	metrics *observability.Metrics
	clock   clock.Clock
}

// New creates an importer. metrics may be nil.
func New(store storage.Store, logger *zap.Logger, metrics *observability.Metrics, clk clock.Clock) *Importer {
	if clk == nil {
		clk = clock.New()
	}
	return &Importer{store: store, logger: logger, metrics: metrics, clock: clk}
}

// Run imports the file at path. Unless Options.Format forces one, the
// format is chosen by extension: .ods is read as a spreadsheet, anything
// else as delimited text.
func (im *Importer) Run(ctx context.Context, path string, opts Options) (*Result, error) {
	rows, err := im.readRows(path, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.NewImportFailed(path, "file has no data rows", nil)
	}

	header := rows[0]
	mapping := DetectColumns(header)
	if _, ok := mapping[FieldMedicineName]; !ok {
		return nil, errors.NewImportFailed(path, "no medicine name column detected", nil)
	}

	result := &Result{
		Mapping: make(map[Field]string),
		DryRun:  opts.DryRun,
	}
	for field, idx := range mapping {
		if idx < len(header) {
			result.Mapping[field] = strings.TrimSpace(header[idx])
		}
	}

	// Parse phase: the whole batch is mapped and validated before any
	// write, so a clear-existing wipe never runs for a file that turns
	// out to have nothing importable in it.
	type pendingRow struct {
		rowNum int
		rec    *inventory.Record
		row    []string
	}
	var batch []pendingRow
	for i, row := range rows[1:] {
		rowNum := i + 2

		rec, skip := im.buildRecord(row, rowNum, mapping, opts.CreatedBy)
		if skip != "" {
			result.Skipped = append(result.Skipped, RowIssue{Row: rowNum, Reason: skip})
			if im.metrics != nil {
				im.metrics.RecordsSkipped.Inc()
			}
			continue
		}

		if opts.DryRun {
			result.Imported++
			if len(result.Preview) < previewRows {
				result.Preview = append(result.Preview, rec)
			}
			continue
		}

		batch = append(batch, pendingRow{rowNum: rowNum, rec: rec, row: row})
	}

	if opts.ClearExisting && !opts.DryRun {
		if len(batch) == 0 {
			return nil, errors.NewImportFailed(path,
				"refusing to clear existing data: no importable rows", nil)
		}
		im.logger.Info("clearing existing inventory data")
		if err := im.store.Records().Clear(ctx); err != nil {
			return nil, errors.NewImportFailed(path, "failed to clear records", err)
		}
		if err := im.store.Dispense().Clear(ctx); err != nil {
			return nil, errors.NewImportFailed(path, "failed to clear dispense history", err)
		}
	}

	// Commit phase: rows are written one at a time so a bad row never
	// takes the rest of the batch down with it; failures are reported
	// per row.
	seenSuppliers := make(map[string]bool)
	for _, p := range batch {
		if err := im.store.Records().Create(ctx, p.rec); err != nil {
			result.Failed = append(result.Failed, RowIssue{Row: p.rowNum, Reason: err.Error()})
			im.logger.Warn("failed to import row",
				zap.Int("row", p.rowNum),
				zap.Error(err))
			continue
		}
		result.Imported++
		if im.metrics != nil {
			im.metrics.RecordsImported.Inc()
		}

		if p.rec.SupplierName != "" && !seenSuppliers[p.rec.SupplierName] {
			seenSuppliers[p.rec.SupplierName] = true
			if _, created, err := im.store.Suppliers().Ensure(ctx, p.rec.SupplierName); err != nil {
				im.logger.Warn("failed to register supplier",
					zap.String("supplier", p.rec.SupplierName),
					zap.Error(err))
			} else if created {
				result.SuppliersCreated++
			}
		}

		if p.rec.QuantityOut > 0 && p.rec.DispensedTo != "" {
			ev := inventory.EventFromRecord(p.rec)
			if by := im.columnValue(p.row, mapping, FieldDispensedBy); by != "" {
				ev.DispensedBy = by
			}
			if err := im.store.Dispense().Create(ctx, ev); err != nil {
				im.logger.Warn("failed to record dispense history",
					zap.Int("row", p.rowNum),
					zap.Error(err))
			} else {
				result.DispensesCreated++
			}
		}
	}

	im.logger.Info("import finished",
		zap.String("file", path),
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

func (im *Importer) readRows(path string, opts Options) ([][]string, error) {
	format := strings.ToLower(opts.Format)
	if format == "" || format == "auto" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch format {
	case "ods":
		sheets, err := ReadODS(path)
		if err != nil {
			return nil, errors.NewImportFailed(path, "failed to read spreadsheet", err)
		}
		s, err := SelectSheet(sheets, opts.Sheet)
		if err != nil {
			return nil, errors.NewImportFailed(path, err.Error(), nil)
		}
		return s.Rows, nil
	default:
		rows, err := ReadCSV(path)
		if err != nil {
			return nil, errors.NewImportFailed(path, "failed to read file", err)
		}
		return rows, nil
	}
}

func (im *Importer) columnValue(row []string, mapping ColumnMapping, f Field) string {
	idx, ok := mapping[f]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// buildRecord maps one source row to a ledger record. A non-empty skip
// reason means the row should not be imported. rowNum feeds the placeholder
// batch number for sources that omit one.
func (im *Importer) buildRecord(row []string, rowNum int, mapping ColumnMapping, createdBy string) (*inventory.Record, string) {
	get := func(f Field) string { return im.columnValue(row, mapping, f) }

	name := get(FieldMedicineName)
	if name == "" {
		return nil, "no medicine name"
	}
	if isTemplateValue(name) {
		return nil, "template/example data"
	}

	expiry, ok := ParseDate(get(FieldExpiryDate))
	if !ok {
		return nil, "no valid expiry date"
	}

	date, ok := ParseDate(get(FieldDate))
	if !ok {
		now := im.clock.Now().UTC()
		date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	dosageForm := strings.ToLower(get(FieldDosageForm))
	if dosageForm == "" {
		dosageForm = "other"
	}

	rec := &inventory.Record{
		Date:              date,
		MedicineName:      name,
		GenericName:       get(FieldGenericName),
		DosageForm:        dosageForm,
		Strength:          get(FieldStrength),
		Manufacturer:      get(FieldManufacturer),
		BatchNo:           get(FieldBatchNo),
		ExpiryDate:        expiry,
		QuantityIn:        parseNumber(get(FieldQuantityIn)),
		QuantityOut:       parseNumber(get(FieldQuantityOut)),
		StorageCondition:  normalizeStorage(get(FieldStorageCondition)),
		DispensedTo:       get(FieldDispensedTo),
		PrescribingDoctor: get(FieldPrescribingDoctor),
		SupplierName:      get(FieldSupplierName),
		UnitCost:          parseCost(get(FieldUnitCost)),
		MinStockLevel:     inventory.DefaultMinStockLevel,
		Notes:             get(FieldNotes),
		CreatedBy:         createdBy,
	}
	if rec.BatchNo == "" {
		rec.BatchNo = fmt.Sprintf("BATCH_%d", rowNum)
	}
	if err := rec.Validate(); err != nil {
		return nil, err.Error()
	}
	return rec, ""
}

// isTemplateValue recognizes placeholder rows left over from spreadsheet
// templates.
func isTemplateValue(name string) bool {
	if strings.HasPrefix(name, "e.g.") || name == "YYYY-MM-DD" {
		return true
	}
	lower := strings.ToLower(name)
	return strings.Contains(lower, "example") || strings.Contains(lower, "template")
}

// ParseDate parses a date in any accepted layout. ISO timestamps are
// truncated to their date part.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if i := strings.IndexByte(s, 'T'); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber parses an integer quantity, tolerating decimal notation.
// Unparseable values count as zero.
func parseNumber(s string) int {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// parseCost parses a unit cost, stripping a leading currency symbol.
// Unparseable values are dropped.
func parseCost(s string) *decimal.Decimal {
	s = strings.TrimSpace(strings.TrimLeft(s, "$€£₹ "))
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// normalizeStorage maps free-text storage descriptions onto the known
// conditions. Unrecognized text maps to the empty condition.
func normalizeStorage(s string) inventory.StorageCondition {
	lower := strings.ToLower(s)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "refriger") || strings.Contains(lower, "fridge") || strings.Contains(lower, "cold"):
		return inventory.StorageRefrigerated
	case strings.Contains(lower, "frozen") || strings.Contains(lower, "freez"):
		return inventory.StorageFrozen
	case strings.Contains(lower, "controlled"):
		return inventory.StorageControlled
	case strings.Contains(lower, "room") || strings.Contains(lower, "ambient"):
		return inventory.StorageRoomTemp
	default:
		return ""
	}
}
