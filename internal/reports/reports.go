// Package reports writes inventory reports as CSV.
package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/benbjohnson/clock"

	"github.com/medstock-labs/medstock/internal/inventory"
	"github.com/medstock-labs/medstock/internal/storage"
)

// Type names a report.
type Type string

const (
	TypeInventory Type = "inventory"
	TypeExpiry    Type = "expiry"
	TypeDispense  Type = "dispense"
)

// AllTypes lists the available report types.
func AllTypes() []Type {
	return []Type{TypeInventory, TypeExpiry, TypeDispense}
}

// IsValid checks if the report type is known.
func (t Type) IsValid() bool {
	for _, valid := range AllTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// Filename is the suggested download filename for the report.
func (t Type) Filename() string {
	switch t {
	case TypeExpiry:
		return "expiry_report.csv"
	case TypeDispense:
		return "dispense_report.csv"
	default:
		return "inventory_export.csv"
	}
}

// Generator writes reports against a store.
type Generator struct {
	store      storage.Store
	clock      clock.Clock
	windowDays int
}

// NewGenerator creates a generator. windowDays sets the expiring-soon
// horizon of the expiry report.
func NewGenerator(store storage.Store, clk clock.Clock, windowDays int) *Generator {
	if clk == nil {
		clk = clock.New()
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Generator{store: store, clock: clk, windowDays: windowDays}
}

// Write renders the report of the given type to w.
func (g *Generator) Write(ctx context.Context, typ Type, w io.Writer) error {
	switch typ {
	case TypeInventory:
		return g.writeInventory(ctx, w)
	case TypeExpiry:
		return g.writeExpiry(ctx, w)
	case TypeDispense:
		return g.writeDispense(ctx, w)
	default:
		return fmt.Errorf("unknown report type %q", typ)
	}
}

// writeInventory exports every ledger record with its batch balance.
func (g *Generator) writeInventory(ctx context.Context, w io.Writer) error {
	records, _, err := g.store.Records().List(ctx, storage.RecordFilter{SortBy: "medicine_name"})
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	balances, err := g.balancesByKey(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Medicine Name", "Generic Name", "Dosage Form", "Strength", "Batch No",
		"Expiry Date", "Quantity In", "Quantity Out", "Balance", "Supplier",
		"Storage Condition", "Unit Cost", "Created By", "Date Added",
	}); err != nil {
		return err
	}

	for _, rec := range records {
		balance := 0
		if b, ok := balances[rec.Key()]; ok {
			balance = b.Balance
		}
		cost := ""
		if rec.UnitCost != nil {
			cost = rec.UnitCost.StringFixed(2)
		}
		if err := cw.Write([]string{
			rec.MedicineName, rec.GenericName, rec.DosageForm, rec.Strength,
			rec.BatchNo, rec.ExpiryDate.Format("2006-01-02"),
			strconv.Itoa(rec.QuantityIn), strconv.Itoa(rec.QuantityOut),
			strconv.Itoa(balance), rec.SupplierName,
			string(rec.StorageCondition), cost, rec.CreatedBy,
			rec.Date.Format("2006-01-02"),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeExpiry exports all records ordered by expiry date, with status and
// days remaining.
func (g *Generator) writeExpiry(ctx context.Context, w io.Writer) error {
	records, _, err := g.store.Records().List(ctx, storage.RecordFilter{SortBy: "expiry_date"})
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	balances, err := g.balancesByKey(ctx)
	if err != nil {
		return err
	}
	now := g.clock.Now()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Medicine Name", "Batch No", "Expiry Date", "Days to Expiry", "Status", "Balance",
	}); err != nil {
		return err
	}

	for _, rec := range records {
		balance := 0
		if b, ok := balances[rec.Key()]; ok {
			balance = b.Balance
		}
		if err := cw.Write([]string{
			rec.MedicineName, rec.BatchNo,
			rec.ExpiryDate.Format("2006-01-02"),
			strconv.Itoa(rec.DaysToExpiry(now)),
			expiryLabel(rec.ExpiryStatusAt(now, g.windowDays)),
			strconv.Itoa(balance),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeDispense exports the dispense history, newest first.
func (g *Generator) writeDispense(ctx context.Context, w io.Writer) error {
	events, _, err := g.store.Dispense().List(ctx, storage.DispenseFilter{})
	if err != nil {
		return fmt.Errorf("failed to list dispense history: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Date", "Medicine Name", "Batch No", "Patient Name", "Quantity",
		"Dispensed By", "Prescribing Doctor",
	}); err != nil {
		return err
	}

	for _, ev := range events {
		if err := cw.Write([]string{
			ev.Date.Format("2006-01-02 15:04"),
			ev.MedicineName, ev.BatchNo, ev.DispensedTo,
			strconv.Itoa(ev.QuantityOut), ev.DispensedBy, ev.PrescribingDoctor,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (g *Generator) balancesByKey(ctx context.Context) (map[inventory.BatchKey]*inventory.Balance, error) {
	balances, err := g.store.Records().Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute balances: %w", err)
	}
	byKey := make(map[inventory.BatchKey]*inventory.Balance, len(balances))
	for _, b := range balances {
		byKey[b.BatchKey] = b
	}
	return byKey, nil
}

func expiryLabel(s inventory.ExpiryStatus) string {
	switch s {
	case inventory.ExpiryExpired:
		return "Expired"
	case inventory.ExpirySoon:
		return "Expiring Soon"
	default:
		return "Good"
	}
}
