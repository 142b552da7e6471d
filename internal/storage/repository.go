// Package storage provides persistence for the medstock inventory ledger,
// suppliers, stock alerts, and dispense history.
//
// All implementations must be:
// - Thread-safe
// - Context-aware (respecting cancellation/timeout)
// - Explicit about errors (never swallow)
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medstock-labs/medstock/internal/inventory"
)

// RecordFilter selects and orders inventory records for listing.
type RecordFilter struct {
	// Query matches case-insensitive substrings of medicine name, batch
	// number, generic name, or manufacturer.
	Query string

	// DosageForm restricts to an exact dosage form.
	DosageForm string

	// Expiry restricts by expiry classification, evaluated at Now with
	// WindowDays as the expiring-soon horizon. Empty means no expiry
	// filter.
	Expiry     inventory.ExpiryStatus
	Now        time.Time
	WindowDays int

	// LowStock restricts to records whose batch balance is below the
	// record's minimum stock level.
	LowStock bool

	// SortBy is one of the whitelist: date, -date, medicine_name,
	// -medicine_name, expiry_date, -expiry_date. Anything else falls back
	// to -date.
	SortBy string

	// Limit and Offset paginate the result. Limit <= 0 means no limit.
	Limit  int
	Offset int
}

// SortWhitelist is the set of accepted SortBy values.
var SortWhitelist = []string{
	"date", "-date",
	"medicine_name", "-medicine_name",
	"expiry_date", "-expiry_date",
}

// NormalizeSort maps an arbitrary sort key onto the whitelist.
func NormalizeSort(sortBy string) string {
	for _, s := range SortWhitelist {
		if s == sortBy {
			return s
		}
	}
	return "-date"
}

// DispenseFilter selects dispense events for listing.
type DispenseFilter struct {
	// From and To bound the event date (inclusive); zero means unbounded.
	From time.Time
	To   time.Time

	// Medicine matches a case-insensitive substring of the medicine name.
	Medicine string

	Limit  int
	Offset int
}

// MedicineTotal is a per-medicine dispense aggregate.
type MedicineTotal struct {
	MedicineName string `json:"medicine_name"`
	Total        int    `json:"total"`
}

// DailyTotal is a per-day dispense aggregate.
type DailyTotal struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Total int    `json:"total"`
}

// RecordRepository persists inventory ledger records.
type RecordRepository interface {
	// Create stores a new record. The record must validate.
	Create(ctx context.Context, rec *inventory.Record) error

	// Get retrieves a record by ID. Returns ErrRecordNotFound if absent.
	Get(ctx context.Context, id string) (*inventory.Record, error)

	// Update modifies an existing record. Returns ErrRecordNotFound if
	// absent.
	Update(ctx context.Context, rec *inventory.Record) error

	// Delete removes a record by ID. Returns ErrRecordNotFound if absent.
	Delete(ctx context.Context, id string) error

	// List returns matching records and the total match count before
	// pagination.
	List(ctx context.Context, f RecordFilter) ([]*inventory.Record, int, error)

	// ByMedicine returns records for one medicine, newest first.
	// limit <= 0 means all.
	ByMedicine(ctx context.Context, medicine string, limit int) ([]*inventory.Record, error)

	// LatestByBatch returns the newest record for a medicine and batch, or
	// ErrBatchNotFound.
	LatestByBatch(ctx context.Context, key inventory.BatchKey) (*inventory.Record, error)

	// BatchBalance returns the derived stock position of one batch, or
	// ErrBatchNotFound if the batch has no records.
	BatchBalance(ctx context.Context, key inventory.BatchKey) (*inventory.Balance, error)

	// Balances returns the stock position of every batch.
	Balances(ctx context.Context) ([]*inventory.Balance, error)

	// ListExpiringBetween returns records whose expiry date is in
	// (after, until]. A zero 'after' means unbounded below.
	ListExpiringBetween(ctx context.Context, after, until time.Time) ([]*inventory.Record, error)

	// RecentAdditions returns receipt records (quantity_in > 0) created
	// since the given time, newest first.
	RecentAdditions(ctx context.Context, since time.Time, limit int) ([]*inventory.Record, error)

	// DistinctMedicines returns the distinct medicine names, sorted.
	DistinctMedicines(ctx context.Context) ([]string, error)

	// DistinctDosageForms returns the distinct dosage forms in use, sorted.
	DistinctDosageForms(ctx context.Context) ([]string, error)

	// Count returns the total number of ledger records.
	Count(ctx context.Context) (int, error)

	// ReceivedSince sums quantity_in over records dated on or after t.
	ReceivedSince(ctx context.Context, t time.Time) (int, error)

	// InventoryValue sums quantity_in * unit_cost over records that carry
	// a unit cost.
	InventoryValue(ctx context.Context) (decimal.Decimal, error)

	// Clear removes all records. Used by import --clear-existing.
	Clear(ctx context.Context) error
}

// SupplierRepository persists the supplier registry.
type SupplierRepository interface {
	// Create stores a new supplier. Duplicate names are an error.
	Create(ctx context.Context, s *inventory.Supplier) error

	// Ensure returns the supplier with the given name, creating it if
	// absent. Reports whether it was created.
	Ensure(ctx context.Context, name string) (*inventory.Supplier, bool, error)

	// Get retrieves a supplier by name.
	Get(ctx context.Context, name string) (*inventory.Supplier, error)

	// List returns all suppliers ordered by name.
	List(ctx context.Context) ([]*inventory.Supplier, error)

	// Count returns the number of suppliers.
	Count(ctx context.Context) (int, error)
}

// AlertRepository persists stock alerts.
type AlertRepository interface {
	// GetOrCreate returns the unacknowledged alert for a medicine and
	// type, creating it with the given message if absent. Reports whether
	// it was created.
	GetOrCreate(ctx context.Context, medicine string, typ inventory.AlertType, message string) (*inventory.Alert, bool, error)

	// Get retrieves an alert by ID. Returns ErrAlertNotFound if absent.
	Get(ctx context.Context, id string) (*inventory.Alert, error)

	// List returns alerts newest first. When acknowledged is false only
	// open alerts are returned.
	List(ctx context.Context, acknowledged bool) ([]*inventory.Alert, error)

	// Acknowledge marks an alert acknowledged by a user at a time.
	Acknowledge(ctx context.Context, id, by string, at time.Time) error

	// DeleteAcknowledgedBefore removes acknowledged alerts older than t
	// and returns how many were deleted.
	DeleteAcknowledgedBefore(ctx context.Context, t time.Time) (int, error)
}

// DispenseRepository persists the dispense history.
type DispenseRepository interface {
	// Create stores a new dispense event. The event must validate.
	Create(ctx context.Context, ev *inventory.DispenseEvent) error

	// List returns matching events newest first plus the total match
	// count before pagination.
	List(ctx context.Context, f DispenseFilter) ([]*inventory.DispenseEvent, int, error)

	// TotalsByMedicine returns per-medicine dispense totals since t,
	// largest first.
	TotalsByMedicine(ctx context.Context, since time.Time, limit int) ([]MedicineTotal, error)

	// DailyTotals returns per-day dispense totals for events dated in
	// [from, to].
	DailyTotals(ctx context.Context, from, to time.Time) ([]DailyTotal, error)

	// DispensedSince sums quantity_out over events dated on or after t.
	DispensedSince(ctx context.Context, t time.Time) (int, error)

	// Clear removes all events. Used by import --clear-existing.
	Clear(ctx context.Context) error
}

// Store bundles the repositories behind one connection.
type Store interface {
	Records() RecordRepository
	Suppliers() SupplierRepository
	Alerts() AlertRepository
	Dispense() DispenseRepository

	// CheckConnectivity verifies the backing database responds. Server
	// startup fails when it does not.
	CheckConnectivity(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
