// Package inventory provides the medicine inventory domain model.
// The store is an append-only ledger: each record carries quantity received
// and quantity dispensed for one medicine and batch, and the stock balance
// of a batch is derived by summing its records.
package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medstock-labs/medstock/internal/errors"
)

// StorageCondition is the required storage environment for a medicine.
type StorageCondition string

const (
	StorageRoomTemp     StorageCondition = "room_temp"
	StorageRefrigerated StorageCondition = "refrigerated"
	StorageFrozen       StorageCondition = "frozen"
	StorageControlled   StorageCondition = "controlled_temp"
)

// AllStorageConditions returns all valid storage conditions.
func AllStorageConditions() []StorageCondition {
	return []StorageCondition{StorageRoomTemp, StorageRefrigerated, StorageFrozen, StorageControlled}
}

// IsValid checks if the storage condition is known. The empty condition is
// allowed on records and means "not specified".
func (s StorageCondition) IsValid() bool {
	for _, valid := range AllStorageConditions() {
		if s == valid {
			return true
		}
	}
	return false
}

// DosageForms is the vocabulary of accepted dosage forms.
var DosageForms = []string{
	"tablet", "capsule", "syrup", "injection", "cream", "ointment",
	"drops", "inhaler", "patch", "suppository", "suspension", "powder",
	"other",
}

// IsKnownDosageForm reports whether form is in the accepted vocabulary.
// Matching is case-insensitive; imports carry arbitrary source spellings.
func IsKnownDosageForm(form string) bool {
	form = strings.ToLower(strings.TrimSpace(form))
	for _, f := range DosageForms {
		if f == form {
			return true
		}
	}
	return false
}

// DefaultMinStockLevel is applied when a record does not set its own
// minimum stock level.
const DefaultMinStockLevel = 10

// Record is one row of the inventory ledger.
type Record struct {
	// ID is the unique identifier for this record.
	ID string `json:"id"`

	// Date is the transaction date of the movement.
	Date time.Time `json:"date"`

	// MedicineName is the trade name of the medicine.
	MedicineName string `json:"medicine_name"`

	// GenericName is the scientific name (optional).
	GenericName string `json:"generic_name,omitempty"`

	// DosageForm is the form the medicine is supplied in (tablet, syrup, ...).
	DosageForm string `json:"dosage_form"`

	// Strength is the dose strength, e.g. "500mg" or "10ml" (optional).
	Strength string `json:"strength,omitempty"`

	// Manufacturer is the producing company (optional).
	Manufacturer string `json:"manufacturer,omitempty"`

	// BatchNo is the batch/lot number. Balances are tracked per
	// (MedicineName, BatchNo).
	BatchNo string `json:"batch_no"`

	// ExpiryDate is when the batch expires.
	ExpiryDate time.Time `json:"expiry_date"`

	// QuantityIn is the number of units received in this movement.
	QuantityIn int `json:"quantity_in"`

	// QuantityOut is the number of units dispensed in this movement.
	QuantityOut int `json:"quantity_out"`

	// StorageCondition is the required storage environment (optional).
	StorageCondition StorageCondition `json:"storage_condition,omitempty"`

	// DispensedTo is the patient or destination when QuantityOut > 0.
	DispensedTo string `json:"dispensed_to,omitempty"`

	// PrescribingDoctor is the prescriber for dispensing movements (optional).
	PrescribingDoctor string `json:"prescribing_doctor,omitempty"`

	// SupplierName is the supplying vendor for receipts (optional).
	SupplierName string `json:"supplier_name,omitempty"`

	// UnitCost is the per-unit purchase cost (optional).
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`

	// MinStockLevel is the low-stock threshold for this medicine and batch.
	MinStockLevel int `json:"min_stock_level"`

	// Notes is free-form commentary (optional).
	Notes string `json:"notes,omitempty"`

	// CreatedBy is the user who recorded the movement.
	CreatedBy string `json:"created_by,omitempty"`

	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the record is well formed.
// Returns a typed validation error naming the offending field.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.MedicineName) == "" {
		return errors.NewInvalidRecord("medicine_name", "cannot be empty")
	}
	if strings.TrimSpace(r.DosageForm) == "" {
		return errors.NewInvalidRecord("dosage_form", "cannot be empty")
	}
	if strings.TrimSpace(r.BatchNo) == "" {
		return errors.NewInvalidRecord("batch_no", "cannot be empty")
	}
	if r.ExpiryDate.IsZero() {
		return errors.NewInvalidRecord("expiry_date", "is required")
	}
	if r.QuantityIn < 0 {
		return errors.NewInvalidRecord("quantity_in", "cannot be negative")
	}
	if r.QuantityOut < 0 {
		return errors.NewInvalidRecord("quantity_out", "cannot be negative")
	}
	if r.QuantityOut > 0 && strings.TrimSpace(r.DispensedTo) == "" {
		return errors.NewInvalidRecord("dispensed_to", "required when quantity_out > 0")
	}
	if r.MinStockLevel < 1 {
		return errors.NewInvalidRecord("min_stock_level", "must be at least 1")
	}
	if r.StorageCondition != "" && !r.StorageCondition.IsValid() {
		return errors.NewInvalidRecord("storage_condition", "unknown storage condition")
	}
	if r.UnitCost != nil && r.UnitCost.IsNegative() {
		return errors.NewInvalidRecord("unit_cost", "cannot be negative")
	}
	return nil
}

// IsExpired reports whether the batch has expired at the given time.
// A batch expiring today counts as expired, matching pharmacy practice.
func (r *Record) IsExpired(now time.Time) bool {
	return !r.ExpiryDate.After(dateOf(now))
}

// DaysToExpiry returns whole days from now until expiry. Negative for
// expired batches.
func (r *Record) DaysToExpiry(now time.Time) int {
	return int(r.ExpiryDate.Sub(dateOf(now)).Hours() / 24)
}

// ExpiryStatus classifies the record against an expiring-soon window.
type ExpiryStatus string

const (
	ExpiryExpired ExpiryStatus = "expired"
	ExpirySoon    ExpiryStatus = "expiring_soon"
	ExpiryGood    ExpiryStatus = "good"
)

// ExpiryStatusAt returns the expiry classification of the record at now,
// with windowDays defining the expiring-soon horizon.
func (r *Record) ExpiryStatusAt(now time.Time, windowDays int) ExpiryStatus {
	if r.IsExpired(now) {
		return ExpiryExpired
	}
	if r.DaysToExpiry(now) <= windowDays {
		return ExpirySoon
	}
	return ExpiryGood
}

// BatchKey identifies a stock balance: quantities are summed per medicine
// and batch number.
type BatchKey struct {
	MedicineName string `json:"medicine_name"`
	BatchNo      string `json:"batch_no"`
}

// Key returns the batch key of the record.
func (r *Record) Key() BatchKey {
	return BatchKey{MedicineName: r.MedicineName, BatchNo: r.BatchNo}
}

// Balance is the derived stock position of one batch. MinStockLevel is the
// highest threshold any record of the batch set.
type Balance struct {
	BatchKey
	QuantityIn    int `json:"quantity_in"`
	QuantityOut   int `json:"quantity_out"`
	Balance       int `json:"balance"`
	MinStockLevel int `json:"min_stock_level"`
}

// IsLow reports whether the batch balance is below its minimum stock level.
func (b *Balance) IsLow() bool {
	return b.Balance < b.MinStockLevel
}

// dateOf truncates a time to its calendar date in UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
