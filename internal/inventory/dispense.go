package inventory

import (
	"strings"
	"time"

	"github.com/medstock-labs/medstock/internal/errors"
)

// DispenseEvent is one entry in the dispense history. Events are derived
// from ledger records with QuantityOut > 0 and carry the patient-facing
// details that the ledger does not.
type DispenseEvent struct {
	ID                 string    `json:"id"`
	Date               time.Time `json:"date"`
	MedicineName       string    `json:"medicine_name"`
	DosageForm         string    `json:"dosage_form"`
	BatchNo            string    `json:"batch_no"`
	DispensedTo        string    `json:"dispensed_to"`
	QuantityOut        int       `json:"quantity_out"`
	PatientID          string    `json:"patient_id,omitempty"`
	PrescribingDoctor  string    `json:"prescribing_doctor,omitempty"`
	PrescriptionNumber string    `json:"prescription_number,omitempty"`
	DispensedBy        string    `json:"dispensed_by,omitempty"`
	Notes              string    `json:"notes,omitempty"`

	// RecordID links back to the ledger record that produced this event,
	// when known.
	RecordID string `json:"record_id,omitempty"`
}

// Validate checks that the dispense event is well formed.
func (d *DispenseEvent) Validate() error {
	if strings.TrimSpace(d.MedicineName) == "" {
		return errors.NewInvalidRecord("medicine_name", "cannot be empty")
	}
	if strings.TrimSpace(d.DispensedTo) == "" {
		return errors.NewInvalidRecord("dispensed_to", "cannot be empty")
	}
	if d.QuantityOut <= 0 {
		return errors.NewInvalidRecord("quantity_out", "must be positive")
	}
	return nil
}

// EventFromRecord derives a dispense event from a ledger record. The caller
// assigns the event ID.
func EventFromRecord(r *Record) *DispenseEvent {
	return &DispenseEvent{
		Date:              r.Date,
		MedicineName:      r.MedicineName,
		DosageForm:        r.DosageForm,
		BatchNo:           r.BatchNo,
		DispensedTo:       r.DispensedTo,
		QuantityOut:       r.QuantityOut,
		PrescribingDoctor: r.PrescribingDoctor,
		DispensedBy:       r.CreatedBy,
		RecordID:          r.ID,
	}
}
