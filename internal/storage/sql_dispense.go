package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medstock-labs/medstock/internal/inventory"
)

type sqlDispenseRepository struct {
	db *sql.DB
}

const dispenseColumns = `id, date, medicine_name, dosage_form, batch_no,
	dispensed_to, quantity_out, patient_id, prescribing_doctor,
	prescription_number, dispensed_by, notes, record_id`

func scanDispense(row interface{ Scan(...any) error }) (*inventory.DispenseEvent, error) {
	var ev inventory.DispenseEvent
	err := row.Scan(&ev.ID, &ev.Date, &ev.MedicineName, &ev.DosageForm, &ev.BatchNo,
		&ev.DispensedTo, &ev.QuantityOut, &ev.PatientID, &ev.PrescribingDoctor,
		&ev.PrescriptionNumber, &ev.DispensedBy, &ev.Notes, &ev.RecordID)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Create stores a new dispense event.
func (r *sqlDispenseRepository) Create(ctx context.Context, ev *inventory.DispenseEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dispense_events (
			id, date, medicine_name, dosage_form, batch_no, dispensed_to,
			quantity_out, patient_id, prescribing_doctor, prescription_number,
			dispensed_by, notes, record_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.ID, ev.Date.UTC(), ev.MedicineName, ev.DosageForm, ev.BatchNo,
		ev.DispensedTo, ev.QuantityOut, ev.PatientID, ev.PrescribingDoctor,
		ev.PrescriptionNumber, ev.DispensedBy, ev.Notes, ev.RecordID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispense event: %w", err)
	}
	return nil
}

// List returns matching events newest first plus the total match count.
func (r *sqlDispenseRepository) List(ctx context.Context, f DispenseFilter) ([]*inventory.DispenseEvent, int, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.From.IsZero() {
		conds = append(conds, fmt.Sprintf(`date >= %s`, arg(f.From.UTC())))
	}
	if !f.To.IsZero() {
		conds = append(conds, fmt.Sprintf(`date <= %s`, arg(f.To.UTC())))
	}
	if f.Medicine != "" {
		conds = append(conds, fmt.Sprintf(`LOWER(medicine_name) LIKE %s`,
			arg("%"+strings.ToLower(f.Medicine)+"%")))
	}

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dispense_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count dispense events: %w", err)
	}

	query := `SELECT ` + dispenseColumns + ` FROM dispense_events` + where +
		` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list dispense events: %w", err)
	}
	defer rows.Close()

	events := make([]*inventory.DispenseEvent, 0)
	for rows.Next() {
		ev, err := scanDispense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan dispense event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating dispense events: %w", err)
	}
	return events, total, nil
}

// TotalsByMedicine returns per-medicine dispense totals since t, largest
// first.
func (r *sqlDispenseRepository) TotalsByMedicine(ctx context.Context, since time.Time, limit int) ([]MedicineTotal, error) {
	query := `SELECT medicine_name, SUM(quantity_out) AS total
		FROM dispense_events WHERE date >= $1
		GROUP BY medicine_name ORDER BY total DESC, medicine_name`
	args := []any{since.UTC()}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate dispense totals: %w", err)
	}
	defer rows.Close()

	totals := make([]MedicineTotal, 0)
	for rows.Next() {
		var t MedicineTotal
		if err := rows.Scan(&t.MedicineName, &t.Total); err != nil {
			return nil, fmt.Errorf("failed to scan dispense total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// DailyTotals returns per-day dispense totals for events dated in [from, to].
// Day bucketing happens in Go so the two SQL dialects need no date functions.
func (r *sqlDispenseRepository) DailyTotals(ctx context.Context, from, to time.Time) ([]DailyTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, quantity_out FROM dispense_events WHERE date >= $1 AND date <= $2`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]int)
	for rows.Next() {
		var d time.Time
		var qty int
		if err := rows.Scan(&d, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan daily total row: %w", err)
		}
		byDay[d.UTC().Format("2006-01-02")] += qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totals := make([]DailyTotal, 0, len(byDay))
	for day, total := range byDay {
		totals = append(totals, DailyTotal{Day: day, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Day < totals[j].Day })
	return totals, nil
}

// DispensedSince sums quantity_out over events dated on or after t.
func (r *sqlDispenseRepository) DispensedSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity_out), 0) FROM dispense_events WHERE date >= $1`,
		t.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to sum dispensed quantities: %w", err)
	}
	return n, nil
}

// Clear removes all events.
func (r *sqlDispenseRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dispense_events`); err != nil {
		return fmt.Errorf("failed to clear dispense events: %w", err)
	}
	return nil
}

var _ DispenseRepository = (*sqlDispenseRepository)(nil)
