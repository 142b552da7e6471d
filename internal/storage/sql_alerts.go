package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medstock-labs/medstock/internal/errors"
	"github.com/medstock-labs/medstock/internal/inventory"
)

type sqlAlertRepository struct {
	db *sql.DB
}

const alertColumns = `id, medicine_name, alert_type, message, acknowledged,
	acknowledged_by, acknowledged_at, created_at`

func scanAlert(row interface{ Scan(...any) error }) (*inventory.Alert, error) {
	var a inventory.Alert
	var acked int
	var ackedAt sql.NullTime
	err := row.Scan(&a.ID, &a.MedicineName, &a.Type, &a.Message, &acked,
		&a.AcknowledgedBy, &ackedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Acknowledged = acked != 0
	if ackedAt.Valid {
		a.AcknowledgedAt = ackedAt.Time
	}
	return &a, nil
}

// GetOrCreate returns the open alert for a medicine and type, creating it
// with the given message when none exists. Acknowledged alerts do not
// suppress new ones.
func (r *sqlAlertRepository) GetOrCreate(ctx context.Context, medicine string, typ inventory.AlertType, message string) (*inventory.Alert, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM stock_alerts
		 WHERE medicine_name = $1 AND alert_type = $2 AND acknowledged = 0
		 ORDER BY created_at DESC LIMIT 1`,
		medicine, string(typ))
	existing, err := scanAlert(row)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to look up alert: %w", err)
	}

	a := &inventory.Alert{
		ID:           uuid.NewString(),
		MedicineName: medicine,
		Type:         typ,
		Message:      message,
		CreatedAt:    time.Now().UTC(),
	}
	// The partial unique index on (medicine_name, alert_type) for open
	// alerts decides races between concurrent checker runs.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO stock_alerts (id, medicine_name, alert_type, message, acknowledged, acknowledged_by, created_at)
		 VALUES ($1, $2, $3, $4, 0, '', $5)
		 ON CONFLICT DO NOTHING`,
		a.ID, a.MedicineName, string(a.Type), a.Message, a.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert alert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Lost the race; return the alert the other run created.
		row := r.db.QueryRowContext(ctx,
			`SELECT `+alertColumns+` FROM stock_alerts
			 WHERE medicine_name = $1 AND alert_type = $2 AND acknowledged = 0
			 ORDER BY created_at DESC LIMIT 1`,
			medicine, string(typ))
		existing, err := scanAlert(row)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up alert: %w", err)
		}
		return existing, false, nil
	}
	return a, true, nil
}

// Get retrieves an alert by ID.
func (r *sqlAlertRepository) Get(ctx context.Context, id string) (*inventory.Alert, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM stock_alerts WHERE id = $1`, id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewAlertNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// List returns alerts newest first. When acknowledged is false only open
// alerts are returned.
func (r *sqlAlertRepository) List(ctx context.Context, acknowledged bool) ([]*inventory.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM stock_alerts`
	if !acknowledged {
		query += ` WHERE acknowledged = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*inventory.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Acknowledge marks an alert acknowledged by a user at a time.
func (r *sqlAlertRepository) Acknowledge(ctx context.Context, id, by string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE stock_alerts SET acknowledged = 1, acknowledged_by = $1, acknowledged_at = $2
		 WHERE id = $3`,
		by, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NewAlertNotFound(id)
	}
	return nil
}

// DeleteAcknowledgedBefore removes acknowledged alerts older than t.
func (r *sqlAlertRepository) DeleteAcknowledgedBefore(ctx context.Context, t time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM stock_alerts WHERE acknowledged = 1 AND acknowledged_at < $1`,
		t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete acknowledged alerts: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

var _ AlertRepository = (*sqlAlertRepository)(nil)
