package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medstock-labs/medstock/internal/errors"
	"github.com/medstock-labs/medstock/internal/inventory"
)

// recordColumns is the select list shared by every record query, aliased to
// the ledger table as r.
const recordColumns = `r.id, r.date, r.medicine_name, r.generic_name, r.dosage_form,
	r.strength, r.manufacturer, r.batch_no, r.expiry_date, r.quantity_in,
	r.quantity_out, r.storage_condition, r.dispensed_to, r.prescribing_doctor,
	r.supplier_name, r.unit_cost, r.min_stock_level, r.notes, r.created_by,
	r.created_at, r.updated_at`

type sqlRecordRepository struct {
	db *sql.DB
}

func scanRecord(row interface{ Scan(...any) error }) (*inventory.Record, error) {
	var rec inventory.Record
	var unitCost sql.NullString
	err := row.Scan(
		&rec.ID, &rec.Date, &rec.MedicineName, &rec.GenericName, &rec.DosageForm,
		&rec.Strength, &rec.Manufacturer, &rec.BatchNo, &rec.ExpiryDate, &rec.QuantityIn,
		&rec.QuantityOut, &rec.StorageCondition, &rec.DispensedTo, &rec.PrescribingDoctor,
		&rec.SupplierName, &unitCost, &rec.MinStockLevel, &rec.Notes, &rec.CreatedBy,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if unitCost.Valid {
		d, err := decimal.NewFromString(unitCost.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt unit_cost for record %s: %w", rec.ID, err)
		}
		rec.UnitCost = &d
	}
	return &rec, nil
}

func unitCostArg(rec *inventory.Record) any {
	if rec.UnitCost == nil {
		return nil
	}
	return rec.UnitCost.StringFixed(2)
}

// Create stores a new ledger record.
func (r *sqlRecordRepository) Create(ctx context.Context, rec *inventory.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inventory_records (
			id, date, medicine_name, generic_name, dosage_form, strength,
			manufacturer, batch_no, expiry_date, quantity_in, quantity_out,
			storage_condition, dispensed_to, prescribing_doctor, supplier_name,
			unit_cost, min_stock_level, notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)`,
		rec.ID, rec.Date.UTC(), rec.MedicineName, rec.GenericName, rec.DosageForm,
		rec.Strength, rec.Manufacturer, rec.BatchNo, rec.ExpiryDate.UTC(),
		rec.QuantityIn, rec.QuantityOut, string(rec.StorageCondition), rec.DispensedTo,
		rec.PrescribingDoctor, rec.SupplierName, unitCostArg(rec), rec.MinStockLevel,
		rec.Notes, rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (r *sqlRecordRepository) Get(ctx context.Context, id string) (*inventory.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM inventory_records r WHERE r.id = $1`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewRecordNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// Update modifies an existing record.
func (r *sqlRecordRepository) Update(ctx context.Context, rec *inventory.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	rec.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE inventory_records SET
			date = $1, medicine_name = $2, generic_name = $3, dosage_form = $4,
			strength = $5, manufacturer = $6, batch_no = $7, expiry_date = $8,
			quantity_in = $9, quantity_out = $10, storage_condition = $11,
			dispensed_to = $12, prescribing_doctor = $13, supplier_name = $14,
			unit_cost = $15, min_stock_level = $16, notes = $17, updated_at = $18
		WHERE id = $19`,
		rec.Date.UTC(), rec.MedicineName, rec.GenericName, rec.DosageForm,
		rec.Strength, rec.Manufacturer, rec.BatchNo, rec.ExpiryDate.UTC(),
		rec.QuantityIn, rec.QuantityOut, string(rec.StorageCondition),
		rec.DispensedTo, rec.PrescribingDoctor, rec.SupplierName, unitCostArg(rec),
		rec.MinStockLevel, rec.Notes, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NewRecordNotFound(rec.ID)
	}
	return nil
}

// Delete removes a record by ID.
func (r *sqlRecordRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inventory_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NewRecordNotFound(id)
	}
	return nil
}

// balanceJoin joins each record to its batch balance.
const balanceJoin = ` JOIN (
	SELECT medicine_name, batch_no,
		SUM(quantity_in) - SUM(quantity_out) AS bal
	FROM inventory_records
	GROUP BY medicine_name, batch_no
) b ON b.medicine_name = r.medicine_name AND b.batch_no = r.batch_no`

// buildFilter renders a RecordFilter into FROM/WHERE fragments and args.
func buildFilter(f RecordFilter) (from, where string, args []any) {
	from = `FROM inventory_records r`
	if f.LowStock {
		from += balanceJoin
	}

	var conds []string
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		p := "%" + strings.ToLower(f.Query) + "%"
		conds = append(conds, fmt.Sprintf(
			`(LOWER(r.medicine_name) LIKE %s OR LOWER(r.batch_no) LIKE %s OR LOWER(r.generic_name) LIKE %s OR LOWER(r.manufacturer) LIKE %s)`,
			arg(p), arg(p), arg(p), arg(p)))
	}
	if f.DosageForm != "" {
		conds = append(conds, fmt.Sprintf(`r.dosage_form = %s`, arg(f.DosageForm)))
	}
	if f.Expiry != "" {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		today := truncateDay(now)
		horizon := today.AddDate(0, 0, f.WindowDays)
		switch f.Expiry {
		case inventory.ExpiryExpired:
			conds = append(conds, fmt.Sprintf(`r.expiry_date <= %s`, arg(today)))
		case inventory.ExpirySoon:
			conds = append(conds, fmt.Sprintf(`r.expiry_date > %s AND r.expiry_date <= %s`, arg(today), arg(horizon)))
		case inventory.ExpiryGood:
			conds = append(conds, fmt.Sprintf(`r.expiry_date > %s`, arg(horizon)))
		}
	}
	if f.LowStock {
		conds = append(conds, `b.bal < r.min_stock_level`)
	}

	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, " AND ")
	}
	return from, where, args
}

func orderClause(sortBy string) string {
	col, dir := "date", "DESC"
	s := NormalizeSort(sortBy)
	if !strings.HasPrefix(s, "-") {
		dir = "ASC"
	}
	switch strings.TrimPrefix(s, "-") {
	case "medicine_name":
		col = "medicine_name"
	case "expiry_date":
		col = "expiry_date"
	}
	return fmt.Sprintf(" ORDER BY r.%s %s, r.created_at DESC", col, dir)
}

// List returns matching records and the total match count before pagination.
func (r *sqlRecordRepository) List(ctx context.Context, f RecordFilter) ([]*inventory.Record, int, error) {
	from, where, args := buildFilter(f)

	var total int
	countQuery := `SELECT COUNT(*) ` + from + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	query := `SELECT ` + recordColumns + ` ` + from + where + orderClause(f.SortBy)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]*inventory.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating records: %w", err)
	}
	return records, total, nil
}

// ByMedicine returns records for one medicine, newest first.
func (r *sqlRecordRepository) ByMedicine(ctx context.Context, medicine string, limit int) ([]*inventory.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM inventory_records r
		WHERE r.medicine_name = $1 ORDER BY r.date DESC, r.created_at DESC`
	args := []any{medicine}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records by medicine: %w", err)
	}
	defer rows.Close()

	records := make([]*inventory.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestByBatch returns the newest record for a medicine and batch.
func (r *sqlRecordRepository) LatestByBatch(ctx context.Context, key inventory.BatchKey) (*inventory.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM inventory_records r
		 WHERE r.medicine_name = $1 AND r.batch_no = $2
		 ORDER BY r.date DESC, r.created_at DESC LIMIT 1`,
		key.MedicineName, key.BatchNo)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewBatchNotFound(key.MedicineName, key.BatchNo)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest batch record: %w", err)
	}
	return rec, nil
}

// BatchBalance returns the derived stock position of one batch.
func (r *sqlRecordRepository) BatchBalance(ctx context.Context, key inventory.BatchKey) (*inventory.Balance, error) {
	var in, out, count, minLevel int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(quantity_in), 0), COALESCE(SUM(quantity_out), 0),
			COALESCE(MAX(min_stock_level), 0)
		 FROM inventory_records
		 WHERE medicine_name = $1 AND batch_no = $2`,
		key.MedicineName, key.BatchNo,
	).Scan(&count, &in, &out, &minLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to compute batch balance: %w", err)
	}
	if count == 0 {
		return nil, errors.NewBatchNotFound(key.MedicineName, key.BatchNo)
	}
	return &inventory.Balance{
		BatchKey:      key,
		QuantityIn:    in,
		QuantityOut:   out,
		Balance:       in - out,
		MinStockLevel: minLevel,
	}, nil
}

// Balances returns the stock position of every batch.
func (r *sqlRecordRepository) Balances(ctx context.Context) ([]*inventory.Balance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT medicine_name, batch_no,
			COALESCE(SUM(quantity_in), 0), COALESCE(SUM(quantity_out), 0),
			COALESCE(MAX(min_stock_level), 0)
		 FROM inventory_records
		 GROUP BY medicine_name, batch_no
		 ORDER BY medicine_name, batch_no`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute balances: %w", err)
	}
	defer rows.Close()

	balances := make([]*inventory.Balance, 0)
	for rows.Next() {
		var b inventory.Balance
		if err := rows.Scan(&b.MedicineName, &b.BatchNo, &b.QuantityIn, &b.QuantityOut, &b.MinStockLevel); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.Balance = b.QuantityIn - b.QuantityOut
		balances = append(balances, &b)
	}
	return balances, rows.Err()
}

// ListExpiringBetween returns records with expiry date in (after, until].
func (r *sqlRecordRepository) ListExpiringBetween(ctx context.Context, after, until time.Time) ([]*inventory.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM inventory_records r WHERE r.expiry_date <= $1`
	args := []any{until.UTC()}
	if !after.IsZero() {
		args = append(args, after.UTC())
		query += ` AND r.expiry_date > $2`
	}
	query += ` ORDER BY r.expiry_date ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring records: %w", err)
	}
	defer rows.Close()

	records := make([]*inventory.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentAdditions returns receipt records created since the given time.
func (r *sqlRecordRepository) RecentAdditions(ctx context.Context, since time.Time, limit int) ([]*inventory.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM inventory_records r
		WHERE r.quantity_in > 0 AND r.created_at >= $1
		ORDER BY r.created_at DESC`
	args := []any{since.UTC()}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent additions: %w", err)
	}
	defer rows.Close()

	records := make([]*inventory.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DistinctMedicines returns the distinct medicine names, sorted.
func (r *sqlRecordRepository) DistinctMedicines(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "medicine_name")
}

// DistinctDosageForms returns the distinct dosage forms in use, sorted.
func (r *sqlRecordRepository) DistinctDosageForms(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "dosage_form")
}

func (r *sqlRecordRepository) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM inventory_records ORDER BY `+column)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct %s: %w", column, err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Count returns the total number of ledger records.
func (r *sqlRecordRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// ReceivedSince sums quantity_in over records dated on or after t.
func (r *sqlRecordRepository) ReceivedSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity_in), 0) FROM inventory_records WHERE date >= $1`,
		t.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to sum received quantities: %w", err)
	}
	return n, nil
}

// InventoryValue sums quantity_in * unit_cost over costed records. The
// multiplication happens in decimal space, not SQL floats.
func (r *sqlRecordRepository) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT quantity_in, unit_cost FROM inventory_records WHERE unit_cost IS NOT NULL`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query inventory value: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var qty int
		var cost string
		if err := rows.Scan(&qty, &cost); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan inventory value row: %w", err)
		}
		d, err := decimal.NewFromString(cost)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt unit_cost: %w", err)
		}
		total = total.Add(d.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total, rows.Err()
}

// Clear removes all records.
func (r *sqlRecordRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM inventory_records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// truncateDay truncates a time to its calendar date in UTC.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Verify sqlRecordRepository implements RecordRepository.
var _ RecordRepository = (*sqlRecordRepository)(nil)
