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

type sqlSupplierRepository struct {
	db *sql.DB
}

// Create stores a new supplier. The name must be unique.
func (r *sqlSupplierRepository) Create(ctx context.Context, s *inventory.Supplier) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO suppliers (id, name, contact_person, phone, email, address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.Name, s.ContactPerson, s.Phone, s.Email, s.Address, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert supplier: %w", err)
	}
	return nil
}

// Ensure returns the supplier with the given name, creating it if absent.
func (r *sqlSupplierRepository) Ensure(ctx context.Context, name string) (*inventory.Supplier, bool, error) {
	existing, err := r.Get(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if _, ok := err.(*errors.ErrRecordNotFound); !ok {
		return nil, false, err
	}

	s := &inventory.Supplier{Name: name}
	if err := r.Create(ctx, s); err != nil {
		// Lost a race with a concurrent insert; read back the winner.
		if again, gerr := r.Get(ctx, name); gerr == nil {
			return again, false, nil
		}
		return nil, false, err
	}
	return s, true, nil
}

// Get retrieves a supplier by name.
func (r *sqlSupplierRepository) Get(ctx context.Context, name string) (*inventory.Supplier, error) {
	var s inventory.Supplier
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, contact_person, phone, email, address, created_at
		 FROM suppliers WHERE name = $1`, name,
	).Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.Address, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewRecordNotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return &s, nil
}

// List returns all suppliers ordered by name.
func (r *sqlSupplierRepository) List(ctx context.Context) ([]*inventory.Supplier, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, contact_person, phone, email, address, created_at
		 FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := make([]*inventory.Supplier, 0)
	for rows.Next() {
		var s inventory.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.Address, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, &s)
	}
	return suppliers, rows.Err()
}

// Count returns the number of suppliers.
func (r *sqlSupplierRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM suppliers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count suppliers: %w", err)
	}
	return n, nil
}

var _ SupplierRepository = (*sqlSupplierRepository)(nil)
