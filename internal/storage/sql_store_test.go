package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/medstock-labs/medstock/internal/inventory"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSQLStore_OpenAlertUniqueness checks that the database itself enforces
// at most one open alert per medicine and type, so concurrent checker runs
// cannot create duplicates.
func TestSQLStore_OpenAlertUniqueness(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a1, created, err := store.Alerts().GetOrCreate(ctx, "Paracetamol", inventory.AlertLowStock, "running low")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !created {
		t.Fatal("first GetOrCreate should create")
	}

	a2, created, err := store.Alerts().GetOrCreate(ctx, "Paracetamol", inventory.AlertLowStock, "still low")
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if created || a2.ID != a1.ID {
		t.Errorf("dedup failed: created=%v id=%s want %s", created, a2.ID, a1.ID)
	}

	// A racing insert that skipped the lookup trips the unique index
	// instead of producing a duplicate open alert.
	_, err = store.DB().ExecContext(ctx,
		`INSERT INTO stock_alerts (id, medicine_name, alert_type, message, acknowledged, acknowledged_by, created_at)
		 VALUES ($1, $2, $3, $4, 0, '', $5)`,
		"dup-id", "Paracetamol", string(inventory.AlertLowStock), "dup", time.Now().UTC())
	if err == nil {
		t.Fatal("expected unique constraint violation for duplicate open alert")
	}

	// Acknowledging frees the slot for a fresh alert.
	if err := store.Alerts().Acknowledge(ctx, a1.ID, "tester", time.Now().UTC()); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	a3, created, err := store.Alerts().GetOrCreate(ctx, "Paracetamol", inventory.AlertLowStock, "low again")
	if err != nil {
		t.Fatalf("GetOrCreate after acknowledge failed: %v", err)
	}
	if !created || a3.ID == a1.ID {
		t.Errorf("acknowledged alert should not block a new one: created=%v id=%s", created, a3.ID)
	}

	// Different types coexist.
	_, created, err = store.Alerts().GetOrCreate(ctx, "Paracetamol", inventory.AlertExpired, "expired")
	if err != nil {
		t.Fatalf("GetOrCreate for second type failed: %v", err)
	}
	if !created {
		t.Error("a different alert type should create its own open alert")
	}
}
