package alerts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/inventory"
	"github.com/medstock-labs/medstock/internal/storage"
)

var checkerNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestChecker(store storage.Store) (*Checker, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(checkerNow)
	return NewChecker(store, zap.NewNop(), nil, mock, 30, 30), mock
}

func addRecord(t *testing.T, store storage.Store, medicine, batch string, expiry time.Time, in, out int) {
	t.Helper()
	rec := &inventory.Record{
		Date:          checkerNow.AddDate(0, 0, -10),
		MedicineName:  medicine,
		DosageForm:    "tablet",
		BatchNo:       batch,
		ExpiryDate:    expiry,
		QuantityIn:    in,
		QuantityOut:   out,
		MinStockLevel: 10,
	}
	if out > 0 {
		rec.DispensedTo = "Ward 1"
	}
	if err := store.Records().Create(context.Background(), rec); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}
}

func TestChecker_Run(t *testing.T) {
	store := storage.NewMemoryStore()
	checker, _ := newTestChecker(store)
	ctx := context.Background()

	addRecord(t, store, "Old Pills", "O1", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), 50, 0)
	addRecord(t, store, "Soon Pills", "S1", time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), 50, 0)
	addRecord(t, store, "Fine Pills", "F1", time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC), 50, 0)
	addRecord(t, store, "Scarce Pills", "L1", time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC), 20, 15)

	result, err := checker.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Expired != 1 || result.NearExpiry != 1 || result.LowStock != 1 {
		t.Errorf("result = expired %d, near %d, low %d; want 1/1/1",
			result.Expired, result.NearExpiry, result.LowStock)
	}
	if result.Created != 3 {
		t.Errorf("Created = %d, want 3", result.Created)
	}

	open, err := store.Alerts().List(ctx, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(open) != 3 {
		t.Fatalf("open alerts = %d, want 3", len(open))
	}

	messages := map[inventory.AlertType]string{}
	for _, a := range open {
		messages[a.Type] = a.Message
	}
	if got := messages[inventory.AlertExpired]; got != "Old Pills (Batch: O1) has expired on 2026-05-01" {
		t.Errorf("expired message = %q", got)
	}
	if got := messages[inventory.AlertNearExpiry]; got != "Soon Pills (Batch: S1) expires in 14 days" {
		t.Errorf("near-expiry message = %q", got)
	}
	if got := messages[inventory.AlertLowStock]; got != "Low stock alert: Scarce Pills (Current balance: 5)" {
		t.Errorf("low stock message = %q", got)
	}
}

func TestChecker_RunIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	checker, _ := newTestChecker(store)
	ctx := context.Background()

	addRecord(t, store, "Old Pills", "O1", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), 50, 0)

	first, err := checker.Run(ctx)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if first.Created != 1 {
		t.Fatalf("first Created = %d, want 1", first.Created)
	}

	second, err := checker.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.Created != 0 {
		t.Errorf("second Created = %d, want 0", second.Created)
	}
}

func TestChecker_ReraisesAfterAcknowledge(t *testing.T) {
	store := storage.NewMemoryStore()
	checker, _ := newTestChecker(store)
	ctx := context.Background()

	addRecord(t, store, "Old Pills", "O1", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), 50, 0)
	if _, err := checker.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	open, _ := store.Alerts().List(ctx, false)
	if err := store.Alerts().Acknowledge(ctx, open[0].ID, "asha", checkerNow); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}

	// Condition still holds, so the next check raises a fresh alert.
	result, err := checker.Run(ctx)
	if err != nil {
		t.Fatalf("Run after acknowledge failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("Created = %d, want 1", result.Created)
	}
}

func TestChecker_Cleanup(t *testing.T) {
	store := storage.NewMemoryStore()
	checker, _ := newTestChecker(store)
	ctx := context.Background()

	a, _, err := store.Alerts().GetOrCreate(ctx, "Old", inventory.AlertExpired, "old")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if err := store.Alerts().Acknowledge(ctx, a.ID, "asha", checkerNow.AddDate(0, 0, -45)); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	b, _, err := store.Alerts().GetOrCreate(ctx, "Recent", inventory.AlertExpired, "recent")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if err := store.Alerts().Acknowledge(ctx, b.ID, "asha", checkerNow.AddDate(0, 0, -5)); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}

	deleted, err := checker.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := store.Alerts().Get(ctx, b.ID); err != nil {
		t.Errorf("recent alert should survive cleanup: %v", err)
	}
}

func TestChecker_CriticalAlerts(t *testing.T) {
	store := storage.NewMemoryStore()
	checker, _ := newTestChecker(store)
	ctx := context.Background()

	for i, typ := range []inventory.AlertType{
		inventory.AlertExpired, inventory.AlertNearExpiry, inventory.AlertLowStock,
	} {
		if _, _, err := store.Alerts().GetOrCreate(ctx, fmt.Sprintf("Med%d", i), typ, "msg"); err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
	}

	critical, err := checker.CriticalAlerts(ctx)
	if err != nil {
		t.Fatalf("CriticalAlerts failed: %v", err)
	}
	if len(critical) != 2 {
		t.Fatalf("critical = %d, want 2", len(critical))
	}
	for _, a := range critical {
		if a.Type == inventory.AlertNearExpiry {
			t.Error("near-expiry alert should not be critical")
		}
	}
}
