// Package alerts derives stock alerts from the inventory ledger: expired
// batches, batches entering the expiry window, and balances below their
// minimum stock level. At most one open alert exists per medicine and type;
// re-checking is idempotent.
package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/inventory"
	"github.com/medstock-labs/medstock/internal/observability"
	"github.com/medstock-labs/medstock/internal/storage"
)

// DefaultExpiryWindowDays is the expiring-soon horizon when none is
// configured.
const DefaultExpiryWindowDays = 30

// DefaultRetentionDays is how long acknowledged alerts are kept.
const DefaultRetentionDays = 30

// CheckResult summarizes one alert check.
type CheckResult struct {
	Created    int       `json:"created"`
	Expired    int       `json:"expired"`
	NearExpiry int       `json:"near_expiry"`
	LowStock   int       `json:"low_stock"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Checker scans the ledger and maintains the alert set.
type Checker struct {
	store   storage.Store
	logger  *zap.Logger
	metrics *observability.Metrics
	clock   clock.Clock

	windowDays    int
	retentionDays int
}

// NewChecker creates a checker. metrics may be nil. Non-positive windowDays
// and retentionDays fall back to the defaults.
func NewChecker(store storage.Store, logger *zap.Logger, metrics *observability.Metrics, clk clock.Clock, windowDays, retentionDays int) *Checker {
	if clk == nil {
		clk = clock.New()
	}
	if windowDays <= 0 {
		windowDays = DefaultExpiryWindowDays
	}
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Checker{
		store:         store,
		logger:        logger,
		metrics:       metrics,
		clock:         clk,
		windowDays:    windowDays,
		retentionDays: retentionDays,
	}
}

// Run performs one full alert check.
func (c *Checker) Run(ctx context.Context) (*CheckResult, error) {
	now := c.clock.Now()
	today := dateOf(now)
	result := &CheckResult{CheckedAt: now.UTC()}

	expired, err := c.store.Records().ListExpiringBetween(ctx, time.Time{}, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired records: %w", err)
	}
	for _, rec := range expired {
		msg := fmt.Sprintf("%s (Batch: %s) has expired on %s",
			rec.MedicineName, rec.BatchNo, rec.ExpiryDate.Format("2006-01-02"))
		created, err := c.raise(ctx, rec.MedicineName, inventory.AlertExpired, msg)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
			result.Expired++
			c.logger.Warn("expired medicine alert",
				zap.String("medicine", rec.MedicineName),
				zap.String("batch", rec.BatchNo))
		}
	}

	horizon := today.AddDate(0, 0, c.windowDays)
	expiring, err := c.store.Records().ListExpiringBetween(ctx, today, horizon)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring records: %w", err)
	}
	for _, rec := range expiring {
		msg := fmt.Sprintf("%s (Batch: %s) expires in %d days",
			rec.MedicineName, rec.BatchNo, rec.DaysToExpiry(now))
		created, err := c.raise(ctx, rec.MedicineName, inventory.AlertNearExpiry, msg)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
			result.NearExpiry++
			c.logger.Info("near expiry alert",
				zap.String("medicine", rec.MedicineName),
				zap.String("batch", rec.BatchNo))
		}
	}

	balances, err := c.store.Records().Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute balances: %w", err)
	}
	for _, b := range balances {
		if !b.IsLow() {
			continue
		}
		msg := fmt.Sprintf("Low stock alert: %s (Current balance: %d)", b.MedicineName, b.Balance)
		created, err := c.raise(ctx, b.MedicineName, inventory.AlertLowStock, msg)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
			result.LowStock++
			c.logger.Warn("low stock alert",
				zap.String("medicine", b.MedicineName),
				zap.Int("balance", b.Balance))
		}
	}

	if err := c.updateGauges(ctx); err != nil {
		c.logger.Warn("failed to update alert gauges", zap.Error(err))
	}

	c.logger.Info("alert check completed",
		zap.Int("created", result.Created),
		zap.Int("expired", result.Expired),
		zap.Int("near_expiry", result.NearExpiry),
		zap.Int("low_stock", result.LowStock))
	return result, nil
}

func (c *Checker) raise(ctx context.Context, medicine string, typ inventory.AlertType, message string) (bool, error) {
	_, created, err := c.store.Alerts().GetOrCreate(ctx, medicine, typ, message)
	if err != nil {
		return false, fmt.Errorf("failed to raise %s alert for %s: %w", typ, medicine, err)
	}
	return created, nil
}

func (c *Checker) updateGauges(ctx context.Context) error {
	if c.metrics == nil {
		return nil
	}
	open, err := c.store.Alerts().List(ctx, false)
	if err != nil {
		return err
	}
	counts := make(map[inventory.AlertType]int)
	for _, a := range open {
		counts[a.Type]++
	}
	for _, typ := range inventory.AllAlertTypes() {
		c.metrics.ActiveAlerts.WithLabelValues(string(typ)).Set(float64(counts[typ]))
	}
	return nil
}

// Cleanup removes acknowledged alerts older than the retention period and
// returns how many were deleted.
func (c *Checker) Cleanup(ctx context.Context) (int, error) {
	cutoff := c.clock.Now().AddDate(0, 0, -c.retentionDays)
	deleted, err := c.store.Alerts().DeleteAcknowledgedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up alerts: %w", err)
	}
	if deleted > 0 {
		c.logger.Info("cleaned up acknowledged alerts", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

// CriticalAlerts returns the open alerts that warrant immediate
// notification.
func (c *Checker) CriticalAlerts(ctx context.Context) ([]*inventory.Alert, error) {
	open, err := c.store.Alerts().List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	critical := make([]*inventory.Alert, 0)
	for _, a := range open {
		if a.Type.IsCritical() {
			critical = append(critical, a)
		}
	}
	return critical, nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
