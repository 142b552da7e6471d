package gateway

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/medstock-labs/medstock/internal/inventory"
	"github.com/medstock-labs/medstock/internal/storage"
)

// feedEntry is one line of the dashboard alert feed.
type feedEntry struct {
	Type     inventory.AlertType `json:"type"`
	Severity string              `json:"severity"`
	Message  string              `json:"message"`
}

type dashboardResponse struct {
	TotalRecords      int                        `json:"total_records"`
	TotalMedicines    int                        `json:"total_medicines"`
	InventoryValue    string                     `json:"inventory_value"`
	ExpiredCount      int                        `json:"expired_count"`
	ExpiringSoonCount int                        `json:"expiring_soon_count"`
	LowStockCount     int                        `json:"low_stock_count"`
	RecentAdditions   []*inventory.Record        `json:"recent_additions"`
	RecentDispenses   []*inventory.DispenseEvent `json:"recent_dispenses"`
	TopDispensed      []storage.MedicineTotal    `json:"top_dispensed"`
	MonthlyReceived   int                        `json:"monthly_received"`
	MonthlyDispensed  int                        `json:"monthly_dispensed"`
	Alerts            []feedEntry                `json:"alerts"`
}

const (
	recentWindow  = 7 * 24 * time.Hour
	monthlyWindow = 30 * 24 * time.Hour
	feedLimit     = 10
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.clock.Now()
	today := dateOf(now)

	totalRecords, err := s.store.Records().Count(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	medicines, err := s.store.Records().DistinctMedicines(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	value, err := s.store.Records().InventoryValue(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expired, err := s.store.Records().ListExpiringBetween(ctx, time.Time{}, today)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expiring, err := s.store.Records().ListExpiringBetween(ctx, today, today.AddDate(0, 0, s.windowDays))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balances, err := s.store.Records().Balances(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var low []*inventory.Balance
	for _, b := range balances {
		if b.IsLow() {
			low = append(low, b)
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i].Balance < low[j].Balance })

	additions, err := s.store.Records().RecentAdditions(ctx, now.Add(-recentWindow), 5)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dispenses, _, err := s.store.Dispense().List(ctx, storage.DispenseFilter{
		From:  now.Add(-recentWindow),
		Limit: 5,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	top, err := s.store.Dispense().TotalsByMedicine(ctx, time.Time{}, 5)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	received, err := s.store.Records().ReceivedSince(ctx, today.Add(-monthlyWindow))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dispensed, err := s.store.Dispense().DispensedSince(ctx, today.Add(-monthlyWindow))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, dashboardResponse{
		TotalRecords:      totalRecords,
		TotalMedicines:    len(medicines),
		InventoryValue:    value.StringFixed(2),
		ExpiredCount:      len(expired),
		ExpiringSoonCount: len(expiring),
		LowStockCount:     len(low),
		RecentAdditions:   additions,
		RecentDispenses:   dispenses,
		TopDispensed:      top,
		MonthlyReceived:   received,
		MonthlyDispensed:  dispensed,
		Alerts:            alertFeed(now, expired, expiring, low),
	})
}

// alertFeed composes the dashboard's mixed alert list: expired batches
// first, then near-expiry, then low stock, capped at feedLimit entries.
func alertFeed(now time.Time, expired, expiring []*inventory.Record, low []*inventory.Balance) []feedEntry {
	feed := make([]feedEntry, 0, feedLimit)
	for _, rec := range expired {
		if len(feed) == feedLimit {
			return feed
		}
		feed = append(feed, feedEntry{
			Type:     inventory.AlertExpired,
			Severity: "critical",
			Message: fmt.Sprintf("%s (Batch: %s) has expired on %s",
				rec.MedicineName, rec.BatchNo, rec.ExpiryDate.Format("2006-01-02")),
		})
	}
	for _, rec := range expiring {
		if len(feed) == feedLimit {
			return feed
		}
		feed = append(feed, feedEntry{
			Type:     inventory.AlertNearExpiry,
			Severity: "warning",
			Message: fmt.Sprintf("%s (Batch: %s) expires in %d days",
				rec.MedicineName, rec.BatchNo, rec.DaysToExpiry(now)),
		})
	}
	for _, b := range low {
		if len(feed) == feedLimit {
			return feed
		}
		feed = append(feed, feedEntry{
			Type:     inventory.AlertLowStock,
			Severity: "warning",
			Message: fmt.Sprintf("Low stock alert: %s (Current balance: %d)",
				b.MedicineName, b.Balance),
		})
	}
	return feed
}

type analyticsResponse struct {
	DailyDispenses     []storage.DailyTotal `json:"daily_dispenses"`
	DosageDistribution []formCount          `json:"dosage_distribution"`
	ExpiryDistribution expiryCounts         `json:"expiry_distribution"`
}

type formCount struct {
	DosageForm string `json:"dosage_form"`
	Count      int    `json:"count"`
}

type expiryCounts struct {
	Expired      int `json:"expired"`
	ExpiringSoon int `json:"expiring_soon"`
	Good         int `json:"good"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.clock.Now()
	today := dateOf(now)

	daily, err := s.store.Dispense().DailyTotals(ctx, today.Add(-monthlyWindow), now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records, _, err := s.store.Records().List(ctx, storage.RecordFilter{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	byForm := make(map[string]int)
	var expiry expiryCounts
	for _, rec := range records {
		byForm[rec.DosageForm]++
		switch rec.ExpiryStatusAt(now, s.windowDays) {
		case inventory.ExpiryExpired:
			expiry.Expired++
		case inventory.ExpirySoon:
			expiry.ExpiringSoon++
		default:
			expiry.Good++
		}
	}
	forms := make([]formCount, 0, len(byForm))
	for form, n := range byForm {
		forms = append(forms, formCount{DosageForm: form, Count: n})
	}
	sort.Slice(forms, func(i, j int) bool {
		if forms[i].Count != forms[j].Count {
			return forms[i].Count > forms[j].Count
		}
		return forms[i].DosageForm < forms[j].DosageForm
	})

	s.writeJSON(w, r, http.StatusOK, analyticsResponse{
		DailyDispenses:     daily,
		DosageDistribution: forms,
		ExpiryDistribution: expiry,
	})
}
