package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medstock-labs/medstock/internal/errors"
	"github.com/medstock-labs/medstock/internal/inventory"
)

// MemoryStore is an in-memory implementation of Store for tests and for
// running the server without a database. It is thread-safe and respects
// context cancellation.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*inventory.Record
	suppliers map[string]*inventory.Supplier
	alerts    map[string]*inventory.Alert
	dispense  []*inventory.DispenseEvent

	// Test helpers for simulating failures.
	connectivityFailure bool
	persistenceFailure  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*inventory.Record),
		suppliers: make(map[string]*inventory.Supplier),
		alerts:    make(map[string]*inventory.Alert),
	}
}

// SetConnectivityFailure makes CheckConnectivity fail.
func (s *MemoryStore) SetConnectivityFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectivityFailure = fail
}

// SetPersistenceFailure makes writes fail.
func (s *MemoryStore) SetPersistenceFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistenceFailure = fail
}

func (s *MemoryStore) Records() RecordRepository     { return (*memRecords)(s) }
func (s *MemoryStore) Suppliers() SupplierRepository { return (*memSuppliers)(s) }
func (s *MemoryStore) Alerts() AlertRepository       { return (*memAlerts)(s) }
func (s *MemoryStore) Dispense() DispenseRepository  { return (*memDispense)(s) }

// CheckConnectivity always succeeds unless a test asked it not to.
func (s *MemoryStore) CheckConnectivity(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.connectivityFailure {
		return errors.NewStorageUnavailable(nil)
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// checkContext verifies the context is not cancelled or timed out.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func copyRecord(r *inventory.Record) *inventory.Record {
	cp := *r
	if r.UnitCost != nil {
		c := *r.UnitCost
		cp.UnitCost = &c
	}
	return &cp
}

// --- records ---

type memRecords MemoryStore

func (m *memRecords) Create(ctx context.Context, rec *inventory.Record) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persistenceFailure {
		return errors.NewStorageUnavailable(nil)
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[rec.ID] = copyRecord(rec)
	return nil
}

func (m *memRecords) Get(ctx context.Context, id string) (*inventory.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, errors.NewRecordNotFound(id)
	}
	return copyRecord(rec), nil
}

func (m *memRecords) Update(ctx context.Context, rec *inventory.Record) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[rec.ID]
	if !ok {
		return errors.NewRecordNotFound(rec.ID)
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	m.records[rec.ID] = copyRecord(rec)
	return nil
}

func (m *memRecords) Delete(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return errors.NewRecordNotFound(id)
	}
	delete(m.records, id)
	return nil
}

func (m *memRecords) all() []*inventory.Record {
	records := make([]*inventory.Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, copyRecord(r))
	}
	return records
}

func (m *memRecords) balancesLocked() map[inventory.BatchKey]*inventory.Balance {
	balances := make(map[inventory.BatchKey]*inventory.Balance)
	for _, r := range m.records {
		key := r.Key()
		b, ok := balances[key]
		if !ok {
			b = &inventory.Balance{BatchKey: key}
			balances[key] = b
		}
		b.QuantityIn += r.QuantityIn
		b.QuantityOut += r.QuantityOut
		if r.MinStockLevel > b.MinStockLevel {
			b.MinStockLevel = r.MinStockLevel
		}
	}
	for _, b := range balances {
		b.Balance = b.QuantityIn - b.QuantityOut
	}
	return balances
}

func matchesQuery(r *inventory.Record, query string) bool {
	q := strings.ToLower(query)
	for _, field := range []string{r.MedicineName, r.BatchNo, r.GenericName, r.Manufacturer} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func sortRecords(records []*inventory.Record, sortBy string) {
	s := NormalizeSort(sortBy)
	desc := strings.HasPrefix(s, "-")
	key := strings.TrimPrefix(s, "-")
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		var less bool
		switch key {
		case "medicine_name":
			less = a.MedicineName < b.MedicineName
		case "expiry_date":
			less = a.ExpiryDate.Before(b.ExpiryDate)
		default:
			less = a.Date.Before(b.Date)
		}
		if desc {
			return !less && !equalSortKey(a, b, key)
		}
		return less
	})
}

func equalSortKey(a, b *inventory.Record, key string) bool {
	switch key {
	case "medicine_name":
		return a.MedicineName == b.MedicineName
	case "expiry_date":
		return a.ExpiryDate.Equal(b.ExpiryDate)
	default:
		return a.Date.Equal(b.Date)
	}
}

func (m *memRecords) List(ctx context.Context, f RecordFilter) ([]*inventory.Record, int, error) {
	if err := checkContext(ctx); err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	balances := m.balancesLocked()

	matched := make([]*inventory.Record, 0)
	for _, r := range m.all() {
		if f.Query != "" && !matchesQuery(r, f.Query) {
			continue
		}
		if f.DosageForm != "" && r.DosageForm != f.DosageForm {
			continue
		}
		if f.Expiry != "" && r.ExpiryStatusAt(now, f.WindowDays) != f.Expiry {
			continue
		}
		if f.LowStock {
			b := balances[r.Key()]
			if b == nil || b.Balance >= r.MinStockLevel {
				continue
			}
		}
		matched = append(matched, r)
	}

	sortRecords(matched, f.SortBy)
	total := len(matched)

	if f.Limit > 0 {
		if f.Offset >= len(matched) {
			return []*inventory.Record{}, total, nil
		}
		matched = matched[f.Offset:]
		if len(matched) > f.Limit {
			matched = matched[:f.Limit]
		}
	}
	return matched, total, nil
}

func (m *memRecords) ByMedicine(ctx context.Context, medicine string, limit int) ([]*inventory.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*inventory.Record, 0)
	for _, r := range m.all() {
		if r.MedicineName == medicine {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *memRecords) LatestByBatch(ctx context.Context, key inventory.BatchKey) (*inventory.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *inventory.Record
	for _, r := range m.records {
		if r.Key() != key {
			continue
		}
		if latest == nil || r.Date.After(latest.Date) {
			latest = r
		}
	}
	if latest == nil {
		return nil, errors.NewBatchNotFound(key.MedicineName, key.BatchNo)
	}
	return copyRecord(latest), nil
}

func (m *memRecords) BatchBalance(ctx context.Context, key inventory.BatchKey) (*inventory.Balance, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.balancesLocked()[key]
	if !ok {
		return nil, errors.NewBatchNotFound(key.MedicineName, key.BatchNo)
	}
	return b, nil
}

func (m *memRecords) Balances(ctx context.Context) ([]*inventory.Balance, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKey := m.balancesLocked()
	balances := make([]*inventory.Balance, 0, len(byKey))
	for _, b := range byKey {
		balances = append(balances, b)
	}
	sort.Slice(balances, func(i, j int) bool {
		if balances[i].MedicineName != balances[j].MedicineName {
			return balances[i].MedicineName < balances[j].MedicineName
		}
		return balances[i].BatchNo < balances[j].BatchNo
	})
	return balances, nil
}

func (m *memRecords) ListExpiringBetween(ctx context.Context, after, until time.Time) ([]*inventory.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*inventory.Record, 0)
	for _, r := range m.all() {
		if r.ExpiryDate.After(until) {
			continue
		}
		if !after.IsZero() && !r.ExpiryDate.After(after) {
			continue
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExpiryDate.Before(records[j].ExpiryDate)
	})
	return records, nil
}

func (m *memRecords) RecentAdditions(ctx context.Context, since time.Time, limit int) ([]*inventory.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*inventory.Record, 0)
	for _, r := range m.all() {
		if r.QuantityIn > 0 && !r.CreatedAt.Before(since) {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *memRecords) DistinctMedicines(ctx context.Context) ([]string, error) {
	return m.distinct(ctx, func(r *inventory.Record) string { return r.MedicineName })
}

func (m *memRecords) DistinctDosageForms(ctx context.Context) ([]string, error) {
	return m.distinct(ctx, func(r *inventory.Record) string { return r.DosageForm })
}

func (m *memRecords) distinct(ctx context.Context, key func(*inventory.Record) string) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, r := range m.records {
		seen[key(r)] = true
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func (m *memRecords) Count(ctx context.Context) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *memRecords) ReceivedSince(ctx context.Context, t time.Time) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, r := range m.records {
		if !r.Date.Before(t) {
			total += r.QuantityIn
		}
	}
	return total, nil
}

func (m *memRecords) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	if err := checkContext(ctx); err != nil {
		return decimal.Zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, r := range m.records {
		if r.UnitCost != nil {
			total = total.Add(r.UnitCost.Mul(decimal.NewFromInt(int64(r.QuantityIn))))
		}
	}
	return total, nil
}

func (m *memRecords) Clear(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*inventory.Record)
	return nil
}

// --- suppliers ---

type memSuppliers MemoryStore

func (m *memSuppliers) Create(ctx context.Context, s *inventory.Supplier) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persistenceFailure {
		return errors.NewStorageUnavailable(nil)
	}
	if _, exists := m.suppliers[s.Name]; exists {
		return errors.NewInvalidRecord("supplier.name", "already exists")
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	m.suppliers[s.Name] = &cp
	return nil
}

func (m *memSuppliers) Ensure(ctx context.Context, name string) (*inventory.Supplier, bool, error) {
	if err := checkContext(ctx); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.suppliers[name]; ok {
		cp := *existing
		return &cp, false, nil
	}

	s := &inventory.Supplier{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return nil, false, err
	}
	cp := *s
	m.suppliers[name] = &cp
	return s, true, nil
}

func (m *memSuppliers) Get(ctx context.Context, name string) (*inventory.Supplier, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.suppliers[name]
	if !ok {
		return nil, errors.NewRecordNotFound(name)
	}
	cp := *s
	return &cp, nil
}

func (m *memSuppliers) List(ctx context.Context) ([]*inventory.Supplier, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	suppliers := make([]*inventory.Supplier, 0, len(m.suppliers))
	for _, s := range m.suppliers {
		cp := *s
		suppliers = append(suppliers, &cp)
	}
	sort.Slice(suppliers, func(i, j int) bool { return suppliers[i].Name < suppliers[j].Name })
	return suppliers, nil
}

func (m *memSuppliers) Count(ctx context.Context) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.suppliers), nil
}

// --- alerts ---

type memAlerts MemoryStore

func (m *memAlerts) GetOrCreate(ctx context.Context, medicine string, typ inventory.AlertType, message string) (*inventory.Alert, bool, error) {
	if err := checkContext(ctx); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.MedicineName == medicine && a.Type == typ && !a.Acknowledged {
			cp := *a
			return &cp, false, nil
		}
	}

	a := &inventory.Alert{
		ID:           uuid.NewString(),
		MedicineName: medicine,
		Type:         typ,
		Message:      message,
		CreatedAt:    time.Now().UTC(),
	}
	cp := *a
	m.alerts[a.ID] = &cp
	return a, true, nil
}

func (m *memAlerts) Get(ctx context.Context, id string) (*inventory.Alert, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, errors.NewAlertNotFound(id)
	}
	cp := *a
	return &cp, nil
}

func (m *memAlerts) List(ctx context.Context, acknowledged bool) ([]*inventory.Alert, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]*inventory.Alert, 0)
	for _, a := range m.alerts {
		if !acknowledged && a.Acknowledged {
			continue
		}
		cp := *a
		alerts = append(alerts, &cp)
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts, nil
}

func (m *memAlerts) Acknowledge(ctx context.Context, id, by string, at time.Time) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return errors.NewAlertNotFound(id)
	}
	a.Acknowledged = true
	a.AcknowledgedBy = by
	a.AcknowledgedAt = at.UTC()
	return nil
}

func (m *memAlerts) DeleteAcknowledgedBefore(ctx context.Context, t time.Time) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, a := range m.alerts {
		if a.Acknowledged && a.AcknowledgedAt.Before(t) {
			delete(m.alerts, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- dispense ---

type memDispense MemoryStore

func (m *memDispense) Create(ctx context.Context, ev *inventory.DispenseEvent) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persistenceFailure {
		return errors.NewStorageUnavailable(nil)
	}
	cp := *ev
	m.dispense = append(m.dispense, &cp)
	return nil
}

func (m *memDispense) matches(ev *inventory.DispenseEvent, f DispenseFilter) bool {
	if !f.From.IsZero() && ev.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ev.Date.After(f.To) {
		return false
	}
	if f.Medicine != "" && !strings.Contains(strings.ToLower(ev.MedicineName), strings.ToLower(f.Medicine)) {
		return false
	}
	return true
}

func (m *memDispense) List(ctx context.Context, f DispenseFilter) ([]*inventory.DispenseEvent, int, error) {
	if err := checkContext(ctx); err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*inventory.DispenseEvent, 0)
	for _, ev := range m.dispense {
		if m.matches(ev, f) {
			cp := *ev
			matched = append(matched, &cp)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})
	total := len(matched)

	if f.Limit > 0 {
		if f.Offset >= len(matched) {
			return []*inventory.DispenseEvent{}, total, nil
		}
		matched = matched[f.Offset:]
		if len(matched) > f.Limit {
			matched = matched[:f.Limit]
		}
	}
	return matched, total, nil
}

func (m *memDispense) TotalsByMedicine(ctx context.Context, since time.Time, limit int) ([]MedicineTotal, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byMedicine := make(map[string]int)
	for _, ev := range m.dispense {
		if !ev.Date.Before(since) {
			byMedicine[ev.MedicineName] += ev.QuantityOut
		}
	}

	totals := make([]MedicineTotal, 0, len(byMedicine))
	for name, total := range byMedicine {
		totals = append(totals, MedicineTotal{MedicineName: name, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].MedicineName < totals[j].MedicineName
	})
	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	return totals, nil
}

func (m *memDispense) DailyTotals(ctx context.Context, from, to time.Time) ([]DailyTotal, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDay := make(map[string]int)
	for _, ev := range m.dispense {
		if ev.Date.Before(from) || ev.Date.After(to) {
			continue
		}
		byDay[ev.Date.UTC().Format("2006-01-02")] += ev.QuantityOut
	}

	totals := make([]DailyTotal, 0, len(byDay))
	for day, total := range byDay {
		totals = append(totals, DailyTotal{Day: day, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Day < totals[j].Day })
	return totals, nil
}

func (m *memDispense) DispensedSince(ctx context.Context, t time.Time) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, ev := range m.dispense {
		if !ev.Date.Before(t) {
			total += ev.QuantityOut
		}
	}
	return total, nil
}

func (m *memDispense) Clear(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispense = nil
	return nil
}

var (
	_ Store              = (*MemoryStore)(nil)
	_ RecordRepository   = (*memRecords)(nil)
	_ SupplierRepository = (*memSuppliers)(nil)
	_ AlertRepository    = (*memAlerts)(nil)
	_ DispenseRepository = (*memDispense)(nil)
)
