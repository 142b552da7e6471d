package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/medstock-labs/medstock/internal/alerts"
	"github.com/medstock-labs/medstock/internal/auth"
	"github.com/medstock-labs/medstock/internal/inventory"
	"github.com/medstock-labs/medstock/internal/reports"
	"github.com/medstock-labs/medstock/internal/storage"
)

var serverNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	mock := clock.NewMock()
	mock.Set(serverNow)

	authenticator := auth.NewStaticTokenAuthenticator()
	authenticator.RegisterToken("test-token", &auth.User{
		Name:  "tester",
		Roles: []string{auth.RoleAdmin},
	})
	authenticator.RegisterToken("viewer-token", &auth.User{
		Name:  "watcher",
		Roles: []string{auth.RoleViewer},
	})

	logger := zap.NewNop()
	checker := alerts.NewChecker(store, logger, nil, mock, 30, 30)

	srv := NewServer(Options{
		Store:            store,
		Authenticator:    authenticator,
		Logger:           logger,
		Checker:          checker,
		Reports:          reports.NewGenerator(store, mock, 30),
		Clock:            mock,
		ExpiryWindowDays: 30,
		Version:          "test",
	})
	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doRequestAs(t, srv, "test-token", method, path, body)
}

func doRequestAs(t *testing.T, srv *Server, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func seedRecord(t *testing.T, store storage.Store, medicine, batch string, in, out int) *inventory.Record {
	t.Helper()
	rec := &inventory.Record{
		Date:          serverNow.AddDate(0, 0, -1),
		MedicineName:  medicine,
		DosageForm:    "tablet",
		BatchNo:       batch,
		ExpiryDate:    serverNow.AddDate(1, 0, 0),
		QuantityIn:    in,
		QuantityOut:   out,
		MinStockLevel: 10,
	}
	if out > 0 {
		rec.DispensedTo = "Ward 1"
	}
	if err := store.Records().Create(context.Background(), rec); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	return rec
}

func TestServer_RequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status with bad token = %d, want 401", w.Code)
	}
}

func TestServer_ViewerIsReadOnly(t *testing.T) {
	srv, store := newTestServer(t)
	rec := seedRecord(t, store, "Paracetamol", "P1", 100, 0)

	w := doRequestAs(t, srv, "viewer-token", http.MethodGet, "/api/v1/records", nil)
	if w.Code != http.StatusOK {
		t.Errorf("viewer GET status = %d, want 200", w.Code)
	}

	mutations := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/v1/records", map[string]any{"medicine_name": "X"}},
		{http.MethodPut, "/api/v1/records/" + rec.ID, rec},
		{http.MethodDelete, "/api/v1/records/" + rec.ID, nil},
		{http.MethodPost, "/api/v1/dispense", map[string]any{
			"medicine_name": "Paracetamol", "batch_no": "P1",
			"quantity": 1, "patient_name": "R. Kumar",
		}},
		{http.MethodPost, "/api/v1/alerts/check", nil},
		{http.MethodPost, "/api/v1/alerts/some-id/acknowledge", nil},
	}
	for _, m := range mutations {
		w := doRequestAs(t, srv, "viewer-token", m.method, m.path, m.body)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s as viewer = %d, want 403", m.method, m.path, w.Code)
		}
	}

	// The admin token still writes.
	w = doRequest(t, srv, http.MethodPost, "/api/v1/alerts/check", nil)
	if w.Code != http.StatusOK {
		t.Errorf("admin alerts check status = %d, want 200", w.Code)
	}
}

func TestServer_AccessLogIncludesUser(t *testing.T) {
	srv, _ := newTestServer(t)
	core, logs := observer.New(zap.InfoLevel)
	srv.logger = zap.New(core)

	doRequest(t, srv, http.MethodGet, "/api/v1/records", nil)

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("access log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["user"] != "tester" {
		t.Errorf("user field = %v, want tester", fields["user"])
	}
	if fields["status"] != int64(http.StatusOK) {
		t.Errorf("status field = %v", fields["status"])
	}
}

func TestServer_HealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	decodeJSON(t, w, &body)
	if body["version"] != "test" {
		t.Errorf("version = %q, want test", body["version"])
	}
}

func TestServer_ReadyReflectsConnectivity(t *testing.T) {
	srv, store := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	store.SetConnectivityFailure(true)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status with broken store = %d, want 503", w.Code)
	}
}

func TestServer_CreateAndGetRecord(t *testing.T) {
	srv, store := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/records", map[string]any{
		"medicine_name": "Paracetamol",
		"dosage_form":   "tablet",
		"batch_no":      "P1",
		"expiry_date":   serverNow.AddDate(1, 0, 0),
		"quantity_in":   100,
		"supplier_name": "MediCorp",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var created inventory.Record
	decodeJSON(t, w, &created)
	if created.ID == "" {
		t.Fatal("created record has no ID")
	}
	if created.CreatedBy != "tester" {
		t.Errorf("created_by = %q, want tester", created.CreatedBy)
	}
	if created.MinStockLevel != inventory.DefaultMinStockLevel {
		t.Errorf("min_stock_level = %d, want default", created.MinStockLevel)
	}

	// Supplier auto-registered from the record.
	if n, _ := store.Suppliers().Count(context.Background()); n != 1 {
		t.Errorf("suppliers = %d, want 1", n)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/records/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var detail recordDetail
	decodeJSON(t, w, &detail)
	if detail.Record.MedicineName != "Paracetamol" {
		t.Errorf("detail medicine = %q", detail.Record.MedicineName)
	}
	if detail.Balance == nil || detail.Balance.Balance != 100 {
		t.Errorf("detail balance = %+v", detail.Balance)
	}
}

func TestServer_CreateRecordValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/records", map[string]any{
		"dosage_form": "tablet",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestServer_ListRecordsFilters(t *testing.T) {
	srv, store := newTestServer(t)
	seedRecord(t, store, "Paracetamol", "P1", 100, 0)
	seedRecord(t, store, "Amoxicillin", "A1", 5, 0)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/records?q=amox", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Items          []*inventory.Record `json:"items"`
		Total          int                 `json:"total"`
		TotalMedicines int                 `json:"total_medicines"`
	}
	decodeJSON(t, w, &resp)
	if resp.Total != 1 || resp.Items[0].MedicineName != "Amoxicillin" {
		t.Errorf("filtered list = %+v", resp)
	}
	if resp.TotalMedicines != 2 {
		t.Errorf("total_medicines = %d, want 2", resp.TotalMedicines)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/records?stock=low", nil)
	decodeJSON(t, w, &resp)
	if resp.Total != 1 || resp.Items[0].MedicineName != "Amoxicillin" {
		t.Errorf("low stock list = %+v", resp)
	}
}

func TestServer_QuickDispense(t *testing.T) {
	srv, store := newTestServer(t)
	seedRecord(t, store, "Paracetamol", "P1", 100, 0)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/dispense", map[string]any{
		"medicine_name": "Paracetamol",
		"batch_no":      "P1",
		"quantity":      30,
		"patient_name":  "R. Kumar",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp dispenseResponse
	decodeJSON(t, w, &resp)
	if resp.Balance != 70 {
		t.Errorf("balance = %d, want 70", resp.Balance)
	}
	if resp.Record.QuantityOut != 30 || resp.Record.QuantityIn != 0 {
		t.Errorf("ledger record = in %d out %d", resp.Record.QuantityIn, resp.Record.QuantityOut)
	}
	if resp.Record.DispensedTo != "R. Kumar" {
		t.Errorf("dispensed_to = %q", resp.Record.DispensedTo)
	}

	// A dispense event is derived from the movement.
	events, total, err := store.Dispense().List(context.Background(), storage.DispenseFilter{})
	if err != nil {
		t.Fatalf("List events failed: %v", err)
	}
	if total != 1 || events[0].QuantityOut != 30 {
		t.Errorf("dispense history = %d events", total)
	}
}

func TestServer_QuickDispenseUnknownBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/dispense", map[string]any{
		"medicine_name": "Nothing",
		"batch_no":      "N1",
		"quantity":      1,
		"patient_name":  "R. Kumar",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestServer_QuickDispenseInsufficientStock(t *testing.T) {
	srv, store := newTestServer(t)
	seedRecord(t, store, "Paracetamol", "P1", 10, 0)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/dispense", map[string]any{
		"medicine_name": "Paracetamol",
		"batch_no":      "P1",
		"quantity":      50,
		"patient_name":  "R. Kumar",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, w, &body)
	if body.Error == "" {
		t.Error("error body missing message")
	}
}

func TestServer_AlertLifecycle(t *testing.T) {
	srv, store := newTestServer(t)

	// An expired batch raises an alert on check.
	rec := seedRecord(t, store, "Old Pills", "O1", 50, 0)
	rec.ExpiryDate = serverNow.AddDate(0, 0, -10)
	if err := store.Records().Update(context.Background(), rec); err != nil {
		t.Fatalf("failed to backdate expiry: %v", err)
	}

	w := doRequest(t, srv, http.MethodPost, "/api/v1/alerts/check", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("check status = %d", w.Code)
	}
	var result alerts.CheckResult
	decodeJSON(t, w, &result)
	if result.Created != 1 {
		t.Fatalf("created = %d, want 1", result.Created)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/alerts", nil)
	var listBody struct {
		Alerts []*inventory.Alert `json:"alerts"`
	}
	decodeJSON(t, w, &listBody)
	if len(listBody.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(listBody.Alerts))
	}

	id := listBody.Alerts[0].ID
	w = doRequest(t, srv, http.MethodPost, "/api/v1/alerts/"+id+"/acknowledge", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("acknowledge status = %d", w.Code)
	}
	var acked inventory.Alert
	decodeJSON(t, w, &acked)
	if !acked.Acknowledged || acked.AcknowledgedBy != "tester" {
		t.Errorf("acknowledged = %v by %q", acked.Acknowledged, acked.AcknowledgedBy)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/v1/alerts/unknown/acknowledge", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown alert status = %d, want 404", w.Code)
	}
}

func TestServer_Dashboard(t *testing.T) {
	srv, store := newTestServer(t)
	seedRecord(t, store, "Paracetamol", "P1", 100, 0)
	seedRecord(t, store, "Amoxicillin", "A1", 5, 0)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/dashboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var dash dashboardResponse
	decodeJSON(t, w, &dash)
	if dash.TotalRecords != 2 || dash.TotalMedicines != 2 {
		t.Errorf("totals = %d records, %d medicines", dash.TotalRecords, dash.TotalMedicines)
	}
	if dash.LowStockCount != 1 {
		t.Errorf("low stock count = %d, want 1", dash.LowStockCount)
	}
	if len(dash.RecentAdditions) != 2 {
		t.Errorf("recent additions = %d, want 2", len(dash.RecentAdditions))
	}
	if len(dash.Alerts) != 1 {
		t.Errorf("alert feed = %d entries, want 1", len(dash.Alerts))
	}
}

func TestServer_Analytics(t *testing.T) {
	srv, store := newTestServer(t)
	seedRecord(t, store, "Paracetamol", "P1", 100, 0)
	ev := &inventory.DispenseEvent{
		Date:         serverNow.AddDate(0, 0, -2),
		MedicineName: "Paracetamol",
		BatchNo:      "P1",
		DispensedTo:  "Ward 1",
		QuantityOut:  15,
	}
	if err := store.Dispense().Create(context.Background(), ev); err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	w := doRequest(t, srv, http.MethodGet, "/api/v1/analytics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var analytics analyticsResponse
	decodeJSON(t, w, &analytics)
	if len(analytics.DailyDispenses) != 1 || analytics.DailyDispenses[0].Total != 15 {
		t.Errorf("daily dispenses = %+v", analytics.DailyDispenses)
	}
	if len(analytics.DosageDistribution) != 1 || analytics.DosageDistribution[0].DosageForm != "tablet" {
		t.Errorf("dosage distribution = %+v", analytics.DosageDistribution)
	}
	if analytics.ExpiryDistribution.Good != 1 {
		t.Errorf("expiry distribution = %+v", analytics.ExpiryDistribution)
	}
}

func TestServer_Reports(t *testing.T) {
	srv, store := newTestServer(t)
	seedRecord(t, store, "Paracetamol", "P1", 100, 0)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/reports?type=inventory", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	disposition := w.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "inventory_export.csv") {
		t.Errorf("disposition = %q", disposition)
	}
	if !strings.Contains(w.Body.String(), "Medicine Name") {
		t.Error("report body missing header row")
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/reports?type=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus type status = %d, want 400", w.Code)
	}
}

func TestServer_DispenseHistoryPagination(t *testing.T) {
	srv, store := newTestServer(t)
	for i := 0; i < 30; i++ {
		ev := &inventory.DispenseEvent{
			Date:         serverNow.Add(-time.Duration(i) * time.Hour),
			MedicineName: "Paracetamol",
			BatchNo:      "P1",
			DispensedTo:  fmt.Sprintf("Patient %d", i),
			QuantityOut:  1,
		}
		if err := store.Dispense().Create(context.Background(), ev); err != nil {
			t.Fatalf("failed to seed event: %v", err)
		}
	}

	w := doRequest(t, srv, http.MethodGet, "/api/v1/dispense?page=2&page_size=20", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Items      []*inventory.DispenseEvent `json:"items"`
		Total      int                        `json:"total"`
		TotalPages int                        `json:"total_pages"`
	}
	decodeJSON(t, w, &resp)
	if resp.Total != 30 || resp.TotalPages != 2 {
		t.Errorf("total = %d pages = %d, want 30/2", resp.Total, resp.TotalPages)
	}
	if len(resp.Items) != 10 {
		t.Errorf("page 2 items = %d, want 10", len(resp.Items))
	}
}

func TestServer_DeleteRecord(t *testing.T) {
	srv, store := newTestServer(t)
	rec := seedRecord(t, store, "Paracetamol", "P1", 100, 0)

	w := doRequest(t, srv, http.MethodDelete, "/api/v1/records/"+rec.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	w = doRequest(t, srv, http.MethodDelete, "/api/v1/records/"+rec.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestServer_ListMedicines(t *testing.T) {
	srv, store := newTestServer(t)
	seedRecord(t, store, "Paracetamol", "P1", 100, 0)
	seedRecord(t, store, "Paracetamol", "P2", 50, 0)
	seedRecord(t, store, "Amoxicillin", "A1", 50, 0)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/medicines", nil)
	var body struct {
		Medicines []string `json:"medicines"`
	}
	decodeJSON(t, w, &body)
	if len(body.Medicines) != 2 {
		t.Errorf("medicines = %v, want 2 distinct", body.Medicines)
	}
}
