package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/auth"
	"github.com/medstock-labs/medstock/internal/errors"
	"github.com/medstock-labs/medstock/internal/inventory"
	"github.com/medstock-labs/medstock/internal/storage"
)

// listEnvelope is the standard paginated response shape.
type listEnvelope struct {
	Items      any `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func totalPages(total, pageSize int) int {
	if total == 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// recordListResponse adds the quick stats and filter vocabulary the list
// page shows alongside the records.
type recordListResponse struct {
	listEnvelope
	TotalMedicines int      `json:"total_medicines"`
	ExpiredCount   int      `json:"expired_count"`
	DosageForms    []string `json:"dosage_forms"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := pagination(r)

	filter := storage.RecordFilter{
		Query:      q.Get("q"),
		DosageForm: q.Get("dosage_form"),
		Now:        s.clock.Now(),
		WindowDays: s.windowDays,
		LowStock:   q.Get("stock") == "low",
		SortBy:     q.Get("sort"),
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	}
	switch q.Get("expiry") {
	case "expired":
		filter.Expiry = inventory.ExpiryExpired
	case "expiring_soon":
		filter.Expiry = inventory.ExpirySoon
	case "good":
		filter.Expiry = inventory.ExpiryGood
	}

	records, total, err := s.store.Records().List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	medicines, err := s.store.Records().DistinctMedicines(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	forms, err := s.store.Records().DistinctDosageForms(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expired, err := s.store.Records().ListExpiringBetween(r.Context(), time.Time{}, dateOf(s.clock.Now()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, recordListResponse{
		listEnvelope: listEnvelope{
			Items:      records,
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		},
		TotalMedicines: len(medicines),
		ExpiredCount:   len(expired),
		DosageForms:    forms,
	})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec inventory.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, r, errors.NewInvalidRecord("body", "malformed JSON"))
		return
	}
	rec.ID = ""
	if rec.MinStockLevel == 0 {
		rec.MinStockLevel = inventory.DefaultMinStockLevel
	}
	if rec.CreatedBy == "" {
		if user := auth.UserFromContext(r.Context()); user != nil {
			rec.CreatedBy = user.Name
		}
	}
	if rec.Date.IsZero() {
		rec.Date = dateOf(s.clock.Now())
	}

	if err := s.store.Records().Create(r.Context(), &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	// Dispensing movements get a history entry; a POST that overdraws the
	// batch is accepted as a ledger correction, so no balance check here.
	if rec.QuantityOut > 0 && rec.DispensedTo != "" {
		if err := s.store.Dispense().Create(r.Context(), inventory.EventFromRecord(&rec)); err != nil {
			s.logger.Warn("failed to record dispense history",
				zap.String("record_id", rec.ID),
				zap.Error(err))
		} else if s.metrics != nil {
			s.metrics.Dispenses.Inc()
		}
	}

	s.checkLowStock(r, rec.Key())

	if rec.SupplierName != "" {
		if _, _, err := s.store.Suppliers().Ensure(r.Context(), rec.SupplierName); err != nil {
			s.logger.Warn("failed to register supplier",
				zap.String("supplier", rec.SupplierName),
				zap.Error(err))
		}
	}

	s.writeJSON(w, r, http.StatusCreated, &rec)
}

// recordDetail is the record plus the context the detail page shows.
type recordDetail struct {
	Record         *inventory.Record          `json:"record"`
	Balance        *inventory.Balance         `json:"balance"`
	RelatedRecords []*inventory.Record        `json:"related_records"`
	RecentDispense []*inventory.DispenseEvent `json:"recent_dispenses"`
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Records().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	balance, err := s.store.Records().BatchBalance(r.Context(), rec.Key())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	related, err := s.store.Records().ByMedicine(r.Context(), rec.MedicineName, 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dispenses, _, err := s.store.Dispense().List(r.Context(), storage.DispenseFilter{
		Medicine: rec.MedicineName,
		Limit:    10,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, recordDetail{
		Record:         rec,
		Balance:        balance,
		RelatedRecords: related,
		RecentDispense: dispenses,
	})
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var rec inventory.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, r, errors.NewInvalidRecord("body", "malformed JSON"))
		return
	}
	rec.ID = chi.URLParam(r, "id")
	if rec.MinStockLevel == 0 {
		rec.MinStockLevel = inventory.DefaultMinStockLevel
	}

	if err := s.store.Records().Update(r.Context(), &rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, &rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Records().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dispenseRequest is the quick dispense form.
type dispenseRequest struct {
	MedicineName      string `json:"medicine_name"`
	BatchNo           string `json:"batch_no"`
	Quantity          int    `json:"quantity"`
	PatientName       string `json:"patient_name"`
	PrescribingDoctor string `json:"prescribing_doctor,omitempty"`
}

// dispenseResponse reports the ledger record written and the batch balance
// after it.
type dispenseResponse struct {
	Record  *inventory.Record `json:"record"`
	Balance int               `json:"balance"`
}

func (s *Server) handleQuickDispense(w http.ResponseWriter, r *http.Request) {
	var req dispenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.NewInvalidRecord("body", "malformed JSON"))
		return
	}
	if req.Quantity <= 0 {
		s.writeError(w, r, errors.NewInvalidRecord("quantity", "must be positive"))
		return
	}
	if req.PatientName == "" {
		s.writeError(w, r, errors.NewInvalidRecord("patient_name", "cannot be empty"))
		return
	}

	key := inventory.BatchKey{MedicineName: req.MedicineName, BatchNo: req.BatchNo}
	latest, err := s.store.Records().LatestByBatch(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.store.Records().BatchBalance(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if balance.Balance < req.Quantity {
		s.writeError(w, r, errors.NewInsufficientStock(
			req.MedicineName, req.BatchNo, req.Quantity, balance.Balance))
		return
	}

	createdBy := ""
	if user := auth.UserFromContext(r.Context()); user != nil {
		createdBy = user.Name
	}
	rec := &inventory.Record{
		Date:              dateOf(s.clock.Now()),
		MedicineName:      req.MedicineName,
		DosageForm:        latest.DosageForm,
		BatchNo:           req.BatchNo,
		ExpiryDate:        latest.ExpiryDate,
		QuantityOut:       req.Quantity,
		DispensedTo:       req.PatientName,
		PrescribingDoctor: req.PrescribingDoctor,
		MinStockLevel:     latest.MinStockLevel,
		CreatedBy:         createdBy,
	}
	if err := s.store.Records().Create(r.Context(), rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Dispense().Create(r.Context(), inventory.EventFromRecord(rec)); err != nil {
		s.logger.Warn("failed to record dispense history",
			zap.String("record_id", rec.ID),
			zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.Dispenses.Inc()
	}

	s.checkLowStock(r, key)

	s.writeJSON(w, r, http.StatusCreated, dispenseResponse{
		Record:  rec,
		Balance: balance.Balance - req.Quantity,
	})
}

// checkLowStock raises a low-stock alert for the batch's medicine if its
// balance has fallen below threshold.
func (s *Server) checkLowStock(r *http.Request, key inventory.BatchKey) {
	balance, err := s.store.Records().BatchBalance(r.Context(), key)
	if err != nil {
		s.logger.Warn("failed to check stock level",
			zap.String("medicine", key.MedicineName),
			zap.Error(err))
		return
	}
	if !balance.IsLow() {
		return
	}
	_, created, err := s.store.Alerts().GetOrCreate(r.Context(), key.MedicineName,
		inventory.AlertLowStock,
		"Stock is running low for "+key.MedicineName)
	if err != nil {
		s.logger.Warn("failed to raise low stock alert",
			zap.String("medicine", key.MedicineName),
			zap.Error(err))
		return
	}
	if created {
		s.logger.Info("low stock alert raised",
			zap.String("medicine", key.MedicineName),
			zap.Int("balance", balance.Balance))
	}
}

func (s *Server) handleDispenseHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := pagination(r)

	filter := storage.DispenseFilter{
		Medicine: q.Get("medicine"),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}
	if v := q.Get("date_from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			s.writeError(w, r, errors.NewInvalidRecord("date_from", "expected YYYY-MM-DD"))
			return
		}
		filter.From = t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			s.writeError(w, r, errors.NewInvalidRecord("date_to", "expected YYYY-MM-DD"))
			return
		}
		// Inclusive end of day.
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}

	events, total, err := s.store.Dispense().List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, listEnvelope{
		Items:      events,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages(total, pageSize),
	})
}

func (s *Server) handleListMedicines(w http.ResponseWriter, r *http.Request) {
	medicines, err := s.store.Records().DistinctMedicines(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"medicines": medicines})
}

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.store.Suppliers().List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
