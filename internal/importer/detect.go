package importer

import "strings"

// Field names a target column of the inventory record.
type Field string

const (
	FieldMedicineName      Field = "medicine_name"
	FieldGenericName       Field = "generic_name"
	FieldDosageForm        Field = "dosage_form"
	FieldStrength          Field = "strength"
	FieldBatchNo           Field = "batch_no"
	FieldExpiryDate        Field = "expiry_date"
	FieldQuantityIn        Field = "quantity_in"
	FieldQuantityOut       Field = "quantity_out"
	FieldSupplierName      Field = "supplier_name"
	FieldStorageCondition  Field = "storage_condition"
	FieldUnitCost          Field = "unit_cost"
	FieldDate              Field = "date"
	FieldDispensedTo       Field = "dispensed_to"
	FieldDispensedBy       Field = "dispensed_by"
	FieldPrescribingDoctor Field = "prescribing_doctor"
	FieldManufacturer      Field = "manufacturer"
	FieldNotes             Field = "notes"
)

// AllFields lists the mappable fields in detection order.
var AllFields = []Field{
	FieldMedicineName, FieldGenericName, FieldDosageForm, FieldStrength,
	FieldBatchNo, FieldExpiryDate, FieldQuantityIn, FieldQuantityOut,
	FieldSupplierName, FieldStorageCondition, FieldUnitCost, FieldDate,
	FieldDispensedTo, FieldDispensedBy, FieldPrescribingDoctor,
	FieldManufacturer, FieldNotes,
}

// columnPatterns maps each field to the header substrings that identify it,
// most specific first. Matching is case-insensitive substring search.
var columnPatterns = map[Field][]string{
	FieldMedicineName:      {"medicine name", "medicine", "drug", "medication", "name", "medicine_name", "drug_name"},
	FieldGenericName:       {"generic", "generic_name", "scientific_name"},
	FieldDosageForm:        {"dosage/form", "dosage", "form", "dosage_form", "type"},
	FieldStrength:          {"strength", "dose", "concentration"},
	FieldBatchNo:           {"batch no.", "batch no", "batch", "lot", "batch_no", "lot_no", "batch_number"},
	FieldExpiryDate:        {"expiry date", "expiry", "expire", "expiration", "exp_date", "expiry_date"},
	FieldQuantityIn:        {"quantity in", "qty_in", "quantity_in", "stock_in", "received", "in"},
	FieldQuantityOut:       {"quantity out", "qty_out", "quantity_out", "stock_out", "dispensed", "out"},
	FieldSupplierName:      {"supplier name", "supplier", "vendor", "supplier_name"},
	FieldStorageCondition:  {"storage conditions", "storage", "condition", "storage_condition"},
	FieldUnitCost:          {"cost", "price", "unit_cost", "unit_price"},
	FieldDate:              {"date", "transaction_date", "entry_date"},
	FieldDispensedTo:       {"dispensed to", "patient", "dispensed_to", "customer"},
	FieldDispensedBy:       {"dispensed by", "dispensed_by", "pharmacist"},
	FieldPrescribingDoctor: {"doctor", "physician", "prescriber", "prescribing_doctor"},
	FieldManufacturer:      {"manufacturer", "company", "mfg"},
	FieldNotes:             {"notes", "remarks", "comments", "description"},
}

// ColumnMapping maps each detected field to its column index in the source
// header. Fields with no matching column are absent.
type ColumnMapping map[Field]int

// Column returns the header name mapped to the field, or "" when unmapped.
func (m ColumnMapping) Column(header []string, f Field) string {
	idx, ok := m[f]
	if !ok || idx >= len(header) {
		return ""
	}
	return header[idx]
}

// DetectColumns maps source header names onto record fields. For each field
// the patterns are tried in order and the first header containing a pattern
// wins. Patterns are ordered most specific first so "quantity in" claims its
// column before the bare "in" fallback can.
func DetectColumns(header []string) ColumnMapping {
	lowered := make([]string, len(header))
	for i, h := range header {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	mapping := make(ColumnMapping)
	for _, field := range AllFields {
	patterns:
		for _, term := range columnPatterns[field] {
			for i, col := range lowered {
				if strings.Contains(col, term) {
					mapping[field] = i
					break patterns
				}
			}
		}
	}
	return mapping
}
