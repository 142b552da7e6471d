package importer

import "testing"

func TestDetectColumns_StandardHeader(t *testing.T) {
	header := []string{
		"Date", "Medicine Name", "Generic Name", "Dosage/Form", "Strength",
		"Batch No.", "Expiry Date", "Quantity IN", "Quantity OUT",
		"Supplier Name", "Storage Conditions", "Cost",
	}
	mapping := DetectColumns(header)

	want := map[Field]int{
		FieldDate:             0,
		FieldMedicineName:     1,
		FieldGenericName:      2,
		FieldDosageForm:       3,
		FieldStrength:         4,
		FieldBatchNo:          5,
		FieldExpiryDate:       6,
		FieldQuantityIn:       7,
		FieldQuantityOut:      8,
		FieldSupplierName:     9,
		FieldStorageCondition: 10,
		FieldUnitCost:         11,
	}
	for field, idx := range want {
		got, ok := mapping[field]
		if !ok {
			t.Errorf("field %s not detected", field)
			continue
		}
		if got != idx {
			t.Errorf("field %s mapped to column %d (%q), want %d", field, got, header[got], idx)
		}
	}
}

func TestDetectColumns_SnakeCaseHeader(t *testing.T) {
	header := []string{"medicine_name", "batch_no", "expiry_date", "qty_in", "qty_out"}
	mapping := DetectColumns(header)

	if mapping[FieldMedicineName] != 0 {
		t.Errorf("medicine_name mapped to %d", mapping[FieldMedicineName])
	}
	if mapping[FieldBatchNo] != 1 {
		t.Errorf("batch_no mapped to %d", mapping[FieldBatchNo])
	}
	if mapping[FieldQuantityIn] != 3 || mapping[FieldQuantityOut] != 4 {
		t.Errorf("quantities mapped to %d/%d", mapping[FieldQuantityIn], mapping[FieldQuantityOut])
	}
}

func TestDetectColumns_MissingColumns(t *testing.T) {
	mapping := DetectColumns([]string{"Medicine", "Batch"})
	if _, ok := mapping[FieldExpiryDate]; ok {
		t.Error("expiry date should not be detected")
	}
	if _, ok := mapping[FieldMedicineName]; !ok {
		t.Error("medicine name should be detected")
	}
}

func TestColumnMapping_Column(t *testing.T) {
	header := []string{"Medicine Name", "Batch No."}
	mapping := DetectColumns(header)
	if got := mapping.Column(header, FieldMedicineName); got != "Medicine Name" {
		t.Errorf("Column() = %q, want %q", got, "Medicine Name")
	}
	if got := mapping.Column(header, FieldNotes); got != "" {
		t.Errorf("unmapped field returned %q", got)
	}
}
