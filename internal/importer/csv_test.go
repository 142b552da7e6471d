package importer

import "testing"

func TestReadCSV_Delimiters(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"comma", "Medicine Name,Batch\nParacetamol,P1\n"},
		{"semicolon", "Medicine Name;Batch\nParacetamol;P1\n"},
		{"tab", "Medicine Name\tBatch\nParacetamol\tP1\n"},
		{"pipe", "Medicine Name|Batch\nParacetamol|P1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempCSV(t, tt.content)
			rows, err := ReadCSV(path)
			if err != nil {
				t.Fatalf("ReadCSV failed: %v", err)
			}
			if len(rows) != 2 {
				t.Fatalf("rows = %d, want 2", len(rows))
			}
			if len(rows[0]) != 2 || rows[0][1] != "Batch" {
				t.Errorf("header = %v", rows[0])
			}
			if rows[1][0] != "Paracetamol" {
				t.Errorf("data row = %v", rows[1])
			}
		})
	}
}

func TestReadCSV_RaggedRows(t *testing.T) {
	path := writeTempCSV(t, "a,b,c\n1,2\n1,2,3,4\n")
	rows, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if len(rows[1]) != 2 || len(rows[2]) != 4 {
		t.Errorf("row widths = %d, %d", len(rows[1]), len(rows[2]))
	}
}
