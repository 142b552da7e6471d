package importer

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxRepeatedCells caps expansion of repeated cells and rows. Spreadsheet
// writers pad sheets with huge trailing repeats (often 16384 columns).
const maxRepeatedCells = 1024

// Sheet is one table read from an ODS spreadsheet.
type Sheet struct {
	Name string
	Rows [][]string
}

// ReadODS opens an ODS file and returns its sheets in document order.
func ReadODS(path string) ([]Sheet, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ods file: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "content.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open content.xml: %w", err)
		}
		defer rc.Close()
		return parseContent(rc)
	}
	return nil, fmt.Errorf("not an ods file: content.xml missing")
}

// SelectSheet picks a sheet by name, or by index when sheet parses as a
// number. The empty string selects the first sheet.
func SelectSheet(sheets []Sheet, sheet string) (Sheet, error) {
	if len(sheets) == 0 {
		return Sheet{}, fmt.Errorf("spreadsheet has no sheets")
	}
	if sheet == "" {
		return sheets[0], nil
	}
	if idx, err := strconv.Atoi(sheet); err == nil {
		if idx < 0 || idx >= len(sheets) {
			return Sheet{}, fmt.Errorf("sheet index %d out of range (%d sheets)", idx, len(sheets))
		}
		return sheets[idx], nil
	}
	for _, s := range sheets {
		if s.Name == sheet {
			return s, nil
		}
	}
	return Sheet{}, fmt.Errorf("sheet %q not found", sheet)
}

// parseContent walks the content.xml token stream. A token walk handles the
// nested spans and annotations inside cells that a struct unmarshal would
// drop.
func parseContent(r io.Reader) ([]Sheet, error) {
	dec := xml.NewDecoder(r)

	var sheets []Sheet
	var current *Sheet
	var row []string

	var cellText strings.Builder
	var cellValue string
	var cellRepeat int
	inCell := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed content.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				sheets = append(sheets, Sheet{Name: attr(t, "name")})
				current = &sheets[len(sheets)-1]
			case "table-row":
				row = nil
			case "table-cell", "covered-table-cell":
				inCell = true
				cellText.Reset()
				cellRepeat = repeatCount(attr(t, "number-columns-repeated"))
				// Typed cells carry their canonical value in an
				// attribute; dates include a possible time suffix.
				cellValue = attr(t, "value")
				if cellValue == "" {
					cellValue = attr(t, "date-value")
				}
			}

		case xml.CharData:
			if inCell {
				cellText.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "table-cell", "covered-table-cell":
				inCell = false
				value := cellValue
				if value == "" {
					value = cellText.String()
				}
				value = strings.TrimSpace(value)
				for i := 0; i < cellRepeat; i++ {
					row = append(row, value)
				}
			case "table-row":
				if current != nil {
					// Trim trailing empty cells left by repeats.
					for len(row) > 0 && row[len(row)-1] == "" {
						row = row[:len(row)-1]
					}
					if len(row) > 0 {
						current.Rows = append(current.Rows, row)
					}
				}
			}
		}
	}
	return sheets, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func repeatCount(v string) int {
	if v == "" {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	if n > maxRepeatedCells {
		return maxRepeatedCells
	}
	return n
}
