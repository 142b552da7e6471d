package importer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
)

// candidateDelimiters are tried when sniffing a CSV file, in preference
// order.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// ReadCSV reads a delimited file into rows. The delimiter is sniffed from
// the first line.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	sample, err := br.Peek(4096)
	if err != nil && len(sample) == 0 {
		return nil, fmt.Errorf("failed to read csv file: %w", err)
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(sample)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv file: %w", err)
	}
	return rows, nil
}

// sniffDelimiter picks the candidate delimiter occurring most often in the
// first line of the sample. Comma wins ties.
func sniffDelimiter(sample []byte) rune {
	line := sample
	for i, b := range sample {
		if b == '\n' {
			line = sample[:i]
			break
		}
	}

	best := ','
	bestCount := 0
	for _, d := range candidateDelimiters {
		count := 0
		for _, b := range line {
			if rune(b) == d {
				count++
			}
		}
		if count > bestCount {
			best = d
			bestCount = count
		}
	}
	return best
}
