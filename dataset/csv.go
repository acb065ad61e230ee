package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// inferSampleSize caps how many rows the type sniffer inspects per column.
const inferSampleSize = 1000

// Load reads a dataset file into a Table, dispatching on the file
// extension: .csv is read with the CSV loader, .parquet with the parquet
// loader.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".parquet":
		return LoadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", filepath.Ext(path))
	}
}

// LoadCSV reads a CSV file with a header row into a Table.
//
// Column types are inferred from a sample of values: a column where every
// non-empty sample parses as a number becomes Numeric, as a date becomes
// Date, as true/false becomes Bool; everything else stays String. Cell
// values are converted to the inferred type; values that fail conversion
// become nil.
func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadCSV(file)
}

// ReadCSV reads CSV data with a header row from r into a Table.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("CSV has no columns")
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		records = append(records, record)
	}

	types := make(map[string]ColumnType, len(columns))
	for i, col := range columns {
		types[col] = inferColumnType(records, i)
	}

	rows := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if i >= len(record) {
				row[col] = nil
				continue
			}
			row[col] = convertCell(record[i], types[col])
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Types: types, Rows: rows}, nil
}

// inferColumnType sniffs the semantic type of column idx from sample values.
func inferColumnType(records [][]string, idx int) ColumnType {
	sampled := 0
	isNumeric, isDate, isBool := true, true, true

	for _, record := range records {
		if sampled >= inferSampleSize {
			break
		}
		if idx >= len(record) {
			continue
		}
		cell := strings.TrimSpace(record[idx])
		if cell == "" {
			continue
		}
		sampled++

		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			isNumeric = false
		}
		if _, ok := ParseDate(cell); !ok {
			isDate = false
		}
		if !isBoolText(cell) {
			isBool = false
		}
		if !isNumeric && !isDate && !isBool {
			return String
		}
	}

	// No usable samples means no evidence for a narrower type.
	if sampled == 0 {
		return String
	}

	switch {
	case isBool:
		return Bool
	case isNumeric:
		return Numeric
	case isDate:
		return Date
	default:
		return String
	}
}

func isBoolText(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	default:
		return false
	}
}

// convertCell converts raw CSV text to the column's inferred type. Empty
// cells and conversion failures become nil.
func convertCell(raw string, ct ColumnType) interface{} {
	cell := strings.TrimSpace(raw)
	if cell == "" {
		return nil
	}
	switch ct {
	case Numeric:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil
		}
		return f
	case Date:
		d, ok := ParseDate(cell)
		if !ok {
			return nil
		}
		return d
	case Bool:
		return strings.EqualFold(cell, "true")
	default:
		return cell
	}
}
