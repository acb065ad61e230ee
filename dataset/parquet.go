package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// LoadParquet reads all rows of a parquet file into a Table.
//
// Column order follows the parquet schema. Integer and float values become
// Numeric float64 cells; string columns whose values all parse as dates are
// promoted to Date, matching the CSV loader's inference.
func LoadParquet(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	columns := make([]string, 0)
	for _, field := range pqFile.Schema().Fields() {
		columns = append(columns, field.Name())
	}

	reader := parquet.NewReader(pqFile)
	defer func() { _ = reader.Close() }()

	var raw []map[string]interface{}
	for {
		row := make(map[string]interface{})
		if err := reader.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		raw = append(raw, row)
	}

	types := make(map[string]ColumnType, len(columns))
	for _, col := range columns {
		types[col] = inferParquetType(raw, col)
	}

	rows := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		row := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			row[col] = convertParquetCell(r[col], types[col])
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Types: types, Rows: rows}, nil
}

// inferParquetType maps already-typed parquet values to a semantic type.
func inferParquetType(rows []map[string]interface{}, col string) ColumnType {
	sampled := 0
	isNumeric, isDate, isBool := true, true, true

	for _, row := range rows {
		if sampled >= inferSampleSize {
			break
		}
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		sampled++

		if _, ok := ToFloat(v); !ok {
			isNumeric = false
		}
		if _, isB := v.(bool); !isB {
			isBool = false
		}
		if _, ok := ParseDate(v); !ok {
			isDate = false
		}
		if !isNumeric && !isDate && !isBool {
			return String
		}
	}

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

func convertParquetCell(v interface{}, ct ColumnType) interface{} {
	if v == nil {
		return nil
	}
	switch ct {
	case Numeric:
		f, ok := ToFloat(v)
		if !ok {
			return nil
		}
		return f
	case Date:
		d, ok := ParseDate(v)
		if !ok {
			return nil
		}
		return d
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil
		}
		return b
	default:
		return FormatValue(v)
	}
}
