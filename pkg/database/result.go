package database

import (
	"database/sql"
)

// -----------------------------------------------------------------------------
// RESULT HELPERS
// -----------------------------------------------------------------------------
// sql.Rows'ı []Row biçimine dönüştürür. Driver'ların []byte olarak döndürdüğü
// metin değerleri (MySQL VARCHAR/DECIMAL) string'e çevrilir.
// -----------------------------------------------------------------------------

// rowsToMaps, tüm satırları okur. rows'u kapatmaz.
func rowsToMaps(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := make([]Row, 0)
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// scanRow, mevcut satırı Row'a okur.
func scanRow(rows *sql.Rows, cols []string) (Row, error) {
	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, err
	}

	row := make(Row, len(cols))
	for i, col := range cols {
		row[col] = normalizeValue(values[i])
	}
	return row, nil
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
