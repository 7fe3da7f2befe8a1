package sqlite

import (
	"database/sql"
	"fmt"
)

// Scannable is implemented by row types that can be scanned from SQL rows
type Scannable interface {
	Scan(rows *sql.Rows) error
}

// scanRows scans every row into a new T
func scanRows[T any, PT interface {
	*T
	Scannable
}](rows *sql.Rows) ([]T, error) {
	var results []T

	for rows.Next() {
		item := PT(new(T))
		if err := item.Scan(rows); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}
