package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"rtracker/model"
)

// LookupUPC resolves a scanned UPC to (part number, default quantity).
// Returns nil when the code is unknown.
func LookupUPC(q DBTX, code string) (*model.PartIdentifier, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var pi model.PartIdentifier
	err := q.Get(&pi, `
		SELECT id, part_number, upc_code, qty, description
		FROM part_identifiers
		WHERE UPPER(upc_code) = ? OR UPPER(part_number) = ?`, code, code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up part identifier %s: %w", code, err)
	}
	pi.PartNumber = strings.ToUpper(pi.PartNumber)
	if pi.Qty < 1 {
		pi.Qty = 1
	}
	return &pi, nil
}

// ReplacePartIdentifiersInTx clears and reloads the part identifier table.
// The UPC import is always a full-table refresh.
func ReplacePartIdentifiersInTx(tx *sqlx.Tx, rows []model.PartIdentifier) (int, error) {
	if _, err := tx.Exec(`DELETE FROM part_identifiers`); err != nil {
		return 0, fmt.Errorf("failed to clear part identifiers: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO part_identifiers (part_number, upc_code, qty, description)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare part identifier insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, pi := range rows {
		if _, err := stmt.Exec(pi.PartNumber, pi.UpcCode, pi.Qty, pi.Description); err != nil {
			return inserted, fmt.Errorf("failed to insert part identifier %s: %w", pi.UpcCode, err)
		}
		inserted++
	}
	return inserted, nil
}

// ListPartIdentifiers returns the whole table for the maintenance view.
func ListPartIdentifiers(q DBTX) ([]model.PartIdentifier, error) {
	var rows []model.PartIdentifier
	err := q.Select(&rows, `
		SELECT id, part_number, upc_code, qty, description
		FROM part_identifiers ORDER BY part_number, upc_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list part identifiers: %w", err)
	}
	return rows, nil
}
