package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"rtracker/model"
)

const waybillLineColumns = `
	id, waybill_number, part_number, qty_total, subinv, locator,
	description, item_cost, date, import_date, import_batch, active
`

// GetWaybillLines returns the active manifest lines of a waybill in
// insertion order. Insertion order is the allocation tie-break within a
// bucket, so callers must not re-sort by anything else.
func GetWaybillLines(q DBTX, waybill string) ([]model.WaybillLine, error) {
	var lines []model.WaybillLine
	err := q.Select(&lines, `
		SELECT `+waybillLineColumns+`
		FROM waybill_lines
		WHERE UPPER(waybill_number) = UPPER(?) AND active = 1
		ORDER BY id`, waybill)
	if err != nil {
		return nil, fmt.Errorf("failed to query waybill lines for %s: %w", waybill, err)
	}
	return lines, nil
}

// GetWaybillLinesForPart returns the active lines of a waybill matching a
// part number, in insertion order.
func GetWaybillLinesForPart(q DBTX, waybill, part string) ([]model.WaybillLine, error) {
	var lines []model.WaybillLine
	err := q.Select(&lines, `
		SELECT `+waybillLineColumns+`
		FROM waybill_lines
		WHERE UPPER(waybill_number) = UPPER(?)
		  AND UPPER(part_number) = UPPER(?)
		  AND active = 1
		ORDER BY id`, waybill, part)
	if err != nil {
		return nil, fmt.Errorf("failed to query waybill lines for %s/%s: %w", waybill, part, err)
	}
	return lines, nil
}

// CountWaybillLines reports how many active lines a waybill has.
func CountWaybillLines(q DBTX, waybill string) (int, error) {
	var n int
	err := q.Get(&n, `
		SELECT COUNT(*) FROM waybill_lines
		WHERE UPPER(waybill_number) = UPPER(?) AND active = 1`, waybill)
	if err != nil {
		return 0, fmt.Errorf("failed to count waybill lines for %s: %w", waybill, err)
	}
	return n, nil
}

// InsertWaybillLinesInTx inserts imported manifest lines.
func InsertWaybillLinesInTx(tx *sqlx.Tx, lines []model.WaybillLine) error {
	const q = `
		INSERT INTO waybill_lines (
			waybill_number, part_number, qty_total, subinv, locator,
			description, item_cost, date, import_date, import_batch, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, DATE('now'), ?, 1)`

	stmt, err := tx.Prepare(q)
	if err != nil {
		return fmt.Errorf("failed to prepare waybill line insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lines {
		_, err := stmt.Exec(
			l.WaybillNumber, l.PartNumber, l.QtyTotal, l.Subinv, l.Locator,
			l.Description, l.ItemCost.String(), l.Date, l.ImportBatch,
		)
		if err != nil {
			return fmt.Errorf("failed to insert waybill line %s/%s: %w", l.WaybillNumber, l.PartNumber, err)
		}
	}
	return nil
}

// DeactivateWaybillLinesInTx retires the current lines of a waybill ahead
// of a re-import. Retired lines stay in the table for audit but are
// invisible to the allocation engine.
func DeactivateWaybillLinesInTx(tx *sqlx.Tx, waybill string) (int64, error) {
	res, err := tx.Exec(`
		UPDATE waybill_lines SET active = 0
		WHERE UPPER(waybill_number) = UPPER(?) AND active = 1`, waybill)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate waybill lines for %s: %w", waybill, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", waybill, err)
	}
	return n, nil
}

// ActiveWaybills returns waybill numbers that are importable targets for a
// session: present in the manifest and not manually terminated. Passing a
// date restricts to manifests shipped on that date.
func ActiveWaybills(q DBTX, date string) ([]string, error) {
	query := `
		SELECT DISTINCT waybill_number FROM waybill_lines
		WHERE active = 1
		  AND waybill_number NOT IN (SELECT waybill_number FROM terminated_waybills)`
	args := []interface{}{}
	if date != "" {
		query += ` AND date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY waybill_number`

	var waybills []string
	if err := q.Select(&waybills, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query active waybills: %w", err)
	}
	return waybills, nil
}

// WaybillDate returns the manifest ship date of a waybill, or "" when the
// waybill has no active lines.
func WaybillDate(q DBTX, waybill string) (string, error) {
	var date string
	err := q.Get(&date, `
		SELECT date FROM waybill_lines
		WHERE UPPER(waybill_number) = UPPER(?) AND active = 1
		ORDER BY id LIMIT 1`, waybill)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get date of waybill %s: %w", waybill, err)
	}
	return date, nil
}

// WaybillProgressAll returns (waybill, expected total, remaining) for every
// active waybill. Remaining counts only allocations against active lines,
// so a re-import resets progress the same way per-line progress does.
func WaybillProgressAll(q DBTX) ([]model.WaybillProgress, error) {
	var totals []model.WaybillProgress
	err := q.Select(&totals, `
		SELECT waybill_number, SUM(qty_total) AS qty_total
		FROM waybill_lines
		WHERE active = 1
		  AND waybill_number NOT IN (SELECT waybill_number FROM terminated_waybills)
		GROUP BY waybill_number
		ORDER BY waybill_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to query waybill totals: %w", err)
	}

	rows, err := q.Query(`
		SELECT wl.waybill_number, SUM(sel.qty)
		FROM scan_event_lines sel
		JOIN waybill_lines wl ON wl.id = sel.line_id
		WHERE wl.active = 1
		GROUP BY wl.waybill_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scanned totals: %w", err)
	}
	defer rows.Close()

	scanned := make(map[string]int)
	for rows.Next() {
		var wb string
		var qty int
		if err := rows.Scan(&wb, &qty); err != nil {
			return nil, err
		}
		scanned[wb] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range totals {
		remaining := totals[i].QtyTotal - scanned[totals[i].WaybillNumber]
		if remaining < 0 {
			remaining = 0
		}
		totals[i].Remaining = remaining
	}
	return totals, nil
}
