package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"rtracker/model"
)

// InsertScanEventInTx appends one scan event together with its full
// per-line breakdown. Caller owns the transaction, so either the whole
// event commits or nothing does.
func InsertScanEventInTx(tx *sqlx.Tx, ev model.ScanEvent, lines []model.ScanEventLine) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO scan_events (
			session_id, waybill_number, part_number, scanned_qty,
			timestamp, raw_scan, allocation_details
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.SessionID, ev.WaybillNumber, ev.PartNumber, ev.ScannedQty,
		ev.Timestamp, ev.RawScan, ev.AllocationDetails,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan event for %s: %w", ev.PartNumber, err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scan event id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO scan_event_lines (event_id, line_id, qty) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare event line insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lines {
		if _, err := stmt.Exec(eventID, l.LineID, l.Qty); err != nil {
			return 0, fmt.Errorf("failed to insert event line for line %d: %w", l.LineID, err)
		}
	}
	return eventID, nil
}

// AllocatedByLine folds the event log into per-manifest-line allocated
// totals for a waybill. This is the authoritative "already received"
// figure; there is no cached counter to drift from it.
func AllocatedByLine(q DBTX, waybill string) (map[int64]int, error) {
	rows, err := q.Query(`
		SELECT sel.line_id, SUM(sel.qty)
		FROM scan_event_lines sel
		JOIN scan_events se ON se.event_id = sel.event_id
		WHERE UPPER(se.waybill_number) = UPPER(?)
		GROUP BY sel.line_id`, waybill)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocated totals for %s: %w", waybill, err)
	}
	defer rows.Close()

	allocated := make(map[int64]int)
	for rows.Next() {
		var lineID int64
		var qty int
		if err := rows.Scan(&lineID, &qty); err != nil {
			return nil, err
		}
		allocated[lineID] = qty
	}
	return allocated, rows.Err()
}

// ScannedTotalsByPart sums scanned quantity per part over a session.
func ScannedTotalsByPart(q DBTX, sessionID int64) (map[string]int, error) {
	rows, err := q.Query(`
		SELECT part_number, SUM(scanned_qty)
		FROM scan_events
		WHERE session_id = ?
		GROUP BY part_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scanned totals for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var part string
		var qty int
		if err := rows.Scan(&part, &qty); err != nil {
			return nil, err
		}
		totals[part] = qty
	}
	return totals, rows.Err()
}

// SessionBucketAllocations aggregates a session's per-line allocations
// into part -> bucket -> qty, joining back to the manifest lines for the
// bucket derivation.
func SessionBucketAllocations(q DBTX, sessionID int64) (map[string]map[string]int, error) {
	rows, err := q.Query(`
		SELECT se.part_number, wl.subinv, SUM(sel.qty)
		FROM scan_event_lines sel
		JOIN scan_events se ON se.event_id = sel.event_id
		JOIN waybill_lines wl ON wl.id = sel.line_id
		WHERE se.session_id = ?
		GROUP BY se.part_number, wl.subinv`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session allocations for %d: %w", sessionID, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]int)
	for rows.Next() {
		var part, subinv string
		var qty int
		if err := rows.Scan(&part, &subinv, &qty); err != nil {
			return nil, err
		}
		if out[part] == nil {
			out[part] = make(map[string]int)
		}
		out[part][model.BucketFromSubinv(subinv)] += qty
	}
	return out, rows.Err()
}

// GetSessionEvents returns a session's events in append order, for the
// audit/export views.
func GetSessionEvents(q DBTX, sessionID int64) ([]model.ScanEvent, error) {
	var events []model.ScanEvent
	err := q.Select(&events, `
		SELECT event_id, session_id, waybill_number, part_number, scanned_qty,
		       timestamp, raw_scan, allocation_details
		FROM scan_events
		WHERE session_id = ?
		ORDER BY event_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for session %d: %w", sessionID, err)
	}
	return events, nil
}
