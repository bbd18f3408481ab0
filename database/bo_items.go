package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"rtracker/model"
)

// OpenBoLinesInTx fetches the open back-order demand for a part, most
// urgent first (lowest redcon value, then insertion order). Fulfillment
// distribution follows this order.
func OpenBoLinesInTx(tx *sqlx.Tx, part string) ([]model.BoItem, error) {
	var items []model.BoItem
	err := tx.Select(&items, `
		SELECT id, go_item, oracle_ref, part_number, qty_req, qty_fulfilled,
		       pick_status, flow_status, redcon_status
		FROM bo_items
		WHERE UPPER(part_number) = UPPER(?)
		  AND pick_status = ?
		  AND qty_fulfilled < qty_req
		ORDER BY redcon_status ASC, id ASC`,
		strings.ToUpper(part), model.PickNotStarted)
	if err != nil {
		return nil, fmt.Errorf("failed to query open BO lines for %s: %w", part, err)
	}
	return items, nil
}

// IncrementBoFulfilledInTx advances the fulfilled counter of one BO line.
// The caller is responsible for capping the increment at the line's
// remaining requirement.
func IncrementBoFulfilledInTx(tx *sqlx.Tx, boItemID int64, qty int) error {
	_, err := tx.Exec(`
		UPDATE bo_items SET qty_fulfilled = qty_fulfilled + ? WHERE id = ?`,
		qty, boItemID)
	if err != nil {
		return fmt.Errorf("failed to increment BO fulfillment for %d: %w", boItemID, err)
	}
	return nil
}

// UpsertBoItemsInTx inserts or refreshes BO report rows, preserving
// fulfillment progress across re-imports: an existing row keeps its
// pick_status and qty_fulfilled, with the fulfilled quantity clamped to
// the new requirement. Returns (created, updated).
func UpsertBoItemsInTx(tx *sqlx.Tx, items []model.BoItem) (int, int, error) {
	created, updated := 0, 0
	for _, item := range items {
		var existing model.BoItem
		err := tx.Get(&existing, `
			SELECT id, pick_status, qty_fulfilled FROM bo_items
			WHERE go_item = ? AND part_number = ?`,
			item.GoItem, item.PartNumber)
		switch {
		case err == sql.ErrNoRows:
			_, err := tx.Exec(`
				INSERT INTO bo_items (
					go_item, oracle_ref, part_number, qty_req, qty_fulfilled,
					pick_status, flow_status, redcon_status
				) VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
				item.GoItem, item.OracleRef, item.PartNumber, item.QtyReq,
				model.PickNotStarted, item.FlowStatus, item.RedconStatus)
			if err != nil {
				return created, updated, fmt.Errorf("failed to insert BO item %s/%s: %w", item.GoItem, item.PartNumber, err)
			}
			created++
		case err != nil:
			return created, updated, fmt.Errorf("failed to check BO item %s/%s: %w", item.GoItem, item.PartNumber, err)
		default:
			fulfilled := existing.QtyFulfilled
			if fulfilled > item.QtyReq {
				fulfilled = item.QtyReq
			}
			_, err := tx.Exec(`
				UPDATE bo_items
				SET oracle_ref = ?, qty_req = ?, qty_fulfilled = ?,
				    flow_status = ?, redcon_status = ?
				WHERE id = ?`,
				item.OracleRef, item.QtyReq, fulfilled,
				item.FlowStatus, item.RedconStatus, existing.ID)
			if err != nil {
				return created, updated, fmt.Errorf("failed to update BO item %s/%s: %w", item.GoItem, item.PartNumber, err)
			}
			updated++
		}
	}
	return created, updated, nil
}

// ClearNonPickingBoItemsInTx is the pre-import cleanup: all rows not in an
// active picking state are dropped before the fresh report lands.
func ClearNonPickingBoItemsInTx(tx *sqlx.Tx) (int64, error) {
	res, err := tx.Exec(`DELETE FROM bo_items WHERE pick_status != ?`, model.PickPicking)
	if err != nil {
		return 0, fmt.Errorf("failed to clear non-picking BO items: %w", err)
	}
	return res.RowsAffected()
}

// ReconcilePickingBoItemsInTx is the post-import cleanup: picking rows
// whose (go_item, part_number) key no longer appears in the fresh report
// are stale and dropped.
func ReconcilePickingBoItemsInTx(tx *sqlx.Tx, activeKeys [][2]string) (int64, error) {
	if len(activeKeys) == 0 {
		res, err := tx.Exec(`DELETE FROM bo_items WHERE pick_status = ?`, model.PickPicking)
		if err != nil {
			return 0, fmt.Errorf("failed to clear stale picking BO items: %w", err)
		}
		return res.RowsAffected()
	}

	if _, err := tx.Exec(`
		CREATE TEMP TABLE IF NOT EXISTS active_bo_keys (
			go_item TEXT, part_number TEXT, PRIMARY KEY (go_item, part_number)
		)`); err != nil {
		return 0, fmt.Errorf("failed to create active key table: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM active_bo_keys`); err != nil {
		return 0, fmt.Errorf("failed to reset active key table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO active_bo_keys (go_item, part_number) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare active key insert: %w", err)
	}
	defer stmt.Close()
	for _, k := range activeKeys {
		if _, err := stmt.Exec(k[0], k[1]); err != nil {
			return 0, fmt.Errorf("failed to insert active key %s/%s: %w", k[0], k[1], err)
		}
	}

	res, err := tx.Exec(`
		DELETE FROM bo_items
		WHERE pick_status = ?
		  AND (go_item, part_number) NOT IN (SELECT go_item, part_number FROM active_bo_keys)`,
		model.PickPicking)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile picking BO items: %w", err)
	}
	return res.RowsAffected()
}

// NextUrgentGoItem returns the GO reference carrying the most urgent
// waiting demand (lowest redcon, then insertion order), or "" when
// nothing is waiting to be picked.
func NextUrgentGoItem(q DBTX) (string, error) {
	var goItem string
	err := q.Get(&goItem, `
		SELECT go_item FROM bo_items
		WHERE pick_status = ?
		ORDER BY redcon_status ASC, id ASC
		LIMIT 1`, model.PickNotStarted)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find next urgent GO item: %w", err)
	}
	return goItem, nil
}

// BoItemsForGoItem returns every line of one GO reference, whatever its
// pick status, for picklist generation.
func BoItemsForGoItem(q DBTX, goItem string) ([]model.BoItem, error) {
	var items []model.BoItem
	err := q.Select(&items, `
		SELECT id, go_item, oracle_ref, part_number, qty_req, qty_fulfilled,
		       pick_status, flow_status, redcon_status
		FROM bo_items
		WHERE go_item = ?
		ORDER BY id`, goItem)
	if err != nil {
		return nil, fmt.Errorf("failed to query BO lines for %s: %w", goItem, err)
	}
	return items, nil
}

// UpdateBoPickStatusInTx moves a set of BO lines to a new pick status.
func UpdateBoPickStatusInTx(tx *sqlx.Tx, ids []int64, status string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`UPDATE bo_items SET pick_status = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare pick status update: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.Exec(status, id); err != nil {
			return fmt.Errorf("failed to update pick status of %d: %w", id, err)
		}
	}
	return nil
}

// GoUrgency pairs a GO number (the go_item prefix before the dash) with
// the highest urgency among its lines.
type GoUrgency struct {
	GoNumber   string `db:"go_num" json:"goNumber"`
	TopUrgency int    `db:"top_urgency" json:"topUrgency"`
}

// UrgentGoNumbers lists GO numbers still carrying waiting lines, most
// urgent first.
func UrgentGoNumbers(q DBTX) ([]GoUrgency, error) {
	var out []GoUrgency
	err := q.Select(&out, `
		SELECT go_num, MIN(redcon_status) AS top_urgency
		FROM (
			SELECT SUBSTR(go_item, 1, INSTR(go_item, '-') - 1) AS go_num, redcon_status
			FROM bo_items
			WHERE pick_status = ?
		)
		GROUP BY go_num
		ORDER BY top_urgency ASC`, model.PickNotStarted)
	if err != nil {
		return nil, fmt.Errorf("failed to query urgent GO numbers: %w", err)
	}
	return out, nil
}

// InProgressGoNumbers lists GO numbers whose picklist is fully issued:
// lines in progress and none still waiting.
func InProgressGoNumbers(q DBTX) ([]GoUrgency, error) {
	var out []GoUrgency
	err := q.Select(&out, `
		SELECT go_num, MIN(redcon_status) AS top_urgency
		FROM (
			SELECT SUBSTR(go_item, 1, INSTR(go_item, '-') - 1) AS go_num, redcon_status
			FROM bo_items
			WHERE pick_status = ?
		)
		WHERE go_num NOT IN (
			SELECT SUBSTR(go_item, 1, INSTR(go_item, '-') - 1)
			FROM bo_items WHERE pick_status = ?
		)
		GROUP BY go_num
		ORDER BY top_urgency ASC`, model.PickInProgress, model.PickNotStarted)
	if err != nil {
		return nil, fmt.Errorf("failed to query in-progress GO numbers: %w", err)
	}
	return out, nil
}

// GoStatusSummary counts a GO number's lines per pick status.
func GoStatusSummary(q DBTX, goNumber string) (map[string]int, error) {
	rows, err := q.Query(`
		SELECT pick_status, COUNT(*) FROM bo_items
		WHERE go_item LIKE ?
		GROUP BY pick_status`, goNumber+"-%")
	if err != nil {
		return nil, fmt.Errorf("failed to summarize GO %s: %w", goNumber, err)
	}
	defer rows.Close()

	summary := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		summary[status] = n
	}
	return summary, rows.Err()
}

// InProgressLinesForGo returns a GO number's issued picklist lines that
// still have open quantity to record.
func InProgressLinesForGo(q DBTX, goNumber string) ([]model.BoItem, error) {
	var items []model.BoItem
	err := q.Select(&items, `
		SELECT id, go_item, oracle_ref, part_number, qty_req, qty_fulfilled,
		       pick_status, flow_status, redcon_status
		FROM bo_items
		WHERE go_item LIKE ?
		  AND pick_status = ?
		  AND qty_fulfilled < qty_req
		ORDER BY go_item, id`, goNumber+"-%", model.PickInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to query open picklist lines for GO %s: %w", goNumber, err)
	}
	return items, nil
}

// BoPick is one recorded pick quantity against a BO line.
type BoPick struct {
	ID  int64 `json:"id"`
	Qty int   `json:"qty"`
}

// BatchFulfillBoItemsInTx records picked quantities and promotes lines
// that reached their requirement to COMPLETED. Returns the completed ids.
func BatchFulfillBoItemsInTx(tx *sqlx.Tx, picks []BoPick) ([]int64, error) {
	for _, p := range picks {
		if err := IncrementBoFulfilledInTx(tx, p.ID, p.Qty); err != nil {
			return nil, err
		}
	}

	var completed []int64
	for _, p := range picks {
		var done int
		err := tx.Get(&done, `
			SELECT COUNT(*) FROM bo_items
			WHERE id = ? AND qty_fulfilled >= qty_req`, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check completion of %d: %w", p.ID, err)
		}
		if done > 0 {
			completed = append(completed, p.ID)
		}
	}
	if err := UpdateBoPickStatusInTx(tx, completed, model.PickCompleted); err != nil {
		return nil, err
	}
	return completed, nil
}

// ListBoItems returns the BO table for report regeneration, grouped by GO
// reference and urgency.
func ListBoItems(q DBTX) ([]model.BoItem, error) {
	var items []model.BoItem
	err := q.Select(&items, `
		SELECT id, go_item, oracle_ref, part_number, qty_req, qty_fulfilled,
		       pick_status, flow_status, redcon_status
		FROM bo_items
		ORDER BY redcon_status ASC, go_item, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list BO items: %w", err)
	}
	return items, nil
}
