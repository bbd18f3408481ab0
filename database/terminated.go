package database

import (
	"fmt"
	"time"
)

// MarkWaybillTerminated records a manual close of a waybill. Terminated
// waybills disappear from the active pickers but their history stays.
func MarkWaybillTerminated(q DBTX, waybill string, userID int64) error {
	_, err := q.Exec(`
		INSERT OR REPLACE INTO terminated_waybills (waybill_number, terminated_at, user_id)
		VALUES (?, ?, ?)`,
		waybill, time.Now().Format(time.RFC3339), userID)
	if err != nil {
		return fmt.Errorf("failed to terminate waybill %s: %w", waybill, err)
	}
	return nil
}

// IsWaybillTerminated reports whether a waybill was manually closed.
func IsWaybillTerminated(q DBTX, waybill string) (bool, error) {
	var n int
	err := q.Get(&n, `
		SELECT COUNT(*) FROM terminated_waybills
		WHERE UPPER(waybill_number) = UPPER(?)`, waybill)
	if err != nil {
		return false, fmt.Errorf("failed to check termination of %s: %w", waybill, err)
	}
	return n > 0, nil
}
