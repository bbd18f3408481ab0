package allocation

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtracker/database"
	"rtracker/loader"
	"rtracker/model"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, loader.InitDatabase(db))
	return db
}

func seedLine(t *testing.T, db *sqlx.DB, waybill, part string, qty int, subinv string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO waybill_lines (
			waybill_number, part_number, qty_total, subinv, locator,
			description, item_cost, date, import_date, import_batch, active
		) VALUES (?, ?, ?, ?, '', '', '0', '2026-08-30', DATE('now'), 'test-batch', 1)`,
		waybill, part, qty, subinv)
	require.NoError(t, err)
}

func seedSession(t *testing.T, db *sqlx.DB, waybill string) *model.ScanSession {
	t.Helper()
	userID, err := database.CreateUser(db, "tester", "secret", "shipper")
	require.NoError(t, err)
	sessionID, err := database.CreateSession(db, userID, waybill)
	require.NoError(t, err)
	sess, err := database.GetSession(db, sessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	return sess
}

func TestAllocateFillsAMOBeforeKanban(t *testing.T) {
	db := newTestDB(t)
	seedLine(t, db, "WB-1001", "ABC-123", 30, "DRV-AMO")
	seedLine(t, db, "WB-1001", "ABC-123", 50, "DRV-RM")
	sess := seedSession(t, db, "WB-1001")
	engine := NewEngine(db, nil)

	result, err := engine.Allocate(context.Background(), sess, "ABC-123", 40, "ABC-123")
	require.NoError(t, err)

	assert.Equal(t, 40, result.ScannedQty)
	assert.Equal(t, map[string]int{"AMO": 30, "KANBAN": 10}, result.Buckets())
}

func TestAllocateSecondScanUsesRemainingCapacity(t *testing.T) {
	db := newTestDB(t)
	seedLine(t, db, "WB-1001", "ABC-123", 30, "DRV-AMO")
	seedLine(t, db, "WB-1001", "ABC-123", 50, "DRV-RM")
	sess := seedSession(t, db, "WB-1001")
	engine := NewEngine(db, nil)

	_, err := engine.Allocate(context.Background(), sess, "ABC-123", 40, "ABC-123")
	require.NoError(t, err)

	result, err := engine.Allocate(context.Background(), sess, "ABC-123", 40, "ABC-123")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"KANBAN": 40}, result.Buckets())
}

func TestAllocateRejectsOverScanWholly(t *testing.T) {
	db := newTestDB(t)
	seedLine(t, db, "WB-1001", "ABC-123", 30, "DRV-AMO")
	seedLine(t, db, "WB-1001", "ABC-123", 50, "DRV-RM")
	sess := seedSession(t, db, "WB-1001")
	engine := NewEngine(db, nil)

	_, err := engine.Allocate(context.Background(), sess, "ABC-123", 75, "ABC-123")
	require.NoError(t, err)

	// Only 5 units of capacity remain; a scan of 10 must not place even
	// a partial quantity.
	_, err = engine.Allocate(context.Background(), sess, "ABC-123", 10, "ABC-123")
	var overScan *OverScanError
	require.ErrorAs(t, err, &overScan)
	assert.Equal(t, 10, overScan.Requested)
	assert.Equal(t, 5, overScan.Placeable)

	events, err := database.GetSessionEvents(db, sess.SessionID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "a rejected scan must leave no trace in the event log")

	// The remaining capacity is still intact for a correctly sized scan.
	result, err := engine.Allocate(context.Background(), sess, "ABC-123", 5, "ABC-123")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"KANBAN": 5}, result.Buckets())
}

func TestAllocateUnknownPart(t *testing.T) {
	db := newTestDB(t)
	seedLine(t, db, "WB-1001", "ABC-123", 30, "DRV-AMO")
	sess := seedSession(t, db, "WB-1001")
	engine := NewEngine(db, nil)

	_, err := engine.Allocate(context.Background(), sess, "XYZ-999", 1, "XYZ-999")
	var unknown *UnknownPartError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "XYZ-999", unknown.PartNumber)
}

func TestAllocateEmptyManifest(t *testing.T) {
	db := newTestDB(t)
	sess := seedSession(t, db, "WB-EMPTY")
	engine := NewEngine(db, nil)

	_, err := engine.Allocate(context.Background(), sess, "ABC-123", 1, "ABC-123")
	var inconsistent *ManifestInconsistencyError
	require.ErrorAs(t, err, &inconsistent)
}

func TestAllocateTieBreakByInsertionOrder(t *testing.T) {
	db := newTestDB(t)
	seedLine(t, db, "WB-1001", "ABC-123", 10, "DRV-RM")
	seedLine(t, db, "WB-1001", "ABC-123", 10, "DRV-FLOOR")
	sess := seedSession(t, db, "WB-1001")
	engine := NewEngine(db, nil)

	result, err := engine.Allocate(context.Background(), sess, "ABC-123", 12, "ABC-123")
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, "DRV-RM", result.Allocations[0].Line.Subinv)
	assert.Equal(t, 10, result.Allocations[0].Qty)
	assert.Equal(t, "DRV-FLOOR", result.Allocations[1].Line.Subinv)
	assert.Equal(t, 2, result.Allocations[1].Qty)
}

func TestAllocateNeverExceedsLineCapacity(t *testing.T) {
	db := newTestDB(t)
	seedLine(t, db, "WB-1001", "ABC-123", 7, "DRV-AMO")
	seedLine(t, db, "WB-1001", "ABC-123", 13, "DRV-RM")
	seedLine(t, db, "WB-1001", "DEF-456", 5, "DRV-RM")
	sess := seedSession(t, db, "WB-1001")
	engine := NewEngine(db, nil)

	scans := []struct {
		part string
		qty  int
	}{
		{"ABC-123", 6}, {"DEF-456", 2}, {"ABC-123", 9}, {"DEF-456", 3}, {"ABC-123", 5},
	}
	for _, s := range scans {
		_, err := engine.Allocate(context.Background(), sess, s.part, s.qty, s.part)
		require.NoError(t, err)
	}

	lines, err := database.GetWaybillLines(db, "WB-1001")
	require.NoError(t, err)
	allocated, err := database.AllocatedByLine(db, "WB-1001")
	require.NoError(t, err)
	for _, l := range lines {
		assert.LessOrEqual(t, allocated[l.ID], l.QtyTotal,
			"line %d (%s) over capacity", l.ID, l.PartNumber)
	}
}

func TestProgressReplaysEventLog(t *testing.T) {
	db := newTestDB(t)
	seedLine(t, db, "WB-1001", "ABC-123", 30, "DRV-AMO")
	seedLine(t, db, "WB-1001", "ABC-123", 50, "DRV-RM")
	sess := seedSession(t, db, "WB-1001")
	engine := NewEngine(db, nil)

	_, err := engine.Allocate(context.Background(), sess, "ABC-123", 40, "ABC-123")
	require.NoError(t, err)

	progress, err := Progress(db, "WB-1001")
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, 30, progress[0].Scanned)
	assert.Equal(t, 0, progress[0].Remaining)
	assert.Equal(t, 10, progress[1].Scanned)
	assert.Equal(t, 40, progress[1].Remaining)
}

func TestOrderLines(t *testing.T) {
	amo := model.WaybillLine{ID: 2, Subinv: "DRV-AMO"}
	kanban1 := model.WaybillLine{ID: 1, Subinv: "DRV-RM"}
	kanban2 := model.WaybillLine{ID: 3, Subinv: "DRV-FLOOR"}

	ordered := OrderLines([]model.WaybillLine{kanban1, amo, kanban2})

	require.Len(t, ordered, 3)
	assert.Equal(t, int64(2), ordered[0].ID, "AMO line comes first")
	assert.Equal(t, int64(1), ordered[1].ID, "KANBAN ties keep input order")
	assert.Equal(t, int64(3), ordered[2].ID)
}
