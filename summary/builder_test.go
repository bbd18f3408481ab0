package summary

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtracker/allocation"
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

func seedScannedSession(t *testing.T, db *sqlx.DB) *model.ScanSession {
	t.Helper()
	seedLine(t, db, "WB-2001", "ABC-123", 30, "DRV-AMO")
	seedLine(t, db, "WB-2001", "ABC-123", 50, "DRV-RM")
	seedLine(t, db, "WB-2001", "DEF-456", 20, "DRV-RM")

	userID, err := database.CreateUser(db, "tester", "secret", "shipper")
	require.NoError(t, err)
	sessionID, err := database.CreateSession(db, userID, "WB-2001")
	require.NoError(t, err)
	sess, err := database.GetSession(db, sessionID)
	require.NoError(t, err)

	engine := allocation.NewEngine(db, nil)
	_, err = engine.Allocate(context.Background(), sess, "ABC-123", 40, "ABC-123")
	require.NoError(t, err)
	return sess
}

func TestBuildSummarizesPerPart(t *testing.T) {
	db := newTestDB(t)
	sess := seedScannedSession(t, db)

	rows, err := NewBuilder(db, nil).Build(sess.SessionID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	abc := rows[0]
	assert.Equal(t, "ABC-123", abc.PartNumber)
	assert.Equal(t, 40, abc.TotalScanned)
	assert.Equal(t, 80, abc.ExpectedQty)
	assert.Equal(t, 40, abc.RemainingQty)
	assert.Equal(t, "AMO:30, KANBAN:10", abc.AllocatedTo)
	assert.Equal(t, "2026-08-30", abc.ReceptionDate)

	// Unscanned manifest parts stay visible with zero progress.
	def := rows[1]
	assert.Equal(t, "DEF-456", def.PartNumber)
	assert.Equal(t, 0, def.TotalScanned)
	assert.Equal(t, 20, def.ExpectedQty)
	assert.Equal(t, 20, def.RemainingQty)
	assert.Equal(t, "", def.AllocatedTo)
}

func TestBuildIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	sess := seedScannedSession(t, db)
	builder := NewBuilder(db, nil)

	first, err := builder.Build(sess.SessionID)
	require.NoError(t, err)
	second, err := builder.Build(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := database.GetSessionSummaries(db, sess.SessionID)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "rebuild replaces rows instead of appending")

	out := RenderDelimited(toSummaryRows(t, db, sess), "\t")
	again := RenderDelimited(toSummaryRows(t, db, sess), "\t")
	assert.Equal(t, out, again, "repeated exports are byte-identical")
}

func toSummaryRows(t *testing.T, db *sqlx.DB, sess *model.ScanSession) []database.SummaryRow {
	t.Helper()
	rows, err := database.QueryScanSummary(db, database.SummaryFilter{Waybill: sess.WaybillNumber})
	require.NoError(t, err)
	return rows
}
