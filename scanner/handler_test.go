package scanner

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rtracker/allocation"
	"rtracker/bo"
	"rtracker/database"
	"rtracker/loader"
	"rtracker/resolver"
)

type scanEnv struct {
	db   *sqlx.DB
	open http.HandlerFunc
	scan http.HandlerFunc
	end  http.HandlerFunc
}

func newScanEnv(t *testing.T) *scanEnv {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, loader.InitDatabase(db))

	log := zap.NewNop().Sugar()
	return &scanEnv{
		db:   db,
		open: OpenSessionHandler(db, log),
		scan: ProcessScanHandler(db, allocation.NewEngine(db, log), resolver.New(db, "", log), bo.NewPropagator(db, log), log),
		end:  CloseSessionHandler(db, log),
	}
}

func (env *scanEnv) post(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw)))
	return rec
}

func (env *scanEnv) seedLine(t *testing.T, waybill, part string, qty int, subinv string) {
	t.Helper()
	_, err := env.db.Exec(`
		INSERT INTO waybill_lines (
			waybill_number, part_number, qty_total, subinv, locator,
			description, item_cost, date, import_date, import_batch, active
		) VALUES (?, ?, ?, ?, '', '', '0', '2026-08-30', DATE('now'), 'test-batch', 1)`,
		waybill, part, qty, subinv)
	require.NoError(t, err)
}

func (env *scanEnv) openSession(t *testing.T, waybill string) int64 {
	t.Helper()
	userID, err := database.CreateUser(env.db, "tester", "secret", "shipper")
	require.NoError(t, err)
	rec := env.post(t, env.open, map[string]interface{}{"userId": userID, "waybill": waybill})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		SessionID int64 `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.SessionID
}

func TestScanFlow(t *testing.T) {
	env := newScanEnv(t)
	env.seedLine(t, "WB-1001", "ABC-123", 30, "DRV-AMO")
	env.seedLine(t, "WB-1001", "ABC-123", 50, "DRV-RM")
	sessionID := env.openSession(t, "WB-1001")

	rec := env.post(t, env.scan, map[string]interface{}{
		"sessionId": sessionID, "code": "ABC-123", "qty": 40,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Buckets map[string]int `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]int{"AMO": 30, "KANBAN": 10}, resp.Buckets)

	rec = env.post(t, env.end, map[string]interface{}{"sessionId": sessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A closed session accepts no further scans.
	rec = env.post(t, env.scan, map[string]interface{}{
		"sessionId": sessionID, "code": "ABC-123", "qty": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScanOverCapacityReturnsConflict(t *testing.T) {
	env := newScanEnv(t)
	env.seedLine(t, "WB-1001", "ABC-123", 10, "DRV-RM")
	sessionID := env.openSession(t, "WB-1001")

	rec := env.post(t, env.scan, map[string]interface{}{
		"sessionId": sessionID, "code": "ABC-123", "qty": 15,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Error     string `json:"error"`
		Placeable int    `json:"placeable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "over_scan", resp.Error)
	assert.Equal(t, 10, resp.Placeable)
}

func TestScanUnresolvedCode(t *testing.T) {
	env := newScanEnv(t)
	env.seedLine(t, "WB-1001", "ABC-123", 10, "DRV-RM")
	sessionID := env.openSession(t, "WB-1001")

	rec := env.post(t, env.scan, map[string]interface{}{
		"sessionId": sessionID, "code": "999999999",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unresolved_code", resp.Error)
}

func TestOpenSessionRejectsUnknownWaybill(t *testing.T) {
	env := newScanEnv(t)
	userID, err := database.CreateUser(env.db, "tester", "secret", "shipper")
	require.NoError(t, err)

	rec := env.post(t, env.open, map[string]interface{}{"userId": userID, "waybill": "WB-NOPE"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOpenSessionRejectsTerminatedWaybill(t *testing.T) {
	env := newScanEnv(t)
	env.seedLine(t, "WB-1001", "ABC-123", 10, "DRV-RM")
	require.NoError(t, database.MarkWaybillTerminated(env.db, "WB-1001", 1))
	userID, err := database.CreateUser(env.db, "tester", "secret", "shipper")
	require.NoError(t, err)

	rec := env.post(t, env.open, map[string]interface{}{"userId": userID, "waybill": "WB-1001"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScanLinksBackOrders(t *testing.T) {
	env := newScanEnv(t)
	env.seedLine(t, "WB-1001", "ABC-123", 30, "DRV-RM")
	_, err := env.db.Exec(`
		INSERT INTO bo_items (go_item, oracle_ref, part_number, qty_req, qty_fulfilled,
			pick_status, flow_status, redcon_status)
		VALUES ('GO-1', '', 'ABC-123', 10, 0, 'NOT_STARTED', '', 1)`)
	require.NoError(t, err)
	sessionID := env.openSession(t, "WB-1001")

	rec := env.post(t, env.scan, map[string]interface{}{
		"sessionId": sessionID, "code": "ABC-123", "qty": 25,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		BoFulfilled int `json:"boFulfilled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.BoFulfilled)
}
