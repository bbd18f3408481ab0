package bo

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rtracker/database"
	"rtracker/model"
)

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw)))
	return rec
}

func pickStatusOf(t *testing.T, db *sqlx.DB, id int64) string {
	t.Helper()
	var status string
	require.NoError(t, db.Get(&status, `SELECT pick_status FROM bo_items WHERE id = ?`, id))
	return status
}

func TestNextPicklistIssuesMostUrgentGo(t *testing.T) {
	db := newTestDB(t)
	log := zap.NewNop().Sugar()
	later := seedBoItem(t, db, "GO100-1", "ABC-123", 10, 0, 3, model.PickNotStarted)
	urgentA := seedBoItem(t, db, "GO200-1", "ABC-123", 5, 0, 1, model.PickNotStarted)
	urgentB := seedBoItem(t, db, "GO200-1", "DEF-456", 8, 0, 1, model.PickNotStarted)

	rec := postJSON(t, NextPicklistHandler(db, log), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		GoItem string         `json:"goItem"`
		Lines  []model.BoItem `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "GO200-1", resp.GoItem, "lowest redcon wins")
	require.Len(t, resp.Lines, 2)
	assert.Equal(t, model.PickInProgress, resp.Lines[0].PickStatus)

	assert.Equal(t, model.PickInProgress, pickStatusOf(t, db, urgentA))
	assert.Equal(t, model.PickInProgress, pickStatusOf(t, db, urgentB))
	assert.Equal(t, model.PickNotStarted, pickStatusOf(t, db, later), "other jobs stay queued")
}

func TestNextPicklistAdvancesAfterIssue(t *testing.T) {
	db := newTestDB(t)
	log := zap.NewNop().Sugar()
	seedBoItem(t, db, "GO200-1", "ABC-123", 5, 0, 1, model.PickNotStarted)
	seedBoItem(t, db, "GO100-1", "DEF-456", 10, 0, 3, model.PickNotStarted)

	h := NextPicklistHandler(db, log)
	first := postJSON(t, h, nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := postJSON(t, h, nil)
	require.Equal(t, http.StatusOK, second.Code)

	var resp struct {
		GoItem string `json:"goItem"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "GO100-1", resp.GoItem, "issued jobs do not come back")

	third := postJSON(t, h, nil)
	assert.Equal(t, http.StatusNotFound, third.Code, "queue drained")
}

func TestFulfillPicklistCompletesFullLines(t *testing.T) {
	db := newTestDB(t)
	log := zap.NewNop().Sugar()
	full := seedBoItem(t, db, "GO200-1", "ABC-123", 5, 0, 1, model.PickInProgress)
	partial := seedBoItem(t, db, "GO200-1", "DEF-456", 8, 2, 1, model.PickInProgress)

	rec := postJSON(t, FulfillPicklistHandler(db, log), map[string]interface{}{
		"picks": []database.BoPick{
			{ID: full, Qty: 5},
			{ID: partial, Qty: 3},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Recorded  int     `json:"recorded"`
		Completed []int64 `json:"completed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Recorded)
	assert.Equal(t, []int64{full}, resp.Completed)

	assert.Equal(t, model.PickCompleted, pickStatusOf(t, db, full))
	assert.Equal(t, 5, fulfilledOf(t, db, full))
	assert.Equal(t, model.PickInProgress, pickStatusOf(t, db, partial), "short pick stays open")
	assert.Equal(t, 5, fulfilledOf(t, db, partial))
}

func TestFulfillPicklistRejectsNegativeQty(t *testing.T) {
	db := newTestDB(t)
	log := zap.NewNop().Sugar()
	id := seedBoItem(t, db, "GO200-1", "ABC-123", 5, 0, 1, model.PickInProgress)

	rec := postJSON(t, FulfillPicklistHandler(db, log), map[string]interface{}{
		"picks": []database.BoPick{{ID: id, Qty: -1}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, fulfilledOf(t, db, id))
}

func TestGoOverviewSplitsQueuedAndIssued(t *testing.T) {
	db := newTestDB(t)
	seedBoItem(t, db, "GO100-1", "ABC-123", 10, 0, 3, model.PickNotStarted)
	seedBoItem(t, db, "GO200-1", "ABC-123", 5, 0, 1, model.PickNotStarted)
	// GO300 is fully issued, GO400 has a line still waiting so it is not
	// reported as in progress.
	seedBoItem(t, db, "GO300-1", "DEF-456", 8, 0, 2, model.PickInProgress)
	seedBoItem(t, db, "GO400-1", "DEF-456", 8, 0, 2, model.PickInProgress)
	seedBoItem(t, db, "GO400-2", "GHI-789", 4, 0, 4, model.PickNotStarted)

	rec := httptest.NewRecorder()
	GoOverviewHandler(db)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Urgent     []database.GoUrgency `json:"urgent"`
		InProgress []database.GoUrgency `json:"inProgress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Urgent, 3)
	assert.Equal(t, "GO200", resp.Urgent[0].GoNumber, "most urgent first")
	assert.Equal(t, 1, resp.Urgent[0].TopUrgency)

	require.Len(t, resp.InProgress, 1)
	assert.Equal(t, "GO300", resp.InProgress[0].GoNumber)
}

func TestGoStatusSummaryAndOpenLines(t *testing.T) {
	db := newTestDB(t)
	seedBoItem(t, db, "GO200-1", "ABC-123", 5, 5, 1, model.PickCompleted)
	open := seedBoItem(t, db, "GO200-2", "DEF-456", 8, 2, 1, model.PickInProgress)
	seedBoItem(t, db, "GO200-3", "GHI-789", 4, 0, 2, model.PickNotStarted)
	seedBoItem(t, db, "GO900-1", "ABC-123", 9, 0, 1, model.PickNotStarted)

	rec := httptest.NewRecorder()
	GoStatusHandler(db)(rec, httptest.NewRequest(http.MethodGet, "/?go=GO200", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		GoNumber  string         `json:"goNumber"`
		Statuses  map[string]int `json:"statuses"`
		OpenLines []model.BoItem `json:"openLines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]int{
		model.PickCompleted:  1,
		model.PickInProgress: 1,
		model.PickNotStarted: 1,
	}, resp.Statuses, "other GO numbers do not leak in")
	require.Len(t, resp.OpenLines, 1)
	assert.Equal(t, open, resp.OpenLines[0].ID)
}
