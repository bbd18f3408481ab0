package bo

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
	"rtracker/model"
)

// NextPicklistHandler issues the next picklist: the GO reference with
// the most urgent waiting demand. Its waiting lines move to IN_PROGRESS
// in the same transaction, so an issued job does not come back.
func NextPicklistHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := db.Beginx()
		if err != nil {
			http.Error(w, "Failed to start transaction", http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		goItem, err := database.NextUrgentGoItem(tx)
		if err != nil {
			http.Error(w, "Failed to find next picklist", http.StatusInternalServerError)
			return
		}
		if goItem == "" {
			http.Error(w, "No back-order lines are waiting to be picked", http.StatusNotFound)
			return
		}

		lines, err := database.BoItemsForGoItem(tx, goItem)
		if err != nil {
			http.Error(w, "Failed to load picklist lines", http.StatusInternalServerError)
			return
		}
		var issued []int64
		for i, line := range lines {
			if line.PickStatus == model.PickNotStarted {
				issued = append(issued, line.ID)
				lines[i].PickStatus = model.PickInProgress
			}
		}
		if err := database.UpdateBoPickStatusInTx(tx, issued, model.PickInProgress); err != nil {
			http.Error(w, "Failed to issue picklist", http.StatusInternalServerError)
			return
		}
		if err := tx.Commit(); err != nil {
			http.Error(w, "Failed to commit picklist", http.StatusInternalServerError)
			return
		}

		log.Infow("picklist issued", "goItem", goItem, "lines", len(lines), "issued", len(issued))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"goItem": goItem,
			"lines":  lines,
		})
	}
}

// GoOverviewHandler serves the GO queue: numbers still waiting for a
// picklist, most urgent first, and numbers whose picklist is out.
func GoOverviewHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		urgent, err := database.UrgentGoNumbers(db)
		if err != nil {
			http.Error(w, "Failed to list urgent GO numbers", http.StatusInternalServerError)
			return
		}
		inProgress, err := database.InProgressGoNumbers(db)
		if err != nil {
			http.Error(w, "Failed to list in-progress GO numbers", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"urgent":     urgent,
			"inProgress": inProgress,
		})
	}
}

// GoStatusHandler serves one GO number's pick status counts together
// with its issued lines that still have quantity open to record.
func GoStatusHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		goNumber := r.URL.Query().Get("go")
		if goNumber == "" {
			http.Error(w, "go parameter is required", http.StatusBadRequest)
			return
		}
		summary, err := database.GoStatusSummary(db, goNumber)
		if err != nil {
			http.Error(w, "Failed to summarize GO number", http.StatusInternalServerError)
			return
		}
		open, err := database.InProgressLinesForGo(db, goNumber)
		if err != nil {
			http.Error(w, "Failed to load open picklist lines", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"goNumber":  goNumber,
			"statuses":  summary,
			"openLines": open,
		})
	}
}

// FulfillPicklistHandler records picked quantities reported back from
// the floor. Lines that reach their requirement flip to COMPLETED, the
// rest stay IN_PROGRESS for a later pass.
func FulfillPicklistHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Picks []database.BoPick `json:"picks"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
		if len(payload.Picks) == 0 {
			http.Error(w, "At least one pick is required", http.StatusBadRequest)
			return
		}
		for _, p := range payload.Picks {
			if p.Qty < 0 {
				http.Error(w, "Picked quantity cannot be negative", http.StatusBadRequest)
				return
			}
		}

		tx, err := db.Beginx()
		if err != nil {
			http.Error(w, "Failed to start transaction", http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		completed, err := database.BatchFulfillBoItemsInTx(tx, payload.Picks)
		if err != nil {
			http.Error(w, "Failed to record picked quantities", http.StatusInternalServerError)
			return
		}
		if err := tx.Commit(); err != nil {
			http.Error(w, "Failed to commit fulfillment", http.StatusInternalServerError)
			return
		}

		log.Infow("picklist fulfillment recorded", "picks", len(payload.Picks), "completed", len(completed))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"recorded":  len(payload.Picks),
			"completed": completed,
		})
	}
}
