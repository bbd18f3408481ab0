package waybill

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
	"rtracker/model"
	"rtracker/parsers"
)

// ImportWaybillsHandler ingests a manifest XLSX export. A re-import of a
// waybill replaces its lines: the previous lines are retired and a fresh
// set is inserted under a new batch stamp, all in one transaction, so a
// concurrent scan sees either the old manifest or the new one.
func ImportWaybillsHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Failed to get file from form", http.StatusBadRequest)
			return
		}
		defer file.Close()

		lines, err := parsers.ParseWaybillXLSX(file)
		if err != nil {
			log.Errorw("waybill XLSX parse failed", "error", err)
			http.Error(w, "Failed to parse file: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(lines) == 0 {
			http.Error(w, "File contains no manifest lines", http.StatusBadRequest)
			return
		}

		batch := uuid.NewString()
		byWaybill := make(map[string][]model.WaybillLine)
		var order []string
		for i := range lines {
			lines[i].ImportBatch = batch
			wb := lines[i].WaybillNumber
			if _, seen := byWaybill[wb]; !seen {
				order = append(order, wb)
			}
			byWaybill[wb] = append(byWaybill[wb], lines[i])
		}

		tx, err := db.Beginx()
		if err != nil {
			http.Error(w, "Failed to start transaction", http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		var retired int64
		for _, wb := range order {
			n, err := database.DeactivateWaybillLinesInTx(tx, wb)
			if err != nil {
				http.Error(w, "Failed to retire previous lines", http.StatusInternalServerError)
				return
			}
			retired += n
			if err := database.InsertWaybillLinesInTx(tx, byWaybill[wb]); err != nil {
				http.Error(w, "Failed to insert manifest lines", http.StatusInternalServerError)
				return
			}
		}
		if err := tx.Commit(); err != nil {
			http.Error(w, "Failed to commit import", http.StatusInternalServerError)
			return
		}

		log.Infow("waybill manifest imported",
			"batch", batch, "waybills", len(order), "lines", len(lines), "retired", retired)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"batch":    batch,
			"waybills": len(order),
			"imported": len(lines),
			"retired":  retired,
		})
	}
}

// ListWaybillsHandler returns the waybills a session can target. An
// optional date query narrows to manifests shipped on that date.
func ListWaybillsHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waybills, err := database.ActiveWaybills(db, r.URL.Query().Get("date"))
		if err != nil {
			http.Error(w, "Failed to query waybills", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(waybills)
	}
}

// WaybillProgressHandler returns expected vs remaining totals for every
// active waybill, for the dispatch overview screen.
func WaybillProgressHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, err := database.WaybillProgressAll(db)
		if err != nil {
			http.Error(w, "Failed to derive waybill progress", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(progress)
	}
}

// TerminateWaybillHandler marks a waybill done regardless of remaining
// quantity. Terminated waybills disappear from session pickers but their
// scan history stays intact.
func TerminateWaybillHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Waybill string `json:"waybill"`
			UserID  int64  `json:"userId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Waybill == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := database.MarkWaybillTerminated(db, payload.Waybill, payload.UserID); err != nil {
			http.Error(w, "Failed to terminate waybill", http.StatusInternalServerError)
			return
		}
		log.Infow("waybill terminated", "waybill", payload.Waybill, "user", payload.UserID)
		w.WriteHeader(http.StatusNoContent)
	}
}
