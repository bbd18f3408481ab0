package bo

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
)

// ImportBoHandler ingests a fresh BO report workbook. The refresh keeps
// fulfillment progress: existing rows retain qty_fulfilled and
// pick_status, rows mid-pick survive unless they vanished from the
// report, everything else is replaced.
func ImportBoHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "BO report file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		items, err := parseBoFile(file)
		if err != nil {
			log.Warnw("BO report parse failed", "error", err)
			http.Error(w, "Failed to parse BO report: "+err.Error(), http.StatusBadRequest)
			return
		}

		tx, err := db.Beginx()
		if err != nil {
			http.Error(w, "Failed to start transaction", http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		cleared, err := database.ClearNonPickingBoItemsInTx(tx)
		if err != nil {
			http.Error(w, "Failed to clear stale BO items", http.StatusInternalServerError)
			return
		}
		created, updated, err := database.UpsertBoItemsInTx(tx, items)
		if err != nil {
			http.Error(w, "Failed to load BO items", http.StatusInternalServerError)
			return
		}
		activeKeys := make([][2]string, 0, len(items))
		for _, it := range items {
			activeKeys = append(activeKeys, [2]string{it.GoItem, it.PartNumber})
		}
		stale, err := database.ReconcilePickingBoItemsInTx(tx, activeKeys)
		if err != nil {
			http.Error(w, "Failed to reconcile picking BO items", http.StatusInternalServerError)
			return
		}
		if err := tx.Commit(); err != nil {
			http.Error(w, "Failed to commit BO import", http.StatusInternalServerError)
			return
		}

		log.Infow("BO report imported", "created", created, "updated", updated, "cleared", cleared, "stalePicking", stale)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{
			"created":      int64(created),
			"updated":      int64(updated),
			"cleared":      cleared,
			"stalePicking": stale,
		})
	}
}

// ListBoItemsHandler serves the BO fulfillment grid.
func ListBoItemsHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListBoItems(db)
		if err != nil {
			http.Error(w, "Failed to list BO items", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	}
}
