package admin

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
)

// Change is one correction in an admin batch. Set and Delete are
// mutually exclusive.
type Change struct {
	Table  string                 `json:"table"`
	RowID  int64                  `json:"rowid"`
	Set    map[string]interface{} `json:"set,omitempty"`
	Delete bool                   `json:"delete,omitempty"`
}

// ListTablesHandler returns the table names available to the admin viewer.
func ListTablesHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := database.TableNames(db)
		if err != nil {
			http.Error(w, "Failed to list tables", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(names)
	}
}

// FetchTableHandler returns every row of one table for the admin viewer.
func FetchTableHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := r.URL.Query().Get("table")
		if table == "" {
			http.Error(w, "table is required", http.StatusBadRequest)
			return
		}
		cols, rows, err := database.FetchTableRows(db, table)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"columns": cols,
			"rows":    rows,
		})
	}
}

// ApplyChangesHandler commits a batch of manual corrections in a single
// transaction; any invalid change rolls back the entire batch.
func ApplyChangesHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Changes []Change `json:"changes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Changes) == 0 {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		tx, err := db.Beginx()
		if err != nil {
			http.Error(w, "Failed to start transaction", http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		for _, c := range payload.Changes {
			if c.Delete {
				err = database.DeleteTableRowInTx(tx, c.Table, c.RowID)
			} else {
				err = database.UpdateTableRowInTx(tx, c.Table, c.RowID, c.Set)
			}
			if err != nil {
				log.Warnw("admin change rejected", "table", c.Table, "rowid", c.RowID, "error", err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if err := tx.Commit(); err != nil {
			http.Error(w, "Failed to commit changes", http.StatusInternalServerError)
			return
		}

		log.Infow("admin changes applied", "count", len(payload.Changes))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"applied": len(payload.Changes)})
	}
}
