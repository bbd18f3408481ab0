package partid

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
	"rtracker/parsers"
)

// ImportPartIdentifiersHandler replaces the UPC catalog from a CSV
// upload. The catalog is a full snapshot, so the import clears the table
// and reloads it in one transaction.
func ImportPartIdentifiersHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Failed to get file from form", http.StatusBadRequest)
			return
		}
		defer file.Close()

		rows, err := parsers.ParsePartIdentifierCSV(file)
		if err != nil {
			log.Errorw("part identifier CSV parse failed", "error", err)
			http.Error(w, "Failed to parse file: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(rows) == 0 {
			http.Error(w, "File contains no part identifiers", http.StatusBadRequest)
			return
		}

		tx, err := db.Beginx()
		if err != nil {
			http.Error(w, "Failed to start transaction", http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		n, err := database.ReplacePartIdentifiersInTx(tx, rows)
		if err != nil {
			http.Error(w, "Failed to replace part identifiers", http.StatusInternalServerError)
			return
		}
		if err := tx.Commit(); err != nil {
			http.Error(w, "Failed to commit import", http.StatusInternalServerError)
			return
		}

		log.Infow("part identifier catalog replaced", "rows", n)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"imported": n})
	}
}

// ListPartIdentifiersHandler returns the current UPC catalog.
func ListPartIdentifiersHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := database.ListPartIdentifiers(db)
		if err != nil {
			http.Error(w, "Failed to query part identifiers", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}
