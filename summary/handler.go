package summary

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/config"
	"rtracker/database"
)

func filterFromQuery(r *http.Request) database.SummaryFilter {
	f := database.SummaryFilter{
		Date:    r.URL.Query().Get("date"),
		Waybill: r.URL.Query().Get("waybill"),
	}
	if v := r.URL.Query().Get("userId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.UserID = id
		}
	}
	return f
}

// QuerySummaryHandler serves the summary browser grid.
func QuerySummaryHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := database.QueryScanSummary(db, filterFromQuery(r))
		if err != nil {
			http.Error(w, "Failed to query scan summary", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}

// RebuildSummaryHandler recomputes one session's snapshot on demand. Safe
// to call at any time; it only overwrites derived rows.
func RebuildSummaryHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	builder := NewBuilder(db, log)
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			SessionID int64 `json:"sessionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.SessionID == 0 {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		rows, err := builder.Build(payload.SessionID)
		if err != nil {
			http.Error(w, "Failed to rebuild summary", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}

// ExportSummaryHandler writes the filtered summary as delimited text into
// the export folder and, when configured, ships it to the SFTP drop.
func ExportSummaryHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := database.QueryScanSummary(db, filterFromQuery(r))
		if err != nil {
			http.Error(w, "Failed to query scan summary", http.StatusInternalServerError)
			return
		}

		cfg := config.GetConfig()
		data := RenderDelimited(rows, cfg.SummaryExportDelimiter)
		path, err := WriteExportFile(cfg.ExportFolderPath, data)
		if err != nil {
			log.Errorw("summary export failed", "error", err)
			http.Error(w, "Failed to write export file", http.StatusInternalServerError)
			return
		}

		delivered := false
		if cfg.SFTP.Host != "" {
			if err := DeliverSFTP(cfg.SFTP, filepath.Base(path), data); err != nil {
				// Local export succeeded; delivery is best-effort.
				log.Warnw("SFTP delivery failed", "file", path, "error", err)
			} else {
				delivered = true
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"file":      path,
			"rows":      len(rows),
			"delivered": delivered,
		})
	}
}
