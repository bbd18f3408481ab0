package scanner

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/allocation"
	"rtracker/bo"
	"rtracker/database"
	"rtracker/resolver"
	"rtracker/summary"
)

// scanError is the machine-readable rejection payload the scanner UI
// turns into its visual/audio cues.
type scanError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Placeable int    `json:"placeable,omitempty"`
}

// writeScanError maps the allocation taxonomy onto HTTP statuses. Every
// business-rule rejection is a 4xx so the UI can distinguish it from a
// storage failure, which must never look like a successful scan.
func writeScanError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	var (
		unresolved   *resolver.UnresolvedCodeError
		unknownPart  *allocation.UnknownPartError
		overScan     *allocation.OverScanError
		inconsistent *allocation.ManifestInconsistencyError
	)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.As(err, &unresolved):
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(scanError{Error: "unresolved_code", Message: err.Error()})
	case errors.As(err, &unknownPart):
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(scanError{Error: "unknown_part", Message: err.Error()})
	case errors.As(err, &overScan):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(scanError{Error: "over_scan", Message: err.Error(), Placeable: overScan.Placeable})
	case errors.As(err, &inconsistent):
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(scanError{Error: "manifest_empty", Message: err.Error()})
	default:
		log.Errorw("scan failed on storage", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(scanError{Error: "storage_failure", Message: "scan was not recorded"})
	}
}

// ProcessScanHandler handles one barcode scan end to end: resolve the
// code, allocate against the session's waybill, then link the committed
// quantity to open back-order demand.
func ProcessScanHandler(db *sqlx.DB, engine *allocation.Engine, res *resolver.Resolver, prop *bo.Propagator, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			SessionID int64  `json:"sessionId"`
			Code      string `json:"code"`
			Qty       int    `json:"qty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.SessionID == 0 || payload.Code == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		sess, err := database.GetSession(db, payload.SessionID)
		if err != nil {
			writeScanError(w, log, err)
			return
		}
		if sess == nil || !sess.Open() {
			http.Error(w, "Session is not open", http.StatusConflict)
			return
		}

		part, qty, err := res.Resolve(payload.Code)
		if err != nil {
			writeScanError(w, log, err)
			return
		}
		if payload.Qty > 0 {
			// Operator override of the default box quantity.
			qty = payload.Qty
		}

		result, err := engine.Allocate(r.Context(), sess, part, qty, payload.Code)
		if err != nil {
			writeScanError(w, log, err)
			return
		}

		// The scan is committed; BO linkage is best-effort from here on.
		applied, err := prop.Propagate(part, qty)
		if err != nil {
			log.Warnw("BO propagation failed", "part", part, "error", err)
		}

		progress, err := allocation.Progress(db, sess.WaybillNumber)
		if err != nil {
			log.Warnw("failed to derive progress after scan", "waybill", sess.WaybillNumber, "error", err)
			progress = nil
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":      result,
			"buckets":     result.Buckets(),
			"boFulfilled": applied,
			"progress":    progress,
		})
	}
}

// OpenSessionHandler starts a receiving session against a waybill. The
// waybill must have manifest lines and must not be terminated.
func OpenSessionHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			UserID  int64  `json:"userId"`
			Waybill string `json:"waybill"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.UserID == 0 || payload.Waybill == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		terminated, err := database.IsWaybillTerminated(db, payload.Waybill)
		if err != nil {
			http.Error(w, "Failed to check waybill", http.StatusInternalServerError)
			return
		}
		count := 0
		if !terminated {
			count, err = database.CountWaybillLines(db, payload.Waybill)
			if err != nil {
				http.Error(w, "Failed to check waybill", http.StatusInternalServerError)
				return
			}
		}
		if terminated || count == 0 {
			writeScanError(w, log, &allocation.ManifestInconsistencyError{WaybillNumber: payload.Waybill})
			return
		}

		sessionID, err := database.CreateSession(db, payload.UserID, payload.Waybill)
		if err != nil {
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		log.Infow("session opened", "session", sessionID, "user", payload.UserID, "waybill", payload.Waybill)

		manifest, err := allocation.LinesByPart(db, payload.Waybill)
		if err != nil {
			http.Error(w, "Failed to load manifest", http.StatusInternalServerError)
			return
		}
		progress, err := allocation.Progress(db, payload.Waybill)
		if err != nil {
			http.Error(w, "Failed to derive progress", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sessionId": sessionID,
			"manifest":  manifest,
			"progress":  progress,
		})
	}
}

// CloseSessionHandler ends a session ("mark palette done") and writes the
// durable summary snapshot.
func CloseSessionHandler(db *sqlx.DB, log *zap.SugaredLogger) http.HandlerFunc {
	builder := summary.NewBuilder(db, log)
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			SessionID int64 `json:"sessionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.SessionID == 0 {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		sess, err := database.GetSession(db, payload.SessionID)
		if err != nil {
			http.Error(w, "Failed to load session", http.StatusInternalServerError)
			return
		}
		if sess == nil {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}

		if err := database.EndSession(db, payload.SessionID); err != nil {
			http.Error(w, "Failed to close session", http.StatusInternalServerError)
			return
		}
		rows, err := builder.Build(payload.SessionID)
		if err != nil {
			http.Error(w, "Session closed but summary build failed", http.StatusInternalServerError)
			return
		}
		log.Infow("session closed", "session", payload.SessionID, "summaryRows", len(rows))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}

// CurrentSessionHandler returns the user's open session together with
// its replayed progress. Terminals call this after a restart to resume
// an interrupted session instead of opening a duplicate.
func CurrentSessionHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
		if err != nil || userID == 0 {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}
		sess, err := database.OpenSessionForUser(db, userID)
		if err != nil {
			http.Error(w, "Failed to look up session", http.StatusInternalServerError)
			return
		}
		if sess == nil {
			http.Error(w, "No open session", http.StatusNotFound)
			return
		}
		progress, err := allocation.Progress(db, sess.WaybillNumber)
		if err != nil {
			http.Error(w, "Failed to derive progress", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"session":  sess,
			"progress": progress,
		})
	}
}

// SessionEventsHandler serves a session's raw scan log for the audit
// view.
func SessionEventsHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := strconv.ParseInt(r.URL.Query().Get("sessionId"), 10, 64)
		if err != nil || sessionID == 0 {
			http.Error(w, "sessionId is required", http.StatusBadRequest)
			return
		}
		events, err := database.GetSessionEvents(db, sessionID)
		if err != nil {
			http.Error(w, "Failed to load session events", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	}
}

// ProgressHandler serves live per-line progress for a waybill, derived
// from the event log on every call.
func ProgressHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		waybill := r.URL.Query().Get("waybill")
		if waybill == "" {
			http.Error(w, "waybill is required", http.StatusBadRequest)
			return
		}
		progress, err := allocation.Progress(db, waybill)
		if err != nil {
			http.Error(w, "Failed to derive progress", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(progress)
	}
}
