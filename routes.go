package main

import (
	"encoding/json"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/admin"
	"rtracker/allocation"
	"rtracker/bo"
	"rtracker/config"
	"rtracker/partid"
	"rtracker/resolver"
	"rtracker/scanner"
	"rtracker/summary"
	"rtracker/users"
	"rtracker/waybill"
)

func SetupRoutes(mux *http.ServeMux, dbConn *sqlx.DB, log *zap.SugaredLogger) {
	cfg := config.GetConfig()
	engine := allocation.NewEngine(dbConn, log)
	res := resolver.New(dbConn, cfg.FallbackUPCPath, log)
	prop := bo.NewPropagator(dbConn, log)

	mux.HandleFunc("/api/users", users.ListUsersHandler(dbConn))
	mux.HandleFunc("/api/users/create", users.CreateUserHandler(dbConn, log))

	mux.HandleFunc("/api/waybills/import", waybill.ImportWaybillsHandler(dbConn, log))
	mux.HandleFunc("/api/waybills", waybill.ListWaybillsHandler(dbConn))
	mux.HandleFunc("/api/waybills/progress", waybill.WaybillProgressHandler(dbConn))
	mux.HandleFunc("/api/waybills/terminate", waybill.TerminateWaybillHandler(dbConn, log))

	mux.HandleFunc("/api/partids/import", partid.ImportPartIdentifiersHandler(dbConn, log))
	mux.HandleFunc("/api/partids", partid.ListPartIdentifiersHandler(dbConn))

	mux.HandleFunc("/api/sessions/open", scanner.OpenSessionHandler(dbConn, log))
	mux.HandleFunc("/api/sessions/close", scanner.CloseSessionHandler(dbConn, log))
	mux.HandleFunc("/api/sessions/current", scanner.CurrentSessionHandler(dbConn))
	mux.HandleFunc("/api/sessions/events", scanner.SessionEventsHandler(dbConn))
	mux.HandleFunc("/api/scan", scanner.ProcessScanHandler(dbConn, engine, res, prop, log))
	mux.HandleFunc("/api/scan/progress", scanner.ProgressHandler(dbConn))

	mux.HandleFunc("/api/summary", summary.QuerySummaryHandler(dbConn))
	mux.HandleFunc("/api/summary/rebuild", summary.RebuildSummaryHandler(dbConn, log))
	mux.HandleFunc("/api/summary/export", summary.ExportSummaryHandler(dbConn, log))

	mux.HandleFunc("/api/bo/import", bo.ImportBoHandler(dbConn, log))
	mux.HandleFunc("/api/bo", bo.ListBoItemsHandler(dbConn))
	mux.HandleFunc("/api/bo/picklist/next", bo.NextPicklistHandler(dbConn, log))
	mux.HandleFunc("/api/bo/picklist/fulfill", bo.FulfillPicklistHandler(dbConn, log))
	mux.HandleFunc("/api/bo/go", bo.GoOverviewHandler(dbConn))
	mux.HandleFunc("/api/bo/go/status", bo.GoStatusHandler(dbConn))

	mux.HandleFunc("/api/admin/tables", admin.ListTablesHandler(dbConn))
	mux.HandleFunc("/api/admin/rows", admin.FetchTableHandler(dbConn))
	mux.HandleFunc("/api/admin/apply", admin.ApplyChangesHandler(dbConn, log))

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(config.GetConfig())
		case http.MethodPost:
			var newCfg config.Config
			if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if err := config.SaveConfig(newCfg); err != nil {
				http.Error(w, "Failed to save config", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
