package main

import (
	"net/http"
	"os/exec"
	"runtime"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"rtracker/config"
	"rtracker/loader"
	"rtracker/logger"
	"rtracker/scheduler"
)

func main() {
	// A .env file is optional; real environment variables still apply.
	_ = godotenv.Load()

	log := logger.Must(logger.New()).Sugar()
	defer log.Sync()

	if _, err := config.LoadConfig(); err != nil {
		log.Warnw("failed to load config file, using defaults", "error", err)
	}
	cfg := config.GetConfig()

	dbConn, err := sqlx.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatalw("db open error", "path", cfg.DBPath, "error", err)
	}
	defer dbConn.Close()

	if err := loader.InitDatabase(dbConn); err != nil {
		log.Fatalw("database initialization failed", "error", err)
	}
	log.Infow("database ready", "path", cfg.DBPath)

	if !cfg.SchedulerDisabled {
		sched := scheduler.New(dbConn, log)
		if err := sched.Start(); err != nil {
			log.Fatalw("scheduler start failed", "error", err)
		}
		defer sched.Stop()
	}

	mux := http.NewServeMux()
	SetupRoutes(mux, dbConn, log)

	if !cfg.DisableBrowserLaunch {
		openBrowser("http://localhost"+cfg.ListenAddr, log)
	}

	log.Infow("starting server", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalw("server start error", "error", err)
	}
}

func openBrowser(url string, log *zap.SugaredLogger) {
	var err error
	switch runtime.GOOS {
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = exec.Command("xdg-open", url).Start()
	}
	if err != nil {
		log.Warnw("failed to open browser", "error", err)
	}
}
