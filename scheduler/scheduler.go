package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"rtracker/bo"
	"rtracker/config"
	"rtracker/database"
	"rtracker/summary"
)

// Scheduler runs the periodic maintenance jobs: rebuilding summaries for
// sessions that are still open, and exporting the back-order report.
type Scheduler struct {
	cron    *cron.Cron
	db      *sqlx.DB
	builder *summary.Builder
	log     *zap.SugaredLogger
}

// New creates a scheduler. Jobs are registered on Start so a disabled
// scheduler costs nothing.
func New(db *sqlx.DB, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		db:      db,
		builder: summary.NewBuilder(db, log),
		log:     log,
	}
}

// Start registers the jobs from the current config and starts the cron
// loop. Schedules are standard 5-field cron expressions.
func (s *Scheduler) Start() error {
	cfg := config.GetConfig()

	if _, err := s.cron.AddFunc(cfg.SummaryRebuildExpr, s.rebuildOpenSessionSummaries); err != nil {
		return fmt.Errorf("failed to schedule summary rebuild: %w", err)
	}
	if _, err := s.cron.AddFunc(cfg.BoBatchExpr, s.exportBoReport); err != nil {
		return fmt.Errorf("failed to schedule BO report export: %w", err)
	}

	s.cron.Start()
	s.log.Infow("scheduler started",
		"summaryRebuild", cfg.SummaryRebuildExpr, "boBatch", cfg.BoBatchExpr)
	return nil
}

// Stop halts the cron loop. Running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Infow("scheduler stopped")
}

// rebuildOpenSessionSummaries refreshes the durable summary of every open
// session. The rebuild folds the event log, so running it repeatedly
// yields identical rows.
func (s *Scheduler) rebuildOpenSessionSummaries() {
	sessions, err := database.OpenSessions(s.db)
	if err != nil {
		s.log.Errorw("failed to list open sessions", "error", err)
		return
	}
	for _, sess := range sessions {
		if _, err := s.builder.Build(sess.SessionID); err != nil {
			s.log.Errorw("failed to rebuild session summary", "session", sess.SessionID, "error", err)
		}
	}
	if len(sessions) > 0 {
		s.log.Infow("open session summaries rebuilt", "sessions", len(sessions))
	}
}

// exportBoReport writes the current back-order table into the export
// folder and hands it to SFTP delivery when configured.
func (s *Scheduler) exportBoReport() {
	cfg := config.GetConfig()

	items, err := database.ListBoItems(s.db)
	if err != nil {
		s.log.Errorw("failed to query BO items", "error", err)
		return
	}
	data := bo.RenderReport(items, cfg.SummaryExportDelimiter)

	if err := os.MkdirAll(cfg.ExportFolderPath, 0755); err != nil {
		s.log.Errorw("failed to create export folder", "folder", cfg.ExportFolderPath, "error", err)
		return
	}
	name := fmt.Sprintf("bo_report_%s.txt", time.Now().Format("20060102_150405"))
	path := filepath.Join(cfg.ExportFolderPath, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.log.Errorw("failed to write BO report", "path", path, "error", err)
		return
	}

	if err := summary.DeliverSFTP(cfg.SFTP, name, data); err != nil {
		s.log.Warnw("BO report SFTP delivery failed", "file", name, "error", err)
	}
	s.log.Infow("BO report exported", "file", path, "items", len(items))
}
