package summary

import (
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
	"rtracker/model"
)

// Builder recomputes durable scan summaries from the event log. The
// snapshot is derived state: rebuilding it at any time, any number of
// times, produces the same rows for the same events.
type Builder struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

func NewBuilder(db *sqlx.DB, log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{db: db, log: log}
}

// Build recomputes and overwrites the summary snapshot of one session.
// Parts present on the manifest but never scanned are included with zero
// progress so incomplete lines stay visible in exports.
func (b *Builder) Build(sessionID int64) ([]model.ScanSummary, error) {
	sess, err := database.GetSession(b.db, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %d not found", sessionID)
	}

	lines, err := database.GetWaybillLines(b.db, sess.WaybillNumber)
	if err != nil {
		return nil, err
	}
	totals, err := database.ScannedTotalsByPart(b.db, sessionID)
	if err != nil {
		return nil, err
	}
	buckets, err := database.SessionBucketAllocations(b.db, sessionID)
	if err != nil {
		return nil, err
	}

	expected := make(map[string]int)
	for _, l := range lines {
		expected[l.PartNumber] += l.QtyTotal
	}

	parts := make(map[string]bool)
	for p := range expected {
		parts[p] = true
	}
	for p := range totals {
		parts[p] = true
	}
	ordered := make([]string, 0, len(parts))
	for p := range parts {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	receptionDate, err := database.WaybillDate(b.db, sess.WaybillNumber)
	if err != nil {
		return nil, err
	}
	if receptionDate == "" && len(sess.StartTime) >= 10 {
		receptionDate = sess.StartTime[:10]
	}

	rows := make([]model.ScanSummary, 0, len(ordered))
	for _, part := range ordered {
		scanned := totals[part]
		remaining := expected[part] - scanned
		if remaining < 0 {
			remaining = 0
		}
		rows = append(rows, model.ScanSummary{
			SessionID:     sessionID,
			WaybillNumber: sess.WaybillNumber,
			UserID:        sess.UserID,
			PartNumber:    part,
			TotalScanned:  scanned,
			ExpectedQty:   expected[part],
			RemainingQty:  remaining,
			AllocatedTo:   formatBuckets(buckets[part]),
			ReceptionDate: receptionDate,
		})
	}

	tx, err := b.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin summary transaction: %w", err)
	}
	defer tx.Rollback()
	if err := database.ReplaceSessionSummariesInTx(tx, sessionID, rows); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit summary snapshot: %w", err)
	}

	b.log.Infow("scan summary rebuilt", "session", sessionID, "waybill", sess.WaybillNumber, "parts", len(rows))
	return rows, nil
}

// formatBuckets renders an allocation breakdown in fixed bucket order so
// repeated builds emit byte-identical strings.
func formatBuckets(alloc map[string]int) string {
	out := ""
	for _, bucket := range []string{model.BucketAMO, model.BucketKANBAN} {
		qty, ok := alloc[bucket]
		if !ok || qty == 0 {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%s:%d", bucket, qty)
	}
	return out
}
