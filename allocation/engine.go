package allocation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
	"rtracker/model"
)

// Engine distributes scanned quantities across a waybill's manifest lines
// and appends the resulting scan events. It is the sole writer of
// scan_events; every capacity figure it uses is re-derived from the event
// log inside the same transaction, so a crash between scans can never
// leave a stale counter behind.
type Engine struct {
	db  *sqlx.DB
	log *zap.SugaredLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(db *sqlx.DB, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{db: db, log: log, locks: make(map[string]*sync.Mutex)}
}

// waybillLock serializes allocate calls per waybill. One scanner is the
// normal case, but admin corrections may touch the same event set
// concurrently and the capacity invariant must hold regardless.
func (e *Engine) waybillLock(waybill string) *sync.Mutex {
	key := strings.ToUpper(waybill)
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// OrderLines returns candidate lines in allocation priority order: AMO
// bucket before KANBAN, ties within a bucket broken by manifest insertion
// order. The sort is stable over the id-ordered input.
func OrderLines(lines []model.WaybillLine) []model.WaybillLine {
	ordered := make([]model.WaybillLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		bi, bj := ordered[i].Bucket(), ordered[j].Bucket()
		if bi != bj {
			return bi == model.BucketAMO
		}
		return false
	})
	return ordered
}

// Allocate places qty of part against the session's waybill, appending a
// single scan event with the full per-line breakdown, or fails without
// writing anything. All-or-nothing: a quantity that cannot be placed in
// full is rejected as a whole so no partial state enters the log.
func (e *Engine) Allocate(ctx context.Context, sess *model.ScanSession, part string, qty int, raw string) (*model.AllocationResult, error) {
	if qty < 1 {
		return nil, fmt.Errorf("scanned quantity must be at least 1, got %d", qty)
	}
	part = strings.ToUpper(strings.TrimSpace(part))
	waybill := sess.WaybillNumber

	lock := e.waybillLock(waybill)
	lock.Lock()
	defer lock.Unlock()

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin allocation transaction: %w", err)
	}
	defer tx.Rollback()

	lines, err := database.GetWaybillLinesForPart(tx, waybill, part)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		total, err := database.CountWaybillLines(tx, waybill)
		if err != nil {
			return nil, err
		}
		if total == 0 {
			return nil, &ManifestInconsistencyError{WaybillNumber: waybill}
		}
		return nil, &UnknownPartError{WaybillNumber: waybill, PartNumber: part}
	}

	allocated, err := database.AllocatedByLine(tx, waybill)
	if err != nil {
		return nil, err
	}

	// Greedy consume in priority order. Everything below is staged in
	// memory; nothing touches the log until the full quantity fits.
	remaining := qty
	var allocs []model.LineAllocation
	for _, line := range OrderLines(lines) {
		if remaining == 0 {
			break
		}
		capacity := line.QtyTotal - allocated[line.ID]
		if capacity <= 0 {
			continue
		}
		take := capacity
		if remaining < take {
			take = remaining
		}
		allocs = append(allocs, model.LineAllocation{Line: line, Qty: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, &OverScanError{PartNumber: part, Requested: qty, Placeable: qty - remaining}
	}

	result := &model.AllocationResult{
		PartNumber:  part,
		ScannedQty:  qty,
		Allocations: allocs,
	}
	details, err := json.Marshal(result.Buckets())
	if err != nil {
		return nil, fmt.Errorf("failed to encode allocation details: %w", err)
	}

	eventLines := make([]model.ScanEventLine, 0, len(allocs))
	for _, a := range allocs {
		eventLines = append(eventLines, model.ScanEventLine{LineID: a.Line.ID, Qty: a.Qty})
	}
	eventID, err := database.InsertScanEventInTx(tx, model.ScanEvent{
		SessionID:         sess.SessionID,
		WaybillNumber:     waybill,
		PartNumber:        part,
		ScannedQty:        qty,
		Timestamp:         time.Now().Format(time.RFC3339),
		RawScan:           raw,
		AllocationDetails: string(details),
	}, eventLines)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit scan event: %w", err)
	}

	result.EventID = eventID
	e.log.Infow("scan allocated",
		"waybill", waybill, "part", part, "qty", qty, "event", eventID, "buckets", result.Buckets())
	return result, nil
}
