package bo

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
)

// Propagator links committed receiving allocations to outstanding
// back-order demand. The receiving flow has already completed when it
// runs, so lookup misses are logged no-ops and never surface to the
// shipper.
type Propagator struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

func NewPropagator(db *sqlx.DB, log *zap.SugaredLogger) *Propagator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Propagator{db: db, log: log}
}

// Propagate distributes a received quantity across the part's open BO
// lines, most urgent first (lowest redcon, then insertion order), each
// line capped at its remaining requirement. Returns how much demand was
// fulfilled; the rest of the quantity is plain stock and needs no BO
// linkage.
func (p *Propagator) Propagate(part string, qty int) (int, error) {
	if qty < 1 {
		return 0, nil
	}

	tx, err := p.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin BO propagation: %w", err)
	}
	defer tx.Rollback()

	items, err := database.OpenBoLinesInTx(tx, part)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		p.log.Infow("no open BO demand for part", "part", part)
		return 0, nil
	}

	remaining := qty
	applied := 0
	for _, item := range items {
		if remaining == 0 {
			break
		}
		take := item.RemainingReq()
		if take == 0 {
			continue
		}
		if remaining < take {
			take = remaining
		}
		if err := database.IncrementBoFulfilledInTx(tx, item.ID, take); err != nil {
			return 0, err
		}
		remaining -= take
		applied += take
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit BO propagation: %w", err)
	}
	if applied > 0 {
		p.log.Infow("BO demand fulfilled", "part", part, "applied", applied, "received", qty)
	}
	return applied, nil
}
