package model

// Pick statuses of a back-order item. Imports never clobber a line that a
// picker is actively working on.
const (
	PickNotStarted = "NOT_STARTED"
	PickInProgress = "IN_PROGRESS"
	PickPicking    = "PICKING"
	PickCompleted  = "COMPLETED"
)

// BoItem is outstanding back-order demand for a part, tied to a job/GO
// reference. QtyFulfilled is advanced by the propagator as receiving
// allocations land; it never exceeds QtyReq.
type BoItem struct {
	ID           int64  `db:"id" json:"id"`
	GoItem       string `db:"go_item" json:"goItem"`
	OracleRef    string `db:"oracle_ref" json:"oracleRef,omitempty"`
	PartNumber   string `db:"part_number" json:"partNumber"`
	QtyReq       int    `db:"qty_req" json:"qtyReq"`
	QtyFulfilled int    `db:"qty_fulfilled" json:"qtyFulfilled"`
	PickStatus   string `db:"pick_status" json:"pickStatus"`
	FlowStatus   string `db:"flow_status" json:"flowStatus,omitempty"`
	RedconStatus int    `db:"redcon_status" json:"redconStatus"`
}

// RemainingReq returns the unfulfilled demand on this line.
func (b BoItem) RemainingReq() int {
	if r := b.QtyReq - b.QtyFulfilled; r > 0 {
		return r
	}
	return 0
}
