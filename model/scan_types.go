package model

// ScanSession is one continuous receiving work period by one user against
// one waybill. EndTime stays empty while the session is open; a session
// interrupted by a crash keeps its empty EndTime and its progress is
// recovered by replaying scan events.
type ScanSession struct {
	SessionID     int64   `db:"session_id" json:"sessionId"`
	UserID        int64   `db:"user_id" json:"userId"`
	WaybillNumber string  `db:"waybill_number" json:"waybillNumber"`
	StartTime     string  `db:"start_time" json:"startTime"`
	EndTime       *string `db:"end_time" json:"endTime,omitempty"`
}

// Open reports whether the session has not been closed yet.
func (s ScanSession) Open() bool {
	return s.EndTime == nil || *s.EndTime == ""
}

// ScanEvent is one committed scan. Events are append-only and are the log
// of record: all progress figures are derived by summing them, never from
// cached counters.
type ScanEvent struct {
	EventID           int64  `db:"event_id" json:"eventId"`
	SessionID         int64  `db:"session_id" json:"sessionId"`
	WaybillNumber     string `db:"waybill_number" json:"waybillNumber"`
	PartNumber        string `db:"part_number" json:"partNumber"`
	ScannedQty        int    `db:"scanned_qty" json:"scannedQty"`
	Timestamp         string `db:"timestamp" json:"timestamp"`
	RawScan           string `db:"raw_scan" json:"rawScan"`
	AllocationDetails string `db:"allocation_details" json:"allocationDetails"`
}

// ScanEventLine is the per-manifest-line breakdown of one scan event.
// The sum of qty over an event's lines always equals the event's
// scanned quantity.
type ScanEventLine struct {
	ID      int64 `db:"id" json:"id"`
	EventID int64 `db:"event_id" json:"eventId"`
	LineID  int64 `db:"line_id" json:"lineId"`
	Qty     int   `db:"qty" json:"qty"`
}

// LineAllocation is one (manifest line, quantity applied) pair of an
// allocation result.
type LineAllocation struct {
	Line WaybillLine `json:"line"`
	Qty  int         `json:"qty"`
}

// AllocationResult is the outcome of a successful allocate call: the
// ordered per-line consumption that satisfied the scan in full.
type AllocationResult struct {
	EventID     int64            `json:"eventId"`
	PartNumber  string           `json:"partNumber"`
	ScannedQty  int              `json:"scannedQty"`
	Allocations []LineAllocation `json:"allocations"`
}

// Buckets aggregates the result per inventory bucket.
func (r AllocationResult) Buckets() map[string]int {
	out := make(map[string]int)
	for _, a := range r.Allocations {
		out[a.Line.Bucket()] += a.Qty
	}
	return out
}

// ScanSummary is the durable snapshot written per (session, part) at
// session close. It is recomputable from scan events at any time and is
// overwritten wholesale on rebuild.
type ScanSummary struct {
	ID            int64  `db:"id" json:"id"`
	SessionID     int64  `db:"session_id" json:"sessionId"`
	WaybillNumber string `db:"waybill_number" json:"waybillNumber"`
	UserID        int64  `db:"user_id" json:"userId"`
	PartNumber    string `db:"part_number" json:"partNumber"`
	TotalScanned  int    `db:"total_scanned" json:"totalScanned"`
	ExpectedQty   int    `db:"expected_qty" json:"expectedQty"`
	RemainingQty  int    `db:"remaining_qty" json:"remainingQty"`
	AllocatedTo   string `db:"allocated_to" json:"allocatedTo"`
	ReceptionDate string `db:"reception_date" json:"receptionDate"`
}
