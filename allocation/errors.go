package allocation

import "fmt"

// UnknownPartError means the resolved part is not on the active waybill's
// manifest. The scan is rejected and no event is recorded.
type UnknownPartError struct {
	WaybillNumber string
	PartNumber    string
}

func (e *UnknownPartError) Error() string {
	return fmt.Sprintf("part %s is not on waybill %s", e.PartNumber, e.WaybillNumber)
}

// OverScanError means the scanned quantity cannot be placed in full
// without exceeding expected totals. Placeable carries how much room was
// left; the rejection is all-or-nothing, so even that amount was not
// committed.
type OverScanError struct {
	PartNumber string
	Requested  int
	Placeable  int
}

func (e *OverScanError) Error() string {
	return fmt.Sprintf("over-scan of part %s: requested %d, only %d placeable", e.PartNumber, e.Requested, e.Placeable)
}

// ManifestInconsistencyError means the waybill has no manifest lines at
// all (unloaded or terminated). The session cannot proceed against it.
type ManifestInconsistencyError struct {
	WaybillNumber string
}

func (e *ManifestInconsistencyError) Error() string {
	return fmt.Sprintf("waybill %s has no manifest lines", e.WaybillNumber)
}
