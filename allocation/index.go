package allocation

import (
	"rtracker/database"
	"rtracker/model"
)

// PartLines groups a waybill's manifest lines for one part, already in
// allocation priority order.
type PartLines struct {
	PartNumber string              `json:"partNumber"`
	Lines      []model.WaybillLine `json:"lines"`
}

// LinesByPart enumerates a waybill's active manifest grouped by part
// number. The full enumeration keeps unscanned lines visible to the UI;
// parts come out in first-appearance order of the manifest.
func LinesByPart(q database.DBTX, waybill string) ([]PartLines, error) {
	lines, err := database.GetWaybillLines(q, waybill)
	if err != nil {
		return nil, err
	}

	byPart := make(map[string]int)
	var groups []PartLines
	for _, l := range lines {
		i, ok := byPart[l.PartNumber]
		if !ok {
			i = len(groups)
			byPart[l.PartNumber] = i
			groups = append(groups, PartLines{PartNumber: l.PartNumber})
		}
		groups[i].Lines = append(groups[i].Lines, l)
	}
	for i := range groups {
		groups[i].Lines = OrderLines(groups[i].Lines)
	}
	return groups, nil
}

// LineProgress is the point-in-time receiving state of one manifest line,
// derived purely from the event log.
type LineProgress struct {
	Line      model.WaybillLine `json:"line"`
	Scanned   int               `json:"scanned"`
	Remaining int               `json:"remaining"`
}

// Progress folds the event log into per-line scanned/remaining figures
// for a waybill. After a crash this replay is the recovery path: the
// numbers come out exactly as the last successful allocate reported them.
func Progress(q database.DBTX, waybill string) ([]LineProgress, error) {
	lines, err := database.GetWaybillLines(q, waybill)
	if err != nil {
		return nil, err
	}
	allocated, err := database.AllocatedByLine(q, waybill)
	if err != nil {
		return nil, err
	}

	out := make([]LineProgress, 0, len(lines))
	for _, l := range lines {
		scanned := allocated[l.ID]
		out = append(out, LineProgress{
			Line:      l,
			Scanned:   scanned,
			Remaining: l.QtyTotal - scanned,
		})
	}
	return out, nil
}
