package bo

import (
	"io"
	"strconv"
	"strings"

	"rtracker/model"
	"rtracker/parsers"
)

// parseBoFile parses an uploaded BO report workbook.
func parseBoFile(r io.Reader) ([]model.BoItem, error) {
	return parsers.ParseBoXLSX(r)
}

// RenderReport renders the BO table as delimited text for the
// regenerated fulfillment report.
func RenderReport(items []model.BoItem, delimiter string) []byte {
	if delimiter == "" {
		delimiter = "\t"
	}
	var sb strings.Builder
	header := []string{"go_item", "oracle_ref", "part_number", "qty_req", "qty_fulfilled", "pick_status", "flow_status", "redcon_status"}
	sb.WriteString(strings.Join(header, delimiter))
	sb.WriteByte('\n')
	for _, it := range items {
		fields := []string{
			it.GoItem,
			it.OracleRef,
			it.PartNumber,
			strconv.Itoa(it.QtyReq),
			strconv.Itoa(it.QtyFulfilled),
			it.PickStatus,
			it.FlowStatus,
			strconv.Itoa(it.RedconStatus),
		}
		sb.WriteString(strings.Join(fields, delimiter))
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}
