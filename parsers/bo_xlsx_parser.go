package parsers

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"rtracker/model"
)

var boHeaders = []string{"GO_ITEM", "ORACLE_REF", "PART_NUMBER", "QTY_REQ", "FLOW_STATUS", "REDCON_STATUS"}

// ParseBoXLSX reads the back-order report workbook. A row without a GO
// reference or part number is skipped; an unparseable redcon value sinks
// to lowest urgency.
func ParseBoXLSX(r io.Reader) ([]model.BoItem, error) {
	xlsx, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read Excel file: %w", err)
	}
	defer xlsx.Close()

	sheets := xlsx.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheet found in the Excel file")
	}
	rows, err := xlsx.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read rows from sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no BO rows found in the Excel file")
	}

	colIndex, err := getColIndex(rows[0], boHeaders)
	if err != nil {
		return nil, err
	}

	var items []model.BoItem
	for _, row := range rows[1:] {
		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		goItem := get("GO_ITEM")
		part := strings.ToUpper(get("PART_NUMBER"))
		if goItem == "" || part == "" {
			continue
		}

		qtyReq, err := strconv.Atoi(get("QTY_REQ"))
		if err != nil || qtyReq < 0 {
			qtyReq = 0
		}
		redcon, err := strconv.Atoi(get("REDCON_STATUS"))
		if err != nil {
			redcon = 99
		}

		items = append(items, model.BoItem{
			GoItem:       goItem,
			OracleRef:    get("ORACLE_REF"),
			PartNumber:   part,
			QtyReq:       qtyReq,
			FlowStatus:   get("FLOW_STATUS"),
			RedconStatus: redcon,
		})
	}
	return items, nil
}
