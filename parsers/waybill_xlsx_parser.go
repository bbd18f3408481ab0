package parsers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"rtracker/model"
)

// Waybill manifest column headers as exported by the shipping system.
// Row 1 of the sheet is a title banner; row 2 carries these headers.
var waybillHeaders = []string{"Waybill", "ITEM", "SHP QTY", "SUBINV", "Locator", "DESCRIPTION", "ITEM_COSTS", "SHIP_DATE"}

// ParseWaybillXLSX reads a manifest workbook into waybill lines.
// ITEM_COSTS values use comma decimal separators and are normalized;
// non-numeric SHP QTY cells become 0, matching the source report's blanks.
func ParseWaybillXLSX(r io.Reader) ([]model.WaybillLine, error) {
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
	if len(rows) < 3 {
		return nil, errors.New("no manifest rows found in the Excel file")
	}

	colIndex, err := getColIndex(rows[1], waybillHeaders)
	if err != nil {
		return nil, err
	}

	var lines []model.WaybillLine
	for i, row := range rows[2:] {
		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		waybill := get("Waybill")
		part := strings.ToUpper(get("ITEM"))
		if waybill == "" || part == "" {
			continue
		}

		qty, err := strconv.Atoi(get("SHP QTY"))
		if err != nil {
			qty = 0
		}
		if qty < 0 {
			log.Printf("WARN: manifest row %d has negative SHP QTY (%d), clamped to 0", i+3, qty)
			qty = 0
		}

		costStr := strings.ReplaceAll(get("ITEM_COSTS"), ",", ".")
		cost, err := decimal.NewFromString(costStr)
		if err != nil {
			cost = decimal.Zero
		}

		date := get("SHIP_DATE")
		if len(date) > 10 {
			date = date[:10]
		}

		lines = append(lines, model.WaybillLine{
			WaybillNumber: waybill,
			PartNumber:    part,
			QtyTotal:      qty,
			Subinv:        strings.ToUpper(get("SUBINV")),
			Locator:       get("Locator"),
			Description:   get("DESCRIPTION"),
			ItemCost:      cost,
			Date:          date,
		})
	}
	return lines, nil
}
