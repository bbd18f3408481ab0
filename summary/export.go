package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rtracker/database"
)

// RenderDelimited renders summary rows as delimited text with a header
// line, the interchange format the downstream receiving reports consume.
func RenderDelimited(rows []database.SummaryRow, delimiter string) []byte {
	if delimiter == "" {
		delimiter = "\t"
	}
	var sb strings.Builder
	header := []string{"waybill_number", "username", "part_number", "total_scanned", "expected_qty", "remaining_qty", "allocated_to", "reception_date"}
	sb.WriteString(strings.Join(header, delimiter))
	sb.WriteByte('\n')
	for _, r := range rows {
		fields := []string{
			r.WaybillNumber,
			r.Username,
			r.PartNumber,
			strconv.Itoa(r.TotalScanned),
			strconv.Itoa(r.ExpectedQty),
			strconv.Itoa(r.RemainingQty),
			r.AllocatedTo,
			r.ReceptionDate,
		}
		sb.WriteString(strings.Join(fields, delimiter))
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// WriteExportFile writes rendered summary data into the export folder and
// returns the file path.
func WriteExportFile(folder string, data []byte) (string, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("failed to create export folder %s: %w", folder, err)
	}
	name := fmt.Sprintf("scan_summary_%s.txt", time.Now().Format("20060102_150405"))
	path := filepath.Join(folder, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file %s: %w", path, err)
	}
	return path, nil
}
