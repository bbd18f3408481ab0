package parsers

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"rtracker/model"
)

// ParsePartIdentifierCSV parses the UPC mapping CSV. Required columns:
// part_number, upc_code, qty, description. Rows without a part number are
// skipped; a missing or malformed qty defaults to 1.
func ParsePartIdentifierCSV(r io.Reader) ([]model.PartIdentifier, error) {
	decoded, err := DecodeLegacy(r)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(decoded)
	sample, _ := br.Peek(2048)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(string(sample))
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex, err := getColIndex(header, []string{"part_number", "upc_code", "qty", "description"})
	if err != nil {
		return nil, err
	}

	var records []model.PartIdentifier
	line := 1
	for {
		line++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("WARN: part identifier CSV line %d unreadable (skipped): %v", line, err)
			continue
		}

		get := func(key string) string {
			if idx, ok := colIndex[key]; ok && idx < len(rec) {
				return strings.TrimSpace(rec[idx])
			}
			return ""
		}

		part := strings.ToUpper(get("part_number"))
		if part == "" {
			continue
		}
		qty, err := strconv.Atoi(get("qty"))
		if err != nil || qty < 1 {
			qty = 1
		}

		records = append(records, model.PartIdentifier{
			PartNumber:  part,
			UpcCode:     strings.ToUpper(get("upc_code")),
			Qty:         qty,
			Description: get("description"),
		})
	}
	return records, nil
}
