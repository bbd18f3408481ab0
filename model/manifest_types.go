package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Inventory buckets a scanned part can be received into. The bucket is
// derived from the sub-inventory code on the manifest line.
const (
	BucketAMO    = "AMO"
	BucketKANBAN = "KANBAN"
)

// BucketFromSubinv maps a source sub-inventory code to its bucket.
// Codes carrying "AMO" (e.g. "DRV-AMO") receive into AMO; everything else
// is KANBAN stock.
func BucketFromSubinv(subinv string) string {
	if strings.Contains(strings.ToUpper(subinv), BucketAMO) {
		return BucketAMO
	}
	return BucketKANBAN
}

// WaybillLine is one expected receipt line of a waybill manifest.
// Lines are immutable once imported; a re-import of the same waybill
// replaces its lines under a new ImportBatch.
type WaybillLine struct {
	ID            int64           `db:"id" json:"id"`
	WaybillNumber string          `db:"waybill_number" json:"waybillNumber"`
	PartNumber    string          `db:"part_number" json:"partNumber"`
	QtyTotal      int             `db:"qty_total" json:"qtyTotal"`
	Subinv        string          `db:"subinv" json:"subinv"`
	Locator       string          `db:"locator" json:"locator,omitempty"`
	Description   string          `db:"description" json:"description,omitempty"`
	ItemCost      decimal.Decimal `db:"item_cost" json:"itemCost"`
	Date          string          `db:"date" json:"date"`
	ImportDate    string          `db:"import_date" json:"importDate"`
	ImportBatch   string          `db:"import_batch" json:"importBatch"`
	Active        bool            `db:"active" json:"active"`
}

// Bucket returns the inventory bucket this line receives into.
func (l WaybillLine) Bucket() string {
	return BucketFromSubinv(l.Subinv)
}

// PartIdentifier maps a UPC barcode to a part number with a default
// per-box quantity.
type PartIdentifier struct {
	ID          int64  `db:"id" json:"id"`
	PartNumber  string `db:"part_number" json:"partNumber"`
	UpcCode     string `db:"upc_code" json:"upcCode"`
	Qty         int    `db:"qty" json:"qty"`
	Description string `db:"description" json:"description,omitempty"`
}

// WaybillProgress is the per-waybill rollup shown on the waybill picker.
type WaybillProgress struct {
	WaybillNumber string `db:"waybill_number" json:"waybillNumber"`
	QtyTotal      int    `db:"qty_total" json:"qtyTotal"`
	Remaining     int    `json:"remaining"`
}
