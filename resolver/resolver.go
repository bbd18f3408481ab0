package resolver

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"rtracker/database"
	"rtracker/parsers"
)

// UnresolvedCodeError means the scanned code matches neither the part
// number pattern nor any known UPC. The scan is rejected before anything
// is written.
type UnresolvedCodeError struct {
	Code string
}

func (e *UnresolvedCodeError) Error() string {
	return fmt.Sprintf("cannot resolve scanned code %q", e.Code)
}

// Part numbers are alphanumeric-dash tokens containing at least one
// letter; an all-digit code is always treated as a UPC.
var partNumberPattern = regexp.MustCompile(`^[0-9A-Z-]*[A-Z][0-9A-Z-]*$`)

type fallbackEntry struct {
	part string
	qty  int
}

// Resolver maps raw scanned codes to (part number, default box quantity).
// Lookups hit the part_identifiers table first; a configured CSV file
// serves as an offline fallback for UPCs not yet imported.
type Resolver struct {
	db      *sqlx.DB
	csvPath string
	log     *zap.SugaredLogger

	mu    sync.Mutex
	cache map[string]fallbackEntry
}

func New(db *sqlx.DB, csvPath string, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{db: db, csvPath: csvPath, log: log}
}

// Resolve returns the canonical part number and default quantity for a
// raw scanned code. Pure lookup: no events are written here.
func (r *Resolver) Resolve(raw string) (string, int, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", 0, &UnresolvedCodeError{Code: raw}
	}

	if partNumberPattern.MatchString(code) {
		// Direct part number entry. A stored identifier row may carry a
		// box quantity for it; otherwise single units are assumed.
		pi, err := database.LookupUPC(r.db, code)
		if err != nil {
			return "", 0, err
		}
		if pi != nil {
			return pi.PartNumber, pi.Qty, nil
		}
		return code, 1, nil
	}

	pi, err := database.LookupUPC(r.db, code)
	if err != nil {
		return "", 0, err
	}
	if pi != nil {
		return pi.PartNumber, pi.Qty, nil
	}

	if entry, ok := r.fallback(code); ok {
		r.log.Infow("resolved code from fallback CSV", "code", code, "part", entry.part)
		return entry.part, entry.qty, nil
	}

	return "", 0, &UnresolvedCodeError{Code: raw}
}

// fallback consults the lazily loaded CSV cache.
func (r *Resolver) fallback(code string) (fallbackEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		r.cache = r.loadFallback()
	}
	entry, ok := r.cache[code]
	return entry, ok
}

func (r *Resolver) loadFallback() map[string]fallbackEntry {
	cache := make(map[string]fallbackEntry)
	if r.csvPath == "" {
		return cache
	}
	f, err := os.Open(r.csvPath)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warnf("failed to open fallback UPC file %s: %v", r.csvPath, err)
		}
		return cache
	}
	defer f.Close()

	reader := csv.NewReader(parsers.SkipBOM(f))
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		r.log.Warnf("failed to read fallback UPC header: %v", err)
		return cache
	}
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	get := func(rec []string, key string) string {
		if i, ok := idx[key]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		part := strings.ToUpper(get(rec, "part_number"))
		upc := strings.ToUpper(get(rec, "upc_code"))
		if part == "" || upc == "" {
			continue
		}
		qty, err := strconv.Atoi(get(rec, "qty"))
		if err != nil || qty < 1 {
			qty = 1
		}
		cache[upc] = fallbackEntry{part: part, qty: qty}
	}
	r.log.Infof("loaded %d fallback UPC mappings from %s", len(cache), r.csvPath)
	return cache
}
