package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtracker/loader"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, loader.InitDatabase(db))
	return db
}

func seedIdentifier(t *testing.T, db *sqlx.DB, part, upc string, qty int) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO part_identifiers (part_number, upc_code, qty, description)
		VALUES (?, ?, ?, '')`, part, upc, qty)
	require.NoError(t, err)
}

func TestResolvePartNumberDirect(t *testing.T) {
	db := newTestDB(t)
	r := New(db, "", nil)

	part, qty, err := r.Resolve("  abc-123 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", part)
	assert.Equal(t, 1, qty)
}

func TestResolvePartNumberWithStoredBoxQty(t *testing.T) {
	db := newTestDB(t)
	seedIdentifier(t, db, "ABC-123", "012345678905", 24)
	r := New(db, "", nil)

	// Adding the part number itself as an identifier row overrides the
	// default single-unit quantity.
	seedIdentifier(t, db, "DEF-456", "DEF-456", 12)
	part, qty, err := r.Resolve("DEF-456")
	require.NoError(t, err)
	assert.Equal(t, "DEF-456", part)
	assert.Equal(t, 12, qty)
}

func TestResolveUPCFromCatalog(t *testing.T) {
	db := newTestDB(t)
	seedIdentifier(t, db, "ABC-123", "012345678905", 24)
	r := New(db, "", nil)

	part, qty, err := r.Resolve("012345678905")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", part)
	assert.Equal(t, 24, qty)
}

func TestResolveUPCFromFallbackCSV(t *testing.T) {
	db := newTestDB(t)
	csvPath := filepath.Join(t.TempDir(), "upc_fallback.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"part_number,upc_code,qty,description\nGHI-789,998877665544,6,gasket kit\n"), 0644))
	r := New(db, csvPath, nil)

	part, qty, err := r.Resolve("998877665544")
	require.NoError(t, err)
	assert.Equal(t, "GHI-789", part)
	assert.Equal(t, 6, qty)
}

func TestResolveCatalogWinsOverFallback(t *testing.T) {
	db := newTestDB(t)
	seedIdentifier(t, db, "ABC-123", "998877665544", 24)
	csvPath := filepath.Join(t.TempDir(), "upc_fallback.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"part_number,upc_code,qty,description\nGHI-789,998877665544,6,stale row\n"), 0644))
	r := New(db, csvPath, nil)

	part, qty, err := r.Resolve("998877665544")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", part)
	assert.Equal(t, 24, qty)
}

func TestResolveUnknownAllDigitCode(t *testing.T) {
	db := newTestDB(t)
	r := New(db, "", nil)

	// All-digit codes are never taken as part numbers, so an unknown one
	// is a hard rejection rather than a phantom part.
	_, _, err := r.Resolve("999999999")
	var unresolved *UnresolvedCodeError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "999999999", unresolved.Code)
}

func TestResolveEmptyCode(t *testing.T) {
	db := newTestDB(t)
	r := New(db, "", nil)

	_, _, err := r.Resolve("   ")
	var unresolved *UnresolvedCodeError
	require.ErrorAs(t, err, &unresolved)
}
