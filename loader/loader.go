package loader

import (
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// InitDatabase applies the schema. Every statement is idempotent
// (CREATE ... IF NOT EXISTS), so running it on an existing database is
// safe and is done on every startup.
func InitDatabase(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}
