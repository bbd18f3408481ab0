package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TableNames lists the user tables for the admin viewer.
func TableNames(q DBTX) ([]string, error) {
	var names []string
	err := q.Select(&names, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// validTable guards the dynamic identifiers of the generic viewer queries;
// everything else goes through placeholders.
func validTable(q DBTX, table string) error {
	var n int
	err := q.Get(&n, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name = ? AND name NOT LIKE 'sqlite_%'`, table)
	if err != nil {
		return fmt.Errorf("failed to check table %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("unknown table: %s", table)
	}
	return nil
}

// tableColumns returns the declared column names of a table.
func tableColumns(q DBTX, table string) ([]string, error) {
	rows, err := q.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to get columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// FetchTableRows returns the column names (rowid first) and all rows of a
// table as generic values.
func FetchTableRows(q DBTX, table string) ([]string, [][]interface{}, error) {
	if err := validTable(q, table); err != nil {
		return nil, nil, err
	}
	cols, err := tableColumns(q, table)
	if err != nil {
		return nil, nil, err
	}

	rows, err := q.Query(fmt.Sprintf(`SELECT rowid, * FROM %q`, table))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch rows of %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols)+1)
		ptrs := make([]interface{}, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return append([]string{"rowid"}, cols...), out, rows.Err()
}

// UpdateTableRowInTx applies one admin correction to a row. Column names
// are checked against the table's declared columns before being embedded.
func UpdateTableRowInTx(tx *sqlx.Tx, table string, rowid int64, set map[string]interface{}) error {
	if err := validTable(tx, table); err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}
	cols, err := tableColumns(tx, table)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}

	assign := ""
	args := []interface{}{}
	for _, c := range cols { // declared order keeps the statement stable
		v, ok := set[c]
		if !ok {
			continue
		}
		if assign != "" {
			assign += ", "
		}
		assign += fmt.Sprintf("%q = ?", c)
		args = append(args, v)
	}
	for c := range set {
		if !known[c] {
			return fmt.Errorf("unknown column %s.%s", table, c)
		}
	}
	args = append(args, rowid)

	if _, err := tx.Exec(fmt.Sprintf(`UPDATE %q SET %s WHERE rowid = ?`, table, assign), args...); err != nil {
		return fmt.Errorf("failed to update %s rowid %d: %w", table, rowid, err)
	}
	return nil
}

// DeleteTableRowInTx removes one row as part of an admin correction batch.
func DeleteTableRowInTx(tx *sqlx.Tx, table string, rowid int64) error {
	if err := validTable(tx, table); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %q WHERE rowid = ?`, table), rowid); err != nil {
		return fmt.Errorf("failed to delete %s rowid %d: %w", table, rowid, err)
	}
	return nil
}
