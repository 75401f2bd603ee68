package store

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect selects the SQL flavor the statements are rendered in.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdentifier reports whether s is safe to interpolate as a table name.
// Table names are the only identifiers ever interpolated; values always go
// through placeholders.
func validIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// queryBuilder renders the store's statement shapes for one table and dialect.
type queryBuilder struct {
	table   string
	dialect Dialect
}

func (q queryBuilder) placeholder(n int) string {
	if q.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (q queryBuilder) selectTile() string {
	return fmt.Sprintf("SELECT tile FROM %s WHERE zoom = %s AND idx = %s",
		q.table, q.placeholder(1), q.placeholder(2))
}

func (q queryBuilder) selectTileLength() string {
	return fmt.Sprintf("SELECT length(tile) FROM %s WHERE zoom = %s AND idx = %s",
		q.table, q.placeholder(1), q.placeholder(2))
}

// upsert uses the backend's native conflict resolution, so concurrent writers
// to the same (zoom, idx) cannot race an update against an insert.
func (q queryBuilder) upsert() string {
	return fmt.Sprintf(
		"INSERT INTO %s (zoom, idx, tile) VALUES (%s, %s, %s) ON CONFLICT (zoom, idx) DO UPDATE SET tile = excluded.tile",
		q.table, q.placeholder(1), q.placeholder(2), q.placeholder(3))
}

func (q queryBuilder) delete() string {
	return fmt.Sprintf("DELETE FROM %s WHERE zoom = %s AND idx = %s",
		q.table, q.placeholder(1), q.placeholder(2))
}

func (q queryBuilder) createTable() string {
	if q.dialect == Postgres {
		return fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (zoom smallint NOT NULL, idx bigint NOT NULL, tile bytea, PRIMARY KEY (zoom, idx))",
			q.table)
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (zoom INTEGER NOT NULL, idx INTEGER NOT NULL, tile BLOB, PRIMARY KEY (zoom, idx))",
		q.table)
}

// storageHint keeps Postgres from TOAST-compressing tile payloads that are
// already gzipped. SQLite has no equivalent knob.
func (q queryBuilder) storageHint() string {
	if q.dialect == Postgres {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN tile SET STORAGE EXTERNAL", q.table)
	}
	return ""
}

// probe is a zero-row structural check that fails fast when the table is
// missing or has the wrong columns.
func (q queryBuilder) probe() string {
	return fmt.Sprintf("SELECT zoom, idx, tile FROM %s WHERE 0 = 1", q.table)
}

// rangeScan renders the filtered scan for Query. Only filters that were
// actually supplied contribute a clause; results come back in ascending idx
// order regardless of how the driver batches fetches.
func (q queryBuilder) rangeScan(opts QueryOptions) (string, []any) {
	columns := "idx"
	if opts.IncludeTiles {
		columns = "idx, tile"
	}

	var sb strings.Builder
	args := []any{opts.Zoom}
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE zoom = %s", columns, q.table, q.placeholder(1))

	if opts.IdxFrom != nil {
		args = append(args, *opts.IdxFrom)
		fmt.Fprintf(&sb, " AND idx >= %s", q.placeholder(len(args)))
	}
	if opts.IdxBefore != nil {
		args = append(args, *opts.IdxBefore)
		fmt.Fprintf(&sb, " AND idx < %s", q.placeholder(len(args)))
	}
	if opts.SmallerThan != nil {
		args = append(args, *opts.SmallerThan)
		fmt.Fprintf(&sb, " AND length(tile) < %s", q.placeholder(len(args)))
	}
	if opts.BiggerThan != nil {
		args = append(args, *opts.BiggerThan)
		fmt.Fprintf(&sb, " AND length(tile) >= %s", q.placeholder(len(args)))
	}

	sb.WriteString(" ORDER BY idx")

	return sb.String(), args
}
