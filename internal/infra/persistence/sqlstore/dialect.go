package sqlstore

import (
	"embed"
	"io/fs"
	"strconv"
	"strings"
)

//go:embed migrations
var migrationFS embed.FS

// Dialect captures the per-database differences the shared store must honour.
type Dialect struct {
	// Name identifies the dialect and selects migrations/<Name>.
	Name string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	Numbered bool
	// ResetSequence moves a table's id generator to just past its highest id.
	// %[1]s is the table name.
	ResetSequence string
}

var (
	// SQLite is the dialect for modernc.org/sqlite.
	SQLite = Dialect{
		Name:          "sqlite",
		ResetSequence: "UPDATE sqlite_sequence SET seq = (SELECT COALESCE(MAX(id), 0) FROM %[1]s) WHERE name = '%[1]s'",
	}
	// Postgres is the dialect for pgx via database/sql.
	Postgres = Dialect{
		Name:          "postgres",
		Numbered:      true,
		ResetSequence: "SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM %[1]s",
	}
)

// Rebind rewrites '?' placeholders to the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrations returns the embedded migration directory for the dialect.
func (d Dialect) Migrations() (fs.FS, error) {
	return fs.Sub(migrationFS, "migrations/"+d.Name)
}
