package sqlstore

import (
	"io/fs"
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	ddl := `
-- comment
CREATE TABLE a (id INTEGER);

CREATE TABLE b (
    id INTEGER
);
CREATE INDEX ix ON b (id)`
	got := SplitStatements(ddl)
	if len(got) != 3 {
		t.Fatalf("expected 3 statements, got %d: %#v", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id INTEGER);" {
		t.Fatalf("unexpected first statement %q", got[0])
	}
	if !strings.HasPrefix(got[1], "CREATE TABLE b (") || !strings.HasSuffix(got[1], ");") {
		t.Fatalf("multi-line statement not joined: %q", got[1])
	}
	if got[2] != "CREATE INDEX ix ON b (id)" {
		t.Fatalf("unterminated tail lost: %q", got[2])
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE x (id INTEGER);\n-- +migrate Down\nDROP TABLE x;\n"
	up := ExtractUpMigration(content)
	if strings.Contains(up, "DROP") {
		t.Fatalf("down section leaked into up: %q", up)
	}
	if !strings.Contains(up, "CREATE TABLE x") {
		t.Fatalf("up section missing: %q", up)
	}
	if ExtractUpMigration("SELECT 1;") != "SELECT 1;" {
		t.Fatalf("content without markers should be returned as is")
	}
}

func TestRebind(t *testing.T) {
	q := "UPDATE scientists SET name = ?, field_of_study = ? WHERE id = ?"
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite should keep '?' placeholders, got %q", got)
	}
	want := "UPDATE scientists SET name = $1, field_of_study = $2 WHERE id = $3"
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind mismatch: %q", got)
	}
}

func TestEmbeddedMigrationsPerDialect(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		migrations, err := d.Migrations()
		if err != nil {
			t.Fatalf("%s migrations: %v", d.Name, err)
		}
		content, err := fs.ReadFile(migrations, "0001_init.sql")
		if err != nil {
			t.Fatalf("%s init migration: %v", d.Name, err)
		}
		stmts := SplitStatements(ExtractUpMigration(string(content)))
		if len(stmts) != 5 {
			t.Fatalf("%s: expected 3 tables and 2 indexes, got %d statements", d.Name, len(stmts))
		}
		if !strings.Contains(string(content), "ON DELETE CASCADE") {
			t.Fatalf("%s: missions must cascade on parent delete", d.Name)
		}
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	if !IsAlreadyExistsError(errString("table scientists already exists")) {
		t.Fatalf("expected already exists match")
	}
	if IsAlreadyExistsError(errString("syntax error")) {
		t.Fatalf("unexpected match")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
