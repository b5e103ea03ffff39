package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"myrhythm/internal/domain/registrations"
	"myrhythm/internal/platform/dates"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var ddl embed.FS

// ErrNotFound es el del dominio para que el service lo distinga de fallas de la base.
var ErrNotFound = registrations.ErrNotFound

// Open abre (o crea) la base en path con foreign keys y aplica el schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// sqlite serializa escrituras; una conexión evita SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func millis(t time.Time) int64 { return dates.ToEpochMillis(t) }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: millis(*t), Valid: true}
}

func fromMillis(ms int64) time.Time { return dates.FromEpochMillis(ms, time.UTC) }

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// inClause arma "?,?,?" y los args para un IN.
func inClause(ids []string) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ","), args
}
