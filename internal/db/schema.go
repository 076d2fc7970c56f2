package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Ident quotes a possibly schema-qualified table name.
func Ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

// EnsureCatalogTables creates the departamentos and municipios tables the
// catalog source reads, if they do not exist.
func EnsureCatalogTables(ctx context.Context, x Execer, departments, municipios string) error {
	for _, t := range []string{departments, municipios} {
		if i := strings.Index(t, "."); i > 0 {
			if _, err := x.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+Ident(t[:i])); err != nil {
				return err
			}
		}
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + Ident(departments) + ` (
			id           serial PRIMARY KEY,
			departamento text NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS ` + Ident(municipios) + ` (
			id              serial PRIMARY KEY,
			lugar           text NOT NULL,
			lat             double precision,
			lng             double precision,
			tipo            text,
			departamento_id integer NOT NULL REFERENCES ` + Ident(departments) + `(id),
			UNIQUE (departamento_id, lugar)
		)`,
	}
	for _, q := range stmts {
		if _, err := x.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
