package db

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingExecer struct {
	queries []string
}

func (r *recordingExecer) ExecContext(_ context.Context, q string, _ ...any) (sql.Result, error) {
	r.queries = append(r.queries, q)
	return nil, nil
}

func TestConnectWithoutDSN(t *testing.T) {
	_, err := Connect("", zap.NewNop())
	assert.ErrorIs(t, err, ErrNoDSN)
}

func TestIdent(t *testing.T) {
	assert.Equal(t, `"municipios"`, Ident("municipios"))
	assert.Equal(t, `"geo"."municipios"`, Ident("geo.municipios"))
}

func TestEnsureCatalogTables(t *testing.T) {
	x := &recordingExecer{}
	require.NoError(t, EnsureCatalogTables(context.Background(), x, "geo.departamentos", "geo.municipios"))

	require.Len(t, x.queries, 4)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "geo"`, x.queries[0])
	assert.True(t, strings.HasPrefix(x.queries[2], `CREATE TABLE IF NOT EXISTS "geo"."departamentos"`))
	assert.Contains(t, x.queries[3], `REFERENCES "geo"."departamentos"(id)`)
}
