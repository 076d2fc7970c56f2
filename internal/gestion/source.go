package gestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Source yields the raw gestion rows. The backend owns the table; this side
// only reads it.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// PostgresSource reads the gestion table through gorm.
type PostgresSource struct {
	DB    *gorm.DB
	Table string

	// DepartmentColumn and Departments narrow the read to rows whose free-text
	// department list mentions any of the given names.
	DepartmentColumn string
	Departments      []string
}

func (s PostgresSource) Load(ctx context.Context) ([]Record, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("gestion source: no database handle")
	}

	var rows []map[string]any
	if err := s.query(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.table(), err)
	}

	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (s PostgresSource) table() string {
	if s.Table == "" {
		return "gestion"
	}
	return s.Table
}

func (s PostgresSource) query(ctx context.Context) *gorm.DB {
	q := s.DB.WithContext(ctx).Table(pgx.Identifier(strings.Split(s.table(), ".")).Sanitize())

	if len(s.Departments) > 0 && s.DepartmentColumn != "" {
		patterns := make([]string, 0, len(s.Departments))
		for _, d := range s.Departments {
			d = strings.TrimSpace(d)
			if d == "" {
				continue
			}
			patterns = append(patterns, "%"+likeEscape(d)+"%")
		}
		if len(patterns) > 0 {
			col := pgx.Identifier{s.DepartmentColumn}.Sanitize()
			q = q.Where(col+" ILIKE ANY(?)", pq.Array(patterns))
		}
	}
	return q
}

// StaticSource serves a fixed set of rows.
type StaticSource []Record

func (s StaticSource) Load(context.Context) ([]Record, error) {
	return []Record(s), nil
}

// FileSource reads rows from a JSON array export of the table.
type FileSource struct {
	Path string
}

func (s FileSource) Load(context.Context) ([]Record, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening rows file: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// ReadJSON decodes a JSON array of row objects. Numbers are kept as
// json.Number so that loose parsing sees the exact text.
func ReadJSON(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []Record
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding rows: %w", err)
	}
	return rows, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string {
	return likeEscaper.Replace(s)
}
