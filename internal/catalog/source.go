package catalog

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"
)

// Source yields raw catalog entries.
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
}

// PostgresSource reads municipios joined to their departamento.
type PostgresSource struct {
	DB               *gorm.DB
	Table            string // municipios: lugar, lat, lng, tipo, departamento_id
	DepartmentsTable string // departamentos: id, departamento
}

type catalogRow struct {
	Departamento string
	Municipio    string
	Lat          sql.NullFloat64
	Lng          sql.NullFloat64
	Tipo         sql.NullString
}

func (s PostgresSource) Load(ctx context.Context) ([]Entry, error) {
	if s.DB == nil {
		return nil, errors.New("catalog source: no database handle")
	}
	var rows []catalogRow
	if err := s.query(ctx).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return entriesFrom(rows), nil
}

func (s PostgresSource) query(ctx context.Context) *gorm.DB {
	munis := quoteTable(s.Table, "municipios")
	depts := quoteTable(s.DepartmentsTable, "departamentos")
	return s.DB.WithContext(ctx).
		Table(munis + " AS m").
		Select("d.departamento AS departamento, m.lugar AS municipio, m.lat AS lat, m.lng AS lng, m.tipo AS tipo").
		Joins("JOIN " + depts + " AS d ON d.id = m.departamento_id").
		Order("d.departamento, m.lugar")
}

func entriesFrom(rows []catalogRow) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			Department: strings.TrimSpace(r.Departamento),
			Municipio:  strings.TrimSpace(r.Municipio),
			Lat:        nullable(r.Lat),
			Lng:        nullable(r.Lng),
			Type:       strings.TrimSpace(r.Tipo.String),
		})
	}
	return out
}

func quoteTable(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		name = fallback
	}
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func nullable(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

// StaticSource serves a fixed list of entries.
type StaticSource []Entry

func (s StaticSource) Load(context.Context) ([]Entry, error) {
	return []Entry(s), nil
}

// CSVSource reads a catalog CSV file, see ReadCSV.
type CSVSource struct {
	Path string
}

func (s CSVSource) Load(context.Context) ([]Entry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a catalog with the header departamento,municipio,lat,lng and
// an optional tipo column. "lugar" is accepted for municipio and "lon" for
// lng. Blank or unreadable coordinates become NaN and are dropped by Build.
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, ErrEmptyCatalog
	}

	header := records[0]
	// Handle BOM on first header cell
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	alias := func(name string, alts ...string) {
		if _, ok := col[name]; ok {
			return
		}
		for _, a := range alts {
			if i, ok := col[a]; ok {
				col[name] = i
				return
			}
		}
	}
	alias("municipio", "lugar")
	alias("lng", "lon", "longitud")
	alias("lat", "latitud")

	for _, k := range []string{"departamento", "municipio", "lat", "lng"} {
		if _, ok := col[k]; !ok {
			return nil, fmt.Errorf("missing required column: %s", k)
		}
	}

	out := make([]Entry, 0, len(records)-1)
	for rowIdx := 1; rowIdx < len(records); rowIdx++ {
		rec := records[rowIdx]
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		muni := get("municipio")
		if muni == "" {
			continue
		}
		out = append(out, Entry{
			Department: get("departamento"),
			Municipio:  muni,
			Lat:        parseCoord(get("lat")),
			Lng:        parseCoord(get("lng")),
			Type:       get("tipo"),
		})
	}
	return out, nil
}

// parseCoord accepts a decimal point or a decimal comma.
func parseCoord(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
