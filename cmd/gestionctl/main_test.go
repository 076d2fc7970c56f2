package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
)

const rowsJSON = `[
 {"id": 1, "Grupo Interno de Trabajo": "G1", "Departamentos": "Meta", "Municipios": "Villavicencio y Granada", "Presupuesto": "$1.000.000"},
 {"id": 2, "Grupo Interno de Trabajo": "G2", "Departamentos": "Casanare", "Municipios": "Yopal", "Presupuesto": 500000},
 {"id": 3, "Municipios": "Granada", "Presupuesto": 10}
]`

const catalogCSV = "departamento,municipio,lat,lng\n" +
	"Meta,Villavicencio,4.14,-73.63\n" +
	"Meta,Granada,3.54,-73.70\n" +
	"Antioquia,Granada,6.14,-75.18\n" +
	"Casanare,Yopal,5.33,-72.39\n"

func writeFixtures(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	rowsPath = filepath.Join(dir, "gestion.json")
	catalogPath = filepath.Join(dir, "municipios.csv")
	require.NoError(t, os.WriteFile(rowsPath, []byte(rowsJSON), 0o644))
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogCSV), 0o644))
	metricName = "presupuesto"
	fieldMapPath = ""
}

func TestLoadDataset(t *testing.T) {
	writeFixtures(t)

	d, err := loadDataset(context.Background())
	require.NoError(t, err)
	assert.Len(t, d.records, 3)
	assert.Equal(t, 4, d.index.Len())
	assert.Equal(t, aggregate.MetricBudget, d.metric)

	res := aggregate.Aggregate(d.records, d.metric, d.index)
	assert.Equal(t, 500000.0, res.PerLocation["meta|granada"])
	assert.Equal(t, 1500000.0, res.Total)
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, aggregate.ReasonAmbiguous, res.Unresolved[0].Reason)
}

func TestLoadDatasetBadMetric(t *testing.T) {
	writeFixtures(t)
	metricName = "hectareas"

	_, err := loadDataset(context.Background())
	assert.Error(t, err)
}

func TestCommandsRun(t *testing.T) {
	writeFixtures(t)

	for _, args := range [][]string{
		{"aggregate"},
		{"aggregate", "--municipio"},
		{"breaks", "-k", "3"},
		{"resolve", "--unresolved"},
		{"resolve", "--json"},
	} {
		rootCmd.SetArgs(append(args, "--rows", rowsPath, "--catalog", catalogPath))
		assert.NoError(t, rootCmd.Execute(), args)
		asJSON = false
	}
}
