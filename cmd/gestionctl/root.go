package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
	"github.com/EmpoweredVote/gestion-map/internal/catalog"
	"github.com/EmpoweredVote/gestion-map/internal/gestion"
	"github.com/EmpoweredVote/gestion-map/internal/legend"
)

var (
	rowsPath     string
	catalogPath  string
	fieldMapPath string
	metricName   string
	asJSON       bool
)

var rootCmd = &cobra.Command{
	Use:          "gestionctl",
	Short:        "Inspect gestion exports offline: location resolution, aggregates and class breaks",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rowsPath, "rows", "gestion.json", "JSON array export of the gestion table")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "municipios.csv", "Catalog CSV (departamento,municipio,lat,lng)")
	rootCmd.PersistentFlags().StringVar(&fieldMapPath, "field-map", "", "Optional YAML field mapping")
	rootCmd.PersistentFlags().StringVarP(&metricName, "metric", "m", "presupuesto", "Metric: presupuesto or personas")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
}

func Execute() error {
	return rootCmd.Execute()
}

// dataset is everything the subcommands work on.
type dataset struct {
	records []gestion.GestionRecord
	fields  gestion.ResolvedFields
	index   *catalog.Index
	metric  aggregate.Metric
}

func loadDataset(ctx context.Context) (*dataset, error) {
	metric, err := aggregate.ParseMetric(metricName)
	if err != nil {
		return nil, err
	}

	fm := gestion.DefaultFieldMap()
	if fieldMapPath != "" {
		if fm, err = gestion.LoadFieldMap(fieldMapPath); err != nil {
			return nil, err
		}
	}

	rows, err := gestion.FileSource{Path: rowsPath}.Load(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := catalog.CSVSource{Path: catalogPath}.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	records, rf := gestion.FromRows(rows, fm)
	return &dataset{
		records: records,
		fields:  rf,
		index:   catalog.Build(entries),
		metric:  metric,
	}, nil
}

func (d *dataset) kind() legend.Kind {
	if d.metric.Currency() {
		return legend.KindCurrency
	}
	return legend.KindInteger
}
