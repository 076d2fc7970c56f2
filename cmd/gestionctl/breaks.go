package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
	"github.com/EmpoweredVote/gestion-map/internal/classify"
	"github.com/EmpoweredVote/gestion-map/internal/legend"
)

var classes int

var breaksCmd = &cobra.Command{
	Use:   "breaks",
	Short: "Compute quantile class breaks and print the legend",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		res := aggregate.Aggregate(d.records, d.metric, d.index)

		values := res.DepartmentValues()
		if byMunicipio {
			values = res.LocationValues()
		}
		breaks := classify.ComputeBreaks(values, classes)
		freq := classify.Count(values, breaks)

		var min float64
		for _, v := range values {
			if classify.HasData(v) && (min == 0 || v < min) {
				min = v
			}
		}
		items := legend.Choropleth(breaks, freq, min, d.kind(), classify.Ramp(classes))

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"cortes":      breaks,
				"frecuencias": freq,
				"leyenda":     items,
			})
		}

		fmt.Printf("%s by %s, %d classes over %d buckets\n", d.metric.Label(), levelName(), classes, len(values))
		fmt.Printf("Breaks: %v\n\n", breaks)
		for _, it := range items {
			fmt.Printf("  %s  %-40s %5d\n", it.Color, it.Label, it.Count)
		}
		return nil
	},
}

func init() {
	breaksCmd.Flags().IntVarP(&classes, "classes", "k", classify.DefaultClasses, "Number of classes")
	breaksCmd.Flags().BoolVar(&byMunicipio, "municipio", false, "Classify municipio buckets instead of departamento")
	rootCmd.AddCommand(breaksCmd)
}
