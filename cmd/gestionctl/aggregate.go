package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
	"github.com/EmpoweredVote/gestion-map/internal/legend"
)

var byMunicipio bool

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Sum the metric per departamento (or municipio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		res := aggregate.Aggregate(d.records, d.metric, d.index)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		buckets := res.PerDepartment
		if byMunicipio {
			buckets = res.PerLocation
		}
		keys := make([]string, 0, len(buckets))
		for k := range buckets {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if buckets[keys[i]] != buckets[keys[j]] {
				return buckets[keys[i]] > buckets[keys[j]]
			}
			return keys[i] < keys[j]
		})

		fmt.Printf("%s by %s\n", d.metric.Label(), levelName())
		for _, k := range keys {
			fmt.Printf("  %-40s %20s\n", k, legend.Format(buckets[k], d.kind()))
		}
		fmt.Printf("\nTotal located:  %s (%d records)\n", legend.Format(res.Total, d.kind()), res.Contributing)
		fmt.Printf("Unresolved:     %s (%d records)\n", legend.Format(res.UnresolvedValue(), d.kind()), len(res.Unresolved))
		fmt.Printf("Without value:  %d records\n", res.Skipped)
		if len(d.fields.Missing) > 0 {
			fmt.Printf("Columns not found: %v\n", d.fields.Missing)
		}
		return nil
	},
}

func levelName() string {
	if byMunicipio {
		return "municipio"
	}
	return "departamento"
}

func init() {
	aggregateCmd.Flags().BoolVar(&byMunicipio, "municipio", false, "Aggregate per municipio instead of departamento")
	rootCmd.AddCommand(aggregateCmd)
}
