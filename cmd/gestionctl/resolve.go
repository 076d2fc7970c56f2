package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EmpoweredVote/gestion-map/internal/aggregate"
)

var onlyUnresolved bool

type resolveLine struct {
	ID          string               `json:"id"`
	Departments []string             `json:"departamentos"`
	Municipios  []string             `json:"municipios"`
	Resolution  aggregate.Resolution `json:"resolucion"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show how each record's locations resolve against the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}

		counts := map[aggregate.Reason]int{}
		var lines []resolveLine
		for _, g := range d.records {
			res := aggregate.Resolve(g, d.index)
			counts[res.Reason]++
			if onlyUnresolved && res.Reason == aggregate.ReasonResolved && len(res.Unresolved) == 0 {
				continue
			}
			lines = append(lines, resolveLine{
				ID:          g.ID,
				Departments: g.Departments,
				Municipios:  g.Municipios,
				Resolution:  res,
			})
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(lines)
		}

		for _, l := range lines {
			fmt.Printf("%-12s %-16s %s | %s\n", l.ID, l.Resolution.Reason,
				strings.Join(l.Departments, "; "), strings.Join(l.Municipios, "; "))
			for _, e := range l.Resolution.Entries {
				fmt.Printf("    -> %s, %s (%.4f, %.4f)\n", e.Municipio, e.Department, e.Lat, e.Lng)
			}
			for _, u := range l.Resolution.Unresolved {
				fmt.Printf("    !! %s: %s\n", u.Name, u.Reason)
			}
		}
		fmt.Printf("\n%d records:", len(d.records))
		for _, r := range []aggregate.Reason{
			aggregate.ReasonResolved,
			aggregate.ReasonDepartmentOnly,
			aggregate.ReasonAmbiguous,
			aggregate.ReasonNotFound,
			aggregate.ReasonNoLocation,
		} {
			fmt.Printf(" %s=%d", r, counts[r])
		}
		fmt.Println()
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&onlyUnresolved, "unresolved", false, "Only list records with a name that did not resolve")
	rootCmd.AddCommand(resolveCmd)
}
