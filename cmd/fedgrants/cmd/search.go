package cmd

import (
	"fedgrants-backend/cmd/fedgrants/globals"
	"fedgrants-backend/cmd/fedgrants/utils"
	"fedgrants-backend/internal/chrono"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/gencache"
	"fedgrants-backend/internal/pipeline"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	searchYears    []int
	searchAgencies []string
	searchKeywords string
	searchUSOnly   bool
	searchCacheDB  string
	searchForce    bool
)

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&searchYears, "years", nil, "Fiscal years to search.")
	cmd.Flags().StringSliceVar(&searchAgencies, "agency", nil, fmt.Sprintf("Agencies to search (%s).", strings.Join(pipeline.Agencies, ", ")))
	cmd.Flags().StringVar(&searchKeywords, "keywords", "", "Keywords separated by spaces.")
	cmd.Flags().BoolVar(&searchUSOnly, "us", false, "Only awards made to institutions in the United States.")
	cmd.MarkFlagRequired("agency")
}

func currentSearch() pipeline.Search {
	agencies := make([]string, len(searchAgencies))
	for i, a := range searchAgencies {
		agencies[i] = strings.ToUpper(strings.TrimSpace(a))
	}
	return pipeline.Search{
		Years:    searchYears,
		Agencies: agencies,
		Keywords: searchKeywords,
		USOnly:   searchUSOnly,
	}
}

func newPipeline(value *globals.Value) (pipeline.Pipeline, func(), error) {
	database, err := openDB(searchCacheDB, value.Config.CacheDB, db.CacheSchema)
	if err != nil {
		return pipeline.Pipeline{}, nil, err
	}
	fetchers, err := newFetchers(value)
	if err != nil {
		database.Close()
		return pipeline.Pipeline{}, nil, err
	}
	p := pipeline.New(
		value.Config,
		gencache.NewCache(database, value.Tel),
		fetchers,
		chrono.NewStandardTime(),
		value.Tel,
	)
	return p, func() { database.Close() }, nil
}

func init() {
	addSearchFlags(searchCmd)
	searchCmd.Flags().StringVar(&searchCacheDB, "db", "", "Cache database file, the configured cache database when empty.")
	searchCmd.Flags().BoolVar(&searchForce, "force", false, "Run the search even when it yields more results than the count limit.")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Runs a search against the award portals and caches the results.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		p, closeDB, err := newPipeline(value)
		if err != nil {
			return err
		}
		defer closeDB()

		search := currentSearch()
		if !searchForce {
			counts, err := p.Count(cmd.Context(), search)
			if err != nil {
				return err
			}
			if counts.Over {
				return fmt.Errorf(
					"the search yields %d results, the limit is %d: narrow it or pass --force",
					counts.Total, value.Config.Limit(),
				)
			}
		}

		result, err := p.Execute(cmd.Context(), search)
		if err != nil {
			return err
		}

		t := utils.NewTable("Agency", "Reported", "Processed", "Skipped", "Failed")
		t.SetTitle(fmt.Sprintf("Generation %d", result.Generation))
		for agency, report := range result.Reports {
			t.AppendRow(table.Row{agency, result.Reported[agency], report.Processed, report.Skipped, report.Failed})
		}
		total := result.Total()
		t.AppendFooter(table.Row{"Total", "", total.Processed, total.Skipped, total.Failed})
		t.SortBy([]table.SortBy{{Name: "Agency", Mode: table.Asc}})
		t.Render()

		if result.EvictErr != nil {
			fmt.Println("eviction of old generations failed:", result.EvictErr)
		} else if result.Evicted > 0 {
			fmt.Printf("evicted %d cached awards\n", result.Evicted)
		}
		return nil
	},
}
