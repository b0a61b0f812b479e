package cmd

import (
	"fedgrants-backend/cmd/fedgrants/globals"
	"fedgrants-backend/cmd/fedgrants/utils"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Prints the number of results a search would yield without running it.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		p, closeDB, err := newPipeline(value)
		if err != nil {
			return err
		}
		defer closeDB()

		counts, err := p.Count(cmd.Context(), currentSearch())
		if err != nil {
			return err
		}

		t := utils.NewTable("Source", "Results", "Over limit")
		for _, c := range counts.Sources {
			t.AppendRow(table.Row{c.Source, c.Count, c.Over})
		}
		t.AppendFooter(table.Row{"Total", counts.Total, counts.Over})
		t.Render()

		if counts.Over {
			fmt.Printf("the search yields %d results or more, narrow it before caching\n", value.Config.Limit())
		}
		return nil
	},
}

func init() {
	addSearchFlags(countCmd)
	rootCmd.AddCommand(countCmd)
}
