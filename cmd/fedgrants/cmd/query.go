package cmd

import (
	"database/sql"
	"fedgrants-backend/cmd/fedgrants/globals"
	"fedgrants-backend/cmd/fedgrants/utils"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/keywords"
	"fedgrants-backend/internal/query"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	queryDB    string
	queryCache bool
)

func addDBFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&queryDB, "db", "", "Database file, the configured database when empty.")
	cmd.Flags().BoolVar(&queryCache, "cache", false, "Use the search cache instead of the canonical database.")
}

func openQueryDB(value *globals.Value) (*sql.DB, error) {
	if queryCache {
		return openDB(queryDB, value.Config.CacheDB, db.CacheSchema)
	}
	return openDB(queryDB, value.Config.CanonicalDB, db.Schema)
}

func splitKeywords(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func init() {
	addDBFlags(queryCmd)
	queryCmd.Flags().String("keywords", "", "Keywords every award must contain.")
	queryCmd.Flags().String("amount", "", "Awards within 10% of this amount.")
	queryCmd.Flags().String("from", "", "First start month, YYYY-MM or MM/YYYY.")
	queryCmd.Flags().String("to", "", "Last start month, YYYY-MM or MM/YYYY.")
	rootCmd.AddCommand(queryCmd)

	addDBFlags(reindexCmd)
	rootCmd.AddCommand(reindexCmd)

	addDBFlags(trigramsCmd)
	trigramsCmd.Flags().String("keywords", "", "Keywords selecting the awards.")
	trigramsCmd.Flags().Int("min", 2, "Minimum number of repetitions.")
	trigramsCmd.Flags().Int("max", 50, "Maximum number of trigrams printed.")
	trigramsCmd.MarkFlagRequired("keywords")
	rootCmd.AddCommand(trigramsCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Filters the awards of a database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		rawKeywords, _ := cmd.Flags().GetString("keywords")
		rawAmount, _ := cmd.Flags().GetString("amount")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		filter := query.Filter{Keywords: splitKeywords(rawKeywords), From: from, To: to}
		if rawAmount != "" {
			amount, err := awardstore.NormalizeAmount(rawAmount)
			if err != nil {
				return err
			}
			filter.Amount = amount
		}

		database, err := openQueryDB(value)
		if err != nil {
			return err
		}
		defer database.Close()

		results, err := query.New(database, value.Tel).Filter(cmd.Context(), filter)
		if err != nil {
			return err
		}

		t := utils.NewTable("Award", "Agency", "Title", "Amount", "Start")
		for _, a := range results.Awards {
			t.AppendRow(table.Row{a.AwardID, a.Agency, a.Title, a.Amount, a.StartDate.String})
		}
		t.AppendFooter(table.Row{fmt.Sprintf("%d awards", len(results.Awards)), "", "Total", results.Total, ""})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Title", WidthMax: 60},
			{Name: "Amount", Align: text.AlignRight, AlignFooter: text.AlignRight},
		})
		t.Render()
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuilds the keyword index of a database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		database, err := openQueryDB(value)
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := keywords.NewIndex(database, value.Tel).Rebuild(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d awards\n", n)
		return nil
	},
}

var trigramsCmd = &cobra.Command{
	Use:   "trigrams",
	Short: "Prints the phrases repeated across the awards matching keywords.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		rawKeywords, _ := cmd.Flags().GetString("keywords")
		minRepeat, _ := cmd.Flags().GetInt("min")
		maxReturn, _ := cmd.Flags().GetInt("max")

		database, err := openQueryDB(value)
		if err != nil {
			return err
		}
		defer database.Close()

		trigrams, err := query.New(database, value.Tel).Trigrams(cmd.Context(), splitKeywords(rawKeywords), minRepeat, maxReturn)
		if err != nil {
			return err
		}
		t := utils.NewTable("Trigram", "Count")
		for _, tri := range trigrams {
			t.AppendRow(table.Row{tri.String(), tri.Count})
		}
		t.Render()
		return nil
	},
}
