package cmd

import (
	"fedgrants-backend/cmd/fedgrants/globals"
	"fedgrants-backend/cmd/fedgrants/utils"
	devenv "fedgrants-backend/dev/env"
	"fedgrants-backend/internal/awardstore"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/sources/nsf"
	"fedgrants-backend/internal/sources/taggs"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var ingestDB string

func init() {
	ingestCmd.PersistentFlags().StringVar(&ingestDB, "db", "", "Canonical database file, the configured canonical database when empty.")

	ingestNSFCmd.Flags().String("dir", "", "Directory of bulk award xml files.")
	ingestNSFCmd.Flags().String("archive", "", "Yearly bulk award zip archive.")
	ingestNSFCmd.Flags().Int("year", 0, "Download the bulk archive of this year and ingest it.")
	ingestNSFCmd.MarkFlagsOneRequired("dir", "archive", "year")
	ingestNSFCmd.MarkFlagsMutuallyExclusive("dir", "archive", "year")

	ingestTAGGSCmd.Flags().String("csv", "", "TAGGS advanced search csv export.")
	ingestTAGGSCmd.Flags().String("agency", "", "Agency of every row, the OPDIV column of each row when empty.")
	ingestTAGGSCmd.MarkFlagRequired("csv")

	ingestCmd.AddCommand(ingestNSFCmd)
	ingestCmd.AddCommand(ingestTAGGSCmd)
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Loads award exports into the canonical database.",
}

func openCanonical(value *globals.Value) (awardstore.Store, error) {
	database, err := openDB(ingestDB, value.Config.CanonicalDB, db.Schema)
	if err != nil {
		return awardstore.Store{}, err
	}
	return awardstore.NewStore(database, value.Tel), nil
}

func printReports(reports map[string]awardstore.MergeReport) {
	t := utils.NewTable("Agency", "Processed", "Skipped", "Failed")
	var total awardstore.MergeReport
	for agency, report := range reports {
		t.AppendRow(table.Row{agency, report.Processed, report.Skipped, report.Failed})
		total = total.Add(report)
	}
	t.AppendFooter(table.Row{"Total", total.Processed, total.Skipped, total.Failed})
	t.SortBy([]table.SortBy{{Name: "Agency", Mode: table.Asc}})
	t.Render()
}

var ingestNSFCmd = &cobra.Command{
	Use:   "nsf",
	Short: "Ingests NSF bulk award files.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		dir, _ := cmd.Flags().GetString("dir")
		archive, _ := cmd.Flags().GetString("archive")
		year, _ := cmd.Flags().GetInt("year")

		var (
			records []awardstore.RawRecord
			err     error
		)
		switch {
		case dir != "":
			records, err = nsf.ReadDir(dir)
		case archive != "":
			records, err = nsf.ReadArchive(archive)
		default:
			archive, err = downloadNSFArchive(cmd, value, year)
			if err != nil {
				return err
			}
			records, err = nsf.ReadArchive(archive)
		}
		if err != nil {
			return err
		}

		store, err := openCanonical(value)
		if err != nil {
			return err
		}
		defer store.DB().Close()

		report, err := store.MergeSource(cmd.Context(), "NSF", records)
		if err != nil {
			return err
		}
		printReports(map[string]awardstore.MergeReport{"NSF": report})
		return nil
	},
}

func downloadNSFArchive(cmd *cobra.Command, value *globals.Value, year int) (string, error) {
	fetcher, err := newNSFFetcher(value)
	if err != nil {
		return "", err
	}
	archives, err := fetcher.Archives(cmd.Context())
	if err != nil {
		return "", err
	}
	name := strconv.Itoa(year)
	for _, a := range archives {
		if a.Name != name {
			continue
		}
		dir := os.TempDir()
		if value.Config.StagingDir != "" {
			dir, err = devenv.ResolvePath(value.Config.StagingDir)
			if err != nil {
				return "", err
			}
		}
		return fetcher.DownloadArchive(cmd.Context(), a, filepath.Join(dir, "nsf-archives"))
	}
	return "", fmt.Errorf("no bulk archive for year %d", year)
}

var ingestTAGGSCmd = &cobra.Command{
	Use:   "taggs",
	Short: "Ingests a TAGGS csv export.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		path, _ := cmd.Flags().GetString("csv")
		agency, _ := cmd.Flags().GetString("agency")

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		records, err := taggs.ReadCSV(file)
		file.Close()
		if err != nil {
			return err
		}

		byAgency := map[string][]awardstore.RawRecord{}
		for _, r := range records {
			a := strings.ToUpper(agency)
			if a == "" {
				a = strings.ToUpper(r.Fields["opdiv"])
			}
			byAgency[a] = append(byAgency[a], r)
		}

		store, err := openCanonical(value)
		if err != nil {
			return err
		}
		defer store.DB().Close()

		reports := map[string]awardstore.MergeReport{}
		for a, rows := range byAgency {
			if a == "" {
				reports["unknown"] = awardstore.MergeReport{Skipped: len(rows)}
				continue
			}
			report, err := store.MergeSource(cmd.Context(), a, rows)
			if err != nil {
				return err
			}
			reports[a] = report
		}
		printReports(reports)
		return nil
	},
}
