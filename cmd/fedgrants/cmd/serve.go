package cmd

import (
	"context"
	"database/sql"
	"fedgrants-backend/cmd/fedgrants/globals"
	"fedgrants-backend/cmd/fedgrants/utils"
	"fedgrants-backend/internal/chrono"
	"fedgrants-backend/internal/db"
	"fedgrants-backend/internal/gencache"
	"fedgrants-backend/internal/query"
	libtelemetry "fedgrants-backend/lib/telemetry"
	"fedgrants-backend/lib/util/serviceutil"
	"fedgrants-backend/services/awards"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	evictCmd.Flags().Int64("generation", -1, "Current generation, the latest cached generation when negative.")
	evictCmd.Flags().Int64("window", 0, "Number of generations kept, the configured window when zero.")
	evictCmd.Flags().StringVar(&searchCacheDB, "db", "", "Cache database file, the configured cache database when empty.")
	rootCmd.AddCommand(evictCmd)

	serveCmd.Flags().Int("port", 8000, "Port to listen on.")
	serveCmd.Flags().String("db", "", "Canonical database file, the configured canonical database when empty.")
	serveCmd.Flags().String("evict-schedule", "", "Cron schedule of cache evictions, the configured schedule when empty.")
	rootCmd.AddCommand(serveCmd)
}

// evictLatest evicts the generations that fell out of the window behind the newest one.
func evictLatest(ctx context.Context, cache gencache.Cache, window int64) (gen, evicted int64, err error) {
	next, err := cache.NextGeneration(ctx)
	if err != nil {
		return 0, 0, err
	}
	gen = next - 1
	evicted, err = cache.EvictOlderThan(ctx, gen, window)
	return gen, evicted, err
}

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Evicts the cached awards that fell out of the generation window.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		gen, _ := cmd.Flags().GetInt64("generation")
		window, _ := cmd.Flags().GetInt64("window")
		if window <= 0 {
			window = value.Config.Window()
		}

		database, err := openDB(searchCacheDB, value.Config.CacheDB, db.CacheSchema)
		if err != nil {
			return err
		}
		defer database.Close()
		cache := gencache.NewCache(database, value.Tel)

		var evicted int64
		if gen < 0 {
			gen, evicted, err = evictLatest(cmd.Context(), cache, window)
		} else {
			evicted, err = cache.EvictOlderThan(cmd.Context(), gen, window)
		}
		if err != nil {
			return err
		}
		fmt.Printf("evicted %d awards older than generation %d\n", evicted, gen-window)

		gens, err := cache.Generations(cmd.Context())
		if err != nil {
			return err
		}
		t := utils.NewTable("Generation", "Awards")
		for _, g := range gens {
			t.AppendRow(table.Row{g.Counter, g.Awards})
		}
		t.Render()
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the award databases over http.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		port, _ := cmd.Flags().GetInt("port")
		path, _ := cmd.Flags().GetString("db")
		schedule, _ := cmd.Flags().GetString("evict-schedule")
		if schedule == "" {
			schedule = value.Config.EvictSchedule
		}

		canonical, err := openDB(path, value.Config.CanonicalDB, db.Schema)
		if err != nil {
			return err
		}
		defer canonical.Close()

		dbs := map[string]*sql.DB{"canonical": canonical}
		var cache *gencache.Cache
		if value.Config.CacheDB.Configured() {
			cacheDB, err := value.Config.CacheDB.OpenDB(db.CacheSchema)
			if err != nil {
				return err
			}
			defer cacheDB.Close()
			dbs["cache"] = cacheDB
			c := gencache.NewCache(cacheDB, value.Tel)
			cache = &c

			if schedule != "" {
				cron := chrono.NewStandardCron(value.Tel)
				err = cron.Cron(schedule, func() {
					gen, evicted, err := evictLatest(cmd.Context(), c, value.Config.Window())
					if err != nil {
						return
					}
					value.Tel.ReportDebug("scheduled eviction", "generation", gen, "evicted", evicted)
				})
				if err != nil {
					return err
				}
				cron.Start()
				defer cron.Stop()
			}
		}

		libtelemetry.InstrumentPerfStats(cmd.Context(), dbs)
		service := awards.NewService(query.New(canonical, value.Tel), cache, value.Tel)
		return serviceutil.StartHttpServer(cmd.Context(), port, service.Handler())
	},
}
