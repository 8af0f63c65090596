package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/querylib"
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Manage the benchmark query library",
}

var queriesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert library queries missing from the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		seeds, err := querylib.Load(cfg.Benchmark.QueriesFile)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.SeedQueries(ctx, seeds)
		if err != nil {
			return eris.Wrap(err, "queries seed")
		}
		cmd.Printf("seeded %d new queries (%d in library, categories: %v)\n", n, len(seeds), querylib.Categories(seeds))
		return nil
	},
}

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored queries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		all, _ := cmd.Flags().GetBool("all")
		qs, err := st.ListQueries(ctx, !all)
		if err != nil {
			return eris.Wrap(err, "queries list")
		}
		if len(qs) == 0 {
			fmt.Fprintln(os.Stderr, "No queries stored. Run `geo-benchmark queries seed` first.")
			return nil
		}
		formatQueries(os.Stdout, qs)
		return nil
	},
}

func init() {
	queriesListCmd.Flags().Bool("all", false, "include inactive queries")
	queriesCmd.AddCommand(queriesSeedCmd)
	queriesCmd.AddCommand(queriesListCmd)
	rootCmd.AddCommand(queriesCmd)
}

// formatQueries writes the query table to w.
func formatQueries(out io.Writer, qs []model.Query) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tACTIVE\tQUERY")
	for _, q := range qs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", q.ID, q.Category, q.IsActive, q.Text)
	}
	_ = w.Flush()
}
