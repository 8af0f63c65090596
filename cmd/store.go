package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates config for mode, connects, and migrates. Callers
// should defer st.Close().
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the results database",
}

var storeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context(), config.ModeRead)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		cmd.Printf("schema ready (%s)\n", cfg.Store.Driver)
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeInitCmd)
	rootCmd.AddCommand(storeCmd)
}
