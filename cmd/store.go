package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/store"
)

var seedFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer e.Close()

		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load reference and transactional data from a YAML fixtures file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedFile == "" {
			return eris.New("--file is required")
		}
		f, err := store.LoadFixtures(seedFile)
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Store.ImportFixtures(cmd.Context(), f); err != nil {
			return err
		}

		counts := f.Counts()
		zap.L().Info("fixtures imported", zap.String("file", seedFile), zap.Any("counts", counts))
		return printJSON(cmd.OutOrStdout(), counts)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "path to the fixtures YAML")
	rootCmd.AddCommand(migrateCmd, seedCmd)
}
