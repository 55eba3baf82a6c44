package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Score dealer health",
}

var healthRecomputeCmd = &cobra.Command{
	Use:   "recompute [dealer-id ...]",
	Short: "Recompute and store health snapshots (all active dealers when none given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context(), "engine")
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.Services.Health.Recompute(cmd.Context(), args)
		if err != nil {
			return err
		}
		zap.L().Info("health recompute complete",
			zap.Int("scored", len(res.Snapshots)),
			zap.Int("failed", len(res.Failed)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	healthCmd.AddCommand(
		functionCmd("score", "Show a dealer's health score", "get_dealer_health_score",
			dealerFlag,
			flagDef{"live", "true to compute from current data instead of the stored snapshot"},
		),
		healthRecomputeCmd,
	)
	rootCmd.AddCommand(healthCmd)
}
