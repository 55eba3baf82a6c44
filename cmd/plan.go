package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fieldops/internal/export"
	"github.com/sells-group/fieldops/internal/planner"
)

var (
	planRep    string
	planMax    int
	planFormat string
	planOutput string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Suggest today's dealer visits for a sales person",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch planFormat {
		case "json", "table", "csv":
		case "xlsx":
			if planOutput == "" {
				return eris.New("--output is required for xlsx")
			}
		default:
			return eris.Errorf("unknown format %q: want json, table, csv or xlsx", planFormat)
		}

		e, err := initEnv(cmd.Context(), "engine")
		if err != nil {
			return err
		}
		defer e.Close()

		plan, err := e.Services.Planner.Plan(cmd.Context(), planner.PlanRequest{
			SalesPersonID: planRep,
			MaxDealers:    planMax,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch planFormat {
		case "table":
			return export.WritePlanText(out, plan)
		case "csv":
			return export.WriteCSV(out, export.PlanTable(plan))
		case "xlsx":
			return export.WriteXLSX(planOutput, "Visit Plan", export.PlanTable(plan))
		default:
			return printJSON(out, plan)
		}
	},
}

func init() {
	planCmd.Flags().StringVar(&planRep, "sales-person-id", "", "sales person to plan for")
	planCmd.Flags().IntVar(&planMax, "max", 0, "maximum dealers (default from config)")
	planCmd.Flags().StringVar(&planFormat, "format", "json", "output format: json, table, csv or xlsx")
	planCmd.Flags().StringVar(&planOutput, "output", "", "output file for xlsx")
	rootCmd.AddCommand(planCmd)
}
