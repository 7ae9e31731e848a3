package main

import (
	"github.com/spf13/cobra"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/analytics"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/fraud"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

func summarizeCmd() *cobra.Command {
	var (
		input     string
		dashboard bool
	)

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Count classifications over scored transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var txns []models.Transaction
			if err := readJSONFile(input, &txns); err != nil {
				return err
			}
			if dashboard {
				return writeJSON(cmd.OutOrStdout(), analytics.BuildDashboard(txns, true))
			}
			return writeJSON(cmd.OutOrStdout(), fraud.Summarize(txns))
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON array of scored transactions")
	cmd.Flags().BoolVar(&dashboard, "dashboard", false, "print the full analytics rollup instead of the summary")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
