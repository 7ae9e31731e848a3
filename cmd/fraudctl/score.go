package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/fraud"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/service"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/validation"
)

func scoreCmd() *cobra.Command {
	var (
		txnPath     string
		historyPath string
		explain     bool
		timezone    string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Assess one transaction against a user's history",
		Example: `  fraudctl score --transaction txn.json --history history.json
  fraudctl score --transaction txn.json --explain --timezone Europe/Paris`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req models.ScoreRequest
			if err := readJSONFile(txnPath, &req.Transaction); err != nil {
				return err
			}
			if historyPath != "" {
				if err := readJSONFile(historyPath, &req.History); err != nil {
					return err
				}
			}
			if err := validation.ValidateScoreRequest(req); err != nil {
				return err
			}

			rules := fraud.DefaultRules()
			if timezone != "" {
				loc, err := time.LoadLocation(timezone)
				if err != nil {
					return fmt.Errorf("invalid timezone %q: %w", timezone, err)
				}
				rules.Location = loc
			}

			txn := req.Transaction
			validation.ApplyDefaults(&txn)
			history := make([]models.Transaction, 0, len(req.History))
			for _, h := range req.History {
				if h.ID != "" && h.ID == txn.ID {
					continue
				}
				validation.ApplyDefaults(&h)
				history = append(history, h)
			}
			sort.SliceStable(history, func(i, j int) bool {
				return history[i].Timestamp.Before(history[j].Timestamp)
			})

			assessment, contributions := fraud.NewEngine(rules).AssessContributions(txn, history)
			if !explain {
				return writeJSON(cmd.OutOrStdout(), assessment)
			}
			return writeJSON(cmd.OutOrStdout(), service.ScoreResult{
				Assessment: assessment,
				Status:     fraud.StatusFor(assessment.Classification),
				Factors:    contributions,
			})
		},
	}

	cmd.Flags().StringVarP(&txnPath, "transaction", "t", "", "JSON file holding the transaction to score")
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file holding the user's prior transactions")
	cmd.Flags().BoolVar(&explain, "explain", false, "include the per-factor breakdown")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA zone for the night-time check (default: host zone)")
	_ = cmd.MarkFlagRequired("transaction")
	return cmd
}
