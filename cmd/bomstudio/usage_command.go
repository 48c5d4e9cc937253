package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bomstudio/internal/store"
)

func newUsageCommand(ctx *commandContext) *cobra.Command {
	var projectID string
	var provider string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show the usage ledger and total spend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				filter := store.UsageFilter{ProjectID: projectID, Provider: provider, Page: store.Page{Limit: limit}}
				records, err := st.ListUsage(cmd.Context(), filter)
				if err != nil {
					return err
				}
				total, err := st.SumUsage(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"records": records, "total_cents": total})
				}
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{
						formatTime(r.CreatedAt), r.Provider, r.Action, r.ProjectID, formatCents(r.CostCents),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"When", "Provider", "Action", "Project", "Cost"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
					"", "", "", strconv.Itoa(len(records))+" records", formatCents(total),
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Filter by project id")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider (openai, replicate, elevenlabs)")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultLimit, "Maximum rows to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
