package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bomstudio/internal/store"
)

func newClientsCommand(ctx *commandContext) *cobra.Command {
	clientsCmd := &cobra.Command{
		Use:   "clients",
		Short: "Inspect clients",
	}
	clientsCmd.AddCommand(newClientsListCommand(ctx))
	return clientsCmd
}

func newClientsListCommand(ctx *commandContext) *cobra.Command {
	var pkg string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				clients, err := st.FindClients(cmd.Context(), store.ClientFilter{
					Package: store.Package(pkg),
					Page:    store.Page{Limit: limit},
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, clients)
				}
				if len(clients) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No clients")
					return nil
				}
				rows := make([][]string, 0, len(clients))
				for _, c := range clients {
					rows = append(rows, []string{c.ID, c.Name, c.Email, string(c.Package), formatTime(c.CreatedAt)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Email", "Package", "Created"}, rows, nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pkg, "package", "", "Filter by package (kickstart, growth, pro)")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultLimit, "Maximum rows to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
