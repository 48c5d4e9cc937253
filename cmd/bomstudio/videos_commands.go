package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bomstudio/internal/store"
	"bomstudio/internal/video"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect and retry videos",
	}
	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosShowCommand(ctx))
	videosCmd.AddCommand(newVideosRetryCommand(ctx))
	return videosCmd
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var projectID string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.VideoFilter{ProjectID: projectID, Page: store.Page{Limit: limit}}
			if status != "" {
				parsed, ok := store.ParseVideoStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q (expected one of %s)", status, statusList())
				}
				filter.Status = parsed
			}
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				videos, err := st.FindVideos(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, videos)
				}
				if len(videos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No videos")
					return nil
				}
				rows := make([][]string, 0, len(videos))
				for _, v := range videos {
					rows = append(rows, []string{
						v.ID, v.Title, string(v.Status), yesNo(v.PipelineRunning), formatCents(v.CostCents), formatTime(v.UpdatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Running", "Cost", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status ("+statusList()+")")
	cmd.Flags().StringVar(&projectID, "project", "", "Filter by project id")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultLimit, "Maximum rows to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newVideosShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a video with its script and assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				v, err := st.GetVideo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				assets, err := st.ListAssets(cmd.Context(), v.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"video": v, "assets": assets})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Video:     %s\n", v.ID)
				fmt.Fprintf(out, "Title:     %s\n", v.Title)
				fmt.Fprintf(out, "Status:    %s\n", v.Status)
				fmt.Fprintf(out, "Next:      %s\n", nextEvents(v.Status))
				fmt.Fprintf(out, "Running:   %s\n", yesNo(v.PipelineRunning))
				fmt.Fprintf(out, "Cost:      %s\n", formatCents(v.CostCents))
				fmt.Fprintf(out, "Note:      %s\n", valueOr(v.ApprovalNote, "-"))
				fmt.Fprintf(out, "Delivery:  %s\n", valueOr(v.DeliveryURL, "-"))
				for _, name := range []string{"vertical", "square", "horizontal"} {
					if path, ok := v.Formats[name]; ok {
						fmt.Fprintf(out, "Format:    %s -> %s\n", name, path)
					}
				}
				if !v.Script.IsEmpty() {
					fmt.Fprintf(out, "Script:    %s\n", v.Script.VoiceoverText())
				}
				if len(assets) > 0 {
					rows := make([][]string, 0, len(assets))
					for _, a := range assets {
						rows = append(rows, []string{string(a.Type), a.URL, formatTime(a.CreatedAt)})
					}
					fmt.Fprintln(out, renderTable([]string{"Type", "URL", "Created"}, rows, nil))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newVideosRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Ask the running daemon to restart generation for a video in scripting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := newDaemonClient(cfg)
			v, err := client.retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retry started for %s (%s)\n", v.ID, v.Title)
			return nil
		},
	}
}

func statusList() string {
	statuses := store.AllVideoStatuses()
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func nextEvents(status store.VideoStatus) string {
	events := video.Events(status)
	if len(events) == 0 {
		return "-"
	}
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}
