package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the provider and list numbered results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			items, err := client.search(ctx.owner(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.Itoa(item.Ordinal),
					item.Title,
					item.Kind,
					item.Year,
					strings.Join(item.Availability, ","),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"#", "Title", "Kind", "Year", "Available"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}

func newPickCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string
	cmd := &cobra.Command{
		Use:   "pick <number>",
		Short: "Pick a search result and list its resources by priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ordinal, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid result number %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			sel, err := client.pick(ctx.owner(), ordinal, typeFlag)
			if err != nil {
				return err
			}
			if len(sel.Resources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No resources.")
				return nil
			}

			if sel.Title != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", sel.Title, sel.Type)
			}
			rows := make([][]string, 0, len(sel.Resources))
			for _, res := range sel.Resources {
				rows = append(rows, []string{
					strconv.Itoa(res.Ordinal),
					res.Title,
					res.SizeLabel,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"#", "Resource", "Size"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Fetch one explicit resource type (share, magnet, ed2k, stream)")
	return cmd
}

func newTransferCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <number>",
		Short: "Send a picked resource to its transfer backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ordinal, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid resource number %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out, err := client.transfer(ctx.owner(), ordinal)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch out.Status {
			case "succeeded":
				fmt.Fprintf(w, "Transfer %s accepted by %s.\n", out.ID, out.Backend)
				if out.Destination != "" {
					fmt.Fprintf(w, "Destination: %s\n", out.Destination)
				}
				if out.Degraded {
					fmt.Fprintln(w, "Note: destination folder was unavailable, saved to the root folder instead.")
				}
			case "unavailable":
				fmt.Fprintf(w, "No backend handles this resource: %s\n", out.Message)
			default:
				fmt.Fprintf(w, "Transfer failed (%s): %s\n", out.Reason, out.Message)
			}
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon activity counters and wired backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.status()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Searches", strconv.FormatInt(status.Searches, 10)},
				{"Transfers", strconv.FormatInt(status.Transfers, 10)},
				{"Succeeded", strconv.FormatInt(status.TransfersSucceeded, 10)},
				{"Failed", strconv.FormatInt(status.TransfersFailed, 10)},
				{"CloudDrive", onOff(status.CloudDrive)},
				{"115 drive", onOff(status.Drive115)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"Item", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newOfflineCommand(ctx *commandContext) *cobra.Command {
	var refreshFlag bool
	cmd := &cobra.Command{
		Use:   "offline",
		Short: "List offline download tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			tasks, err := client.offline(refreshFlag)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No offline tasks.")
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				state := fmt.Sprintf("%.1f%%", task.Percent)
				if task.Finished {
					state = "done"
				}
				rows = append(rows, []string{task.Name, formatSize(task.Size), state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"Name", "Size", "Progress"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refreshFlag, "refresh", false, "Force the backend to refresh task state")
	return cmd
}

func onOff(b bool) string {
	if b {
		return "configured"
	}
	return "off"
}

func formatSize(size int64) string {
	const unit = 1024
	if size <= 0 {
		return "-"
	}
	if size < unit {
		return fmt.Sprintf("%dB", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(size)/float64(div), "KMGTPE"[exp])
}
