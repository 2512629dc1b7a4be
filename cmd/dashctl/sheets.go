package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bizdash/backend/internal/service"
	"bizdash/backend/internal/sheets"
)

var groupNames = func() string {
	names := make([]string, 0, len(sheets.Groups()))
	for _, g := range sheets.Groups() {
		names = append(names, string(g))
	}
	return strings.Join(names, "|")
}()

// groupCommand builds a command that runs one spreadsheet operation for the
// group named by its only argument.
func groupCommand(opts *rootOptions, use, short string, run func(ctx context.Context, cmd *cobra.Command, svc *service.Service, group sheets.Group) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <" + groupNames + ">",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := sheets.ParseGroup(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc, closeFn, err := openService(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()
			return run(ctx, cmd, svc, group)
		},
	}
}

func newTestCmd(opts *rootOptions) *cobra.Command {
	return groupCommand(opts, "test", "Check that a spreadsheet endpoint answers", func(ctx context.Context, cmd *cobra.Command, svc *service.Service, group sheets.Group) error {
		msg, err := svc.TestSheet(ctx, group)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	})
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return groupCommand(opts, "export", "Overwrite the spreadsheet with the cached collection", func(ctx context.Context, cmd *cobra.Command, svc *service.Service, group sheets.Group) error {
		msg, err := svc.ExportToSheet(ctx, group)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	})
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return groupCommand(opts, "import", "Replace the cached collection with the spreadsheet rows", func(ctx context.Context, cmd *cobra.Command, svc *service.Service, group sheets.Group) error {
		if err := svc.ImportFromSheet(ctx, group); err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), svc.Summary())
		return nil
	})
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return groupCommand(opts, "sync", "Merge the cached collection with the spreadsheet", func(ctx context.Context, cmd *cobra.Command, svc *service.Service, group sheets.Group) error {
		if err := svc.SyncWithSheet(ctx, group); err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), svc.Summary())
		return nil
	})
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard summary of the cached collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc, closeFn, err := openService(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()
			printSummary(cmd.OutOrStdout(), svc.Summary())
			return nil
		},
	}
}

func newTransportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transports",
		Short: "List the available transport strategies",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, s := range sheets.Strategies() {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
		},
	}
}
