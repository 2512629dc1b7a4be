// Command dashctl moves dashboard collections between the local cache and the
// spreadsheet endpoints, and can serve a development spreadsheet endpoint.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bizdash/backend/internal/cache"
	"bizdash/backend/internal/config"
	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/service"
	"bizdash/backend/internal/sheets"
)

type rootOptions struct {
	transport string
	cachePath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Spreadsheet sync tooling for the dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.transport == "" {
				return nil
			}
			_, err := sheets.ParseStrategy(opts.transport)
			return err
		},
	}
	root.PersistentFlags().StringVar(&opts.transport, "transport", "", "transport strategy (overrides SHEETS_TRANSPORT)")
	root.PersistentFlags().StringVar(&opts.cachePath, "cache", "", "local cache file (overrides LOCAL_CACHE_PATH)")

	root.AddCommand(
		newTestCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newSyncCmd(opts),
		newSummaryCmd(opts),
		newTransportsCmd(),
		newServeSheetCmd(),
	)
	return root
}

// openService builds a sessionless service over the configured local cache
// and spreadsheet endpoints. Notifications are written to errOut.
func openService(ctx context.Context, opts *rootOptions, errOut io.Writer) (*service.Service, func() error, error) {
	cfg := config.Load()
	if opts.transport != "" {
		cfg.SheetsTransport = opts.transport
	}
	if opts.cachePath != "" {
		cfg.LocalCachePath = opts.cachePath
	}

	local, closeCache, err := cache.Open(ctx, cache.OpenOptions{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		SQLitePath:    cfg.LocalCachePath,
	})
	if err != nil {
		return nil, nil, err
	}

	svc := service.New(service.Options{
		Cache:  local,
		Sheets: sheets.New(cfg.Sheets()),
		Notifier: service.NotifierFunc(func(n domain.Notification) {
			fmt.Fprintf(errOut, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
		}),
	})
	svc.Load(ctx)
	return svc, closeCache, nil
}

func printSummary(w io.Writer, s domain.Summary) {
	fmt.Fprintf(w, "customers: %d\nproducts: %d (low stock %d)\nsuppliers: %d\n", s.CustomerCount, s.ProductCount, s.LowStockCount, s.SupplierCount)
	fmt.Fprintf(w, "income: %s\nexpenses: %s\nbalance: %s\n", s.TotalIncome.StringFixed(2), s.TotalExpenses.StringFixed(2), s.Balance.StringFixed(2))
}
