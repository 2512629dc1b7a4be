package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bizdash/backend/internal/sheets"
)

func newServeSheetCmd() *cobra.Command {
	var (
		addr        string
		allowOrigin string
	)
	cmd := &cobra.Command{
		Use:   "serve-sheet",
		Short: "Run an in-memory spreadsheet endpoint for local development",
		Long: `Serve /transactions, /customers and /inventory backed by an in-memory
sheet. Point SHEETS_*_URL at these paths to exercise every transport
strategy without a real spreadsheet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := &http.Server{
				Addr:              addr,
				Handler:           sheetMux(sheets.NewSheet(), allowOrigin),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				fmt.Fprintf(cmd.OutOrStdout(), "sheet endpoint listening on %s\n", addr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8787", "listen address")
	cmd.Flags().StringVar(&allowOrigin, "allow-origin", "*", "Access-Control-Allow-Origin value; empty disables CORS headers")
	return cmd
}

func sheetMux(sheet *sheets.Sheet, allowOrigin string) *http.ServeMux {
	mux := http.NewServeMux()
	for _, group := range sheets.Groups() {
		mux.Handle("/"+string(group), sheets.NewEndpoint(group, sheet, allowOrigin))
	}
	return mux
}
