package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docpilot/internal/watch"
)

var watchSessionID string

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Keep a documentation directory indexed",
	Long:  "Watches a directory of markdown and HTML files and keeps its index up to\ndate as files change. Chat against it with the session id printed at start.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		w, err := watch.New(args[0], watchSessionID, newSegmenter(cfg), a.store)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("watching %s (session: %s)\n", args[0], watchSessionID)
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSessionID, "session", "local-docs", "session id the directory is indexed under")
}
