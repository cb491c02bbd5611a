package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docpilot/internal/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url> [url...]",
	Short: "Ingest documentation pages and print the session id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.manager.StartIngestion(args)
		if err != nil {
			return err
		}
		fmt.Printf("session: %s\n", id)

		for {
			snap, err := a.manager.Status(id)
			if err != nil {
				return err
			}
			if snap.Status.Terminal() {
				if snap.Status == types.StatusFailed {
					return fmt.Errorf("ingestion failed: %s", snap.Error)
				}
				for _, r := range snap.Reports {
					fmt.Printf("  %s: %q, %d sections, %d fragments\n", r.URL, r.Title, r.SectionsFound, r.ChunksIndexed)
				}
				fmt.Println("status: completed")
				return nil
			}
			select {
			case <-cmd.Context().Done():
				a.manager.Cancel(id)
				return cmd.Context().Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
	},
}
