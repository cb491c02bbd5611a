package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var askUserID string

var askCmd = &cobra.Command{
	Use:   "ask <session-id> <question...>",
	Short: "Ask a question against an ingested session",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := args[0]
		question := strings.Join(args[1:], " ")

		result, err := a.orchestrator.Ask(cmd.Context(), sessionID, askUserID, question)
		if err != nil {
			return err
		}

		rendered := result.Answer
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100)); err == nil {
			if out, err := r.Render(result.Answer); err == nil {
				rendered = out
			}
		}
		fmt.Print(rendered)

		if result.NeedsClarification {
			fmt.Println("\n(more detail needed to answer confidently)")
		}
		if len(result.Sources) > 0 {
			fmt.Printf("\nsources: %s\n", strings.Join(result.Sources, ", "))
		}
		fmt.Printf("intent: %s  confidence: %.2f\n", result.Intent, result.Confidence)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "cli", "user id recorded with the conversation")
}
