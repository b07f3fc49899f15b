package main

import (
	"encoding/hex"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/pushgate/pkg/wire"
)

func feedbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "feedback",
		Short: "Fetch inactive device tokens from the feedback service",
		Long: `Feedback connects to the feedback service once, prints every reported
token with the time it was reported, and records it in the token database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := a.openStore()
			if err != nil {
				return fmt.Errorf("open token store: %w", err)
			}
			if store != nil {
				defer store.Close()
			}

			gw, err := a.newGateway(store, nil, false)
			if err != nil {
				return fmt.Errorf("create gateway: %w", err)
			}

			out := cmd.OutOrStdout()
			n, err := gw.Feedback(ctx, func(rec wire.FeedbackRecord) error {
				_, err := fmt.Fprintf(out, "%s\t%s\n", hex.EncodeToString(rec.Token[:]), rec.Time.UTC().Format(time.RFC3339))
				return err
			})
			if err != nil {
				return err
			}
			a.log.Info().Int("tokens", n).Msg("feedback fetched")
			return nil
		},
	}
}
