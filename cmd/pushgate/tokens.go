package main

import (
	"encoding/hex"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/pushgate/pkg/notification"
)

func tokensCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect the inactive token database",
	}
	cmd.AddCommand(tokensListCmd(a), tokensForgetCmd(a))
	return cmd
}

func tokensListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tokens reported inactive, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("no token database configured (--token-db)")
			}
			defer store.Close()

			tokens, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN\tREPORTED")
			for _, t := range tokens {
				fmt.Fprintf(w, "%s\t%s\n", hex.EncodeToString(t.Token[:]), t.ReportedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func tokensForgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <token>...",
		Short: "Remove tokens from the database, e.g. after the app was reinstalled",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("no token database configured (--token-db)")
			}
			defer store.Close()

			for _, arg := range args {
				tok, err := notification.ParseBinaryToken(arg)
				if err != nil {
					return err
				}
				if err := store.Forget(cmd.Context(), tok.Binary()); err != nil {
					return err
				}
				a.log.Info().Str("token", tok.String()).Msg("token forgotten")
			}
			return nil
		},
	}
}
