package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/pushgate/pkg/notification"
	"github.com/bft-labs/pushgate/pkg/pushgate"
)

func sendCmd(a *app) *cobra.Command {
	var input string
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send notifications read as JSON lines",
		Long: `Send reads one JSON object per line from --input (or stdin):

  {"token": "<hex|base64|registration id>", "message": "hi",
   "sound": "default", "custom": {"k": "v"},
   "priority": "immediate|power-saving", "expiration": "1h|RFC3339"}

Binary tokens go to the notification gateway, registration ids to the
JSON/HTTP endpoint. Send exits once every notification has been written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			return a.runSend(r, keepGoing)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "file with one JSON notification per line (default: stdin)")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "log and skip invalid or refused notifications instead of stopping")
	return cmd
}

func (a *app) runSend(r io.Reader, keepGoing bool) error {
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	store, err := a.openStore()
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	reg := a.serveMetrics(metricsCtx)

	gw, err := a.newGateway(store, reg, true)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	if err := gw.Start(context.Background()); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	var sent, skipped int
	start := time.Now()
	sendErr := readMessages(r, func(line int, m message) error {
		if err := sigCtx.Err(); err != nil {
			return err
		}
		err := a.sendOne(sigCtx, gw, m)
		switch {
		case err == nil:
			sent++
			return nil
		case errors.Is(err, pushgate.ErrInactiveToken):
			skipped++
			a.log.Info().Int("line", line).Str("token", m.Token).Msg("skipping inactive token")
			return nil
		case keepGoing && sigCtx.Err() == nil:
			skipped++
			a.log.Warn().Int("line", line).Err(err).Msg("notification not sent")
			return nil
		default:
			return fmt.Errorf("line %d: %w", line, err)
		}
	})
	if errors.Is(sendErr, context.Canceled) {
		a.log.Info().Msg("received signal, stopping...")
		sendErr = nil
	}

	a.log.Info().
		Int("sent", sent).
		Int("skipped", skipped).
		Dur("elapsed", time.Since(start)).
		Msg("flushing queued notifications")

	if err := gw.Stop(); err != nil {
		return errors.Join(sendErr, fmt.Errorf("stop gateway: %w", err))
	}
	return sendErr
}

func (a *app) sendOne(ctx context.Context, gw *pushgate.Gateway, m message) error {
	n, err := m.toNotification(time.Now())
	if err != nil {
		return err
	}
	if err := gw.Send(ctx, n); err != nil {
		return err
	}
	if n.Channel() == notification.JSONHTTP {
		a.log.Debug().Str("token", n.Token.String()).Msg("posted notification")
	}
	return nil
}
