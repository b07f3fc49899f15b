package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/pushgate/internal/cliconfig"
)

const helpDescription = `
Deliver push notifications over the binary gateway protocol and JSON/HTTP.

Highlights:
  - Keeps a replay window of sent notifications and resends everything the
    gateway dropped after rejecting one of them.
  - Polls the feedback service and remembers tokens reported inactive.
  - Reloads the client certificate when the bundle on disk changes.
  - Configure via file ($HOME/.pushgate/config.toml), PUSHGATE_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  pushgate send --cert-file push.p12 --input notifications.ndjson
  pushgate send --environment sandbox --cert-file dev.p12 < notifications.ndjson
  pushgate feedback --cert-file push.p12
  pushgate tokens list
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration shared by every subcommand.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig()}
	a.log = a.cfg.Logger(os.Stderr)

	root := &cobra.Command{
		Use:           "pushgate",
		Short:         "Push notification gateway client",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	a.bindFlags(root.PersistentFlags())

	root.AddCommand(
		sendCmd(a),
		feedbackCmd(a),
		tokensCmd(a),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		a.log.Error().Err(err).Msg("pushgate")
		os.Exit(1)
	}
}

func (a *app) bindFlags(fs *pflag.FlagSet) {
	cfg := &a.cfg
	fs.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.pushgate/config.toml)")

	fs.StringVar(&cfg.Environment, "environment", cfg.Environment, "gateway environment: production or sandbox")
	fs.StringVar(&cfg.GatewayAddr, "gateway-addr", cfg.GatewayAddr, "override the notification gateway host:port")
	fs.StringVar(&cfg.FeedbackAddr, "feedback-addr", cfg.FeedbackAddr, "override the feedback service host:port")
	fs.BoolVar(&cfg.Plain, "plain", cfg.Plain, "connect without TLS (local testing only)")
	fs.StringVar(&cfg.CertFile, "cert-file", cfg.CertFile, "PKCS#12 client certificate bundle")
	fs.StringVar(&cfg.CertPassphrase, "cert-passphrase", cfg.CertPassphrase, "passphrase of the certificate bundle")

	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "notifications kept for replay")
	fs.DurationVar(&cfg.Retain, "retain", cfg.Retain, "minimum time a sent notification stays replayable")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "connection setup timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "single frame write timeout")

	fs.StringVar(&cfg.HTTPEndpoint, "http-endpoint", cfg.HTTPEndpoint, "JSON/HTTP push endpoint")
	fs.StringVar(&cfg.HTTPAPIKey, "http-api-key", cfg.HTTPAPIKey, "API key for the JSON/HTTP endpoint (empty disables it)")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "JSON/HTTP request timeout")

	fs.StringVar(&cfg.TokenDB, "token-db", cfg.TokenDB, "SQLite database of inactive tokens (empty disables it)")
	fs.BoolVar(&cfg.SkipInactive, "skip-inactive", cfg.SkipInactive, "do not send to tokens reported inactive")
	fs.DurationVar(&cfg.FeedbackInterval, "feedback-interval", cfg.FeedbackInterval, "feedback polling interval while sending")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "time allowed to flush queued notifications on exit")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
}

// load resolves the configuration: defaults < file < env < flags.
func (a *app) load(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}

	a.log = a.cfg.Logger(os.Stderr)

	logCfg := a.cfg
	if logCfg.CertPassphrase != "" {
		logCfg.CertPassphrase = "*****"
	}
	if logCfg.HTTPAPIKey != "" {
		logCfg.HTTPAPIKey = "*****"
	}
	a.log.Debug().Interface("config", logCfg).Msg("configuration")
	return nil
}
