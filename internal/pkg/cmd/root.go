package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/encircle/slack-alerter/internal/pkg/alerting"
	"github.com/encircle/slack-alerter/internal/pkg/config"
	"github.com/encircle/slack-alerter/internal/pkg/logging"
	"github.com/encircle/slack-alerter/internal/pkg/match"
	"github.com/encircle/slack-alerter/internal/pkg/metrics"
	"github.com/encircle/slack-alerter/internal/pkg/server"
)

// options holds values shared by every subcommand.
type options struct {
	configFile string
	matches    string
}

// NewRootCommand builds the slack-alerter command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "slack-alerter",
		Short:         "Deliver alert matches to a Slack webhook",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "",
		"Config or ElastAlert rule file (YAML, TOML or JSON)")
	config.BindFlags(cmd.PersistentFlags(), config.NewDefault())

	cmd.AddCommand(newSendCommand(opts), newServeCommand(opts))
	return cmd
}

func newSendCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Dispatch one batch of matches read from a file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.matches, "matches", "-",
		"File holding a JSON array of matches, or '-' for stdin")
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept match batches over HTTP and dispatch each one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

// setup loads the configuration and logger for a subcommand.
func setup(cmd *cobra.Command, opts *options) (*config.Config, logr.Logger, error) {
	cfg, err := config.Load(viper.New(), cmd.Flags(), opts.configFile)
	if err != nil {
		return nil, logr.Logger{}, fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.Configure(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, logr.Logger{}, fmt.Errorf("configuring logging: %w", err)
	}
	return cfg, log, nil
}

func newDispatcher(cfg *config.Config, log logr.Logger, collectors *metrics.Collectors) (*alerting.Dispatcher, error) {
	dispatcherOpts := []alerting.Option{
		alerting.WithLogger(log),
		alerting.WithCollectors(collectors),
	}
	if cfg.DryRun {
		log.Info("dry-run is set, payloads will be logged instead of posted")
		dispatcherOpts = append(dispatcherOpts, alerting.WithSender(alerting.NewLogSender(log)))
	}
	return alerting.New(cfg.Alerting, dispatcherOpts...)
}

func runSend(cmd *cobra.Command, opts *options) error {
	cfg, log, err := setup(cmd, opts)
	if err != nil {
		return err
	}

	collectors, reg := metrics.SetupPrometheusEndpoint(nil)
	d, err := newDispatcher(cfg, log, &collectors)
	if err != nil {
		return err
	}

	data, err := readMatches(cmd.InOrStdin(), opts.matches)
	if err != nil {
		return err
	}
	matches, err := match.ParseBatch(data)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	alertErr := d.Alert(ctx, matches)
	if alertErr != nil {
		log.Error(alertErr, "Failed to dispatch matches", "matches", len(matches))
	} else {
		log.V(1).Info("dispatch complete", "matches", len(matches))
	}

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile, reg); err != nil {
			log.Error(err, "Failed to write metrics textfile", "path", cfg.MetricsTextfile)
		}
	}

	return alertErr
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, log, err := setup(cmd, opts)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	collectors, _ := metrics.SetupPrometheusEndpoint(mux)
	d, err := newDispatcher(cfg, log, &collectors)
	if err != nil {
		return err
	}
	server.New(d, log).RegisterRoutes(mux)

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg.ListenAddr, mux, log); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	log.Info("Alert intake server shutdown complete")
	return nil
}

func readMatches(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading matches from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}
	return data, nil
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
