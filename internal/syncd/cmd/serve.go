package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rowsync-core/internal/app"
	"rowsync-core/internal/cli"
	"rowsync-core/internal/config/schema"
	corelog "rowsync-core/internal/core/log"
)

var (
	serveListen string
	serveTopics []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync daemon",
	Long: `Run the sync daemon: subscribe to the configured topics and serve
snapshots, status and watch streams over HTTP.

Example:
  syncd serve
  syncd serve --listen :9090 --topic posts --topic comments`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Override api.listen")
	serveCmd.Flags().StringSliceVar(&serveTopics, "topic", nil, "Topic kept subscribed for the process lifetime (repeatable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *schema.Root) {
		if serveListen != "" {
			cfg.API.Listen = serveListen
		}
		if len(serveTopics) > 0 {
			cfg.Sync.Topics = serveTopics
		}
	})
	if err != nil {
		return err
	}

	closer, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	daemon, err := app.NewBuilder(cfg).WithLogger(corelog.Default()).WithDefaults().Build(context.Background())
	if err != nil {
		return err
	}

	broker := ""
	if cfg.Sync.Transport == schema.TransportBroker {
		broker = cfg.Broker.Type
	}
	newOutput(os.Stdout).Banner(cli.BannerInfo{
		NodeID:     daemon.Deps().NodeID,
		ConfigFile: resolvedConfigFile(),
		Transport:  cfg.Sync.Transport,
		Broker:     broker,
		Listen:     cfg.API.Listen,
		Topics:     cfg.Sync.Topics,
		Resync:     cfg.Sync.Resync,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return daemon.Run(ctx)
}
