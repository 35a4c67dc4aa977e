package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rowsync-core/internal/config/schema"
	"rowsync-core/internal/config/source"
	coreerrors "rowsync-core/internal/core/errors"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage syncd configuration.

Commands:
  init      Generate a configuration file with default values
  show      Show the effective configuration (secrets masked)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Generate a configuration file with default values",
	Long: `Generate a configuration file with default values.

Example:
  syncd config init                     # Create rowsync.yaml in current directory
  syncd config init ~/.rowsync/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after defaults, the config file, .env files and
ROWSYNC_* environment variables have been applied.

Example:
  syncd config show
  ROWSYNC_SYNC_MAX_DELAY=1m syncd config show`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

const configHeader = `# rowsync configuration
#
# Every value can be overridden with an environment variable named after its
# path, e.g. ROWSYNC_SYNC_BASE_DELAY=2s or ROWSYNC_BROKER_REDIS_ADDRS=a:6379,b:6379.
#
# log.output:      stderr/stdout/discard/file
# broker.type:     memory/redis
# sync.transport:  broker/postgres
# sync.resync:     reload the projection from postgres after every (re)subscribe

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := newOutput(os.Stdout)

	configPath := "rowsync.yaml"
	if len(args) > 0 {
		configPath = args[0]
	}
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	data, err := renderConfig(source.GetDefaultConfig())
	if err != nil {
		return err
	}

	if dir := filepath.Dir(configPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "create directory %s", dir)
		}
	}
	if err := os.WriteFile(configPath, append([]byte(configHeader), data...), 0o644); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "write %s", configPath)
	}

	out.Success("Configuration file created: %s", configPath)
	out.Info("Edit the file, then run: syncd serve -c %s", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	data, err := renderConfig(cfg)
	if err != nil {
		return err
	}

	out := newOutput(os.Stdout)
	file := resolvedConfigFile()
	if file == "" {
		file = "(none)"
	}
	out.Header("Effective configuration")
	out.KeyValue("Config File", file)
	_, err = os.Stdout.Write(data)
	return err
}

// renderConfig 将配置渲染为 YAML，敏感信息脱敏
func renderConfig(cfg *schema.Root) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "render configuration")
	}
	return data, nil
}
