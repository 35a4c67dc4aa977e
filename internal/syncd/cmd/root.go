// Package cmd 提供 syncd 命令行
package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"rowsync-core/internal/cli"
	"rowsync-core/internal/config/loader"
	"rowsync-core/internal/config/schema"
	"rowsync-core/internal/config/source"
	"rowsync-core/internal/config/validator"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/version"
)

// 全局标志
var (
	configFile string
	logLevel   string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "rowsync - keep local projections of remote tables in sync",
	Long: `syncd subscribes to row change feeds, keeps an in-memory projection of
each topic and serves it over HTTP and websockets.

Quick Start:
  syncd serve                                   Run the daemon
  syncd watch --topic posts                     Follow one topic in the terminal
  syncd publish --topic posts --type INSERT --record '{"id":1}'`,
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			corelog.Errorf("FATAL: main goroutine panic recovered: %v", r)
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		newOutput(os.Stderr).Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level: debug/info/warn/error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func newOutput(w io.Writer) *cli.Output {
	return cli.NewOutput(w, noColor)
}

// loadConfig 加载分层配置，应用命令行覆盖项
// 并校验结果
func loadConfig(overrides func(cfg *schema.Root)) (*schema.Root, error) {
	cfg, err := loader.NewLoaderBuilder().
		WithConfigFile(configFile).
		WithDotEnv(true).
		WithSkipValidation(true).
		Build().
		Load()
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if overrides != nil {
		overrides(cfg)
	}

	if result := validator.ValidateConfig(cfg); !result.IsValid() {
		return nil, coreerrors.New(coreerrors.CodeConfigError, result.Error())
	}
	return cfg, nil
}

// setupLogging 按配置初始化日志，closer 负责关闭日志文件
func setupLogging(cfg schema.LogConfig) (io.Closer, error) {
	return corelog.Configure(corelog.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: cfg.Output,
		File:   cfg.File,
	})
}

// resolvedConfigFile 获取实际读取的配置文件
func resolvedConfigFile() string {
	return source.FindConfigFile(configFile)
}
