package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rowsync-core/internal/app"
	"rowsync-core/internal/cli"
	"rowsync-core/internal/config/schema"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/realtime"
)

const (
	statusPollInterval = 200 * time.Millisecond
	watchBuffer        = 256
)

var (
	watchTopic    string
	watchSnapshot bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow one topic and print every applied change",
	Long: `Run a single supervisor for a topic and print every change applied to
its projection together with channel status transitions. Needs a shared
broker (redis) or the postgres transport to see changes from other processes.

Example:
  syncd watch --topic posts
  syncd watch --topic posts --snapshot`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchTopic, "topic", "t", "", "Topic to follow (required)")
	watchCmd.Flags().BoolVar(&watchSnapshot, "snapshot", false, "Print the full projection after every change")
	_ = watchCmd.MarkFlagRequired("topic")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *schema.Root) {
		// 终端输出投影，避免日志混入
		if logLevel == "" {
			cfg.Log.Level = schema.LogLevelWarn
		}
		cfg.Sync.Topics = nil
	})
	if err != nil {
		return err
	}
	closer, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := app.NewBuilder(cfg).WithLogger(corelog.Default()).WithSync().Build(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	sup, release, err := a.Deps().Registry.Acquire(watchTopic)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newOutput(os.Stdout)
	out.Info("Watching %s (Ctrl+C to stop)", watchTopic)
	return followTopic(ctx, out, sup, watchSnapshot)
}

// followTopic 输出变更和状态转换，直到 ctx 结束
func followTopic(ctx context.Context, out *cli.Output, sup *realtime.Supervisor, snapshots bool) error {
	store := sup.Store()
	changes, cancel := store.Watch(watchBuffer)
	defer cancel()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	last := sup.Status()
	out.Status(last)
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return coreerrors.New(coreerrors.CodeChannelClosed, "projection closed")
			}
			out.Change(sup.Topic(), c, store.Len())
			if snapshots {
				out.Snapshot(sup.Topic(), store.Snapshot(), store.Version())
			}
		case <-ticker.C:
			st := sup.Status()
			if st.State != last.State || st.Attempt != last.Attempt {
				out.Status(st)
			}
			last = st
		}
	}
}
