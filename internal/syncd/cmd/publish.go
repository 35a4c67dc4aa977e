package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"rowsync-core/internal/app"
	"rowsync-core/internal/broker"
	"rowsync-core/internal/changefeed"
	"rowsync-core/internal/config/schema"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
)

var (
	publishTopic  string
	publishType   string
	publishRecord string
	publishRepeat int
	publishRate   float64
	publishAutoID bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a change record into the configured broker",
	Long: `Publish one change record (or --repeat of them) on a topic of the
configured broker. DELETE records carry the row as old_record.

Example:
  syncd publish --topic posts --type INSERT --record '{"id":1,"text":"hello"}'
  syncd publish --topic posts --type DELETE --record '{"id":1}'
  syncd publish --topic posts --type INSERT --record '{"text":"load"}' --auto-id --repeat 1000 --rate 200`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishTopic, "topic", "t", "", "Topic to publish on (required)")
	publishCmd.Flags().StringVar(&publishType, "type", "INSERT", "Change type: INSERT/UPDATE/DELETE")
	publishCmd.Flags().StringVarP(&publishRecord, "record", "r", "", "Row as JSON (required)")
	publishCmd.Flags().IntVarP(&publishRepeat, "repeat", "n", 1, "Number of records to publish")
	publishCmd.Flags().Float64Var(&publishRate, "rate", 0, "Records per second when repeating, 0 for unlimited")
	publishCmd.Flags().BoolVar(&publishAutoID, "auto-id", false, "Give every record a fresh UUID id")
	_ = publishCmd.MarkFlagRequired("topic")
	_ = publishCmd.MarkFlagRequired("record")
}

// publishOptions 发布参数
type publishOptions struct {
	Topic  string
	Kind   changefeed.Kind
	Row    changefeed.Entity
	Repeat int
	Rate   float64
	AutoID bool
}

func runPublish(cmd *cobra.Command, args []string) error {
	kind, err := changefeed.ParseKind(publishType)
	if err != nil {
		return err
	}
	row, err := parseRow([]byte(publishRecord), publishAutoID)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(func(cfg *schema.Root) {
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

	out := newOutput(os.Stdout)
	if cfg.Broker.Type == schema.BrokerTypeMemory {
		out.Warning("broker.type is memory: records are only visible inside this process")
	}

	a, err := app.NewBuilder(cfg).WithLogger(corelog.Default()).With(app.NewBrokerComponent()).Build(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	sent, err := publishChanges(ctx, a.Deps().Broker, publishOptions{
		Topic:  publishTopic,
		Kind:   kind,
		Row:    row,
		Repeat: publishRepeat,
		Rate:   publishRate,
		AutoID: publishAutoID,
	})
	if err != nil {
		out.Error("published %d of %d records", sent, publishRepeat)
		return err
	}
	out.Success("Published %d %s record(s) to %s in %s", sent, kind, publishTopic, time.Since(start).Round(time.Millisecond))
	return nil
}

// parseRow 解析 --record JSON，未启用 autoID 时必须包含 id
func parseRow(data []byte, autoID bool) (changefeed.Entity, error) {
	if !autoID {
		return changefeed.DecodeEntity(data)
	}
	var row changefeed.Entity
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&row); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "decode --record")
	}
	if row == nil {
		row = changefeed.Entity{}
	}
	return row, nil
}

// changeRecord 构建变更记录
func changeRecord(topic string, kind changefeed.Kind, row changefeed.Entity) changefeed.Record {
	rec := changefeed.Record{Type: kind.String(), Table: topic}
	if kind == changefeed.KindDelete {
		rec.OldRecord = row
	} else {
		rec.Record = row
	}
	return rec
}

// publishChanges 按 opts.Rate 限速发布 opts.Repeat 条记录，
// 返回已发送数量
func publishChanges(ctx context.Context, b broker.MessageBroker, opts publishOptions) (int, error) {
	if opts.Repeat <= 0 {
		return 0, coreerrors.New(coreerrors.CodeInvalidParam, "--repeat must be positive")
	}
	if opts.Rate < 0 {
		return 0, coreerrors.New(coreerrors.CodeInvalidParam, "--rate must not be negative")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	for i := 0; i < opts.Repeat; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return i, coreerrors.Wrap(err, coreerrors.CodeCancelled, "publish interrupted")
		}
		row := opts.Row.Clone()
		if opts.AutoID {
			row[changefeed.IDField] = uuid.NewString()
		}
		if err := broker.PublishChange(ctx, b, opts.Topic, changeRecord(opts.Topic, opts.Kind, row)); err != nil {
			return i, err
		}
	}
	return opts.Repeat, nil
}
