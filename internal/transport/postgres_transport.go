package transport

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rowsync-core/internal/changefeed"
	coreerrors "rowsync-core/internal/core/errors"
	corelog "rowsync-core/internal/core/log"
	"rowsync-core/internal/core/safe"
	"rowsync-core/internal/core/storage/postgres"
)

// PostgresTransport 监听以主题命名的频道上的 NOTIFY。
// 每个订阅独占一个连接池连接，
// 通知负载为 JSON 变更记录，通常由行触发器通过 pg_notify 生成
type PostgresTransport struct {
	db     *postgres.Storage
	opts   Options
	logger corelog.Logger
}

// NewPostgresTransport 创建 LISTEN 传输
func NewPostgresTransport(db *postgres.Storage, opts Options, logger corelog.Logger) *PostgresTransport {
	return &PostgresTransport{
		db:     db,
		opts:   opts.withDefaults(),
		logger: corelog.OrDefault(logger),
	}
}

// Subscribe 获取连接并执行 LISTEN，
// 成功后首个投递为 StatusSubscribed
func (t *PostgresTransport) Subscribe(ctx context.Context, topic string) (Channel, error) {
	subCtx, cancel := context.WithTimeout(ctx, t.opts.SubscribeTimeout)
	defer cancel()

	conn, err := t.db.Acquire(subCtx)
	if err != nil {
		return nil, subscribeError(err, topic)
	}
	if _, err := conn.Exec(subCtx, "LISTEN "+pgx.Identifier{topic}.Sanitize()); err != nil {
		conn.Release()
		return nil, subscribeError(err, topic)
	}

	ch := newPumpChannel(ctx, t.opts.BufferSize, nil)
	safe.Go("transport:postgres:"+topic, func() { t.run(ch, conn, topic) })
	return ch, nil
}

func (t *PostgresTransport) run(ch *pumpChannel, conn *pgxpool.Conn, topic string) {
	defer close(ch.out)
	defer t.release(conn, topic)
	ctx := ch.Ctx()

	if !ch.emit(StatusDelivery(StatusSubscribed, nil)) {
		return
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warnf("transport: LISTEN %s failed: %v", topic, err)
			ch.emit(StatusDelivery(StatusChannelError,
				coreerrors.Wrapf(err, coreerrors.CodeChannelError, "wait for notification on %s", topic)))
			return
		}
		if !ch.emit(PayloadDelivery([]byte(n.Payload))) {
			return
		}
	}
}

// release 取消 LISTEN 后归还连接
func (t *PostgresTransport) release(conn *pgxpool.Conn, topic string) {
	if !conn.Conn().IsClosed() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
			t.logger.Debugf("transport: UNLISTEN %s: %v", topic, err)
		}
		cancel()
	}
	conn.Release()
}

// PostgresLoader 以 JSON 行加载主题表（最新在前）
type PostgresLoader struct {
	db          *postgres.Storage
	orderColumn string
}

// NewPostgresLoader 按 orderColumn 降序排序（为空时使用 "id"）
func NewPostgresLoader(db *postgres.Storage, orderColumn string) *PostgresLoader {
	if orderColumn == "" {
		orderColumn = changefeed.IDField
	}
	return &PostgresLoader{db: db, orderColumn: orderColumn}
}

// Query 返回加载主题使用的语句
func (l *PostgresLoader) Query(topic string) string {
	return "SELECT row_to_json(t) FROM " + pgx.Identifier{topic}.Sanitize() +
		" AS t ORDER BY t." + pgx.Identifier{l.orderColumn}.Sanitize() + " DESC"
}

// Load 实现 Loader，没有可用 id 的行跳过
func (l *PostgresLoader) Load(ctx context.Context, topic string) ([]changefeed.Entity, error) {
	rows, err := l.db.Query(ctx, l.Query(topic))
	if err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeStorageError, "load %s", topic)
	}
	defer rows.Close()

	var out []changefeed.Entity
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeStorageError, "scan %s row", topic)
		}
		e, err := changefeed.DecodeEntity(raw)
		if err != nil {
			corelog.Warnf("transport: skipping %s row: %v", topic, err)
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeStorageError, "load %s", topic)
	}
	return out, nil
}
