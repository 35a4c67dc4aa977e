package changefeed

import (
	coreerrors "rowsync-core/internal/core/errors"
)

// Normalize 将 kind 类型的原始记录转换为 Event
//
// 插入和更新从 Record 读取行数据；删除从 OldRecord 读取主键，
// 缺失时回退到 Record。没有可用 id 的记录返回应用错误，
// 调用方丢弃该事件
func Normalize(raw Record, kind Kind) (Event, error) {
	switch kind {
	case KindInsert, KindUpdate:
		id, ok := normalizeID(raw.Record[IDField])
		if !ok {
			return Event{}, malformed(raw, kind, "record has no usable id")
		}
		payload := Entity(raw.Record).Clone()
		payload[IDField] = canonicalID(raw.Record[IDField])
		return Event{Kind: kind, EntityID: id, Payload: payload}, nil

	case KindDelete:
		src := raw.OldRecord
		if _, ok := src[IDField]; !ok {
			src = raw.Record
		}
		id, ok := normalizeID(src[IDField])
		if !ok {
			return Event{}, malformed(raw, kind, "old record has no usable id")
		}
		return Event{Kind: KindDelete, EntityID: id}, nil

	default:
		return Event{}, coreerrors.Newf(coreerrors.CodeUnknownKind, "unknown operation kind %d", int(kind)).
			WithDetail("table", raw.Table)
	}
}

// NormalizeRecord 使用记录自身的变更类型
func NormalizeRecord(raw Record) (Event, error) {
	kind, err := ParseKind(raw.Type)
	if err != nil {
		return Event{}, err
	}
	return Normalize(raw, kind)
}

// canonicalID 展开 json.Number 并保持数字 id 为数字，
// 使快照序列化后与服务端发送的格式一致
func canonicalID(v any) any {
	n, ok := v.(interface{ Int64() (int64, error) })
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	return v
}

func malformed(raw Record, kind Kind, msg string) error {
	return coreerrors.New(coreerrors.CodeMalformedRecord, msg).
		WithDetail("kind", kind.String()).
		WithDetail("table", raw.Table)
}
