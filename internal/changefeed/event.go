// Package changefeed 将线上变更记录转换为类型化的变更事件
package changefeed

import (
	"strings"

	coreerrors "rowsync-core/internal/core/errors"
)

// Kind 变更类型
type Kind int

const (
	KindInsert Kind = iota + 1
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText 输出线上名称
func (k Kind) MarshalText() ([]byte, error) {
	if k < KindInsert || k > KindDelete {
		return nil, coreerrors.Newf(coreerrors.CodeUnknownKind, "unknown kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText 解析线上名称
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind 解析 INSERT/UPDATE/DELETE（不区分大小写）
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INSERT":
		return KindInsert, nil
	case "UPDATE":
		return KindUpdate, nil
	case "DELETE":
		return KindDelete, nil
	default:
		return 0, coreerrors.Newf(coreerrors.CodeUnknownKind, "unknown operation kind %q", s)
	}
}

// Entity 同步的行数据，只解释 "id" 字段
type Entity map[string]any

// IDField 实体唯一标识字段
const IDField = "id"

// Clone 浅拷贝，嵌套值共享
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// ID 获取规范化后的 id，缺失或不可用时返回 false
func (e Entity) ID() (string, bool) {
	return normalizeID(e[IDField])
}

// Event 规范化后的变更事件，创建后不再修改
type Event struct {
	Kind     Kind   `json:"kind"`
	EntityID string `json:"entity_id"`
	Payload  Entity `json:"payload,omitempty"`
}

// NewEvent 创建事件并复制 payload，
// 调用方之后的修改不会影响事件
func NewEvent(kind Kind, id string, payload Entity) Event {
	return Event{Kind: kind, EntityID: id, Payload: payload.Clone()}
}
