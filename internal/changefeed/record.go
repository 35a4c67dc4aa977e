package changefeed

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	coreerrors "rowsync-core/internal/core/errors"
)

// Record 传输层送达的原始变更记录
// 格式与常见实时数据库变更负载一致：新行在 Record，
// 旧行（至少包含主键）在 OldRecord
type Record struct {
	Type            string         `json:"type"`
	Schema          string         `json:"schema,omitempty"`
	Table           string         `json:"table,omitempty"`
	Record          map[string]any `json:"record,omitempty"`
	OldRecord       map[string]any `json:"old_record,omitempty"`
	CommitTimestamp *time.Time     `json:"commit_timestamp,omitempty"`
}

// Decode 解析 JSON 变更负载，数字保留为 json.Number，
// 大整数 id 不丢失精度
func Decode(data []byte) (Record, error) {
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return Record{}, coreerrors.Wrap(err, coreerrors.CodeMalformedRecord, "decode change payload")
	}
	return rec, nil
}

// DecodeEntity 解析单行 JSON，数字处理同 Decode
func DecodeEntity(data []byte) (Entity, error) {
	var e Entity
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&e); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeMalformedRecord, "decode entity")
	}
	if _, ok := e.ID(); !ok {
		return nil, coreerrors.New(coreerrors.CodeMalformedRecord, "entity has no usable id")
	}
	e[IDField] = canonicalID(e[IDField])
	return e, nil
}

// Encode 编码为 JSON
func Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "encode change payload")
	}
	return data, nil
}

// normalizeID 统一字符串和数字 id 的表示，
// 1、1.0、"1" 和 json.Number("1") 指向同一实体
func normalizeID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case json.Number:
		if i, err := id.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		f, err := id.Float64()
		if err != nil {
			return "", false
		}
		return normalizeFloat(f)
	case float64:
		return normalizeFloat(id)
	case float32:
		return normalizeFloat(float64(id))
	case int:
		return strconv.Itoa(id), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	default:
		return "", false
	}
}

func normalizeFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
