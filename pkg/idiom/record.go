package idiom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Record 代表一条成语记录：保持字段插入顺序的字段名到原始 JSON 值的映射
type Record struct {
	keys   []string
	values map[string]json.RawMessage
}

// Collection 是按加载顺序排列的记录序列
type Collection []*Record

// NewRecord 创建一条空记录
func NewRecord() *Record {
	return &Record{values: make(map[string]json.RawMessage)}
}

// DerivedName 返回目标字段对应的派生字段名，例如 description -> description_tr
func DerivedName(field, suffix string) string {
	return field + suffix
}

func (r *Record) Len() int {
	return len(r.keys)
}

// Keys 按插入顺序返回字段名
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

func (r *Record) Get(name string) (json.RawMessage, bool) {
	v, ok := r.values[name]
	return v, ok
}

// StringField 以字符串解码字段值。字段不存在时 ok 为 false；
// 字段存在但不是 JSON 字符串时返回 ErrTypeMismatch。
func (r *Record) StringField(name string) (s string, ok bool, err error) {
	raw, ok := r.values[name]
	if !ok {
		return "", false, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", true, NewError(CodeTypeMismatch, "", nil, "field %q is %s, not a string", name, kindOf(trimmed))
	}
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", true, NewError(CodeTypeMismatch, "", err, "field %q could not be decoded as a string", name)
	}
	return s, true, nil
}

// Set 写入字段。已存在的字段原位替换值，否则追加到末尾。
func (r *Record) Set(name string, raw json.RawMessage) {
	if r.values == nil {
		r.values = make(map[string]json.RawMessage)
	}
	if _, exists := r.values[name]; !exists {
		r.keys = append(r.keys, name)
	}
	r.values[name] = raw
}

// SetString 以不转义 HTML 和非 ASCII 字符的方式编码字符串并写入字段
func (r *Record) SetString(name, value string) error {
	raw, err := encodeString(value)
	if err != nil {
		return fmt.Errorf("failed to encode field %q: %w", name, err)
	}
	r.Set(name, raw)
	return nil
}

// UnmarshalJSON 只接受 JSON 对象。重复的键保留首次出现的位置和最后一次的值。
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record is %s, not an object", kindOf(bytes.TrimSpace(data)))
	}
	r.keys = nil
	r.values = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v at offset %d", tok, dec.InputOffset())
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		r.Set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after object at offset %d", dec.InputOffset())
	}
	return nil
}

// MarshalJSON 按字段插入顺序输出对象
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeString(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(r.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeString(s string) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// unescapeLineSeparators 还原 encoding/json 总会转义的 U+2028 和 U+2029，
// 只处理真正的转义序列，"\\u2028" 这样的转义反斜杠保持不变
func unescapeLineSeparators(encoded []byte) []byte {
	if !bytes.Contains(encoded, []byte(`\u202`)) {
		return encoded
	}
	out := make([]byte, 0, len(encoded))
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if c != '\\' || i+1 >= len(encoded) {
			out = append(out, c)
			continue
		}
		if encoded[i+1] == 'u' && i+5 < len(encoded) {
			switch string(encoded[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, c, encoded[i+1])
		i++
	}
	return out
}

// kindOf 粗略描述一个 JSON 值的类型，用于错误信息
func kindOf(raw []byte) string {
	if len(raw) == 0 {
		return "empty"
	}
	switch raw[0] {
	case '{':
		return "an object"
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	default:
		return "a number"
	}
}
