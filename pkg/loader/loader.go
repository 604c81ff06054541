package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/yleoer/idioms/pkg/idiom"
	"github.com/yleoer/idioms/pkg/util"
)

// Input 是一次读取的结果：解码后的记录和实际读到的原始字节
type Input struct {
	Records idiom.Collection
	Raw     []byte
}

// Load 读取 JSON 文件并返回按原顺序排列的记录。
// 文件不存在返回 ErrNotFound；内容不是对象数组返回 ErrMalformedInput。
func Load(path string) (idiom.Collection, error) {
	input, err := Read(path)
	if err != nil {
		return nil, err
	}
	return input.Records, nil
}

// Read 与 Load 相同，同时返回解码所用的原始字节，调用方可据此计算校验和
func Read(path string) (*Input, error) {
	if util.IsDirectory(path) {
		return nil, idiom.NewError(idiom.CodeMalformedInput, path, nil, "input path is a directory, expected a JSON file")
	}
	content, raw, err := util.ReadTextFileContent(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, idiom.NewError(idiom.CodeNotFound, path, err, "input file not found")
		}
		if raw != nil {
			return nil, idiom.NewError(idiom.CodeMalformedInput, path, err, "undecodable text")
		}
		return nil, idiom.NewError(idiom.CodeMalformedInput, path, err, "failed to read input")
	}
	records, err := Decode(strings.NewReader(content), path)
	if err != nil {
		return nil, err
	}
	return &Input{Records: records, Raw: raw}, nil
}

// Decode 从 r 解码顶层对象数组，name 只用于错误信息
func Decode(r io.Reader, name string) (idiom.Collection, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, idiom.NewError(idiom.CodeMalformedInput, name, nil, "empty document")
		}
		return nil, malformed(name, dec, err, "invalid JSON")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, idiom.NewError(idiom.CodeMalformedInput, name, nil,
			"top-level value must be an array of objects, got %v", describeToken(tok))
	}

	collection := idiom.Collection{}
	for i := 0; dec.More(); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, malformed(name, dec, err, "invalid JSON in record %d", i)
		}
		record := idiom.NewRecord()
		if err := record.UnmarshalJSON(raw); err != nil {
			return nil, idiom.NewError(idiom.CodeMalformedInput, name, err, "record %d", i)
		}
		collection = append(collection, record)
	}

	if _, err := dec.Token(); err != nil {
		return nil, malformed(name, dec, err, "unterminated array")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, idiom.NewError(idiom.CodeMalformedInput, name, err,
			"unexpected data after top-level array at offset %d", dec.InputOffset())
	}
	return collection, nil
}

func malformed(name string, dec *json.Decoder, err error, format string, args ...any) error {
	offset := dec.InputOffset()
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		offset = syntaxErr.Offset
	}
	msg := fmt.Sprintf(format, args...)
	return idiom.NewError(idiom.CodeMalformedInput, name, err, "%s at offset %d", msg, offset)
}

func describeToken(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		return "'" + v.String() + "'"
	case string:
		return "a string"
	case nil:
		return "null"
	case bool:
		return "a boolean"
	default:
		return "a number"
	}
}
