package writer

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yleoer/idioms/pkg/idiom"
)

// DefaultIndent 是输出 JSON 的缩进
const DefaultIndent = "  "

// Encode 把集合以缩进格式写入 w，非 ASCII 字符和 HTML 字符保持原样
func Encode(w io.Writer, records idiom.Collection, indent string) error {
	if records == nil {
		records = idiom.Collection{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	return enc.Encode(records)
}

// Write 把集合写入 path。先写入同目录下的临时文件再重命名，
// 失败时不会留下不完整的输出文件。
func Write(path string, records idiom.Collection, indent string) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return idiom.NewError(idiom.CodeWrite, path, err, "failed to create output file")
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := Encode(tmp, records, indent); err != nil {
		return idiom.NewError(idiom.CodeWrite, path, err, "failed to encode output")
	}
	if err := tmp.Sync(); err != nil {
		return idiom.NewError(idiom.CodeWrite, path, err, "failed to flush output")
	}
	if err := tmp.Close(); err != nil {
		return idiom.NewError(idiom.CodeWrite, path, err, "failed to close output")
	}
	// CreateTemp 创建的文件权限为 0600，输出文件应与普通文件一致
	if err := os.Chmod(tmpName, 0644); err != nil {
		return idiom.NewError(idiom.CodeWrite, path, err, "failed to set output permissions")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return idiom.NewError(idiom.CodeWrite, path, err, "failed to move output into place")
	}
	return nil
}

// IndentOf 返回 n 个空格的缩进，n 小于 1 时使用默认缩进
func IndentOf(n int) string {
	if n < 1 {
		return DefaultIndent
	}
	return strings.Repeat(" ", n)
}
