package util

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTextFileContent 智能读取文本文件内容，自动处理UTF-8和GBK编码
// 返回的内容保证是UTF-8编码的字符串，raw 是读到的原始字节。
func ReadTextFileContent(path string) (content string, raw []byte, err error) {
	raw, err = os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	content, err = DecodeText(raw, filepath.Base(path))
	if err != nil {
		return "", raw, err
	}
	return content, raw, nil
}

// DecodeText 去掉 UTF-8 BOM；不是合法 UTF-8 时按 GBK 解码
func DecodeText(data []byte, name string) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	gbkReader := transform.NewReader(bytes.NewReader(data), simplifiedchinese.GBK.NewDecoder())
	decodedData, err := io.ReadAll(gbkReader)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s as GBK: %w", name, err)
	}
	// GBK 解码器把无法映射的字节替换为 U+FFFD，这里按解码失败处理
	if i := bytes.IndexRune(decodedData, utf8.RuneError); i >= 0 {
		return "", fmt.Errorf("%s is neither UTF-8 nor GBK: undecodable bytes near decoded offset %d", name, i)
	}

	return string(decodedData), nil
}

// Checksum 计算数据的 xxhash 校验和。parts 依次参与计算，彼此以 0 字节分隔。
func Checksum(data []byte, parts ...[]byte) string {
	hasher := xxhash.New()
	_, _ = hasher.Write(data)
	for _, part := range parts {
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write(part)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// IsDirectory 辅助函数，检查路径是否为目录
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FileExists 检查路径是否存在且为普通文件
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// SamePath 比较两个路径清理并转为绝对路径后是否相同
func SamePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
