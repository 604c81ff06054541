package database

import "time"

// Run 描述一次成功的转换
type Run struct {
	InputPath     string
	InputChecksum string
	OutputPath    string
	Records       int
	Converted     int
	Skipped       int
	ConvertedAt   time.Time
}

// RunStore 定义转换历史存储接口
type RunStore interface {
	// RecordRun 记录一次成功的转换
	RecordRun(run Run) error
	// LastChecksum 查询最近一次转换时输入文件的校验和
	LastChecksum(inputPath, outputPath string) (checksum string, found bool, err error)
	// Close 关闭数据库连接
	Close() error
}

// nopStore 不保存任何状态，未配置历史数据库时使用
type nopStore struct{}

// NewNopStore 返回一个不做任何事的 RunStore
func NewNopStore() RunStore {
	return nopStore{}
}

func (nopStore) RecordRun(Run) error { return nil }

func (nopStore) LastChecksum(string, string) (string, bool, error) { return "", false, nil }

func (nopStore) Close() error { return nil }
