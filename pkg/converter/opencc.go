package converter

import (
	"fmt"

	"github.com/liuzl/gocc"
	"go.uber.org/zap"
)

// DefaultMode 是简体到繁体的 OpenCC 配置名
const DefaultMode = "s2t"

// openCCConverter 是 TextConverter 的一个实现
type openCCConverter struct {
	mode      string
	converter *gocc.OpenCC
	logger    *zap.Logger
}

// NewOpenCCConverter 初始化并返回一个 OpenCC 转换器实例。
// 实例只读，可在多个 goroutine 间共享。
func NewOpenCCConverter(mode string, logger *zap.Logger) (TextConverter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode == "" {
		mode = DefaultMode
	}
	// s2t 代表 Simplified Chinese to Traditional Chinese
	converter, err := gocc.New(mode)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenCC converter (%s): %w", mode, err)
	}
	logger.Info("OpenCC converter initialized", zap.String("mode", mode))
	return &openCCConverter{mode: mode, converter: converter, logger: logger}, nil
}

// Convert 将简体中文转换为繁体
func (c *openCCConverter) Convert(text string) string {
	if c.converter == nil {
		c.logger.Warn("OpenCC converter not initialized, returning original text")
		return text
	}
	out, err := c.converter.Convert(text)
	if err != nil {
		c.logger.Warn("Failed to convert text, returning original",
			zap.String("mode", c.mode),
			zap.String("text", text),
			zap.Error(err))
		return text // 在转换失败时返回原文
	}
	return out
}
