package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	InputPath  string        `json:"input_path"`  // 输入的成语 JSON 文件
	OutputPath string        `json:"output_path"` // 增加繁体字段后的输出文件
	Fields     []string      `json:"fields"`      // 需要转换的目标字段
	Suffix     string        `json:"suffix"`      // 派生字段后缀
	OpenCCMode string        `json:"opencc_mode"` // OpenCC 配置名，s2t 为简体到繁体
	Indent     int           `json:"indent"`      // 输出缩进空格数
	Workers    int           `json:"workers"`     // 并发处理记录的 goroutine 数
	Strict     bool          `json:"strict"`      // 目标字段不是字符串时是否失败
	Watch      bool          `json:"watch"`       // 是否监听输入文件变化并重新生成
	Debounce   time.Duration `json:"debounce"`    // 监听模式下合并文件事件的延迟
	HistoryDB  string        `json:"history_db"`  // 转换历史 SQLite 文件，为空时不记录
	LogLevel   string        `json:"log_level"`   // debug, info, warn, error
	LogFormat  string        `json:"log_format"`  // console 或 json
	Warnings   []string      `json:"-"`           // 解析环境变量时产生的警告，由调用方记录
}

const (
	inputPath  = "idioms.json"
	outputPath = "idioms_with_tr.json"
	suffix     = "_tr"
	openCCMode = "s2t"
	indent     = 2
	workers    = 1
	debounce   = 500 * time.Millisecond
	logLevel   = "info"
	logFormat  = "console"
)

var defaultFields = []string{"description", "chineseExample"}

// LoadConfig 从环境变量或默认值加载配置
func LoadConfig() (*Config, error) {
	// 尝试加载 .env 文件
	_ = godotenv.Load()
	return FromLookup(os.Getenv)
}

// FromLookup 使用 getenv 读取配置，未设置的项使用默认值
func FromLookup(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		InputPath:  getenv("IDIOMS_INPUT"),
		OutputPath: getenv("IDIOMS_OUTPUT"),
		Suffix:     getenv("IDIOMS_SUFFIX"),
		OpenCCMode: getenv("IDIOMS_OPENCC_MODE"),
		HistoryDB:  getenv("IDIOMS_HISTORY_DB"),
		LogLevel:   strings.ToLower(getenv("IDIOMS_LOG_LEVEL")),
		LogFormat:  strings.ToLower(getenv("IDIOMS_LOG_FORMAT")),
	}
	cfg.Fields = cfg.parseListOrDefault("IDIOMS_FIELDS", getenv("IDIOMS_FIELDS"), defaultFields)
	cfg.Indent = cfg.parseIntOrDefault("IDIOMS_INDENT", getenv("IDIOMS_INDENT"), indent, 1)
	cfg.Workers = cfg.parseIntOrDefault("IDIOMS_WORKERS", getenv("IDIOMS_WORKERS"), workers, 1)
	cfg.Strict = cfg.parseBoolOrDefault("IDIOMS_STRICT", getenv("IDIOMS_STRICT"), false)
	cfg.Watch = cfg.parseBoolOrDefault("IDIOMS_WATCH", getenv("IDIOMS_WATCH"), false)
	cfg.Debounce = cfg.parseDurationOrDefault("IDIOMS_DEBOUNCE", getenv("IDIOMS_DEBOUNCE"), debounce)

	// 设置默认值
	if cfg.InputPath == "" {
		cfg.InputPath = inputPath
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = outputPath
	}
	if cfg.Suffix == "" {
		cfg.Suffix = suffix
	}
	if cfg.OpenCCMode == "" {
		cfg.OpenCCMode = openCCMode
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	case "":
		cfg.LogLevel = logLevel
	default:
		cfg.warnf("unknown log level %q, using %q", cfg.LogLevel, logLevel)
		cfg.LogLevel = logLevel
	}
	switch cfg.LogFormat {
	case "console", "json":
	case "":
		cfg.LogFormat = logFormat
	default:
		cfg.warnf("unknown log format %q, using %q", cfg.LogFormat, logFormat)
		cfg.LogFormat = logFormat
	}

	if filepath.Clean(cfg.InputPath) == filepath.Clean(cfg.OutputPath) {
		return nil, fmt.Errorf("input and output must differ, both are %s", cfg.InputPath)
	}
	if cfg.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history database directory %s: %w", filepath.Dir(cfg.HistoryDB), err)
		}
	}
	return cfg, nil
}

func (cfg *Config) warnf(format string, args ...any) {
	cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(format, args...))
}

func (cfg *Config) parseDurationOrDefault(key, s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		cfg.warnf("could not parse %s=%q, using default %v", key, s, defaultValue)
		return defaultValue
	}
	return d
}

func (cfg *Config) parseIntOrDefault(key, s string, defaultValue, minValue int) int {
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < minValue {
		cfg.warnf("could not parse %s=%q, using default %d", key, s, defaultValue)
		return defaultValue
	}
	return n
}

func (cfg *Config) parseBoolOrDefault(key, s string, defaultValue bool) bool {
	if s == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		cfg.warnf("could not parse %s=%q, using default %t", key, s, defaultValue)
		return defaultValue
	}
	return b
}

func (cfg *Config) parseListOrDefault(key, s string, defaultValue []string) []string {
	if s == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	seen := make(map[string]bool)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		cfg.warnf("%s=%q lists no fields, using default %v", key, s, defaultValue)
		return append([]string(nil), defaultValue...)
	}
	return out
}
