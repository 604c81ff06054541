package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yleoer/idioms/pkg/augmenter"
	"github.com/yleoer/idioms/pkg/config"
	"github.com/yleoer/idioms/pkg/converter"
	"github.com/yleoer/idioms/pkg/database"
	"github.com/yleoer/idioms/pkg/scheduler"
	"github.com/yleoer/idioms/pkg/writer"
)

func main() {
	os.Exit(run(os.Stdout))
}

// run 执行整个流程并返回进程退出码，成功提示写到 stdout
func run(stdout io.Writer) int {
	// 1. 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	// 2. 初始化日志器
	logger := initLogger(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync() //nolint:errcheck
	for _, w := range cfg.Warnings {
		logger.Warn("Configuration warning", zap.String("detail", w))
	}
	logger.Debug("Configuration loaded",
		zap.String("input", cfg.InputPath),
		zap.String("output", cfg.OutputPath),
		zap.Strings("fields", cfg.Fields),
		zap.String("opencc_mode", cfg.OpenCCMode),
		zap.Bool("watch", cfg.Watch))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 初始化所有依赖服务
	// 3.1 简繁转换器，整个进程只初始化一次
	s2tConverter, err := converter.NewOpenCCConverter(cfg.OpenCCMode, logger)
	if err != nil {
		logger.Error("Failed to initialize OpenCC converter", zap.Error(err))
		return 1
	}
	// 3.2 转换历史存储，未配置时不保存任何状态
	store := database.NewNopStore()
	if cfg.HistoryDB != "" {
		store, err = database.NewSQLiteStore(cfg.HistoryDB, logger)
		if err != nil {
			logger.Error("Failed to initialize history database", zap.Error(err))
			return 1
		}
	}
	defer store.Close()
	// 3.3 字段增强器 (依赖于 TextConverter)
	aug := augmenter.New(s2tConverter,
		augmenter.WithFields(cfg.Fields...),
		augmenter.WithSuffix(cfg.Suffix),
		augmenter.WithWorkers(cfg.Workers),
		augmenter.WithStrict(cfg.Strict),
		augmenter.WithLogger(logger),
	)
	// 4. 初始化任务调度器
	taskScheduler := scheduler.NewTaskScheduler(scheduler.Options{
		InputPath:     cfg.InputPath,
		OutputPath:    cfg.OutputPath,
		Indent:        writer.IndentOf(cfg.Indent),
		ConverterMode: cfg.OpenCCMode,
		Debounce:      cfg.Debounce,
		SkipUnchanged: cfg.Watch,
	}, aug, store, logger)

	// 5. 执行首次转换
	if _, err := taskScheduler.RunOnce(ctx); err != nil {
		logger.Error("Conversion failed", zap.String("input", cfg.InputPath), zap.Error(err))
		return 1
	}
	fmt.Fprintf(stdout, "✅ Traditional fields added and saved to %s\n", cfg.OutputPath)
	if !cfg.Watch {
		return 0
	}

	// 6. 监听输入文件，变化时重新生成
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case outcome := <-taskScheduler.Results():
				if outcome.Err == nil && !outcome.Result.Unchanged {
					fmt.Fprintf(stdout, "✅ Traditional fields added and saved to %s\n", cfg.OutputPath)
				}
			}
		}
	}()
	if err := taskScheduler.Watch(ctx); err != nil {
		logger.Error("Watch mode failed", zap.Error(err))
		return 1
	}
	logger.Info("Shutting down")
	return 0
}

// initLogger 按配置构建 zap logger，日志输出到标准错误
func initLogger(level, format string) *zap.Logger {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if format == "json" {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		format = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      false,
		Encoding:         format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger.Named("idioms")
}
