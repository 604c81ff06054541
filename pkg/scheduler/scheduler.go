package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/yleoer/idioms/pkg/augmenter"
	"github.com/yleoer/idioms/pkg/database"
	"github.com/yleoer/idioms/pkg/loader"
	"github.com/yleoer/idioms/pkg/util"
	"github.com/yleoer/idioms/pkg/writer"
)

// Result 描述一次运行的结果
type Result struct {
	Records   int
	Converted int
	Skipped   int    // 因字段不是字符串而跳过的字段数
	Checksum  string // 输入内容连同转换设置的 xxhash 校验和
	Unchanged bool   // 输入未变化且输出仍存在，本次没有重新生成
}

// Options 描述一次运行涉及的文件和输出格式
type Options struct {
	InputPath  string
	OutputPath string
	Indent     string
	// ConverterMode 只参与历史校验和，转换模式变化后不会误判为未变化
	ConverterMode string
	Debounce      time.Duration
	// SkipUnchanged 为 true 时，输入校验和与上次记录一致且输出存在则跳过
	SkipUnchanged bool
}

// TaskScheduler 负责执行 加载 -> 增强 -> 写出 的流程，并在监听模式下调度重新生成
type TaskScheduler struct {
	opts      Options
	augmenter *augmenter.Augmenter
	store     database.RunStore
	logger    *zap.Logger

	runMutex     sync.Mutex // 保证同一时间只有一次运行
	pending      *time.Timer
	pendingMutex sync.Mutex // 保护 pending 和 stopped
	stopped      bool
	inflight     sync.WaitGroup // 计时器触发后正在执行的运行
	results      chan RunOutcome
}

// RunOutcome 是监听模式下每次运行的结果
type RunOutcome struct {
	Result Result
	Err    error
}

// NewTaskScheduler 创建一个新的 TaskScheduler 实例
func NewTaskScheduler(opts Options, aug *augmenter.Augmenter, store database.RunStore, logger *zap.Logger) *TaskScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = database.NewNopStore()
	}
	if opts.Indent == "" {
		opts.Indent = writer.DefaultIndent
	}
	return &TaskScheduler{
		opts:      opts,
		augmenter: aug,
		store:     store,
		logger:    logger,
		results:   make(chan RunOutcome, 1),
	}
}

// RunOnce 执行一次完整的流程。任一阶段失败都不会写出输出文件。
func (ts *TaskScheduler) RunOnce(ctx context.Context) (Result, error) {
	ts.runMutex.Lock()
	defer ts.runMutex.Unlock()

	var result Result
	input, output := ts.opts.InputPath, ts.opts.OutputPath

	loaded, err := loader.Read(input)
	if err != nil {
		return result, err
	}
	records := loaded.Records
	ts.logger.Info("Idioms loaded", zap.String("input", input), zap.Int("records", len(records)))

	// 校验和基于本次实际转换的字节，避免读取之后文件又被修改
	checksum := util.Checksum(loaded.Raw, ts.settings()...)
	result.Checksum = checksum

	if ts.opts.SkipUnchanged && util.FileExists(output) {
		last, found, err := ts.store.LastChecksum(input, output)
		if err != nil {
			ts.logger.Warn("Could not read run history, converting anyway", zap.Error(err))
		} else if found && last == checksum {
			ts.logger.Info("Input unchanged since last run, skipping", zap.String("input", input))
			result.Records = len(records)
			result.Unchanged = true
			return result, nil
		}
	}

	stats, err := ts.augmenter.Augment(ctx, records)
	if err != nil {
		return result, err
	}
	result.Records = stats.Records
	result.Converted = stats.Converted
	result.Skipped = stats.Skipped

	if err := writer.Write(output, records, ts.opts.Indent); err != nil {
		return result, err
	}
	ts.logger.Info("Idioms written",
		zap.String("output", output),
		zap.Int("records", result.Records),
		zap.Int("converted", result.Converted),
		zap.Int("skipped", result.Skipped))

	err = ts.store.RecordRun(database.Run{
		InputPath:     input,
		InputChecksum: checksum,
		OutputPath:    output,
		Records:       result.Records,
		Converted:     result.Converted,
		Skipped:       result.Skipped,
	})
	if err != nil {
		// 输出已经写好，历史记录失败不影响本次结果
		ts.logger.Warn("Failed to record run history", zap.Error(err))
	}
	return result, nil
}

// settings 返回影响输出内容的设置，参与历史校验和
func (ts *TaskScheduler) settings() [][]byte {
	return [][]byte{
		[]byte("fields=" + strings.Join(ts.augmenter.Fields(), "\x1f")),
		[]byte("suffix=" + ts.augmenter.Suffix()),
		[]byte("mode=" + ts.opts.ConverterMode),
		[]byte("indent=" + ts.opts.Indent),
	}
}

// Results 返回监听模式下每次运行结果的通道。缓冲为 1，旧结果未被读取时新结果会被丢弃。
func (ts *TaskScheduler) Results() <-chan RunOutcome {
	return ts.results
}

// TriggerRun 延迟 Debounce 后执行一次运行，期间的重复触发会重置计时器
func (ts *TaskScheduler) TriggerRun(ctx context.Context) {
	ts.pendingMutex.Lock()
	defer ts.pendingMutex.Unlock()
	if ts.stopped {
		return
	}
	// 如果已经有一个待定的运行，就重置计时器
	if ts.pending != nil {
		ts.pending.Stop()
	}
	ts.pending = time.AfterFunc(ts.opts.Debounce, func() {
		ts.pendingMutex.Lock()
		if ts.stopped || ctx.Err() != nil {
			ts.pendingMutex.Unlock()
			return
		}
		ts.inflight.Add(1)
		ts.pendingMutex.Unlock()
		defer ts.inflight.Done()

		result, err := ts.RunOnce(ctx)
		if err != nil {
			ts.logger.Error("Conversion failed", zap.String("input", ts.opts.InputPath), zap.Error(err))
		}
		select {
		case ts.results <- RunOutcome{Result: result, Err: err}:
		default:
		}
	})
	ts.logger.Debug("Scheduled conversion", zap.Duration("delay", ts.opts.Debounce))
}

// Stop 取消尚未执行的运行并等待正在执行的运行结束。Stop 之后 TriggerRun 不再生效。
func (ts *TaskScheduler) Stop() {
	ts.pendingMutex.Lock()
	ts.stopped = true
	if ts.pending != nil {
		ts.pending.Stop()
		ts.pending = nil
	}
	ts.pendingMutex.Unlock()
	ts.inflight.Wait()
}

// Watch 监听输入文件所在目录，输入文件被创建或写入时重新生成输出，
// 直到 ctx 结束。fsnotify 监听目录而不是文件，这样编辑器的原子保存也能被捕获。
func (ts *TaskScheduler) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(ts.opts.InputPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("error adding %s to watcher: %w", dir, err)
	}
	ts.logger.Info("Watching input for changes", zap.String("input", ts.opts.InputPath), zap.String("dir", dir))
	defer ts.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ts.isInputEvent(event) {
				continue
			}
			ts.logger.Debug("Watcher event", zap.String("op", event.Op.String()), zap.String("name", event.Name))
			ts.TriggerRun(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ts.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

// isInputEvent 只关注输入文件本身的创建和写入
func (ts *TaskScheduler) isInputEvent(event fsnotify.Event) bool {
	if !util.SamePath(event.Name, ts.opts.InputPath) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write)
}
