package augmenter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yleoer/idioms/pkg/converter"
	"github.com/yleoer/idioms/pkg/idiom"
)

const DefaultSuffix = "_tr"

// DefaultFields 是需要生成繁体版本的目标字段，顺序即派生字段的追加顺序
var DefaultFields = []string{"description", "chineseExample"}

// Stats 汇总一次增强的结果
type Stats struct {
	Records   int // 处理的记录数
	Converted int // 新增的派生字段数
	Skipped   int // 因字段不是字符串而跳过的次数
}

// Augmenter 为每条记录的目标字段追加转换后的派生字段
type Augmenter struct {
	converter converter.TextConverter
	fields    []string
	suffix    string
	workers   int
	strict    bool
	logger    *zap.Logger
}

// Option 配置 Augmenter
type Option func(*Augmenter)

// WithFields 设置目标字段
func WithFields(fields ...string) Option {
	return func(a *Augmenter) {
		if len(fields) > 0 {
			a.fields = append([]string(nil), fields...)
		}
	}
}

// WithSuffix 设置派生字段后缀
func WithSuffix(suffix string) Option {
	return func(a *Augmenter) {
		if suffix != "" {
			a.suffix = suffix
		}
	}
}

// WithWorkers 设置并发处理记录的 goroutine 数，小于 1 时按 1 处理
func WithWorkers(n int) Option {
	return func(a *Augmenter) {
		if n < 1 {
			n = 1
		}
		a.workers = n
	}
}

// WithStrict 为 true 时目标字段不是字符串会使整次运行失败，否则跳过该字段
func WithStrict(strict bool) Option {
	return func(a *Augmenter) {
		a.strict = strict
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Augmenter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New 创建 Augmenter。conv 在整个运行期间复用。
func New(conv converter.TextConverter, opts ...Option) *Augmenter {
	a := &Augmenter{
		converter: conv,
		fields:    append([]string(nil), DefaultFields...),
		suffix:    DefaultSuffix,
		workers:   1,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.converter == nil {
		a.converter = converter.Identity
	}
	return a
}

// Fields 返回目标字段
func (a *Augmenter) Fields() []string {
	return append([]string(nil), a.fields...)
}

func (a *Augmenter) Suffix() string {
	return a.suffix
}

// Augment 原地增强集合中的每条记录。记录顺序不变，派生字段追加在原字段之后。
func (a *Augmenter) Augment(ctx context.Context, records idiom.Collection) (Stats, error) {
	var converted, skipped atomic.Int64

	process := func(i int) error {
		c, s, err := a.augmentRecord(i, records[i])
		converted.Add(int64(c))
		skipped.Add(int64(s))
		return err
	}

	if a.workers <= 1 {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return Stats{}, err
			}
			if err := process(i); err != nil {
				return Stats{}, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.workers)
		for i := range records {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return process(i)
			})
		}
		if err := g.Wait(); err != nil {
			return Stats{}, err
		}
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
	}

	stats := Stats{
		Records:   len(records),
		Converted: int(converted.Load()),
		Skipped:   int(skipped.Load()),
	}
	a.logger.Debug("Records augmented",
		zap.Int("records", stats.Records),
		zap.Int("converted", stats.Converted),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// augmentRecord 处理单条记录，只有一个 goroutine 会修改它
func (a *Augmenter) augmentRecord(index int, record *idiom.Record) (converted, skipped int, err error) {
	if record == nil {
		return 0, 0, nil
	}
	for _, field := range a.fields {
		value, ok, err := record.StringField(field)
		if !ok {
			continue
		}
		if err != nil {
			if !errors.Is(err, idiom.ErrTypeMismatch) || a.strict {
				return converted, skipped, fmt.Errorf("record %d: %w", index, err)
			}
			a.logger.Warn("Skipping non-string field",
				zap.Int("record", index),
				zap.String("field", field),
				zap.Error(err))
			skipped++
			continue
		}
		derived := idiom.DerivedName(field, a.suffix)
		if err := record.SetString(derived, a.converter.Convert(value)); err != nil {
			return converted, skipped, fmt.Errorf("record %d: %w", index, err)
		}
		converted++
	}
	return converted, skipped, nil
}
