package augmenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/yleoer/idioms/pkg/converter"
	"github.com/yleoer/idioms/pkg/idiom"
	"github.com/yleoer/idioms/pkg/loader"
	"github.com/yleoer/idioms/pkg/writer"
)

// tableConverter 只替换表中的字符，其余字符原样返回
var tableConverter = converter.Func(strings.NewReplacer(
	"举", "舉",
	"两", "兩",
	"马", "馬",
	"这", "這",
).Replace)

func decode(t *testing.T, input string) idiom.Collection {
	t.Helper()
	records, err := loader.Decode(strings.NewReader(input), "test")
	require.NoError(t, err)
	return records
}

func encode(t *testing.T, records idiom.Collection) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writer.Encode(&buf, records, writer.DefaultIndent))
	return buf.String()
}

func TestAugmentExampleScenario(t *testing.T) {
	records := decode(t, `[{"id": 1, "description": "一举两得", "chineseExample": "他一举两得。", "note": 42}]`)

	stats, err := New(tableConverter).Augment(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 1, Converted: 2, Skipped: 0}, stats)

	want := `[
  {
    "id": 1,
    "description": "一举两得",
    "chineseExample": "他一举两得。",
    "note": 42,
    "description_tr": "一舉兩得",
    "chineseExample_tr": "他一舉兩得。"
  }
]
`
	assert.Equal(t, want, encode(t, records))
}

func TestAugmentAbsentField(t *testing.T) {
	records := decode(t, `[{"id": 2, "description": "foo"}]`)

	stats, err := New(tableConverter).Augment(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Converted)

	assert.Equal(t, []string{"id", "description", "description_tr"}, records[0].Keys())
	assert.False(t, records[0].Has("chineseExample_tr"))
	assert.JSONEq(t, `[{"id": 2, "description": "foo", "description_tr": "foo"}]`, encode(t, records))
}

func TestAugmentDerivedFieldsFollowDeclarationOrder(t *testing.T) {
	// chineseExample 在原记录中排在 description 前面，派生字段仍按目标字段声明顺序追加
	records := decode(t, `[{"chineseExample": "两", "description": "举"}]`)

	_, err := New(tableConverter).Augment(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"chineseExample", "description", "description_tr", "chineseExample_tr"},
		records[0].Keys())
}

func TestAugmentTypeMismatch(t *testing.T) {
	input := `[{"id": 3, "description": null, "chineseExample": {"text": "举"}}, {"id": 4, "description": 7, "chineseExample": "举"}]`

	t.Run("skip by default", func(t *testing.T) {
		records := decode(t, input)
		stats, err := New(tableConverter, WithLogger(zaptest.NewLogger(t))).Augment(context.Background(), records)
		require.NoError(t, err)
		assert.Equal(t, Stats{Records: 2, Converted: 1, Skipped: 3}, stats)

		assert.Equal(t, []string{"id", "description", "chineseExample"}, records[0].Keys())
		assert.Equal(t, []string{"id", "description", "chineseExample", "chineseExample_tr"}, records[1].Keys())
		v, _ := records[1].Get("chineseExample_tr")
		assert.Equal(t, `"舉"`, string(v))
	})

	t.Run("strict fails", func(t *testing.T) {
		records := decode(t, input)
		_, err := New(tableConverter, WithStrict(true)).Augment(context.Background(), records)
		require.Error(t, err)
		assert.ErrorIs(t, err, idiom.ErrTypeMismatch)
		assert.Contains(t, err.Error(), "record 0")
	})
}

func TestAugmentOverwritesExistingDerivedField(t *testing.T) {
	records := decode(t, `[{"description": "举", "description_tr": "stale", "x": 1}]`)

	_, err := New(tableConverter).Augment(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "description_tr", "x"}, records[0].Keys())
	v, _ := records[0].Get("description_tr")
	assert.Equal(t, `"舉"`, string(v))
}

func TestAugmentCustomFieldsAndSuffix(t *testing.T) {
	records := decode(t, `[{"characters": "塞翁失马", "description": "马"}]`)

	aug := New(tableConverter, WithFields("characters"), WithSuffix("_hant"))
	assert.Equal(t, []string{"characters"}, aug.Fields())

	_, err := aug.Augment(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, []string{"characters", "description", "characters_hant"}, records[0].Keys())
	v, _ := records[0].Get("characters_hant")
	assert.Equal(t, `"塞翁失馬"`, string(v))
}

func TestAugmentDefaults(t *testing.T) {
	aug := New(nil, WithFields(), WithSuffix(""), WithWorkers(0), WithLogger(nil))
	assert.Equal(t, DefaultFields, aug.Fields())
	assert.Equal(t, DefaultSuffix, aug.suffix)
	assert.Equal(t, 1, aug.workers)

	records := decode(t, `[{"description": "这"}]`)
	_, err := aug.Augment(context.Background(), records)
	require.NoError(t, err)
	v, _ := records[0].Get("description_tr")
	assert.Equal(t, `"这"`, string(v))
}

func TestAugmentParallelMatchesSequential(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 300; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		switch i % 3 {
		case 0:
			fmt.Fprintf(&sb, `{"id": %d, "description": "一举两得 %d", "chineseExample": "这匹马"}`, i, i)
		case 1:
			fmt.Fprintf(&sb, `{"id": %d, "description": "两"}`, i)
		default:
			fmt.Fprintf(&sb, `{"id": %d, "chineseExample": null}`, i)
		}
	}
	sb.WriteString("]")

	sequential := decode(t, sb.String())
	parallel := decode(t, sb.String())

	seqStats, err := New(tableConverter).Augment(context.Background(), sequential)
	require.NoError(t, err)
	parStats, err := New(tableConverter, WithWorkers(8)).Augment(context.Background(), parallel)
	require.NoError(t, err)

	assert.Equal(t, seqStats, parStats)
	assert.Equal(t, encode(t, sequential), encode(t, parallel))
}

func TestAugmentCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		records := decode(t, `[{"description": "举"}]`)
		_, err := New(tableConverter, WithWorkers(workers)).Augment(ctx, records)
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", workers)
	}
}

func TestAugmentEmptyCollection(t *testing.T) {
	stats, err := New(tableConverter).Augment(context.Background(), idiom.Collection{})
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

// 随机生成的记录上验证：派生字段覆盖、原字段不受影响、顺序不变、缺失字段不生成派生字段
func TestAugmentProperties(t *testing.T) {
	pool := []string{"id", "description", "chineseExample", "pinyin", "note"}
	texts := []string{"一举两得", "塞翁失马", "这", "foo bar 42!", "", "他一举两得。", "<b>&amp;</b>"}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 15).Draw(rt, "records")
		records := make(idiom.Collection, 0, n)
		for i := 0; i < n; i++ {
			r := idiom.NewRecord()
			for _, key := range pool {
				switch rapid.IntRange(0, 3).Draw(rt, "kind") {
				case 0: // 缺失
				case 1:
					r.Set(key, json.RawMessage(fmt.Sprint(rapid.IntRange(-5, 5).Draw(rt, "num"))))
				case 2:
					r.Set(key, json.RawMessage(`null`))
				default:
					text := rapid.SampledFrom(texts).Draw(rt, "text") + rapid.String().Draw(rt, "tail")
					require.NoError(rt, r.SetString(key, text))
				}
			}
			records = append(records, r)
		}

		type snapshot struct {
			keys   []string
			values map[string]string
		}
		before := make([]snapshot, len(records))
		for i, r := range records {
			s := snapshot{keys: r.Keys(), values: map[string]string{}}
			for _, k := range s.keys {
				v, _ := r.Get(k)
				s.values[k] = string(v)
			}
			before[i] = s
		}

		workers := rapid.IntRange(1, 4).Draw(rt, "workers")
		_, err := New(tableConverter, WithWorkers(workers)).Augment(context.Background(), records)
		require.NoError(rt, err)

		// P3: 记录数和顺序不变
		require.Len(rt, records, len(before))
		for i, r := range records {
			keys := r.Keys()
			// P2: 原字段保持原顺序和原值
			require.GreaterOrEqual(rt, len(keys), len(before[i].keys))
			assert.Equal(rt, before[i].keys, keys[:len(before[i].keys)])
			for _, k := range before[i].keys {
				v, _ := r.Get(k)
				assert.Equal(rt, before[i].values[k], string(v))
			}

			derived := []string{}
			for _, field := range DefaultFields {
				name := idiom.DerivedName(field, DefaultSuffix)
				raw, present := before[i].values[field]
				if !present || !strings.HasPrefix(raw, `"`) {
					// P4: 缺失或非字符串字段不生成派生字段
					assert.False(rt, r.Has(name))
					continue
				}
				// P1: 派生字段等于转换结果
				var original string
				require.NoError(rt, json.Unmarshal([]byte(raw), &original))
				got, ok, err := r.StringField(name)
				require.NoError(rt, err)
				require.True(rt, ok)
				assert.Equal(rt, tableConverter.Convert(original), got)
				derived = append(derived, name)
			}
			assert.Equal(rt, derived, keys[len(before[i].keys):])
		}
	})
}
