package translate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qingshu-io/qingshu/internal/script"
)

// providerFunc 用函数实现 Provider，方便按测试定制行为。
type providerFunc func(ctx context.Context, text string) (string, error)

func (f providerFunc) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// fastOptions 返回适合测试的小参数：毫秒级退避、无冷却。
func fastOptions() Options {
	return Options{
		MaxWorkers:  8,
		MaxRetries:  1,
		BackoffBase: time.Millisecond,
		Steps: Steps{
			Workers:      []int{0, 4},
			Intervals:    []time.Duration{0, 0},
			Cooldowns:    []time.Duration{0, time.Millisecond},
			ExtraRetries: []int{0, 1},
		},
	}
}

func TestTranslateAllPreservesOrder(t *testing.T) {
	provider := providerFunc(func(_ context.Context, text string) (string, error) {
		// 随机延迟打乱完成顺序
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return strings.ToUpper(text), nil
	})
	e := New(provider, nil, fastOptions(), nil)

	texts := make([]string, 50)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%03d", i)
	}
	results, res := e.TranslateAll(context.Background(), texts, nil, nil)

	require.Len(t, results, len(texts))
	for i, r := range results {
		assert.Equal(t, strings.ToUpper(texts[i]), r)
	}
	assert.False(t, res.Cancelled)
	assert.Equal(t, int64(50), res.Stats.Segments)
	assert.Equal(t, int64(0), res.Stats.Errors)
}

func TestTranslateAllEmptyInput(t *testing.T) {
	e := New(providerFunc(func(_ context.Context, text string) (string, error) {
		return text, nil
	}), nil, fastOptions(), nil)

	results, res := e.TranslateAll(context.Background(), nil, nil, nil)
	assert.Empty(t, results)
	assert.Equal(t, Stats{}, res.Stats)
}

func TestTranslateAllBlankSegments(t *testing.T) {
	var calls atomic.Int64
	e := New(providerFunc(func(_ context.Context, text string) (string, error) {
		calls.Add(1)
		return "X", nil
	}), nil, fastOptions(), nil)

	results, _ := e.TranslateAll(context.Background(), []string{"", "   ", "ok"}, nil, nil)
	// 空白段原样返回，不发起网络请求
	assert.Equal(t, "", results[0])
	assert.Equal(t, "   ", results[1])
	assert.Equal(t, "X", results[2])
	assert.Equal(t, int64(1), calls.Load())
}

func TestTranslateAllCacheHit(t *testing.T) {
	var calls atomic.Int64
	provider := providerFunc(func(_ context.Context, text string) (string, error) {
		calls.Add(1)
		return "hit", nil
	})
	opts := fastOptions()
	opts.MaxWorkers = 1 // 串行化以保证重复段命中缓存
	e := New(provider, nil, opts, nil)

	results, res := e.TranslateAll(context.Background(),
		[]string{"同一段文字", "同一段文字", "同一段文字"}, nil, nil)

	assert.Equal(t, []string{"hit", "hit", "hit"}, results)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(2), res.Stats.CacheHits)
}

func TestTranslateAllSharedCache(t *testing.T) {
	var calls atomic.Int64
	provider := providerFunc(func(_ context.Context, text string) (string, error) {
		calls.Add(1)
		return "cached", nil
	})
	cache := NewMemoryCache()
	e := New(provider, cache, fastOptions(), nil)

	_, _ = e.TranslateAll(context.Background(), []string{"跨任務緩存"}, nil, nil)
	_, res := e.TranslateAll(context.Background(), []string{"跨任務緩存"}, nil, nil)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(1), res.Stats.CacheHits)
	assert.Equal(t, 1, cache.Len())
}

func TestTranslateAllRetryPassesConverge(t *testing.T) {
	// 每段前两次调用失败，之后成功：首轮全部失败，重试轮收敛
	var mu sync.Mutex
	attempts := map[string]int{}
	provider := providerFunc(func(_ context.Context, text string) (string, error) {
		mu.Lock()
		attempts[text]++
		n := attempts[text]
		mu.Unlock()
		if n <= 2 {
			return "", errors.New("rate limited")
		}
		return "done", nil
	})

	opts := fastOptions()
	opts.RetryThreshold = 1
	e := New(provider, nil, opts, nil)

	texts := []string{"第一段中文內容", "第二段中文內容", "第三段中文內容"}
	results, res := e.TranslateAll(context.Background(), texts, nil, nil)

	for _, r := range results {
		assert.Equal(t, "done", r)
	}
	assert.False(t, res.Cancelled)
	// 首轮每段各失败一次，重试轮预算为 2 次，恰好一轮收敛；
	// 多出来的轮次意味着调度在空转
	assert.Equal(t, int64(1), res.Stats.RetryPasses)
	assert.Equal(t, int64(3), res.Stats.Errors)
	assert.Empty(t, res.Failures)
}

func TestFailuresSurviveLaterPasses(t *testing.T) {
	// 第 0 段出错但残留低于阈值，不会被重试；第 1 段失败一次后在
	// 重试轮成功。第 0 段的失败记录必须出现在最终结果里
	var mu sync.Mutex
	attempts := map[string]int{}
	provider := providerFunc(func(_ context.Context, text string) (string, error) {
		mu.Lock()
		attempts[text]++
		n := attempts[text]
		mu.Unlock()
		if text == "你好" {
			return "", errors.New("boom")
		}
		if n <= 1 {
			return "", errors.New("rate limited")
		}
		return "done", nil
	})
	e := New(provider, nil, fastOptions(), nil)

	results, res := e.TranslateAll(context.Background(),
		[]string{"你好", "很長的一段中文內容"}, nil, nil)

	assert.Equal(t, "你好", results[0])
	assert.Equal(t, "done", results[1])
	assert.GreaterOrEqual(t, res.Stats.RetryPasses, int64(1))
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 0, res.Failures[0].Index)
	assert.Contains(t, res.Failures[0].Preview, "你好")
}

func TestTranslateAllFailureKeepsOriginal(t *testing.T) {
	provider := providerFunc(func(_ context.Context, text string) (string, error) {
		return "", ErrEmptyResult
	})
	e := New(provider, nil, fastOptions(), nil)

	// 残留低于阈值，不会进入重试轮，直接以原文收场
	results, res := e.TranslateAll(context.Background(), []string{"你好"}, nil, nil)

	assert.Equal(t, "你好", results[0])
	assert.Equal(t, int64(1), res.Stats.Errors)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 0, res.Failures[0].Index)
	assert.Contains(t, res.Failures[0].Preview, "你好")
}

func TestTranslateAllCancelDuringCooldown(t *testing.T) {
	provider := providerFunc(func(_ context.Context, text string) (string, error) {
		return "", errors.New("always failing")
	})
	opts := fastOptions()
	opts.RetryThreshold = 1
	// 冷却设置得远超测试时限，验证取消能立刻打断冷却
	opts.Steps.Cooldowns = []time.Duration{0, time.Minute}
	e := New(provider, nil, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan Result, 1)
	go func() {
		_, res := e.TranslateAll(ctx, []string{"一段中文文字", "另一段中文文字"}, nil, nil)
		done <- res
	}()

	select {
	case res := <-done:
		assert.True(t, res.Cancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("取消后引擎未能及时返回")
	}
}

func TestTranslateAllRejectsRegressions(t *testing.T) {
	// 重试轮返回的空结果不能覆盖已有的原文条目
	var calls atomic.Int64
	provider := providerFunc(func(_ context.Context, text string) (string, error) {
		if calls.Add(1) <= 2 {
			return "", errors.New("boom")
		}
		return "   ", nil
	})
	opts := fastOptions()
	opts.RetryThreshold = 1
	opts.Detector = script.ForLanguage("zh")
	e := New(provider, nil, opts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	results, _ := e.TranslateAll(ctx, []string{"中文原文內容"}, nil, nil)
	assert.Equal(t, "中文原文內容", results[0])
}

func TestProgressCallback(t *testing.T) {
	e := New(providerFunc(func(_ context.Context, text string) (string, error) {
		return "ok", nil
	}), nil, fastOptions(), nil)

	var mu sync.Mutex
	var seen []int
	e.TranslateAll(context.Background(), []string{"a1", "b2", "c3"},
		func(done, total int) {
			mu.Lock()
			seen = append(seen, done)
			mu.Unlock()
			assert.Equal(t, 3, total)
		}, nil)

	assert.Len(t, seen, 3)
	assert.Contains(t, seen, 3)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, c.Len())

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestStepTablesClamp(t *testing.T) {
	steps := DefaultSteps()
	assert.Equal(t, steps.Workers[len(steps.Workers)-1], stepInt(steps.Workers, 99))
	assert.Equal(t, steps.Cooldowns[len(steps.Cooldowns)-1], stepDuration(steps.Cooldowns, 99))
	assert.Equal(t, 0, stepInt(nil, 1))
	assert.Equal(t, time.Duration(0), stepDuration(nil, 1))
}
