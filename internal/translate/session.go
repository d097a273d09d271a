package translate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/qingshu-io/qingshu/internal/logger"
)

// session 一次 TranslateAll 调用的全部可变状态。
type session struct {
	provider Provider
	cache    Cache
	opts     Options
	log      logger.Logger

	mu        sync.Mutex
	stats     Stats
	failures  map[int]Failure
	completed int
	total     int
	progress  ProgressFunc
}

func (s *session) run(ctx context.Context, texts, results []string, passCB PassFunc) ([]string, Result) {
	all := make([]int, len(texts))
	for i := range all {
		all[i] = i
	}

	// 首轮：全速并发
	workers := s.opts.MaxWorkers
	if workers > len(texts) {
		workers = len(texts)
	}
	s.runPool(ctx, all, texts, workers, s.opts.MaxRetries, s.opts.RequestInterval,
		func(i int, out string, ok bool) {
			results[i] = out
		})

	pass := 0
	prevFailed := -1
	stall := 0
	cancelled := false

	for {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		failing := s.scanFailing(results)
		if len(failing) == 0 {
			break
		}
		pass++
		s.mu.Lock()
		s.stats.RetryPasses++
		s.mu.Unlock()

		workerCap := stepInt(s.opts.Steps.Workers, pass)
		interval := maxDuration(stepDuration(s.opts.Steps.Intervals, pass), s.opts.RequestInterval)
		cooldown := stepDuration(s.opts.Steps.Cooldowns, pass)
		extra := stepInt(s.opts.Steps.ExtraRetries, pass)

		if prevFailed >= 0 && len(failing) >= prevFailed {
			stall++
		} else {
			stall = 0
		}
		if stall >= stallLimit {
			// 连续多轮失败数没有下降，强制最大退避
			if cooldown < stallCooldown {
				cooldown = stallCooldown
			}
			if interval < stallInterval {
				interval = stallInterval
			}
			if workerCap <= 0 || workerCap > stallWorkers {
				workerCap = stallWorkers
			}
		}
		prevFailed = len(failing)

		retryWorkers := workerCap
		if retryWorkers <= 0 {
			retryWorkers = s.opts.MaxWorkers
		}
		if retryWorkers > len(failing) {
			retryWorkers = len(failing)
		}

		s.log.Info("开始重试轮次",
			zap.Int("pass", pass),
			zap.Int("remaining", len(failing)),
			zap.Int("total", len(texts)),
			zap.Int("workers", retryWorkers),
			zap.Duration("interval", interval),
			zap.Duration("cooldown", cooldown),
			zap.Int("retries", s.opts.MaxRetries+extra))
		if passCB != nil {
			passCB(pass, len(failing), len(texts), cooldown)
		}

		if !sleepCtx(ctx, cooldown) {
			cancelled = true
			break
		}

		// 失败条目之前失败/原样回显的缓存值不能复用
		for _, i := range failing {
			s.cache.Delete(strings.TrimSpace(texts[i]))
		}

		s.resetProgress(len(failing))
		s.runPool(ctx, failing, texts, retryWorkers, s.opts.MaxRetries+extra, interval,
			func(i int, out string, ok bool) {
				// 只有非空且不再含显著原文的结果才覆盖已有条目；
				// 换一种写法但仍是原文的输出不算进展，不能丢掉现有值
				if ok && strings.TrimSpace(out) != "" &&
					s.opts.Detector.Count(out) <= s.opts.RetryThreshold {
					results[i] = out
				}
			})
	}

	s.mu.Lock()
	res := Result{
		Stats:     s.stats,
		Failures:  make([]Failure, 0, len(s.failures)),
		Cancelled: cancelled,
	}
	for _, f := range s.failures {
		res.Failures = append(res.Failures, f)
	}
	s.mu.Unlock()
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Index < res.Failures[j].Index })
	return results, res
}

// runPool 用信号量限制并发，结果按位置写回，完成顺序不影响最终排序。
func (s *session) runPool(ctx context.Context, indices []int, texts []string,
	workers, attempts int, interval time.Duration, apply func(i int, out string, ok bool)) {

	if workers < 1 {
		workers = 1
	}
	// 只清掉本轮要重试的条目的失败记录；没被重试的条目
	// （出错但残留不足以再试）必须保留在最终报告里
	s.mu.Lock()
	for _, i := range indices {
		delete(s.failures, i)
	}
	s.mu.Unlock()

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, idx := range indices {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out, ok := s.translateOne(ctx, i, texts[i], attempts, interval)
			apply(i, out, ok)
		}(idx)
	}
	wg.Wait()
}

// translateOne 翻译单条文本：查缓存、带指数退避调用端点。
// 耗尽重试后返回原文而不是错误——翻译失败降级为 no-op。
func (s *session) translateOne(ctx context.Context, idx int, text string, attempts int, interval time.Duration) (string, bool) {
	if ctx.Err() != nil {
		return text, false
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		s.step()
		return text, true
	}

	if v, ok := s.cache.Get(trimmed); ok {
		s.mu.Lock()
		s.stats.CacheHits++
		s.mu.Unlock()
		s.step()
		return v, true
	}

	if attempts < 1 {
		attempts = 1
	}
	var out string
	err := retry.Do(
		func() error {
			cctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
			defer cancel()
			got, err := s.provider.Translate(cctx, text)
			if err != nil {
				return err
			}
			if strings.TrimSpace(got) == "" {
				return ErrEmptyResult
			}
			out = got
			return nil
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(s.opts.BackoffBase),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.mu.Lock()
			s.stats.Retries++
			s.mu.Unlock()
			s.log.Debug("翻译调用重试", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		s.mu.Lock()
		s.stats.Errors++
		s.failures[idx] = Failure{
			Index:   idx,
			Preview: runewidth.Truncate(text, failurePreviewWidth, "..."),
		}
		s.mu.Unlock()
		s.step()
		return text, false
	}

	// 竞争时后写者胜出即可：两个并发请求翻译同一文本会得到同一译文
	s.cache.Set(trimmed, out)
	s.mu.Lock()
	s.stats.Requests++
	s.stats.Segments++
	s.stats.Characters += int64(utf8.RuneCountInString(text))
	s.mu.Unlock()
	s.step()

	if interval > 0 {
		sleepCtx(ctx, interval)
	}
	return out, true
}

func (s *session) scanFailing(results []string) []int {
	var failing []int
	for i, r := range results {
		// 比提取阶段更严的计数判定：纯专有名词残留不值得再重试
		if r != "" && s.opts.Detector.Count(r) > s.opts.RetryThreshold {
			failing = append(failing, i)
		}
	}
	return failing
}

func (s *session) step() {
	s.mu.Lock()
	s.completed++
	done, total, cb := s.completed, s.total, s.progress
	s.mu.Unlock()
	if cb != nil && total > 0 {
		cb(done, total)
	}
}

func (s *session) resetProgress(total int) {
	s.mu.Lock()
	s.completed = 0
	s.total = total
	s.mu.Unlock()
}

// sleepCtx 休眠 d，取消请求会立刻中断休眠并返回 false。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func stepInt(table []int, pass int) int {
	if len(table) == 0 {
		return 0
	}
	if pass >= len(table) {
		pass = len(table) - 1
	}
	return table[pass]
}

func stepDuration(table []time.Duration, pass int) time.Duration {
	if len(table) == 0 {
		return 0
	}
	if pass >= len(table) {
		pass = len(table) - 1
	}
	return table[pass]
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
