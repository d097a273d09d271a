// Package translate 实现并发、带持久多轮重试的翻译引擎。
//
// 重试调度的核心思路：首轮全速并发翻译；之后反复扫描仍含显著原文的条目，
// 每一轮按固定阶梯表收紧参数——工作协程减少、请求间隔加大、轮间冷却
// 拉长、单次调用的重试预算增加；连续多轮没有进展则切换到最大退避，
// 避免对着正在限流的服务器空转。循环只有两个出口：失败条目清零，或取消。
package translate

import (
	"context"
	"errors"
	"time"

	"github.com/qingshu-io/qingshu/internal/logger"
	"github.com/qingshu-io/qingshu/internal/script"
)

// ErrEmptyResult 表示翻译端点成功返回但内容为空，按普通调用失败处理。
var ErrEmptyResult = errors.New("translate: 翻译结果为空")

// Provider 翻译端点抽象。实现负责传输细节，语言对在构造实现时固定。
type Provider interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Steps 多轮重试的参数阶梯表，按轮次取值，超出表长钳制在最后一项。
// 各表的来源没有更深的语义，当作可调参数看待。
type Steps struct {
	Workers      []int           // 0 表示沿用初始 MaxWorkers
	Intervals    []time.Duration // 每次成功请求之后的最小间隔
	Cooldowns    []time.Duration // 进入该轮之前的冷却
	ExtraRetries []int           // 在基础重试次数上追加的预算
}

// DefaultSteps 返回默认阶梯表。
func DefaultSteps() Steps {
	return Steps{
		Workers:      []int{0, 50, 30, 20, 10, 5},
		Intervals:    []time.Duration{0, 300 * time.Millisecond, 500 * time.Millisecond, time.Second, 1500 * time.Millisecond, 2 * time.Second},
		Cooldowns:    []time.Duration{0, 5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second, 60 * time.Second},
		ExtraRetries: []int{0, 0, 1, 1, 2, 3},
	}
}

// 失速处理：连续 stallLimit 轮失败数未减少时，强制切到各表最保守的一端。
const (
	stallLimit    = 3
	stallCooldown = 90 * time.Second
	stallInterval = 2500 * time.Millisecond
	stallWorkers  = 3
)

// failurePreviewWidth 失败记录里原文预览的显示宽度
const failurePreviewWidth = 50

// Options 引擎参数。零值字段在 normalize 时补默认值。
type Options struct {
	MaxWorkers      int             // 首轮工作协程上限，默认 100
	RequestTimeout  time.Duration   // 单次网络调用超时，默认 15s
	MaxRetries      int             // 单次翻译调用的基础尝试次数，默认 5
	RequestInterval time.Duration   // 可选的固定请求间隔，默认 0
	BackoffBase     time.Duration   // 指数退避起始延迟，默认 2s
	RetryThreshold  int             // 残留源语言码点超过该值才算失败条目，默认 5
	Detector        script.Detector // 源语言检测器，默认中文
	Steps           Steps
}

func (o Options) normalize() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 100
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.RetryThreshold <= 0 {
		o.RetryThreshold = 5
	}
	if !o.Detector.Valid() {
		o.Detector = script.ForLanguage("zh")
	}
	if len(o.Steps.Workers) == 0 {
		o.Steps = DefaultSteps()
	}
	return o
}

// Stats 单次 TranslateAll 的计数，调用结束后随 Result 返回。
type Stats struct {
	Requests    int64 // 成功的网络请求数
	Segments    int64 // 翻译成功的文本段数
	Characters  int64 // 翻译成功的原文字符数
	CacheHits   int64
	Errors      int64 // 耗尽重试后仍失败的调用数
	Retries     int64 // 单次调用内的重试次数
	RetryPasses int64 // 多轮重试的轮数
}

// Failure 一条最终失败的记录：原始下标加截断的原文预览。
type Failure struct {
	Index   int
	Preview string
}

// Result 一次 TranslateAll 的观测数据。Cancelled 区分取消与正常完成。
type Result struct {
	Stats     Stats
	Failures  []Failure
	Cancelled bool
}

// ProgressFunc 按条目粒度报告进度。
type ProgressFunc func(completed, total int)

// PassFunc 在每个重试轮开始时报告 (轮次, 剩余, 总数, 冷却)，仅用于观测，
// 不得影响控制流。
type PassFunc func(pass, remaining, total int, cooldown time.Duration)

// Engine 翻译引擎。每次 TranslateAll 内部构造独立的会话对象持有
// 本次调用的缓存、统计与取消状态，并发任务之间不共享可变状态；
// 构造时注入的 Cache 非 nil 时作为显式共享的跨任务缓存。
type Engine struct {
	provider Provider
	cache    Cache
	opts     Options
	log      logger.Logger
}

// New 创建引擎。cache 传 nil 则每次调用使用独立的内存缓存。
func New(provider Provider, cache Cache, opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{provider: provider, cache: cache, opts: opts.normalize(), log: log}
}

// TranslateAll 翻译整批文本，返回与输入等长、顺序一致的结果。
// 任何条目最坏的结局是原文原样返回，绝不会让单条失败中断整批。
func (e *Engine) TranslateAll(ctx context.Context, texts []string, progress ProgressFunc, passCB PassFunc) ([]string, Result) {
	results := make([]string, len(texts))
	if len(texts) == 0 {
		return results, Result{}
	}
	s := &session{
		provider: e.provider,
		cache:    e.cache,
		opts:     e.opts,
		log:      e.log,
		progress: progress,
		failures: make(map[int]Failure),
		total:    len(texts),
	}
	if s.cache == nil {
		s.cache = NewMemoryCache()
	}
	return s.run(ctx, texts, results, passCB)
}
