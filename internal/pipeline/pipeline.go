// Package pipeline 串联清洗、提取、翻译与回填：逐章清洗并收集跨章节的
// 全局文本段列表，对整批做一次翻译调用，再把译文按位置回填进各章标记。
// 跨章节合并翻译是刻意的：工作池与重试调度可以在整个任务上摊薄退避
// 和限流冷却，而不是每章付一次代价。
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qingshu-io/qingshu/internal/book"
	"github.com/qingshu-io/qingshu/internal/cleaner"
	"github.com/qingshu-io/qingshu/internal/extract"
	"github.com/qingshu-io/qingshu/internal/logger"
	"github.com/qingshu-io/qingshu/internal/script"
	"github.com/qingshu-io/qingshu/internal/translate"
)

// 作品级字段在全局段列表里的哨兵章节索引
const (
	TitleIndex  = -1
	AuthorIndex = -2
)

// Segment 一条待翻译的文本段。(Chapter, Text) 是回填时的关联键；
// 同一章内 Seq 反映文档顺序。
type Segment struct {
	Chapter int
	Seq     int
	Text    string
}

// Options 流水线开关与阈值。
type Options struct {
	Clean             bool
	Translate         bool
	TranslateMeta     bool // 同时翻译作品标题与作者
	MinBodyRunes      int  // 正文低于该长度时用占位内容代替，默认 2
	ResidualThreshold int  // 校验扫描的残留阈值，默认 5
}

func (o Options) normalize() Options {
	if o.MinBodyRunes <= 0 {
		o.MinBodyRunes = 2
	}
	if o.ResidualThreshold <= 0 {
		o.ResidualThreshold = 5
	}
	return o
}

// Warning 一条残留校验警告：章节标题与残留的源语言码点数。
type Warning struct {
	Title    string
	Residual int
}

// Report 一次运行的观测数据。任何单章的最坏结局是降级正文，
// 报告里不会出现让整批失败的错误。
type Report struct {
	Cleaning     cleaner.Stats
	Translation  translate.Stats
	Failures     []translate.Failure
	Warnings     []Warning
	Placeholders int
	Cancelled    bool
}

// Pipeline 回填编排器。
type Pipeline struct {
	cleaner *cleaner.Cleaner
	engine  *translate.Engine
	det     script.Detector
	log     logger.Logger
}

// New 创建流水线。
func New(c *cleaner.Cleaner, e *translate.Engine, det script.Detector, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	if !det.Valid() {
		det = script.ForLanguage("zh")
	}
	return &Pipeline{cleaner: c, engine: e, det: det, log: log}
}

// ProcessChapters 清洗全部章节，（可选）整批翻译并回填。
// 章节正文就地更新；取消只会提前收尾，已完成的部分保留。
func (p *Pipeline) ProcessChapters(ctx context.Context, info *book.Info, chapters []*book.Chapter, opts Options, progress book.Progress) *Report {
	opts = opts.normalize()
	rep := &Report{}
	p.cleaner.ResetStats()

	var segments []Segment
	for i, ch := range chapters {
		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}
		if progress != nil {
			progress(i+1, len(chapters), "清理: "+ch.Title)
		}

		if opts.Clean {
			body, err := p.cleaner.CleanChapter(ch.Raw, ch.EncodingHint, ch.Title)
			if err != nil {
				// 解析彻底失败：降级为纯文本清洗，残缺的章节也好过丢章
				p.log.Warn("章節解析失敗，降級為純文本清洗",
					zap.String("title", ch.Title), zap.Error(err))
				body = p.cleaner.CleanFallback(ch.Raw, ch.EncodingHint)
			}
			ch.Body = body
		} else if ch.Body == "" {
			ch.Body = cleaner.Decode(ch.Raw, ch.EncodingHint)
		}

		if opts.Translate {
			seq := 0
			for _, text := range extract.Segments(ch.Body, p.det) {
				segments = append(segments, Segment{Chapter: i, Seq: seq, Text: text})
				seq++
			}
		}
	}

	if opts.Translate && opts.TranslateMeta && info != nil && !rep.Cancelled {
		var meta []Segment
		if p.det.Contains(info.Title) {
			meta = append(meta, Segment{Chapter: TitleIndex, Text: info.Title})
		}
		if p.det.Contains(info.Author) {
			meta = append(meta, Segment{Chapter: AuthorIndex, Text: info.Author})
		}
		if len(meta) > 0 {
			segments = append(meta, segments...)
		}
	}

	if opts.Translate && len(segments) > 0 && !rep.Cancelled {
		p.translateAndApply(ctx, info, chapters, segments, rep, progress)
	}

	p.finalizeChapters(chapters, opts, rep)
	rep.Cleaning = p.cleaner.Stats()
	return rep
}

func (p *Pipeline) translateAndApply(ctx context.Context, info *book.Info, chapters []*book.Chapter, segments []Segment, rep *Report, progress book.Progress) {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}

	translated, res := p.engine.TranslateAll(ctx, texts,
		func(done, total int) {
			if progress != nil {
				progress(done, total, fmt.Sprintf("翻譯: %d/%d", done, total))
			}
		},
		func(pass, remaining, total int, cooldown time.Duration) {
			if progress != nil {
				progress(total-remaining, total,
					fmt.Sprintf("重試第 %d 輪: 剩餘 %d/%d（冷卻 %s）", pass, remaining, total, cooldown))
			}
		})
	rep.Translation = res.Stats
	rep.Failures = res.Failures
	rep.Cancelled = rep.Cancelled || res.Cancelled

	// 每章一个前移游标，按提取顺序逐个消耗出现位置
	cursors := make(map[int]int, len(chapters))
	for i, seg := range segments {
		out := translated[i]
		switch seg.Chapter {
		case TitleIndex:
			if strings.TrimSpace(out) != "" {
				info.Title = out
			}
		case AuthorIndex:
			if strings.TrimSpace(out) != "" {
				info.Author = out
			}
		default:
			ch := chapters[seg.Chapter]
			ch.Body, cursors[seg.Chapter] = substituteOnce(ch.Body, cursors[seg.Chapter], seg.Text, out)
		}
	}
}

// finalizeChapters 保证下游打包永远不会拿到空章节，并做残留校验。
func (p *Pipeline) finalizeChapters(chapters []*book.Chapter, opts Options, rep *Report) {
	for _, ch := range chapters {
		text := bodyText(ch.Body)
		if runeCount(strings.TrimSpace(text)) < opts.MinBodyRunes {
			ch.Body = p.placeholderBody(ch.Title)
			rep.Placeholders++
			p.log.Warn("章節內容為空，使用佔位正文", zap.String("title", ch.Title))
			continue
		}
		if opts.Translate {
			// 仅供参考的残留校验：翻译不完美是预期内的，不会阻断流水线
			if n := p.det.Count(text); n > opts.ResidualThreshold {
				rep.Warnings = append(rep.Warnings, Warning{Title: ch.Title, Residual: n})
			}
		}
	}
}

func (p *Pipeline) placeholderBody(title string) string {
	markup := fmt.Sprintf(
		"<html><head><title>%s</title></head><body><p>本章內容缺失。</p></body></html>",
		escapeText(title))
	out, err := p.cleaner.CleanChapter([]byte(markup), "", title)
	if err != nil {
		return markup
	}
	return out
}
