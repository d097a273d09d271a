package cli

import (
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/pterm/pterm"

	"github.com/qingshu-io/qingshu/internal/book"
	"github.com/qingshu-io/qingshu/internal/pipeline"
)

const statusWidth = 40

// progressUI 终端进度条。进度回调可能来自多个工作协程，所以加锁；
// 总数变化意味着进入了新阶段（读取→清理→翻译），重建进度条。
type progressUI struct {
	mu    sync.Mutex
	bar   *pterm.ProgressbarPrinter
	total int
}

func newProgressUI() *progressUI {
	return &progressUI{}
}

func (p *progressUI) update(current, total int, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil || total != p.total {
		if p.bar != nil {
			_, _ = p.bar.Stop()
		}
		bar, err := pterm.DefaultProgressbar.WithTotal(total).WithMaxWidth(100).Start()
		if err != nil {
			return
		}
		p.bar = bar
		p.total = total
	}
	p.bar.UpdateTitle(runewidth.Truncate(status, statusWidth, "…"))
	if current > p.bar.Current {
		p.bar.Add(current - p.bar.Current)
	}
}

func (p *progressUI) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
		p.total = 0
	}
}

// printSummary 渲染处理总结表格。
func printSummary(w io.Writer, info *book.Info, chapterCount int, rep *pipeline.Report, elapsed time.Duration) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	tw.AppendRow(table.Row{"项", "值"})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"书名", info.Title})
	tw.AppendRow(table.Row{"章节数", chapterCount})
	tw.AppendRow(table.Row{"总耗时", elapsed.Round(time.Second)})

	tw.AppendSeparator()
	c := rep.Cleaning
	tw.AppendRow(table.Row{"清理 - 删除的元素", c.ElementsRemoved + c.AdDivsRemoved + c.EmptyTagsRemoved})
	tw.AppendRow(table.Row{"清理 - 转换的过时标签", c.DeprecatedFixed})
	tw.AppendRow(table.Row{"清理 - 提升的段落", c.BreaksPromoted})
	tw.AppendRow(table.Row{"清理 - 去除的水印", c.WatermarksRemoved})

	t := rep.Translation
	if t.Requests > 0 || t.Segments > 0 || t.Errors > 0 {
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"翻译 - 成功段落", t.Segments})
		tw.AppendRow(table.Row{"翻译 - 原文字符", t.Characters})
		tw.AppendRow(table.Row{"翻译 - 网络请求", t.Requests})
		tw.AppendRow(table.Row{"翻译 - 缓存命中", t.CacheHits})
		tw.AppendRow(table.Row{"翻译 - 调用内重试", t.Retries})
		tw.AppendRow(table.Row{"翻译 - 重试轮数", t.RetryPasses})
		tw.AppendRow(table.Row{"翻译 - 最终失败", t.Errors})
	}
	if rep.Placeholders > 0 {
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"占位章节", rep.Placeholders})
	}

	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// printIssues 输出失败与残留警告，供用户决定是否重跑。
func printIssues(rep *pipeline.Report) {
	if len(rep.Failures) > 0 {
		pterm.Warning.Printfln("有 %d 段译文最终失败，保留了原文:", len(rep.Failures))
		for _, f := range rep.Failures {
			pterm.Printfln("  #%d %s", f.Index, f.Preview)
		}
	}
	for _, warn := range rep.Warnings {
		pterm.Warning.Printfln("章节 %q 残留 %d 个源语言字符",
			runewidth.Truncate(warn.Title, statusWidth, "…"), warn.Residual)
	}
	if rep.Cancelled {
		pterm.Warning.Println("本次运行被取消，结果不完整")
	}
}
