// Package book 定义作品与章节的数据模型，以及章节获取的能力拆分。
package book

import (
	"context"
	"fmt"
)

// Info 作品元数据，由外部采集方提供。翻译开启时 Title/Author 会被译文覆盖。
type Info struct {
	Title       string   `mapstructure:"title"`
	Author      string   `mapstructure:"author"`
	Language    string   `mapstructure:"language"`
	Description string   `mapstructure:"description"`
	SourceURL   string   `mapstructure:"source_url"`
	CoverURL    string   `mapstructure:"cover_url"`
	Tags        []string `mapstructure:"tags"`
}

// Chapter 一章。Body 的所有权在流水线阶段之间按顺序移交，
// 任一时刻只有一个阶段会修改它。
type Chapter struct {
	Title        string
	SourceURL    string
	Index        int    // 章节序号，从 0 开始
	EncodingHint string // 站点声明的编码，可为空
	Raw          []byte // 采集方提供的原始正文
	Body         string // 清洗（及翻译）后的规范标记
}

// Progress 进度回调 (当前, 总数, 状态说明)
type Progress func(current, total int, status string)

// Fetcher 章节获取策略。逐章与整批两种实现按采集方的能力
// 在构造时选定，而不是运行期做鸭子类型探测。
type Fetcher interface {
	FetchAll(ctx context.Context, chapters []*Chapter, progress Progress) error
}

// LoadFunc 加载单章原文到 ch.Raw。
type LoadFunc func(ctx context.Context, ch *Chapter) error

// SequentialFetcher 逐章获取的实现。
type SequentialFetcher struct {
	load LoadFunc
}

// NewSequentialFetcher 创建逐章获取器。
func NewSequentialFetcher(load LoadFunc) *SequentialFetcher {
	return &SequentialFetcher{load: load}
}

// FetchAll 逐章调用 load，每章之间检查取消。
func (f *SequentialFetcher) FetchAll(ctx context.Context, chapters []*Chapter, progress Progress) error {
	for i, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil {
			progress(i+1, len(chapters), "讀取: "+ch.Title)
		}
		if err := f.load(ctx, ch); err != nil {
			return fmt.Errorf("加載章節 %q: %w", ch.Title, err)
		}
	}
	return nil
}

// BulkLoadFunc 一次加载全部章节，采集方支持合并获取时使用。
type BulkLoadFunc func(ctx context.Context, chapters []*Chapter, progress Progress) error

// BulkFetcher 整批获取的实现。
type BulkFetcher struct {
	load BulkLoadFunc
}

// NewBulkFetcher 创建整批获取器。
func NewBulkFetcher(load BulkLoadFunc) *BulkFetcher {
	return &BulkFetcher{load: load}
}

// FetchAll 把整批加载委托给采集方。
func (f *BulkFetcher) FetchAll(ctx context.Context, chapters []*Chapter, progress Progress) error {
	return f.load(ctx, chapters, progress)
}
