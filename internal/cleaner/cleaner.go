// Package cleaner 实现章节标记的规范化与清洗：
// 把编码不明、结构混乱的原始 HTML 解析为规范文档树，
// 剥离站点注入的水印、广告与不可见字符，再序列化为合法标记。
package cleaner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/qingshu-io/qingshu/internal/logger"
)

// ErrParse 表示章节标记完全无法解析。调用方应降级到纯文本清洗（CleanFallback），
// 宁可保留未修复的章节也不能丢弃章节。
var ErrParse = errors.New("cleaner: 无法解析章节标记")

// Stats 单次运行的清洗计数，调用方只读，需要时显式 ResetStats。
type Stats struct {
	ElementsRemoved   int // 整棵删除的禁用元素
	AdDivsRemoved     int // 删除的空广告容器
	EmptyTagsRemoved  int // 删除的空行内包装标签
	DeprecatedFixed   int // 转换的过时表现层标签
	BreaksPromoted    int // 提升为段落的 <br> 接续内容
	WatermarksRemoved int // 命中的水印规则次数
	TextNodesCleaned  int // 发生过字符级修改的文本节点
	DuplicateIDs      int // 删除的重复 id 属性
	SelfClosingFixed  int // 展开的自闭合标签
}

// Cleaner 章节清洗器。水印规则在构造时编译一次，之后复用。
// 同一个 Cleaner 不支持并发调用（统计字段无锁），每条流水线各建一个。
type Cleaner struct {
	watermarks []*regexp2.Regexp
	stats      Stats
	log        logger.Logger
}

// New 创建清洗器。customWatermarks 追加在内置水印规则之后；
// 编译失败的规则记录警告后跳过，绝不致命。
func New(customWatermarks []string, log logger.Logger) *Cleaner {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Cleaner{log: log}
	patterns := make([]string, 0, len(defaultWatermarks)+len(customWatermarks))
	patterns = append(patterns, defaultWatermarks...)
	patterns = append(patterns, customWatermarks...)
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.IgnoreCase)
		if err != nil {
			log.Warn("水印规则编译失败，跳过", zap.String("pattern", p), zap.Error(err))
			continue
		}
		c.watermarks = append(c.watermarks, re)
	}
	return c
}

// CleanChapter 规范化并清洗一章的原始字节，返回规范化后的完整标记。
// 整个过程是幂等的：对输出再跑一遍得到逐字节相同的结果。
func (c *Cleaner) CleanChapter(raw []byte, encodingHint, title string) (string, error) {
	text := Decode(raw, encodingHint)
	text = stripEncodingDecls(text)
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	c.repairStructure(doc, title)
	c.cleanTree(doc)
	return c.serialize(doc), nil
}

// CleanFallback 解析失败时的降级路径：不做结构修复，只做字符级清洗。
func (c *Cleaner) CleanFallback(raw []byte, encodingHint string) string {
	return c.CleanText(Decode(raw, encodingHint))
}

// Stats 返回当前累计的清洗计数。
func (c *Cleaner) Stats() Stats {
	return c.stats
}

// ResetStats 清零计数，用于两次运行之间。
func (c *Cleaner) ResetStats() {
	c.stats = Stats{}
}
