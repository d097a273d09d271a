// Package extract 从清洗后的文档里挑出值得翻译的文本段。
package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/qingshu-io/qingshu/internal/script"
)

// Segments 按文档顺序遍历所有文本节点，返回修剪后长度大于 1 且含有
// 源语言码点的文本。判定故意宽松（存在性而非密度）：多选只是浪费一次
// 翻译调用，漏选则会悄悄跳过本该翻译的内容。
func Segments(markup string, det script.Detector) []string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	var segs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if utf8.RuneCountInString(t) > 1 && det.Contains(t) {
				segs = append(segs, t)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return segs
}
