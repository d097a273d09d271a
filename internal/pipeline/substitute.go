package pipeline

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// substituteOnce 把 body 中 cursor 之后的第一处 orig 替换为 repl，
// 返回新正文与新游标。游标保证同章内的重复原文按提取顺序一一对应：
// 即使译文与原文相同也要消耗这一处出现位置，否则后面的重复段会
// 抢走前面的位置。序列化会转义 & < >，所以原文先按字面查找，
// 找不到再按转义后的形式查找。
func substituteOnce(body string, cursor int, orig, repl string) (string, int) {
	if cursor > len(body) {
		cursor = len(body)
	}
	needle := orig
	idx := strings.Index(body[cursor:], needle)
	if idx < 0 {
		needle = html.EscapeString(orig)
		idx = strings.Index(body[cursor:], needle)
	}
	if idx < 0 {
		// 清洗后的正文里找不到原文，放弃这一段，不动游标
		return body, cursor
	}
	pos := cursor + idx
	if repl == orig || strings.TrimSpace(repl) == "" {
		return body, pos + len(needle)
	}
	esc := html.EscapeString(repl)
	return body[:pos] + esc + body[pos+len(needle):], pos + len(esc)
}

// bodyText 提取 body 元素内的全部文本，用于占位判断与残留校验。
// 限定在 body 内：结构修复会往 title 里填章节名，不能算进正文。
func bodyText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	root := doc
	if b := findBody(doc); b != nil {
		root = b
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String()
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findBody(c); found != nil {
			return found
		}
	}
	return nil
}

func runeCount(s string) int {
	return utf8.RuneCountInString(s)
}

func escapeText(s string) string {
	return html.EscapeString(s)
}
