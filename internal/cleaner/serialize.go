package cleaner

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// 这些标签不允许以自闭合形式出现：部分 EPUB 阅读器无法处理 <p/> 这类写法。
var noSelfCloseTags = []string{
	"a", "abbr", "address", "article", "aside", "audio", "b",
	"bdo", "blockquote", "body", "button", "cite", "code", "dd", "del", "details",
	"dfn", "div", "dl", "dt", "em", "fieldset", "figcaption", "figure", "footer",
	"h1", "h2", "h3", "h4", "h5", "h6", "header", "hgroup", "i", "iframe", "ins", "kbd",
	"label", "legend", "li", "map", "mark", "meter", "nav", "ol", "output", "p",
	"pre", "progress", "q", "rp", "rt", "samp", "section", "select", "small",
	"span", "strong", "sub", "summary", "sup", "textarea", "time", "ul", "var",
	"video", "title", "script", "style",
}

var selfCloseRe = regexp.MustCompile(
	`(?i)<(` + strings.Join(noSelfCloseTags, "|") + `)((?:\s[^<>]*?)?)\s*/>`)

func (c *Cleaner) serialize(doc *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		// Render 只会因 writer 失败报错，bytes.Buffer 不会
		return buf.String()
	}
	return c.fixSelfClosing(buf.String())
}

// fixSelfClosing 在序列化后的字节上做一次文本级改写，把黑名单标签的
// 自闭合形式展开为成对标签，属性逐字保留。序列化器不提供逐标签的
// 闭合风格控制，所以这一步只能在树外完成。
func (c *Cleaner) fixSelfClosing(markup string) string {
	return selfCloseRe.ReplaceAllStringFunc(markup, func(m string) string {
		sub := selfCloseRe.FindStringSubmatch(m)
		c.stats.SelfClosingFixed++
		return "<" + sub[1] + sub[2] + "></" + sub[1] + ">"
	})
}
