package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 整棵子树删除的交互/可执行元素
var removeTags = map[string]bool{
	"script": true, "form": true, "embed": true, "object": true,
	"input": true, "button": true, "textarea": true,
}

// 广告容器的 class 关键字
var adClasses = map[string]bool{
	"txtad": true, "ad": true, "advertisement": true, "ads": true, "adsbygoogle": true,
}

// 广告/脚本剥离后可能残留的空包装标签
var emptyInlineTags = map[string]bool{
	"a": true, "b": true, "i": true, "u": true, "span": true, "em": true, "strong": true,
}

// 过时表现层标签到现代等价物的固定映射，样式与原有 style 以分号合并
var deprecatedTags = map[string]struct{ tag, style string }{
	"center": {"div", "text-align: center"},
	"u":      {"span", "text-decoration: underline"},
	"s":      {"span", "text-decoration: line-through"},
	"strike": {"span", "text-decoration: line-through"},
	"big":    {"span", "font-size: larger"},
	"small":  {"span", "font-size: smaller"},
	"tt":     {"span", "font-family: monospace"},
	"font":   {"span", ""},
}

// 可以并入段落的行内标签
var inlineTags = map[string]bool{
	"a": true, "b": true, "i": true, "u": true, "em": true, "strong": true,
	"span": true, "small": true, "big": true, "s": true, "strike": true,
	"code": true, "sub": true, "sup": true,
}

// 允许把 <br> 接续内容提升为段落的父容器
var blockContainers = map[string]bool{
	"body": true, "div": true, "section": true, "article": true, "blockquote": true,
}

// repairStructure 保证文档有 doctype、恰好一个 head（含恰好一个非空 title
// 和一个 charset 声明）、恰好一个 body。html.Parse 本身保证 head/body 的
// 存在与唯一，这里负责 head 内部的收敛。
func (c *Cleaner) repairStructure(doc *html.Node, fallbackTitle string) {
	ensureDoctype(doc)
	head := findElement(doc, "head")
	if head == nil {
		return
	}

	// 已有的 charset 声明全部移除，统一重建。扫描整棵树：
	// 乱排的来源页会把 meta 丢在 body 里
	var metas []*html.Node
	walkElements(doc, func(n *html.Node) {
		if n.Data == "meta" && isCharsetMeta(n) {
			metas = append(metas, n)
		}
	})
	for _, m := range metas {
		removeNode(m)
	}

	// 恰好一个非空 title
	var titles []*html.Node
	for ch := head.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && ch.Data == "title" {
			titles = append(titles, ch)
		}
	}
	if len(titles) == 0 {
		t := newElement("title")
		head.AppendChild(t)
		titles = append(titles, t)
	}
	for _, extra := range titles[1:] {
		removeNode(extra)
	}
	if strings.TrimSpace(textContent(titles[0])) == "" {
		title := fallbackTitle
		if strings.TrimSpace(title) == "" {
			title = "未命名章節"
		}
		setText(titles[0], title)
	}

	// 规范的 charset 声明放在 head 最前
	meta := newElement("meta")
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	head.InsertBefore(meta, head.FirstChild)
}

// cleanTree 内容清洗。各阶段顺序有依赖：过时标签转换要在空行内标签
// 清理之前（u 转成的 span 可能为空），文本清洗要在结构调整之后。
func (c *Cleaner) cleanTree(doc *html.Node) {
	gdoc := goquery.NewDocumentFromNode(doc)
	c.removeForbidden(doc)
	c.removeAdDivs(gdoc)
	c.convertDeprecated(doc)
	c.promoteBreakRuns(doc)
	c.removeEmptyInline(doc)
	c.cleanTextNodes(doc)
	c.dedupeIDs(gdoc)
	c.neutralizeComments(doc)
}

func (c *Cleaner) removeForbidden(doc *html.Node) {
	var doomed []*html.Node
	walkElements(doc, func(n *html.Node) {
		if removeTags[n.Data] {
			doomed = append(doomed, n)
		}
	})
	for _, n := range doomed {
		removeNode(n)
		c.stats.ElementsRemoved++
	}
}

// removeAdDivs 只删除 class 命中广告集合且结构上为空的 div。
// 有实际内容的广告容器保留：宁可漏删，不可误删正文。
func (c *Cleaner) removeAdDivs(gdoc *goquery.Document) {
	gdoc.Find("div[class]").Each(func(_ int, sel *goquery.Selection) {
		if !hasAdClass(sel.AttrOr("class", "")) {
			return
		}
		n := sel.Nodes[0]
		if hasRenderableContent(n) {
			return
		}
		removeNode(n)
		c.stats.AdDivsRemoved++
	})
}

func (c *Cleaner) convertDeprecated(doc *html.Node) {
	walkElements(doc, func(n *html.Node) {
		repl, ok := deprecatedTags[n.Data]
		if !ok {
			return
		}
		n.Data = repl.tag
		n.DataAtom = atom.Lookup([]byte(repl.tag))
		if repl.style != "" {
			mergeStyle(n, repl.style)
		}
		c.stats.DeprecatedFixed++
	})
}

// promoteBreakRuns 把块级容器里紧跟内容的 <br> 提升为段落：
// 带接续文本的换行几乎总是来源标记里错排的段落边界。
func (c *Cleaner) promoteBreakRuns(doc *html.Node) {
	var brs []*html.Node
	walkElements(doc, func(n *html.Node) {
		if n.Data == "br" && n.Parent != nil &&
			n.Parent.Type == html.ElementNode && blockContainers[n.Parent.Data] {
			brs = append(brs, n)
		}
	})
	for _, br := range brs {
		run := collectInlineRun(br)
		if !runHasText(run) {
			continue
		}
		p := newElement("p")
		br.Parent.InsertBefore(p, br)
		for _, n := range run {
			n.Parent.RemoveChild(n)
			p.AppendChild(n)
		}
		removeNode(br)
		c.stats.BreaksPromoted++
	}
}

// removeEmptyInline 后序遍历，先清理内层再看外层，嵌套的空包装一趟删完。
func (c *Cleaner) removeEmptyInline(doc *html.Node) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		ch := n.FirstChild
		for ch != nil {
			next := ch.NextSibling
			walk(ch)
			ch = next
		}
		if n.Type != html.ElementNode || !emptyInlineTags[n.Data] {
			return
		}
		if hasAttr(n, "id") || hasAttr(n, "name") {
			return
		}
		for sub := n.FirstChild; sub != nil; sub = sub.NextSibling {
			if sub.Type != html.TextNode || strings.TrimSpace(sub.Data) != "" {
				return
			}
		}
		removeNode(n)
		c.stats.EmptyTagsRemoved++
	}
	walk(doc)
}

func (c *Cleaner) cleanTextNodes(doc *html.Node) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			n.Data = c.CleanText(n.Data)
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
}

// dedupeIDs 全文档去重 id：按文档顺序保留首个，后续的删除 id 属性。
func (c *Cleaner) dedupeIDs(gdoc *goquery.Document) {
	seen := make(map[string]bool)
	gdoc.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
		id := sel.AttrOr("id", "")
		if !seen[id] {
			seen[id] = true
			return
		}
		sel.RemoveAttr("id")
		c.stats.DuplicateIDs++
	})
}

// neutralizeComments 注释里的双连字符会让部分阅读器解析出错，替换为安全形式。
func (c *Cleaner) neutralizeComments(doc *html.Node) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode {
			for strings.Contains(n.Data, "--") {
				n.Data = strings.ReplaceAll(n.Data, "--", "- -")
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
}

// ---- 树操作辅助 ----

func ensureDoctype(doc *html.Node) {
	for ch := doc.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.DoctypeNode {
			return
		}
	}
	dt := &html.Node{Type: html.DoctypeNode, Data: "html"}
	doc.InsertBefore(dt, doc.FirstChild)
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if found := findElement(ch, tag); found != nil {
			return found
		}
	}
	return nil
}

func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		walkElements(ch, fn)
	}
}

func removeNode(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func newElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}

func setText(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// isCharsetMeta 识别两种形式的编码声明：<meta charset> 与
// <meta http-equiv="content-type">。
func isCharsetMeta(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "charset" {
			return true
		}
		if a.Key == "http-equiv" && strings.EqualFold(a.Val, "content-type") {
			return true
		}
	}
	return false
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func hasAdClass(attr string) bool {
	for _, cls := range strings.Fields(strings.ToLower(attr)) {
		if adClasses[cls] {
			return true
		}
	}
	return false
}

// hasRenderableContent 判断直接子节点里是否有元素或非空白文本（注释不算）。
func hasRenderableContent(n *html.Node) bool {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		switch ch.Type {
		case html.ElementNode:
			return true
		case html.TextNode:
			if strings.TrimSpace(ch.Data) != "" {
				return true
			}
		}
	}
	return false
}

// collectInlineRun 收集 br 之后连续的文本与行内元素，
// 遇到下一个 br、块级元素或注释即停止。
func collectInlineRun(br *html.Node) []*html.Node {
	var run []*html.Node
	for sib := br.NextSibling; sib != nil; sib = sib.NextSibling {
		switch sib.Type {
		case html.TextNode:
			run = append(run, sib)
		case html.ElementNode:
			if !inlineTags[sib.Data] {
				return run
			}
			run = append(run, sib)
		default:
			return run
		}
	}
	return run
}

func runHasText(run []*html.Node) bool {
	for _, n := range run {
		if strings.TrimSpace(textContent(n)) != "" {
			return true
		}
	}
	return false
}

func mergeStyle(n *html.Node, style string) {
	for i, a := range n.Attr {
		if a.Key == "style" {
			if v := strings.TrimSpace(a.Val); v != "" {
				n.Attr[i].Val = strings.TrimRight(v, ";") + "; " + style
			} else {
				n.Attr[i].Val = style
			}
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: style})
}
