package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCleaner(t *testing.T) *Cleaner {
	t.Helper()
	return New(nil, nil)
}

func TestCleanChapterRemovesForbiddenElements(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><head><title>第一章</title></head><body>
<script>alert(1)</script>
<form action="/x"><input type="text"/><button>go</button></form>
<p>正文內容保留</p>
</body></html>`)

	out, err := c.CleanChapter(raw, "", "第一章")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<form")
	assert.NotContains(t, out, "<input")
	assert.NotContains(t, out, "<button")
	assert.Contains(t, out, "正文內容保留")
	assert.GreaterOrEqual(t, c.Stats().ElementsRemoved, 4)
}

func TestCleanChapterAdDivs(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><body>
<div class="txtad"></div>
<div class="ads"><script>x</script></div>
<div class="ad">帶內容的廣告位保留</div>
<p>正文</p>
</body></html>`)

	out, err := c.CleanChapter(raw, "", "t")
	require.NoError(t, err)
	assert.NotContains(t, out, "txtad")
	assert.Contains(t, out, "帶內容的廣告位保留")
	assert.Equal(t, 2, c.Stats().AdDivsRemoved)
}

func TestCleanChapterDeprecatedTags(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><body>
<center style="color:red">置中文字</center>
<u>底線文字</u>
<font size="3">舊字體</font>
</body></html>`)

	out, err := c.CleanChapter(raw, "", "t")
	require.NoError(t, err)
	assert.NotContains(t, out, "<center")
	assert.NotContains(t, out, "<u>")
	assert.NotContains(t, out, "<font")
	assert.Contains(t, out, "color:red; text-align: center")
	assert.Contains(t, out, "text-decoration: underline")
	assert.Contains(t, out, "置中文字")
	assert.Contains(t, out, "底線文字")
	assert.Equal(t, 3, c.Stats().DeprecatedFixed)
}

func TestCleanChapterPromotesBreakRuns(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><body><div>第一段<br>第二段<br>第三段</div></body></html>`)

	out, err := c.CleanChapter(raw, "", "t")
	require.NoError(t, err)
	assert.Contains(t, out, "<p>第二段</p>")
	assert.Contains(t, out, "<p>第三段</p>")
	assert.Equal(t, 2, c.Stats().BreaksPromoted)
}

func TestCleanChapterDuplicateIDs(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><body><p id="x">甲</p><div id="x">乙</div><span id="y">丙</span></body></html>`)

	out, err := c.CleanChapter(raw, "", "t")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, `id="x"`))
	assert.Contains(t, out, `id="y"`)
	assert.Equal(t, 1, c.Stats().DuplicateIDs)
}

func TestCleanChapterTitleRepair(t *testing.T) {
	c := newTestCleaner(t)

	out, err := c.CleanChapter([]byte(`<html><body><p>正文</p></body></html>`), "", "第五章 風雲")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>第五章 風雲</title>")

	out, err = c.CleanChapter([]byte(`<html><head><title></title></head><body><p>x</p></body></html>`), "", "")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>未命名章節</title>")

	// 已有的非空 title 不被覆盖，多余的 title 被删除
	out, err = c.CleanChapter([]byte(`<html><head><title>原標題</title><title>重複</title></head><body><p>x</p></body></html>`), "", "別名")
	require.NoError(t, err)
	assert.Contains(t, out, "<title>原標題</title>")
	assert.NotContains(t, out, "重複")
}

func TestCleanChapterCharsetMeta(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><head>
<meta http-equiv="Content-Type" content="text/html; charset=gbk">
<meta charset="big5">
<title>章</title>
</head><body><p>x</p></body></html>`)

	out, err := c.CleanChapter(raw, "", "章")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "charset"))
	assert.Contains(t, out, `<meta charset="utf-8"`)
}

func TestCleanChapterCharsetMetaInBody(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><head><title>章</title></head><body>
<meta charset="gbk">
<meta http-equiv="content-type" content="text/html; charset=big5">
<p>正文</p>
</body></html>`)

	out, err := c.CleanChapter(raw, "", "章")
	require.NoError(t, err)
	// 乱排进 body 的编码声明同样被清除，全文只剩 head 里的规范声明
	assert.Equal(t, 1, strings.Count(out, "charset"))
	assert.Contains(t, out, `<meta charset="utf-8"`)
	assert.Contains(t, out, "正文")
}

func TestCleanChapterComments(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><body><!-- a--b----c --><p>x</p></body></html>`)

	out, err := c.CleanChapter(raw, "", "t")
	require.NoError(t, err)
	assert.NotContains(t, out, "a--b")
	assert.Contains(t, out, "a- -b")
}

func TestCleanChapterWatermarks(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><body><p>正文第一句。百度搜索某某小說網最快更新</p><p>乾淨段落</p></body></html>`)

	out, err := c.CleanChapter(raw, "", "t")
	require.NoError(t, err)
	assert.NotContains(t, out, "百度搜索")
	assert.Contains(t, out, "正文第一句。")
	assert.Contains(t, out, "乾淨段落")
	assert.GreaterOrEqual(t, c.Stats().WatermarksRemoved, 1)
}

func TestCleanChapterInvisibleChars(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte("<html><body><p>前\u200b後\ufeff文\u00ad字</p></body></html>")

	out, err := c.CleanChapter(raw, "", "t")
	require.NoError(t, err)
	assert.Contains(t, out, "前後文字")
}

func TestCleanChapterIdempotent(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><head><meta charset="gbk"><title>章名</title></head><body>
<center>居中</center>
<div>甲<br>乙</div>
<p id="a">一</p><p id="a">二</p>
<!-- c--d -->
</body></html>`)

	first, err := c.CleanChapter(raw, "", "章名")
	require.NoError(t, err)
	second, err := c.CleanChapter([]byte(first), "", "章名")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCleanChapterEmptyInlineTags(t *testing.T) {
	c := newTestCleaner(t)
	raw := []byte(`<html><body><p><span></span><b>  </b><a id="anchor"></a>文字<em>留</em></p></body></html>`)

	out, err := c.CleanChapter(raw, "", "t")
	require.NoError(t, err)
	assert.NotContains(t, out, "<span></span>")
	assert.NotContains(t, out, "<b>")
	// 带 id 的空锚点是跳转目标，保留
	assert.Contains(t, out, `id="anchor"`)
	assert.Contains(t, out, "<em>留</em>")
}

func TestFixSelfClosing(t *testing.T) {
	c := newTestCleaner(t)
	out := c.fixSelfClosing(`<p/><div class="x"/><br/><img src="a.png"/><span />`)
	assert.Contains(t, out, "<p></p>")
	assert.Contains(t, out, `<div class="x"></div>`)
	assert.Contains(t, out, "<span></span>")
	// 真正的空元素不受影响
	assert.Contains(t, out, "<br/>")
	assert.Contains(t, out, `<img src="a.png"/>`)
	assert.Equal(t, 3, c.Stats().SelfClosingFixed)
}

func TestCleanFallback(t *testing.T) {
	c := newTestCleaner(t)
	out := c.CleanFallback([]byte("斷章\u200b殘句。最快更新請收藏"), "")
	assert.Contains(t, out, "斷章殘句。")
	assert.NotContains(t, out, "最快更新")
}

func TestCustomWatermarks(t *testing.T) {
	c := New([]string{`站點專屬廣告詞`}, nil)
	out := c.CleanText("正文站點專屬廣告詞結尾")
	assert.Equal(t, "正文結尾", out)
}

func TestBadCustomWatermarkSkipped(t *testing.T) {
	c := New([]string{`([`}, nil)
	// 编译失败的规则被跳过，内置规则仍然生效
	out := c.CleanText("百度搜索某站")
	assert.NotContains(t, out, "百度搜索")
}
