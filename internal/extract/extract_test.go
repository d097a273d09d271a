package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qingshu-io/qingshu/internal/script"
)

func TestSegmentsDocumentOrder(t *testing.T) {
	markup := `<html><head><title>章節名</title></head><body>
<p>第一段內容</p>
<div>第二段<span>內嵌文字</span>結尾</div>
</body></html>`

	segs := Segments(markup, script.ForLanguage("zh"))
	assert.Equal(t, []string{"章節名", "第一段內容", "第二段", "內嵌文字", "結尾"}, segs)
}

func TestSegmentsFiltering(t *testing.T) {
	markup := `<html><body>
<p>only english text</p>
<p>中</p>
<p>  中文  </p>
<p>12345</p>
</body></html>`

	segs := Segments(markup, script.ForLanguage("zh"))
	// 纯外文、单字符和纯数字都被跳过；保留的文本已修剪
	assert.Equal(t, []string{"中文"}, segs)
}

func TestSegmentsEmptyDocument(t *testing.T) {
	assert.Empty(t, Segments("<html><body></body></html>", script.ForLanguage("zh")))
	assert.Empty(t, Segments("", script.ForLanguage("zh")))
}
