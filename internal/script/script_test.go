package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForLanguage(t *testing.T) {
	zh := ForLanguage("zh-CN")
	assert.True(t, zh.Valid())
	assert.True(t, zh.Contains("一段中文"))
	assert.False(t, zh.Contains("plain english"))

	ja := ForLanguage("ja")
	assert.True(t, ja.Contains("ひらがな"))
	assert.True(t, ja.Contains("漢字"))

	ko := ForLanguage("ko_KR")
	assert.True(t, ko.Contains("한국어"))
	assert.False(t, ko.Contains("中文"))

	// 未知语言代码按中文处理
	unknown := ForLanguage("xx")
	assert.True(t, unknown.Contains("中文"))
}

func TestCount(t *testing.T) {
	zh := ForLanguage("zh")
	assert.Equal(t, 0, zh.Count("hello world"))
	assert.Equal(t, 6, zh.Count("ab中文混排cd文字"))
	assert.Equal(t, 2, zh.Count("文字"))
}

func TestZeroValueDetector(t *testing.T) {
	var d Detector
	assert.False(t, d.Valid())
	assert.False(t, d.Contains("中文"))
	assert.Equal(t, 0, d.Count("中文"))
}
