// Package script 提供源语言文字检测，用于判断一段文本是否仍含有待翻译的原文。
package script

import "strings"

// runeRange 一段连续的 Unicode 码点区间（闭区间）。
type runeRange struct {
	lo, hi rune
}

// 各语言的核心区块。提取阶段只做"存在性"判断，重试阶段做计数判断。
var (
	hanRanges = []runeRange{
		{0x4E00, 0x9FFF}, // CJK Unified Ideographs
		{0x3400, 0x4DBF}, // CJK Extension A
	}
	kanaRanges = []runeRange{
		{0x3040, 0x309F}, // Hiragana
		{0x30A0, 0x30FF}, // Katakana
	}
	hangulRanges = []runeRange{
		{0xAC00, 0xD7A3}, // Hangul Syllables
	}
)

// Detector 针对某一源语言的文字检测器。
type Detector struct {
	ranges []runeRange
}

// ForLanguage 根据语言代码返回对应的检测器。
// 未知语言按中文处理（本工具的主要使用场景）。
func ForLanguage(code string) Detector {
	base := strings.ToLower(code)
	if i := strings.IndexAny(base, "-_"); i >= 0 {
		base = base[:i]
	}
	switch base {
	case "ja":
		return Detector{ranges: append(append([]runeRange{}, hanRanges...), kanaRanges...)}
	case "ko":
		return Detector{ranges: hangulRanges}
	default:
		return Detector{ranges: hanRanges}
	}
}

// Valid 报告检测器是否带有可用的区间表（零值 Detector 不可用）。
func (d Detector) Valid() bool {
	return len(d.ranges) > 0
}

// Contains 判断文本中是否存在至少一个源语言码点。
func (d Detector) Contains(s string) bool {
	for _, r := range s {
		if d.match(r) {
			return true
		}
	}
	return false
}

// Count 统计文本中源语言码点的数量。
func (d Detector) Count(s string) int {
	n := 0
	for _, r := range s {
		if d.match(r) {
			n++
		}
	}
	return n
}

func (d Detector) match(r rune) bool {
	for _, rr := range d.ranges {
		if r >= rr.lo && r <= rr.hi {
			return true
		}
	}
	return false
}
