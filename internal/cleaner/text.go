package cleaner

import "strings"

// 需要剥离的不可见控制/格式化字符
const invisibleChars = "\u200b\u200c\u200d\ufeff\u00ad\u2060\u180e\u200e\u200f\u202a\u202b\u202c\u202d\u202e"

// 内置水印规则，大小写不敏感，按序应用。针对繁体中文小说站的常见注入，
// 以及用全角/数学字母数字拼出来躲避过滤的网址。
var defaultWatermarks = []string{
	`本書由.{0,30}首發`,
	`本文由.{0,30}首發`,
	`正版請.{0,30}閱讀`,
	`請到.{0,30}閱讀`,
	`最新章節.{0,30}閱讀`,
	`手機閱讀.{0,50}`,
	`訪問下載.{0,50}`,
	`更多精彩.{0,50}`,
	`歡迎廣大書友.{0,50}`,
	`喜歡請收藏.{0,50}`,
	`請記住本書.{0,50}`,
	`百度搜索.{0,50}`,
	`最快更新.{0,50}`,
	`無彈窗.{0,30}`,
	`關注公眾號.{0,50}`,
	`微信公眾號.{0,50}`,
	`掃碼關注.{0,50}`,
	`點擊下載.{0,50}`,
	`APP下載.{0,50}`,
	`本書首發.{0,80}`,
	`提供給你無錯章節.{0,50}`,
	`台灣小說網.{0,30}`,
	`twkan\.com`,

	// 全角字母数字网址（ａｂｃ 风格）
	`[ａ-ｚＡ-Ｚ０-９]+\.[ａ-ｚＡ-Ｚ]+`,
	// 双线体
	`[𝕒-𝕫𝔸-𝕫𝟘-𝟡]+\.[𝕒-𝕫𝔸-𝕫]+`,
	// 无衬线粗体
	`[𝖺-𝗓𝖠-𝗓𝟢-𝟫]+\.[𝖺-𝗓𝖠-𝗓]+`,
	// 无衬线
	`[𝖠-𝗓]+\.[𝖠-𝗓]+`,
	// 等宽
	`[𝚊-𝚣𝙰-𝚉]+\.[𝚊-𝚣𝙰-𝚉]+`,
	// 数学字母数字总区段
	`[𝐀-𝟿]+\.[𝐀-𝟿]+`,
	// 箭头后接风格化网址
	`→\s*[𝐀-𝟿ａ-ｚＡ-Ｚ０-９]+\.[𝐀-𝟿ａ-ｚＡ-Ｚ]+`,
}

// CleanText 对一段文本做字符级清洗：剥离不可见字符、归一化不换行连字符、
// 删除命中的水印。可安全地重复应用。
func (c *Cleaner) CleanText(text string) string {
	if text == "" {
		return text
	}
	original := text
	for _, r := range invisibleChars {
		text = strings.ReplaceAll(text, string(r), "")
	}
	// 不换行连字符归一化为普通连字符
	text = strings.ReplaceAll(text, "\u2011", "-")
	for _, re := range c.watermarks {
		out, err := re.Replace(text, "", -1, -1)
		if err != nil {
			continue
		}
		if out != text {
			c.stats.WatermarksRemoved++
			text = out
		}
	}
	if text != original {
		c.stats.TextNodesCleaned++
	}
	return text
}
