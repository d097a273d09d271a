package cleaner

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// 候选编码按优先级排列，第一个成功解码的结果胜出。
// "成功"指解码不报错且不产生替换符，不保证语义正确。
var encodingCandidates = []encoding.Encoding{
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
	simplifiedchinese.GB18030,
}

var xmlDeclRe = regexp.MustCompile(`(?i)<\?xml[^>]*\?>`)

// Decode 把原始字节解码为 UTF-8 文本。先去掉嵌入的空字节，
// 再依次尝试 UTF-8、调用方给出的编码提示、各候选遗留编码。
// 全部失败时按 UTF-8 宽松解码，绝不报错。
func Decode(raw []byte, hint string) string {
	raw = bytes.ReplaceAll(raw, []byte{0}, nil)
	if utf8.Valid(raw) {
		return string(raw)
	}
	if enc := lookupEncoding(hint); enc != nil {
		if s, ok := tryDecode(raw, enc); ok {
			return s
		}
	}
	for _, enc := range encodingCandidates {
		if s, ok := tryDecode(raw, enc); ok {
			return s
		}
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

// stripEncodingDecls 去掉内联的 XML 编码声明，避免声明与实际编码不一致
// 干扰结构解析。charset meta 在结构修复阶段统一重建。
func stripEncodingDecls(s string) string {
	return xmlDeclRe.ReplaceAllString(s, "")
}

func tryDecode(raw []byte, enc encoding.Encoding) (string, bool) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	// 未报错但出现替换符，同样视为失败
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func lookupEncoding(name string) encoding.Encoding {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gbk", "gb2312", "cp936":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	case "big5", "big-5", "cp950":
		return traditionalchinese.Big5
	default:
		return nil
	}
}
