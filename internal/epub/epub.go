// Package epub 把清洗（及翻译）后的章节打包为 EPUB 3 文件。
// 只生成阅读器关心的最小文件集：mimetype、container.xml、包文档、
// 导航文档、样式表与各章 XHTML。
package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/qingshu-io/qingshu/internal/book"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

const stylesheet = `body {
  margin: 1em;
  line-height: 1.6;
}
p {
  text-indent: 2em;
  margin: 0.3em 0;
}
h1, h2, h3 {
  text-align: center;
}
`

// Builder EPUB 打包器。
type Builder struct {
	now func() time.Time
}

// NewBuilder 创建打包器。
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WriteFile 打包并写出到 path。章节按切片顺序排列。
func (b *Builder) WriteFile(path string, info *book.Info, chapters []*book.Chapter) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建输出文件: %w", err)
	}
	if err := b.Write(f, info, chapters); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Write 打包到任意 Writer。mimetype 必须是压缩包第一个条目且不压缩，
// 这是 EPUB 容器规范的硬性要求。
func (b *Builder) Write(w io.Writer, info *book.Info, chapters []*book.Chapter) error {
	zw := zip.NewWriter(w)

	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return err
	}

	files := []struct {
		name string
		body string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", b.packageDoc(info, chapters)},
		{"OEBPS/nav.xhtml", b.navDoc(info, chapters)},
		{"OEBPS/style.css", stylesheet},
	}
	for i, ch := range chapters {
		files = append(files, struct {
			name string
			body string
		}{chapterPath(i), chapterDoc(ch)})
	}

	for _, file := range files {
		fw, err := zw.Create(file.name)
		if err != nil {
			return err
		}
		if _, err := fw.Write([]byte(file.body)); err != nil {
			return err
		}
	}
	return zw.Close()
}

func chapterPath(i int) string {
	return fmt.Sprintf("OEBPS/chapter_%04d.xhtml", i+1)
}

func chapterID(i int) string {
	return fmt.Sprintf("chapter_%04d", i+1)
}

// packageDoc 生成 OPF 包文档。标识符每次打包新生成，产出的文件
// 不参与阅读器的同书去重。
func (b *Builder) packageDoc(info *book.Info, chapters []*book.Chapter) string {
	lang := info.Language
	if lang == "" {
		lang = "en"
	}
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	fmt.Fprintf(&sb, "    <dc:identifier id=\"book-id\">urn:uuid:%s</dc:identifier>\n", uuid.NewString())
	fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", html.EscapeString(info.Title))
	if info.Author != "" {
		fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", html.EscapeString(info.Author))
	}
	fmt.Fprintf(&sb, "    <dc:language>%s</dc:language>\n", html.EscapeString(lang))
	if info.Description != "" {
		fmt.Fprintf(&sb, "    <dc:description>%s</dc:description>\n", html.EscapeString(info.Description))
	}
	if info.SourceURL != "" {
		fmt.Fprintf(&sb, "    <dc:source>%s</dc:source>\n", html.EscapeString(info.SourceURL))
	}
	for _, tag := range info.Tags {
		fmt.Fprintf(&sb, "    <dc:subject>%s</dc:subject>\n", html.EscapeString(tag))
	}
	fmt.Fprintf(&sb, "    <meta property=\"dcterms:modified\">%s</meta>\n",
		b.now().UTC().Format("2006-01-02T15:04:05Z"))
	sb.WriteString(`  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="css" href="style.css" media-type="text/css"/>
`)
	for i := range chapters {
		fmt.Fprintf(&sb, "    <item id=\"%s\" href=\"%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n",
			chapterID(i), chapterID(i))
	}
	sb.WriteString("  </manifest>\n  <spine>\n")
	for i := range chapters {
		fmt.Fprintf(&sb, "    <itemref idref=\"%s\"/>\n", chapterID(i))
	}
	sb.WriteString("  </spine>\n</package>\n")
	return sb.String()
}

func (b *Builder) navDoc(info *book.Info, chapters []*book.Chapter) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>`)
	sb.WriteString(html.EscapeString(info.Title))
	sb.WriteString(`</title><link rel="stylesheet" type="text/css" href="style.css"/></head>
<body>
<nav epub:type="toc" id="toc">
<h1>目錄</h1>
<ol>
`)
	for i, ch := range chapters {
		title := ch.Title
		if strings.TrimSpace(title) == "" {
			title = fmt.Sprintf("第 %d 章", i+1)
		}
		fmt.Fprintf(&sb, "<li><a href=\"%s.xhtml\">%s</a></li>\n", chapterID(i), html.EscapeString(title))
	}
	sb.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return sb.String()
}

// chapterDoc 把清洗后的完整文档转成 XHTML 条目。清洗阶段已经保证
// 标记合法且自闭合标签被展开，这里只补 XML 声明。
func chapterDoc(ch *book.Chapter) string {
	body := ch.Body
	if !strings.HasPrefix(body, "<?xml") {
		body = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" + body
	}
	return body
}
