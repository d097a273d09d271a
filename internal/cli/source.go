package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/qingshu-io/qingshu/internal/book"
)

// DirSource 从本地目录加载一本书：目录下可选的 book.yaml 提供作品元数据，
// 章节是目录里按文件名排序的 *.html / *.htm 文件。
type DirSource struct {
	dir string
}

// NewDirSource 创建目录书源。
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Load 读取元数据与章节列表，并通过逐章获取器加载全部原文。
func (s *DirSource) Load(ctx context.Context, progress book.Progress) (*book.Info, []*book.Chapter, error) {
	info, encoding, err := s.loadInfo()
	if err != nil {
		return nil, nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("读取输入目录: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".html" || ext == ".htm" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("目录 %s 下没有章节文件 (*.html)", s.dir)
	}
	sort.Strings(names)

	chapters := make([]*book.Chapter, len(names))
	for i, name := range names {
		chapters[i] = &book.Chapter{
			Title:        strings.TrimSuffix(name, filepath.Ext(name)),
			SourceURL:    filepath.Join(s.dir, name),
			Index:        i,
			EncodingHint: encoding,
		}
	}

	fetcher := book.NewSequentialFetcher(func(_ context.Context, ch *book.Chapter) error {
		raw, err := os.ReadFile(ch.SourceURL)
		if err != nil {
			return err
		}
		ch.Raw = raw
		return nil
	})
	if err := fetcher.FetchAll(ctx, chapters, progress); err != nil {
		return nil, nil, err
	}
	return info, chapters, nil
}

// loadInfo 读取可选的 book.yaml。文件不存在时用目录名当书名。
func (s *DirSource) loadInfo() (*book.Info, string, error) {
	info := &book.Info{}
	path := filepath.Join(s.dir, "book.yaml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			info.Title = filepath.Base(s.dir)
			return info, "", nil
		}
		return nil, "", fmt.Errorf("访问 %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, "", fmt.Errorf("读取 %s: %w", path, err)
	}
	if err := v.Unmarshal(info); err != nil {
		return nil, "", fmt.Errorf("解析 %s: %w", path, err)
	}
	if strings.TrimSpace(info.Title) == "" {
		info.Title = filepath.Base(s.dir)
	}
	return info, v.GetString("encoding"), nil
}
