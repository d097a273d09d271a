// Package cli 实现命令行入口：加载配置，装配清洗器、翻译引擎与流水线，
// 把一个章节目录转换为一本 EPUB。
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qingshu-io/qingshu/internal/cleaner"
	"github.com/qingshu-io/qingshu/internal/config"
	"github.com/qingshu-io/qingshu/internal/epub"
	"github.com/qingshu-io/qingshu/internal/logger"
	"github.com/qingshu-io/qingshu/internal/pipeline"
	"github.com/qingshu-io/qingshu/internal/provider/googlefree"
	"github.com/qingshu-io/qingshu/internal/script"
	"github.com/qingshu-io/qingshu/internal/translate"
)

var (
	// 命令行标志变量
	cfgFile     string
	sourceLang  string
	targetLang  string
	maxWorkers  int
	noClean     bool
	noTranslate bool
	debugMode   bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qingshu [flags] input_dir output.epub",
		Short: "青书：网文章节清洗、翻译与打包工具",
		Long: `青书读取一个章节目录（*.html 文件加可选的 book.yaml 元数据），
对每章做标记规范化与清洗，批量翻译正文段落，再把结果打包为 EPUB。

清洗包括：编码识别、结构修复、广告与脚本剥离、水印去除、
过时标签转换、不可见字符清理。

翻译使用免费的 Google Translate 端点，带并发工作池与多轮
持久重试：被限流的段落会在后续轮次里以更保守的参数反复重试，
直到全部完成或手动取消。`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1])
		},
	}

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.Flags().StringVar(&sourceLang, "source", "", "源语言代码（覆盖配置）")
	rootCmd.Flags().StringVar(&targetLang, "target", "", "目标语言代码（覆盖配置）")
	rootCmd.Flags().IntVar(&maxWorkers, "workers", 0, "首轮并发工作协程数（覆盖配置）")
	rootCmd.Flags().BoolVar(&noClean, "no-clean", false, "跳过标记清洗")
	rootCmd.Flags().BoolVar(&noTranslate, "no-translate", false, "跳过翻译，只清洗打包")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "输出调试日志")

	return rootCmd
}

func run(inputDir, outputPath string) error {
	log := logger.NewZapLogger(debugMode)
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlags(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui := newProgressUI()
	defer ui.stop()

	src := NewDirSource(inputDir)
	info, chapters, err := src.Load(ctx, ui.update)
	if err != nil {
		return err
	}
	log.Info("書籍加載完成",
		zap.String("title", info.Title), zap.Int("chapters", len(chapters)))

	cln := cleaner.New(cfg.Watermarks, log)
	eng := engineFromConfig(cfg, log)
	pipe := pipeline.New(cln, eng, script.ForLanguage(cfg.SourceLang), log)

	start := time.Now()
	rep := pipe.ProcessChapters(ctx, info, chapters, pipeline.Options{
		Clean:             cfg.Clean,
		Translate:         cfg.Translate,
		TranslateMeta:     cfg.TranslateMeta,
		ResidualThreshold: cfg.RetryThreshold,
	}, ui.update)
	ui.stop()

	if rep.Cancelled {
		log.Warn("處理被取消，輸出已完成的部分")
	}

	if err := epub.NewBuilder().WriteFile(outputPath, info, chapters); err != nil {
		return err
	}
	log.Info("EPUB 打包完成", zap.String("path", outputPath))

	printSummary(os.Stdout, info, len(chapters), rep, time.Since(start))
	printIssues(rep)
	return nil
}

func applyFlags(cfg *config.Config) {
	if sourceLang != "" {
		cfg.SourceLang = sourceLang
	}
	if targetLang != "" {
		cfg.TargetLang = targetLang
	}
	if maxWorkers > 0 {
		cfg.MaxWorkers = maxWorkers
	}
	if noClean {
		cfg.Clean = false
	}
	if noTranslate {
		cfg.Translate = false
	}
	if debugMode {
		cfg.Debug = true
	}
}

func engineFromConfig(cfg *config.Config, log logger.Logger) *translate.Engine {
	provider := googlefree.New(googlefree.Config{
		Endpoint:   cfg.Endpoint,
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
	})
	return translate.New(provider, nil, translate.Options{
		MaxWorkers:      cfg.MaxWorkers,
		RequestTimeout:  cfg.RequestTimeout,
		MaxRetries:      cfg.MaxRetries,
		RequestInterval: cfg.RequestInterval,
		RetryThreshold:  cfg.RetryThreshold,
		Detector:        script.ForLanguage(cfg.SourceLang),
	}, log)
}
