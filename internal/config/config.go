// Package config 负责加载与校验工具配置。
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 工具配置。字段名与配置文件键一一对应。
type Config struct {
	SourceLang string `mapstructure:"source_lang"` // 源语言代码，默认 zh-CN
	TargetLang string `mapstructure:"target_lang"` // 目标语言代码，默认 en
	Endpoint   string `mapstructure:"endpoint"`    // 翻译端点覆盖，留空用默认

	Clean         bool `mapstructure:"clean"`          // 是否执行标记清洗
	Translate     bool `mapstructure:"translate"`      // 是否执行翻译
	TranslateMeta bool `mapstructure:"translate_meta"` // 是否翻译作品标题与作者

	MaxWorkers      int           `mapstructure:"max_workers"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	RetryThreshold  int           `mapstructure:"retry_threshold"`

	Watermarks []string `mapstructure:"watermarks"` // 追加的自定义水印规则

	Debug bool `mapstructure:"debug"`
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		SourceLang:     "zh-CN",
		TargetLang:     "en",
		Clean:          true,
		Translate:      true,
		TranslateMeta:  true,
		MaxWorkers:     100,
		RequestTimeout: 15 * time.Second,
		MaxRetries:     5,
		RetryThreshold: 5,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("source_lang", d.SourceLang)
	v.SetDefault("target_lang", d.TargetLang)
	v.SetDefault("clean", d.Clean)
	v.SetDefault("translate", d.Translate)
	v.SetDefault("translate_meta", d.TranslateMeta)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("request_interval", d.RequestInterval)
	v.SetDefault("retry_threshold", d.RetryThreshold)
}

// Load 加载配置。path 非空时只读该文件；为空时在当前目录与
// $HOME/.config/qingshu 下查找 qingshu.yaml，找不到配置文件时
// 使用默认值，不算错误。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("qingshu")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/qingshu")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			cfg := Default()
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers 不能为负数: %d", c.MaxWorkers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries 不能为负数: %d", c.MaxRetries)
	}
	if c.RetryThreshold < 0 {
		return fmt.Errorf("retry_threshold 不能为负数: %d", c.RetryThreshold)
	}
	return nil
}
