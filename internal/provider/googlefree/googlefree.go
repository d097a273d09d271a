// Package googlefree 通过 Google Translate 的免费 web 端点执行翻译。
// 该端点无需 API key，但不稳定且会限流，调用方必须自带重试与退避。
package googlefree

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultEndpoint = "https://translate.googleapis.com/translate_a/single"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// 短文本走 GET，超过该长度改用 POST，避免 URL 过长被拒
	maxGetLength = 1800
)

// Config 提供商配置
type Config struct {
	Endpoint   string // 留空使用默认端点
	SourceLang string // 默认 zh-CN
	TargetLang string // 默认 en
	HTTPClient *http.Client
}

// Provider 免费 Google Translate 提供商
type Provider struct {
	cfg    Config
	client *http.Client
}

// New 创建提供商，填充默认值。
func New(cfg Config) *Provider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = "zh-CN"
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "en"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{cfg: cfg, client: client}
}

type apiResponse struct {
	Sentences []struct {
		Trans string `json:"trans"`
	} `json:"sentences"`
}

// Translate 执行一次翻译调用。超时与取消由 ctx 控制。
func (p *Provider) Translate(ctx context.Context, text string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", p.cfg.SourceLang)
	params.Set("tl", p.cfg.TargetLang)
	params.Set("dt", "t")
	params.Set("dj", "1")
	params.Set("q", text)

	var (
		req *http.Request
		err error
	)
	if len(text) <= maxGetLength {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet,
			p.cfg.Endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost,
			p.cfg.Endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("googlefree: 意外的状态码 %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("googlefree: 解析响应失败: %w", err)
	}

	var b strings.Builder
	for _, s := range parsed.Sentences {
		b.WriteString(s.Trans)
	}
	return b.String(), nil
}

// Name 提供商名称
func (p *Provider) Name() string {
	return "google-free"
}
