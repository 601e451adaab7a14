package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"Speedtest_Selector_Go/internal/util"
)

// FetchError 表示服务器列表无法获取
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch registry %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher 负责下载服务器列表文档，支持备用地址和内存缓存
type Fetcher struct {
	primaryURL  string
	fallbackURL string
	httpClient  *http.Client
	cache       *expirable.LRU[string, string]
}

// FetcherOption 是 Fetcher 的可选配置
type FetcherOption func(*Fetcher)

// WithHTTPClient 设置自定义 HTTP 客户端
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithFallbackURL 设置主地址失败时使用的备用地址
func WithFallbackURL(url string) FetcherOption {
	return func(f *Fetcher) {
		f.fallbackURL = url
	}
}

// WithCacheTTL 设置缓存有效期，ttl <= 0 时关闭缓存
func WithCacheTTL(ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if ttl <= 0 {
			f.cache = nil
			return
		}
		f.cache = expirable.NewLRU[string, string](4, nil, ttl)
	}
}

// NewFetcher 创建一个新的 Fetcher
func NewFetcher(primaryURL string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		primaryURL: primaryURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      expirable.NewLRU[string, string](4, nil, 30*time.Minute),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch 返回服务器列表文档。先查缓存，再尝试主地址，失败后尝试备用地址。
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	if f.cache != nil {
		if doc, ok := f.cache.Get(f.primaryURL); ok {
			return doc, nil
		}
	}

	doc, err := f.download(ctx, f.primaryURL)
	if err != nil && f.fallbackURL != "" {
		util.S.Warnw("主服务器列表地址不可用，尝试备用地址", "url", f.primaryURL, "err", err)
		doc, err = f.download(ctx, f.fallbackURL)
	}
	if err != nil {
		return "", err
	}

	if f.cache != nil {
		f.cache.Add(f.primaryURL, doc)
	}
	return doc, nil
}

// Purge 清空缓存
func (f *Fetcher) Purge() {
	if f.cache != nil {
		f.cache.Purge()
	}
}

func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: url, Err: fmt.Errorf("bad status: %s", resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	return string(data), nil
}
