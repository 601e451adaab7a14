package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"Speedtest_Selector_Go/internal/config"
	"Speedtest_Selector_Go/internal/datasource"
	"Speedtest_Selector_Go/internal/locations"
	"Speedtest_Selector_Go/internal/metrics"
	"Speedtest_Selector_Go/internal/tester"
	"Speedtest_Selector_Go/pkg/model"
)

// Session 按配置组装服务器列表来源、定位服务和 Engine
type Session struct {
	cfg        *config.Config
	fetcher    *datasource.Fetcher
	httpClient *http.Client
	engine     *Engine
}

// SessionOption 是 Session 的可选配置
type SessionOption func(*Session)

// WithFetcher 复用已有的 Fetcher，使多次运行共享服务器列表缓存
func WithFetcher(f *datasource.Fetcher) SessionOption {
	return func(s *Session) {
		s.fetcher = f
	}
}

// NewFetcher 按配置创建服务器列表的 Fetcher
func NewFetcher(cfg *config.Config, httpClient *http.Client) *datasource.Fetcher {
	return datasource.NewFetcher(cfg.RegistryURL,
		datasource.WithHTTPClient(httpClient),
		datasource.WithFallbackURL(cfg.RegistryFallbackURL),
		datasource.WithCacheTTL(cfg.RegistryCacheTTL),
	)
}

// NewSession 根据配置创建 Session。transferCb 用于逐块报告测速进度，可以为 nil。
func NewSession(cfg *config.Config, progressCb ProgressCallback, transferCb tester.ProgressFunc, opts ...SessionOption) *Session {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	prober := &tester.Prober{
		Port:        cfg.Port,
		Timeout:     cfg.ProbeTimeout,
		Concurrency: cfg.ProbeConcurrency,
	}
	sampler := &tester.Sampler{
		Port:          cfg.Port,
		ChunkSize:     cfg.ChunkSize,
		ChunkCount:    cfg.ChunkCount,
		ChunkTimeout:  cfg.ChunkTimeout,
		RateLimitMbps: cfg.RateLimitMbps,
		Progress:      transferCb,
	}

	s := &Session{
		cfg:        cfg,
		httpClient: httpClient,
		engine:     New(prober, sampler, progressCb),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = NewFetcher(cfg, httpClient)
	}
	return s
}

// Registry 返回服务器列表文档，配置了 registry_file 时从本地读取
func (s *Session) Registry(ctx context.Context) (string, error) {
	if s.cfg.RegistryFile != "" {
		return datasource.LoadRegistryFile(s.cfg.RegistryFile)
	}
	return s.fetcher.Fetch(ctx)
}

// Caller 返回本机坐标
func (s *Session) Caller(ctx context.Context) (model.Coordinates, error) {
	caller, err := locations.Resolve(ctx, s.cfg, s.httpClient)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("获取本机位置失败: %w", err)
	}
	return caller, nil
}

// country 返回本次运行使用的国家代码，override 非空时优先
func (s *Session) country(override string) string {
	if override != "" {
		return override
	}
	return s.cfg.CountryCode
}

func (s *Session) prepare(ctx context.Context) (string, model.Coordinates, error) {
	doc, err := s.Registry(ctx)
	if err != nil {
		return "", model.Coordinates{}, err
	}
	caller, err := s.Caller(ctx)
	if err != nil {
		return "", model.Coordinates{}, err
	}
	s.engine.progress(fmt.Sprintf("本机位置: %.4f, %.4f", caller.Latitude, caller.Longitude))
	return doc, caller, nil
}

// Candidates 返回可达且按距离排序的候选服务器，供外部交互选择
func (s *Session) Candidates(ctx context.Context, country string) ([]model.RankedServer, error) {
	doc, caller, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Candidates(ctx, doc, s.country(country), caller)
}

// Run 执行完整的一轮测速
func (s *Session) Run(ctx context.Context, country string, sel Selection) (*model.FinalResult, error) {
	doc, caller, err := s.prepare(ctx)
	if err != nil {
		metrics.ObserveRun(outcome(err))
		return nil, err
	}
	return s.engine.Run(ctx, doc, s.country(country), caller, sel)
}

// Measure 对已经选定的服务器测速，用于先列出候选再选择的交互流程
func (s *Session) Measure(ctx context.Context, server model.RankedServer) model.FinalResult {
	return s.engine.Measure(ctx, server)
}
