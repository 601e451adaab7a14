package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"Speedtest_Selector_Go/internal/datasource"
	"Speedtest_Selector_Go/internal/geo"
	"Speedtest_Selector_Go/internal/metrics"
	"Speedtest_Selector_Go/pkg/model"
)

// ProgressCallback 是一个用于报告进度的回调函数类型
type ProgressCallback func(message string)

// Prober 判断候选服务器是否可达，按输入顺序返回可达的记录
type Prober interface {
	ProbeAll(ctx context.Context, records []model.ServerRecord) []model.ServerRecord
}

// Sampler 对选中的服务器测速
type Sampler interface {
	Measure(ctx context.Context, rec model.ServerRecord) model.MeasurementResult
}

// Engine 依次执行 解析 → 探测 → 排序 → 选择 → 测速
type Engine struct {
	prober   Prober
	sampler  Sampler
	progress ProgressCallback
	now      func() time.Time
}

// New 创建一个 Engine，progressCb 可以为 nil
func New(prober Prober, sampler Sampler, progressCb ProgressCallback) *Engine {
	if progressCb == nil {
		progressCb = func(string) {}
	}
	return &Engine{
		prober:   prober,
		sampler:  sampler,
		progress: progressCb,
		now:      time.Now,
	}
}

// Candidates 解析服务器列表，探测可达性并按到 caller 的距离排序。
// 返回的列表可直接用于外部的交互式选择。
func (e *Engine) Candidates(ctx context.Context, doc, country string, caller model.Coordinates) ([]model.RankedServer, error) {
	e.progress("步骤 1/4: 解析服务器列表...")
	records, err := datasource.ParseRegistry(doc, country)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		if country != "" {
			return nil, fmt.Errorf("%w for country code %s", ErrNoServers, country)
		}
		return nil, ErrNoServers
	}
	e.progress(fmt.Sprintf("解析出 %d 台服务器。", len(records)))

	e.progress("步骤 2/4: 可达性探测...")
	reachable := e.prober.ProbeAll(ctx, records)
	metrics.ObserveProbes(len(reachable), len(records))
	if len(reachable) == 0 {
		return nil, ErrNoReachableServer
	}
	e.progress(fmt.Sprintf("%d/%d 台服务器可达。", len(reachable), len(records)))

	e.progress("步骤 3/4: 按距离排序...")
	return geo.Rank(caller, reachable), nil
}

// Measure 对选中的服务器测速并生成最终结果，同时记录本次运行的结果指标
func (e *Engine) Measure(ctx context.Context, server model.RankedServer) model.FinalResult {
	e.progress(fmt.Sprintf("步骤 4/4: 测速 %s (%s, %.1f km)...", server.Endpoint, server.Name, server.DistanceKm))
	res := e.sampler.Measure(ctx, server.ServerRecord)
	metrics.ObserveMeasurement(res)
	if res.DownloadMbps == 0 && res.UploadMbps == 0 {
		metrics.ObserveRun("unmeasured")
	} else {
		metrics.ObserveRun("ok")
	}

	return model.FinalResult{
		RunID:             uuid.NewString(),
		Server:            server,
		MeasurementResult: res,
		MeasuredAt:        e.now().UTC(),
	}
}

// Run 执行完整的一轮测速
func (e *Engine) Run(ctx context.Context, doc, country string, caller model.Coordinates, sel Selection) (*model.FinalResult, error) {
	ranked, err := e.Candidates(ctx, doc, country, caller)
	if err != nil {
		metrics.ObserveRun(outcome(err))
		return nil, err
	}

	chosen, err := Select(ranked, sel)
	if err != nil {
		metrics.ObserveRun(outcome(err))
		return nil, err
	}

	result := e.Measure(ctx, chosen)
	return &result, nil
}

// outcome 将错误归类为指标标签
func outcome(err error) string {
	var pe *datasource.ParseError
	var fe *datasource.FetchError
	switch {
	case errors.As(err, &fe):
		return "fetch_error"
	case errors.As(err, &pe):
		return "parse_error"
	case errors.Is(err, ErrNoServers):
		return "no_servers"
	case errors.Is(err, ErrNoReachableServer):
		return "unreachable"
	case errors.Is(err, ErrNoCandidate):
		return "no_candidate"
	case errors.Is(err, ErrInvalidSelection):
		return "invalid_selection"
	default:
		return "error"
	}
}
