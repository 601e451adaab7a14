package tester

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"Speedtest_Selector_Go/internal/util"
	"Speedtest_Selector_Go/pkg/model"
)

// Prober 通过一次裸 TCP 连接判断服务器是否可达，不交换任何数据，不重试
type Prober struct {
	Port        int
	Timeout     time.Duration
	Concurrency int // <= 1 时顺序探测
	Dial        DialFunc
}

// NewProber 创建使用默认端口和超时的 Prober
func NewProber() *Prober {
	return &Prober{
		Port:        DefaultTCPPort,
		Timeout:     DefaultProbeTimeout,
		Concurrency: 1,
	}
}

// Probe 尝试连接 rec 的 endpoint，在超时内建立连接即视为可达
func (p *Prober) Probe(ctx context.Context, rec model.ServerRecord) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	dial := p.Dial
	if dial == nil {
		dial = getDialContext(p.Timeout)
	}

	addr := hostPort(rec.Endpoint, p.Port)
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		util.S.Debugw("服务器不可达", "addr", addr, "err", err)
		return false
	}
	conn.Close()
	return true
}

// ProbeAll 探测所有记录，按输入顺序返回可达的记录
func (p *Prober) ProbeAll(ctx context.Context, records []model.ServerRecord) []model.ServerRecord {
	reachable := make([]bool, len(records))

	if p.Concurrency <= 1 {
		for i, rec := range records {
			reachable[i] = p.Probe(ctx, rec)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.Concurrency)
		for i, rec := range records {
			g.Go(func() error {
				reachable[i] = p.Probe(ctx, rec)
				return nil
			})
		}
		g.Wait()
	}

	result := make([]model.ServerRecord, 0, len(records))
	for i, rec := range records {
		if reachable[i] {
			result = append(result, rec)
		}
	}
	return result
}
