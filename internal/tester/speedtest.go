package tester

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"Speedtest_Selector_Go/internal/util"
	"Speedtest_Selector_Go/pkg/model"
)

const (
	// DefaultChunkSize 每次读写的块大小（字节）
	DefaultChunkSize = 4096
	// DefaultChunkCount 每个方向的读写次数
	DefaultChunkCount = 100
	// DefaultChunkTimeout 单次读写的最长等待时间
	DefaultChunkTimeout = 10 * time.Second
)

// Direction 表示传输方向
type Direction int

const (
	Download Direction = iota
	Upload
)

func (d Direction) String() string {
	switch d {
	case Download:
		return "download"
	case Upload:
		return "upload"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ProgressFunc 在每块传输完成后调用，smoothedMbps 为 EWMA 平滑后的瞬时速率
type ProgressFunc func(dir Direction, done, total int, smoothedMbps float64)

// Sampler 在单条连接上以固定的读写次数测量吞吐量
type Sampler struct {
	Port          int
	ChunkSize     int
	ChunkCount    int
	ChunkTimeout  time.Duration
	RateLimitMbps float64 // 0 表示不限速
	Dial          DialFunc
	Clock         clock.Clock
	Progress      ProgressFunc
}

// NewSampler 创建使用默认参数的 Sampler
func NewSampler() *Sampler {
	return &Sampler{
		Port:         DefaultTCPPort,
		ChunkSize:    DefaultChunkSize,
		ChunkCount:   DefaultChunkCount,
		ChunkTimeout: DefaultChunkTimeout,
	}
}

// Measure 依次测量下载和上传，两个方向互不影响
func (s *Sampler) Measure(ctx context.Context, rec model.ServerRecord) model.MeasurementResult {
	return model.MeasurementResult{
		DownloadMbps: s.MeasureDirection(ctx, Download, rec),
		UploadMbps:   s.MeasureDirection(ctx, Upload, rec),
	}
}

// MeasureDirection 测量单个方向，任何传输错误都返回 0
func (s *Sampler) MeasureDirection(ctx context.Context, dir Direction, rec model.ServerRecord) float64 {
	speed, err := s.transfer(ctx, dir, rec)
	if err != nil {
		util.S.Warnw("测速失败", "direction", dir, "endpoint", rec.Endpoint, "err", err)
		return 0
	}
	return speed
}

// downloadRequest 构造最简的请求行，不关心响应内容，只统计字节数
func downloadRequest(host string) string {
	return fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\n\r\n", host)
}

// transfer 打开一条新连接并按方向执行读或写
func (s *Sampler) transfer(ctx context.Context, dir Direction, rec model.ServerRecord) (float64, error) {
	dial := s.Dial
	if dial == nil {
		dial = getDialContext(s.ChunkTimeout)
	}

	addr := hostPort(rec.Endpoint, s.Port)
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("连接 %s 失败: %w", addr, err)
	}
	defer conn.Close()

	// ctx 取消时关闭连接，打断阻塞中的读写
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buffer := make([]byte, s.ChunkSize)
	var op func() (int, error)
	switch dir {
	case Download:
		if err := conn.SetDeadline(time.Now().Add(s.ChunkTimeout)); err != nil {
			return 0, err
		}
		if _, err := io.WriteString(conn, downloadRequest(rec.Endpoint)); err != nil {
			return 0, fmt.Errorf("发送请求失败: %w", err)
		}
		op = func() (int, error) { return conn.Read(buffer) }
	case Upload:
		for i := range buffer {
			buffer[i] = 'x'
		}
		op = func() (int, error) { return conn.Write(buffer) }
	default:
		return 0, fmt.Errorf("unknown direction %v", dir)
	}

	return s.sample(ctx, dir, conn, op)
}

// sample 执行 ChunkCount 次 op 并计时。下载时单次读取可能少于 ChunkSize，按实际字节统计。
func (s *Sampler) sample(ctx context.Context, dir Direction, conn net.Conn, op func() (int, error)) (float64, error) {
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}

	// 如果设置了速率限制，则创建限速器，桶大小为单块大小
	var limiter *rate.Limiter
	if s.RateLimitMbps > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.RateLimitMbps*1_000_000/8), s.ChunkSize)
	}

	e := ewma.NewMovingAverage()
	var total int64

	timeStart := clk.Now()
	last := timeStart
	for i := 0; i < s.ChunkCount; i++ {
		if limiter != nil {
			if err := limiter.WaitN(ctx, s.ChunkSize); err != nil {
				return 0, err
			}
		}
		if err := conn.SetDeadline(time.Now().Add(s.ChunkTimeout)); err != nil {
			return 0, err
		}

		n, err := op()
		total += int64(n)
		if err != nil {
			return 0, fmt.Errorf("%s chunk %d/%d: %w", dir, i+1, s.ChunkCount, err)
		}

		now := clk.Now()
		if slice := now.Sub(last); slice > 0 {
			e.Add(speedMbps(int64(n), slice))
		}
		last = now

		if s.Progress != nil {
			s.Progress(dir, i+1, s.ChunkCount, e.Value())
		}
	}
	elapsed := clk.Since(timeStart)

	if elapsed <= 0 {
		return 0, fmt.Errorf("%s finished with non-positive elapsed time %s", dir, elapsed)
	}
	return speedMbps(total, elapsed), nil
}
