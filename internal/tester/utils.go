package tester

import (
	"context"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultTCPPort 默认测速端口
	DefaultTCPPort = 80
	// DefaultProbeTimeout 可达性探测的连接超时
	DefaultProbeTimeout = 2 * time.Second
)

// DialFunc 与 net.Dialer.DialContext 签名一致，测试中可替换
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// getDialContext 创建一个带连接超时的拨号函数
func getDialContext(timeout time.Duration) DialFunc {
	dialer := &net.Dialer{Timeout: timeout}
	return dialer.DialContext
}

// hostPort 拼接主机与端口，IPv6 地址会自动加上方括号
func hostPort(endpoint string, port int) string {
	return net.JoinHostPort(endpoint, strconv.Itoa(port))
}

// megabits 将字节数换算为兆比特
func megabits(bytes int64) float64 {
	return float64(bytes) * 8 / 1_000_000
}

// speedMbps 计算 bytes 在 elapsed 内的平均速率，elapsed 不为正时返回 0
func speedMbps(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return megabits(bytes) / elapsed.Seconds()
}
