package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Speedtest_Selector_Go/pkg/model"
)

const namespace = "speedtest"

var (
	// Registry 独立的注册表，只包含本程序的指标
	Registry = prometheus.NewRegistry()

	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Number of speed test runs by outcome.",
	}, []string{"outcome"})

	ProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probes_total",
		Help:      "Number of reachability probes by result.",
	}, []string{"result"})

	ThroughputMbps = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "throughput_mbps",
		Help:      "Most recent measured throughput in Mbps.",
	}, []string{"direction"})

	TransferFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfer_failures_total",
		Help:      "Directions that could not be measured.",
	}, []string{"direction"})
)

func init() {
	Registry.MustRegister(RunsTotal, ProbesTotal, ThroughputMbps, TransferFailures)
}

// Handler 返回 /metrics 的 HTTP 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRun 记录一次运行的结果，outcome 由调用方给出
func ObserveRun(outcome string) {
	RunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProbes 记录一轮探测中可达与不可达的数量
func ObserveProbes(reachable, total int) {
	ProbesTotal.WithLabelValues("reachable").Add(float64(reachable))
	ProbesTotal.WithLabelValues("unreachable").Add(float64(total - reachable))
}

// ObserveMeasurement 记录最近一次测速结果，0 计为失败
func ObserveMeasurement(res model.MeasurementResult) {
	observeDirection("download", res.DownloadMbps)
	observeDirection("upload", res.UploadMbps)
}

func observeDirection(dir string, mbps float64) {
	ThroughputMbps.WithLabelValues(dir).Set(mbps)
	if mbps == 0 {
		TransferFailures.WithLabelValues(dir).Inc()
	}
}
