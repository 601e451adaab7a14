package output

import (
	"fmt"
	"math"
	"strings"

	"Speedtest_Selector_Go/pkg/model"
)

// HumanReadableResult 定义了一个对人类友好的、用于最终文件输出的数据结构
type HumanReadableResult struct {
	RunID        string  `json:"RunID"`
	MeasuredAt   string  `json:"MeasuredAt"`
	Endpoint     string  `json:"Endpoint"`
	Name         string  `json:"Name"`
	Country      string  `json:"Country"`
	Sponsor      string  `json:"Sponsor"`
	DistanceKm   float64 `json:"DistanceKm"`   // 距离 (公里，保留一位小数)
	DownloadMbps float64 `json:"DownloadMbps"` // 下载速度 (Mbps，保留两位小数)
	UploadMbps   float64 `json:"UploadMbps"`   // 上传速度 (Mbps，保留两位小数)
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// ToHumanReadable 将引擎的原始结果转换为对人类友好的格式
func ToHumanReadable(results []model.FinalResult) []HumanReadableResult {
	humanResults := make([]HumanReadableResult, len(results))
	for i, r := range results {
		humanResults[i] = HumanReadableResult{
			RunID:        r.RunID,
			MeasuredAt:   r.MeasuredAt.Format("2006-01-02 15:04:05 MST"),
			Endpoint:     r.Server.Endpoint,
			Name:         r.Server.Name,
			Country:      r.Server.Country,
			Sponsor:      r.Server.Sponsor,
			DistanceKm:   round(r.Server.DistanceKm, 1),
			DownloadMbps: round(r.DownloadMbps, 2),
			UploadMbps:   round(r.UploadMbps, 2),
		}
	}
	return humanResults
}

const (
	colorGreen = "\033[92m"
	colorBlue  = "\033[94m"
	colorReset = "\033[0m"
)

// FormatResult 返回带颜色的两行结果文本，0 显示为 "failed"
func FormatResult(res model.MeasurementResult, color bool) string {
	line := func(label string, mbps float64, c string) string {
		value := fmt.Sprintf("%.2f Mbps", mbps)
		if mbps == 0 {
			value = "failed"
		}
		if !color {
			return fmt.Sprintf("%s Speed: %s", label, value)
		}
		return fmt.Sprintf("%s%s Speed: %s%s", c, label, value, colorReset)
	}
	return line("Download", res.DownloadMbps, colorGreen) + "\n" + line("Upload", res.UploadMbps, colorBlue)
}

// FormatCandidates 将候选服务器列表格式化为带序号的表格，序号从 1 开始
func FormatCandidates(ranked []model.RankedServer) string {
	var b strings.Builder
	for i, s := range ranked {
		fmt.Fprintf(&b, "%3d. %-40s %-25s %-20s %8.1f km\n", i+1, truncate(s.Sponsor, 40), truncate(s.Name, 25), truncate(s.Country, 20), s.DistanceKm)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
