package output

import (
	"fmt"
	"strings"
)

// ProgressBar 渲染一行进度条，例如 "Downloading: |████----| 50.0% 12.34 Mbps"
func ProgressBar(prefix string, done, total, length int, suffix string) string {
	if total <= 0 {
		total = 1
	}
	if done > total {
		done = total
	}
	filled := length * done / total
	bar := strings.Repeat("█", filled) + strings.Repeat("-", length-filled)
	percent := 100 * float64(done) / float64(total)
	return fmt.Sprintf("\r%s |%s| %.1f%% %s", prefix, bar, percent, suffix)
}
