package output

import (
	"encoding/csv"
	"fmt"
	"os"

	"Speedtest_Selector_Go/internal/util"
	"Speedtest_Selector_Go/pkg/model"
)

// WriteCSVFile 将最终结果列表写入到指定的 CSV 文件中
func WriteCSVFile(filePath string, results []model.FinalResult) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("无法创建 CSV 文件 '%s': %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// 写入表头
	header := []string{
		"Run ID",
		"Measured At",
		"Endpoint",
		"Name",
		"Country",
		"Sponsor",
		"Distance (km)",
		"Download (Mbps)",
		"Upload (Mbps)",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("写入 CSV 表头失败: %w", err)
	}

	// 写入数据行
	for _, r := range results {
		row := []string{
			r.RunID,
			r.MeasuredAt.Format("2006-01-02T15:04:05Z07:00"),
			r.Server.Endpoint,
			r.Server.Name,
			r.Server.Country,
			r.Server.Sponsor,
			fmt.Sprintf("%.1f", r.Server.DistanceKm),
			fmt.Sprintf("%.2f", r.DownloadMbps),
			fmt.Sprintf("%.2f", r.UploadMbps),
		}
		if err := writer.Write(row); err != nil {
			// 记录错误但继续尝试写入其他行
			util.S.Warnw("写入 CSV 行失败", "run_id", r.RunID, "err", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
