package output

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"Speedtest_Selector_Go/pkg/model"
)

// WriteJSONFile 将最终结果列表写入到指定的 JSON 文件中
func WriteJSONFile(filePath string, results []model.FinalResult) error {
	// 将原始结果转换为对人类友好的格式
	humanReadableResults := ToHumanReadable(results)

	data, err := json.MarshalIndent(humanReadableResults, "", "  ")
	if err != nil {
		return fmt.Errorf("无法将结果序列化为 JSON: %w", err)
	}

	err = os.WriteFile(filePath, data, 0644)
	if err != nil {
		return fmt.Errorf("无法写入 JSON 文件 '%s': %w", filePath, err)
	}

	return nil
}

// WriteAll 同时写入 JSON 和 CSV 文件，两者互不影响，返回合并后的错误
func WriteAll(jsonPath, csvPath string, results []model.FinalResult) error {
	return multierr.Combine(
		WriteJSONFile(jsonPath, results),
		WriteCSVFile(csvPath, results),
	)
}
