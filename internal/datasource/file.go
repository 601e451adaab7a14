package datasource

import (
	"fmt"
	"os"
	"strings"
)

// LoadRegistryFile 从本地文件读取服务器列表文档，用于离线运行
func LoadRegistryFile(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", &FetchError{URL: filePath, Err: fmt.Errorf("无法读取服务器列表文件: %w", err)}
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", &FetchError{URL: filePath, Err: fmt.Errorf("服务器列表文件 '%s' 为空", filePath)}
	}
	return string(data), nil
}
