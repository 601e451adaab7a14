package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"Speedtest_Selector_Go/internal/config"
	"Speedtest_Selector_Go/pkg/model"
)

// lookupResponse 兼容常见 IP 定位服务的两种字段命名
type lookupResponse struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
}

func (r lookupResponse) coordinates() (model.Coordinates, error) {
	if r.Status == "fail" {
		return model.Coordinates{}, fmt.Errorf("lookup failed: %s", r.Message)
	}
	switch {
	case r.Lat != nil && r.Lon != nil:
		return model.Coordinates{Latitude: *r.Lat, Longitude: *r.Lon}, nil
	case r.Latitude != nil && r.Longitude != nil:
		return model.Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude}, nil
	default:
		return model.Coordinates{}, errors.New("response has no coordinates")
	}
}

// LoadFromFile 从指定的 JSON 文件加载本机坐标
func LoadFromFile(filePath string) (model.Coordinates, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("无法读取位置文件 '%s': %w", filePath, err)
	}

	var resp lookupResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return model.Coordinates{}, fmt.Errorf("解析位置文件 JSON 失败: %w", err)
	}
	return resp.coordinates()
}

// Lookup 通过 IP 定位服务查询本机坐标
func Lookup(ctx context.Context, client *http.Client, url string) (model.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Coordinates{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("定位请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Coordinates{}, fmt.Errorf("定位服务返回状态码: %s", resp.Status)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Coordinates{}, fmt.Errorf("解析定位响应失败: %w", err)
	}
	return body.coordinates()
}

// Resolve 依次尝试配置中固定的坐标、location_file 和 geo_lookup_url
func Resolve(ctx context.Context, cfg *config.Config, client *http.Client) (model.Coordinates, error) {
	if cfg.Latitude != nil && cfg.Longitude != nil {
		return model.Coordinates{Latitude: *cfg.Latitude, Longitude: *cfg.Longitude}, nil
	}
	if cfg.LocationFile != "" {
		return LoadFromFile(cfg.LocationFile)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return Lookup(ctx, client, cfg.GeoLookupURL)
}
