package model

import (
	"time"
)

// Coordinates 表示一个地理位置（角度制）
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ServerRecord 是从服务器列表中解析出的一条测速服务器记录，解析后不再修改
type ServerRecord struct {
	ID          string  `json:"id,omitempty"`
	Endpoint    string  `json:"endpoint"` // 仅主机名，端口由配置决定
	URL         string  `json:"url"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Sponsor     string  `json:"sponsor"`
}

// Location 返回服务器的坐标
func (r ServerRecord) Location() Coordinates {
	return Coordinates{Latitude: r.Latitude, Longitude: r.Longitude}
}

// RankedServer 是通过可达性探测后附带距离信息的服务器
type RankedServer struct {
	ServerRecord
	DistanceKm float64 `json:"distance_km"`
}

// MeasurementResult 是一次测速的结果，0 表示该方向无法完成测量
type MeasurementResult struct {
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
}

// FinalResult 包含一次完整运行的所有信息
type FinalResult struct {
	RunID  string       `json:"run_id"`
	Server RankedServer `json:"server"`
	MeasurementResult
	MeasuredAt time.Time `json:"measured_at"`
}
