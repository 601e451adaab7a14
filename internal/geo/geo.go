package geo

import (
	"math"
	"sort"

	"Speedtest_Selector_Go/pkg/model"
)

// EarthRadiusKm 地球平均半径
const EarthRadiusKm = 6371.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Distance 使用 haversine 公式计算两点之间的大圆距离（公里）
func Distance(a, b model.Coordinates) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude) - toRadians(a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// 浮点误差可能让 h 略微超出 [0,1]
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Rank 计算每台服务器到 caller 的距离并按距离升序排列。
// 排序是稳定的，距离相同的服务器保持输入顺序。
func Rank(caller model.Coordinates, records []model.ServerRecord) []model.RankedServer {
	ranked := make([]model.RankedServer, len(records))
	for i, rec := range records {
		ranked[i] = model.RankedServer{
			ServerRecord: rec,
			DistanceKm:   Distance(caller, rec.Location()),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked
}
