package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Speedtest_Selector_Go/pkg/model"
)

var (
	newYork = model.Coordinates{Latitude: 40.7128, Longitude: -74.0060}
	london  = model.Coordinates{Latitude: 51.5074, Longitude: -0.1278}
	sydney  = model.Coordinates{Latitude: -33.8688, Longitude: 151.2093}
)

func TestDistance_Known(t *testing.T) {
	// 纽约到伦敦约 5570 km
	assert.InDelta(t, 5570, Distance(newYork, london), 10)
	// 赤道上经度差 1 度约 111.19 km
	d := Distance(model.Coordinates{}, model.Coordinates{Longitude: 1})
	assert.InDelta(t, 2*math.Pi*EarthRadiusKm/360, d, 1e-6)
}

func TestDistance_Properties(t *testing.T) {
	points := []model.Coordinates{
		newYork, london, sydney,
		{Latitude: 90, Longitude: 0},
		{Latitude: -90, Longitude: 180},
		{Latitude: 0, Longitude: -180},
		{Latitude: 0, Longitude: 180},
	}
	for _, a := range points {
		assert.Equal(t, 0.0, Distance(a, a), "distance to self")
		for _, b := range points {
			ab := Distance(a, b)
			ba := Distance(b, a)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.InDelta(t, ab, ba, 1e-9, "symmetry %v %v", a, b)
			assert.LessOrEqual(t, ab, math.Pi*EarthRadiusKm+1e-6)
			assert.False(t, math.IsNaN(ab))
		}
	}
	// 反子午线两侧是同一点
	assert.InDelta(t, 0, Distance(model.Coordinates{Longitude: -180}, model.Coordinates{Longitude: 180}), 1e-6)
}

func TestDistance_OutOfRangeDoesNotPanic(t *testing.T) {
	d := Distance(model.Coordinates{Latitude: 500, Longitude: -1000}, london)
	assert.False(t, math.IsNaN(d))
	assert.GreaterOrEqual(t, d, 0.0)
}

// offsetEast 返回赤道上距原点约 km 公里的点
func offsetEast(km float64) model.Coordinates {
	return model.Coordinates{Longitude: km / (2 * math.Pi * EarthRadiusKm / 360)}
}

func TestRank_Order(t *testing.T) {
	caller := model.Coordinates{}
	recs := []model.ServerRecord{
		{ID: "ten", Latitude: offsetEast(10).Latitude, Longitude: offsetEast(10).Longitude},
		{ID: "five", Latitude: offsetEast(5).Latitude, Longitude: offsetEast(5).Longitude},
		{ID: "fifty", Latitude: offsetEast(50).Latitude, Longitude: offsetEast(50).Longitude},
	}
	ranked := Rank(caller, recs)
	require.Len(t, ranked, 3)
	assert.Equal(t, "five", ranked[0].ID)
	assert.Equal(t, "ten", ranked[1].ID)
	assert.Equal(t, "fifty", ranked[2].ID)
	assert.InDelta(t, 5, ranked[0].DistanceKm, 1e-6)
	assert.InDelta(t, 10, ranked[1].DistanceKm, 1e-6)
	assert.InDelta(t, 50, ranked[2].DistanceKm, 1e-6)

	// 输入不被修改
	assert.Equal(t, "ten", recs[0].ID)
}

func TestRank_Stable(t *testing.T) {
	caller := model.Coordinates{}
	same := offsetEast(20)
	recs := []model.ServerRecord{
		{ID: "a", Latitude: same.Latitude, Longitude: same.Longitude},
		{ID: "near", Latitude: offsetEast(1).Latitude, Longitude: offsetEast(1).Longitude},
		{ID: "b", Latitude: same.Latitude, Longitude: same.Longitude},
		{ID: "c", Latitude: same.Latitude, Longitude: same.Longitude},
	}
	ranked := Rank(caller, recs)
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"near", "a", "b", "c"}, ids)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(newYork, nil))
}
