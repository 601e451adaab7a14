package locations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Speedtest_Selector_Go/internal/config"
	"Speedtest_Selector_Go/pkg/model"
)

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    model.Coordinates
		wantErr bool
	}{
		{"ip-api style", 200, `{"status":"success","lat":52.52,"lon":13.405}`, model.Coordinates{Latitude: 52.52, Longitude: 13.405}, false},
		{"ipapi.co style", 200, `{"latitude":-33.86,"longitude":151.2}`, model.Coordinates{Latitude: -33.86, Longitude: 151.2}, false},
		{"fail status", 200, `{"status":"fail","message":"private range"}`, model.Coordinates{}, true},
		{"no coordinates", 200, `{"city":"Nowhere"}`, model.Coordinates{}, true},
		{"bad json", 200, `{`, model.Coordinates{}, true},
		{"http error", 503, `{}`, model.Coordinates{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, tt.status, tt.body)
			got, err := Lookup(context.Background(), srv.Client(), srv.URL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("fixed coordinates", func(t *testing.T) {
		lat, lon := 35.68, 139.69
		cfg := config.Default()
		cfg.Latitude, cfg.Longitude = &lat, &lon
		cfg.GeoLookupURL = "http://127.0.0.1:1/unused"

		got, err := Resolve(context.Background(), cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, model.Coordinates{Latitude: lat, Longitude: lon}, got)
	})

	t.Run("lookup", func(t *testing.T) {
		srv := jsonServer(t, 200, `{"lat":1.5,"lon":2.5}`)
		cfg := config.Default()
		cfg.GeoLookupURL = srv.URL

		got, err := Resolve(context.Background(), cfg, srv.Client())
		require.NoError(t, err)
		assert.Equal(t, model.Coordinates{Latitude: 1.5, Longitude: 2.5}, got)
	})

	t.Run("location file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "location.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"lat": -33.87, "lon": 151.21}`), 0644))
		cfg := config.Default()
		cfg.LocationFile = path
		cfg.GeoLookupURL = "http://127.0.0.1:1/unused"

		got, err := Resolve(context.Background(), cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, model.Coordinates{Latitude: -33.87, Longitude: 151.21}, got)
	})
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "location.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"latitude": 48.85, "longitude": 2.35}`), 0644))

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, model.Coordinates{Latitude: 48.85, Longitude: 2.35}, got)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
