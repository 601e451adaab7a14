package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_Primary(t *testing.T) {
	var hits int32
	srv := registryServer(t, http.StatusOK, sampleRegistry, &hits)

	f := NewFetcher(srv.URL, WithCacheTTL(time.Minute))
	doc, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRegistry, doc)

	// 第二次命中缓存
	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	f.Purge()
	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetcher_NoCache(t *testing.T) {
	var hits int32
	srv := registryServer(t, http.StatusOK, sampleRegistry, &hits)

	f := NewFetcher(srv.URL, WithCacheTTL(0))
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetcher_Fallback(t *testing.T) {
	bad := registryServer(t, http.StatusInternalServerError, "boom", nil)
	good := registryServer(t, http.StatusOK, sampleRegistry, nil)

	f := NewFetcher(bad.URL, WithFallbackURL(good.URL))
	doc, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRegistry, doc)
}

func TestFetcher_Error(t *testing.T) {
	bad := registryServer(t, http.StatusNotFound, "", nil)

	f := NewFetcher(bad.URL, WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := f.Fetch(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, bad.URL, fe.URL)
}

func TestLoadRegistryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0644))

	doc, err := LoadRegistryFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleRegistry, doc)

	empty := filepath.Join(dir, "empty.xml")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	_, err = LoadRegistryFile(empty)
	var fe *FetchError
	assert.True(t, errors.As(err, &fe))

	_, err = LoadRegistryFile(filepath.Join(dir, "missing.xml"))
	assert.True(t, errors.As(err, &fe))
}
