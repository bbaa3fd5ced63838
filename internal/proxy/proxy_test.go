package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AriHenrique/dyrasql/internal/archive"
	"github.com/AriHenrique/dyrasql/internal/config"
	"github.com/AriHenrique/dyrasql/internal/history"
	"github.com/AriHenrique/dyrasql/internal/tracing"
	"github.com/AriHenrique/dyrasql/internal/tracker"
)

func testServer(t *testing.T, upstream *httptest.Server) *Server {
	t.Helper()
	cfg := &config.Config{
		Clusters: map[config.ClusterName]config.ClusterEndpoint{
			config.ClusterECS:          {InternalURL: upstream.URL, ExternalURL: "http://localhost:8081"},
			config.ClusterEMRStandard:  {InternalURL: upstream.URL, ExternalURL: "http://localhost:8082"},
			config.ClusterEMROptimized: {InternalURL: upstream.URL, ExternalURL: "http://localhost:8083"},
		},
		BypassMode:         true,
		ProxyExternalURL:   "http://localhost:8080",
		StreamingThreshold: 65536,
		DataTimeout:        5 * time.Second,
		RoutingTimeout:     5 * time.Second,
		ProbeTimeout:       5 * time.Second,
		Weights:            config.Weights{Volume: 0.5, Complexity: 0.3, Historical: 0.2},
		Thresholds:         config.Thresholds{ECS: 0.3, EMRStandard: 0.7},
	}
	log := zap.NewNop().Sugar()
	store := history.NewMemoryStore()
	trk := tracker.New(1000, time.Minute)
	t.Cleanup(trk.Stop)
	arch := archive.New(t.TempDir(), false, log)
	tracer := tracing.NewNoopProvider()

	return NewServer(cfg, log, store, trk, arch, tracer)
}

func TestStatementRejectsEmptyQuery(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called for an empty query")
	}))
	defer upstream.Close()

	s := testServer(t, upstream)
	req := httptest.NewRequest(http.MethodPost, "/v1/statement", strings.NewReader("   "))
	rec := httptest.NewRecorder()

	s.Statement(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatementKeepAliveRoutesToDefaultCluster(t *testing.T) {
	var sawQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sawQuery = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"20260101_120000_00001_abcde","nextUri":"` + r.Host + `/v1/statement/queued/x"}`))
	}))
	defer upstream.Close()

	s := testServer(t, upstream)
	req := httptest.NewRequest(http.MethodPost, "/v1/statement", strings.NewReader("SELECT 1"))
	rec := httptest.NewRecorder()

	s.Statement(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELECT 1", sawQuery)

	cluster, ok := s.tracker.Get("20260101_120000_00001_abcde")
	require.True(t, ok)
	assert.Equal(t, config.ClusterECS, cluster)
}

func TestStatementInstallsQueryIDBeforeResponding(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"20260101_120000_00002_fghij"}`))
	}))
	defer upstream.Close()

	s := testServer(t, upstream)
	req := httptest.NewRequest(http.MethodPost, "/v1/statement", strings.NewReader("SHOW TABLES"))
	rec := httptest.NewRecorder()

	s.Statement(rec, req)

	_, ok := s.tracker.Get("20260101_120000_00002_fghij")
	assert.True(t, ok, "query id must be tracked once Statement has returned")
}

func TestHealthReportsBypassMode(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	s := testServer(t, upstream)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"bypass_mode":true`)
}

func TestLoginTypeReturnsEmptySupportedTypes(t *testing.T) {
	s := testServer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	req := httptest.NewRequest(http.MethodGet, "/loginType", nil)
	rec := httptest.NewRecorder()

	s.LoginType(rec, req)

	assert.JSONEq(t, `{"supportedTypes":[]}`, rec.Body.String())
}

func TestClusterForPathFallsBackWhenUntracked(t *testing.T) {
	s := testServer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	cluster := s.clusterForPath("/v1/statement/20260101_120000_00003_zzzzz/1")

	assert.Equal(t, config.DefaultClusterName, cluster)
}

func TestClusterForPathUsesTrackedCluster(t *testing.T) {
	s := testServer(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	s.tracker.Put("20260101_120000_00004_abcde", config.ClusterEMROptimized)

	cluster := s.clusterForPath("/v1/statement/20260101_120000_00004_abcde/1")

	assert.Equal(t, config.ClusterEMROptimized, cluster)
}

func TestCatchAllRewritesNonGETResponseBody(t *testing.T) {
	var upstreamURL string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"nextUri":"` + upstreamURL + `/v1/statement/queued/y"}`))
	}))
	defer upstream.Close()
	upstreamURL = upstream.URL

	s := testServer(t, upstream)
	s.tracker.Put("20260101_120000_00005_abcde", config.ClusterECS)

	req := httptest.NewRequest(http.MethodDelete, "/v1/statement/20260101_120000_00005_abcde/1", nil)
	rec := httptest.NewRecorder()

	s.CatchAll(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://localhost:8081/v1/statement/queued/y")
	assert.NotContains(t, rec.Body.String(), upstream.URL)
}
