package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapfresh/snapfresh/internal/refresh"
	"github.com/snapfresh/snapfresh/internal/registry"
)

func newTestServer(t *testing.T) (*Server, *refresh.Aggregator) {
	t.Helper()
	reg := registry.New(map[string]refresh.DomainConfig{
		"cameras": {
			SourcePath:             "in.json",
			OutputPath:             "out.json",
			RefreshIntervalSeconds: 60,
			BatchSize:              2,
			ParameterNames:         []string{"id", "ts"},
			TimestampParameter:     "ts",
		},
	})
	stats := refresh.NewAggregator()
	return NewServer(reg, stats, zap.NewNop()), stats
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
	require.Equal(t, http.StatusOK, get(t, s, "/readyz").Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, get(t, s, "/metrics").Code)
}

func TestServer_ListDomains(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)
	rec := get(t, s, "/v1/domains")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"cameras"}, body["domains"])
}

func TestServer_DomainReport(t *testing.T) {
	t.Parallel()
	s, stats := newTestServer(t)

	rec := get(t, s, "/v1/domains/cameras/report")
	require.Equal(t, http.StatusNotFound, rec.Code, "no cycle has run yet")

	stats.Record(refresh.CycleReport{CycleID: "abc", Domain: "cameras", Total: 4, Succeeded: 4})
	rec = get(t, s, "/v1/domains/cameras/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var report refresh.CycleReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "abc", report.CycleID)
	require.Equal(t, 4, report.Succeeded)
}

func TestServer_UnknownDomainIs404(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)
	require.Equal(t, http.StatusNotFound, get(t, s, "/v1/domains/tides/report").Code)
}

func TestServer_CumulativeStats(t *testing.T) {
	t.Parallel()
	s, stats := newTestServer(t)
	stats.Record(refresh.CycleReport{Domain: "cameras", Total: 5, Succeeded: 3, FailedRetries: 2})

	rec := get(t, s, "/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var totals refresh.Totals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	require.Equal(t, 1, totals.Cycles)
	require.Equal(t, 3, totals.Succeeded)
	require.Equal(t, 2, totals.FailedRetries)
}
