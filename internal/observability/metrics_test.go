package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/globe.v1.LayerService/GetEdgeLayer"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("LayerService", "GetEdgeLayer", "OK")); got != 1 {
		t.Fatalf("globe_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "globe_rpc_request_duration_seconds", map[string]string{
		"service": "LayerService",
		"method":  "GetEdgeLayer",
	}); count != 1 {
		t.Fatalf("globe_rpc_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/globe.v1.LayerService/GetFillLayer"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "boom")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("LayerService", "GetFillLayer", "InvalidArgument")); got != 1 {
		t.Fatalf("globe_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesGlobeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	collector.ObserveTessellation("edge", "worker", 20*time.Millisecond)
	collector.IncWorkerFallback("fill")
	collector.ObserveCacheLookup(true)
	collector.ObserveCacheLookup(false)
	collector.ObserveMount(MountReady)
	collector.SceneStarted()
	collector.IncFrames()
	collector.ObserveHTTP("/api/v1/pins", http.StatusOK)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	collector.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"globe_rpc_requests_total",
		"globe_rpc_request_duration_seconds",
		"globe_http_requests_total",
		"globe_tessellation_duration_seconds",
		"globe_worker_fallbacks_total",
		"globe_layer_cache_lookups_total",
		"globe_scene_mounts_total",
		"globe_scenes_active",
		"globe_frames_rendered_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestSceneMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	collector.SceneStarted()
	collector.SceneStarted()
	collector.SceneStopped()
	if got := testutil.ToFloat64(collector.ActiveScenes); got != 1 {
		t.Fatalf("globe_scenes_active = %v, want 1", got)
	}
	collector.ObserveCacheLookup(true)
	collector.ObserveCacheLookup(true)
	if got := testutil.ToFloat64(collector.CacheLookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("cache hits = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "globe_tessellation_duration_seconds", map[string]string{"kind": "fill"}); count != 0 {
		t.Fatalf("unexpected fill samples: %d", count)
	}
	collector.ObserveTessellation("fill", "inline", time.Millisecond)
	if count := histogramSampleCount(t, reg, "globe_tessellation_duration_seconds", map[string]string{"kind": "fill", "mode": "inline"}); count != 1 {
		t.Fatalf("fill/inline sample_count = %d, want 1", count)
	}
}

func TestCollectorReRegistersExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("NewGlobeCollector: %v", err)
	}
	second, err := NewGlobeCollector(reg)
	if err != nil {
		t.Fatalf("second NewGlobeCollector: %v", err)
	}
	second.IncFrames()
	if got := testutil.ToFloat64(first.FramesRendered); got != 1 {
		t.Fatalf("collectors do not share registered metrics: %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *GlobeCollector
	c.ObserveTessellation("edge", "worker", time.Second)
	c.IncWorkerFallback("edge")
	c.ObserveCacheLookup(false)
	c.ObserveMount(MountFailed)
	c.SceneStarted()
	c.SceneStopped()
	c.IncFrames()
	c.ObserveHTTP("/", 200)
}

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in, service, method string
	}{
		{"/globe.v1.LayerService/ListPins", "LayerService", "ListPins"},
		{"", "unknown", "unknown"},
		{"nonsense", "unknown", "unknown"},
	}
	for _, tc := range tests {
		s, m := SplitMethod(tc.in)
		if s != tc.service || m != tc.method {
			t.Fatalf("SplitMethod(%q) = %q, %q, want %q, %q", tc.in, s, m, tc.service, tc.method)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
