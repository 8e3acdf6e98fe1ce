package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/paulmach/orb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/land"
	"github.com/security-somanos/blockchain-center/model"
	"github.com/security-somanos/blockchain-center/scene"
	"github.com/security-somanos/blockchain-center/tessellate"
)

type staticLand struct {
	l   *land.Land
	err error
}

func (s staticLand) Land(context.Context) (*land.Land, error) { return s.l, s.err }

// testLand is a 10° square facing the default camera.
func testLand() *land.Land {
	poly := orb.Polygon{{{-95, -5}, {-85, -5}, {-85, 5}, {-95, 5}, {-95, -5}}}
	return &land.Land{Outlines: []orb.Polygon{poly}, Shapes: []orb.Polygon{poly}}
}

func testOptions() model.Options {
	opts := model.DefaultOptions()
	opts.TileDeg = 1
	opts.ShowLabels = false
	opts.Pins = []model.Pin{
		{Lon: -90, Lat: 0, Name: "Centre", Address: "1 Main St\nSuite 2", AlwaysShow: true},
		{Lon: 10, Lat: 20},
	}
	return opts
}

func newTestService(opts ...Option) *Service {
	return NewService(staticLand{l: testLand()}, &tessellate.Pipeline{Cache: tessellate.NewCache()}, testOptions(), opts...)
}

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "invalid argument", err: fmt.Errorf("%w: bad tile", ErrInvalidArgument), code: codes.InvalidArgument},
		{name: "malformed dataset", err: fmt.Errorf("load: %w", land.ErrMalformedDataset), code: codes.FailedPrecondition},
		{name: "no land", err: land.ErrNoLand, code: codes.FailedPrecondition},
		{name: "no worker", err: tessellate.ErrNoWorker, code: codes.Unavailable},
		{name: "worker timeout", err: tessellate.ErrWorkerTimeout, code: codes.DeadlineExceeded},
		{name: "deadline", err: context.DeadlineExceeded, code: codes.DeadlineExceeded},
		{name: "cancelled", err: context.Canceled, code: codes.Canceled},
		{name: "disposed", err: scene.ErrDisposed, code: codes.Canceled},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrInvalidArgument, http.StatusBadRequest},
		{land.ErrMalformedDataset, http.StatusServiceUnavailable},
		{tessellate.ErrNoWorker, http.StatusServiceUnavailable},
		{tessellate.ErrWorkerTimeout, http.StatusGatewayTimeout},
		{context.Canceled, http.StatusRequestTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := httpStatus(tc.err); got != tc.want {
			t.Fatalf("httpStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestServiceLayersUsesCache(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.Layers(ctx, 0)
	if err != nil {
		t.Fatalf("Layers: %v", err)
	}
	if first.Edge.Points() == 0 || first.Fill.Points() == 0 {
		t.Fatalf("empty layers: edge %d fill %d", first.Edge.Points(), first.Fill.Points())
	}
	second, err := svc.Layers(ctx, 1)
	if err != nil {
		t.Fatalf("Layers: %v", err)
	}
	// zero selects the configured density, so both calls share one entry
	if &first.Fill[0] != &second.Fill[0] {
		t.Fatalf("second call rebuilt the layers instead of using the cache")
	}
}

func TestServiceTileDegResolution(t *testing.T) {
	cache := tessellate.NewCache()
	svc := NewService(staticLand{l: testLand()}, &tessellate.Pipeline{Cache: cache}, testOptions(), WithTilePresets(2.5))

	tests := []struct {
		in     float64
		want   float64
		cached bool
	}{
		{0, 1, true},
		{1, 1, true},
		{2.5, 2.5, true},
		{2.5000000001, 2.5, true},
		{1.04, 1, true},
		{3.14159, 3.1, false},
		{0.01, 0.2, false},
		{40, 6, false},
	}
	for _, tc := range tests {
		got, p, err := svc.resolveTileDeg(tc.in)
		if err != nil {
			t.Fatalf("resolveTileDeg(%v): %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("resolveTileDeg(%v) = %v, want %v", tc.in, got, tc.want)
		}
		if cached := p == svc.pipeline; cached != tc.cached {
			t.Fatalf("resolveTileDeg(%v) cached = %v, want %v", tc.in, cached, tc.cached)
		}
	}
}

func TestServiceClientDensitiesDoNotGrowCache(t *testing.T) {
	cache := tessellate.NewCache()
	svc := NewService(staticLand{l: testLand()}, &tessellate.Pipeline{Cache: cache}, testOptions())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		layers, err := svc.Layers(ctx, 2+float64(i)*0.013)
		if err != nil {
			t.Fatalf("Layers: %v", err)
		}
		if layers.Edge.Points() == 0 {
			t.Fatalf("empty edge layer for request %d", i)
		}
	}
	if cache.Len() != 0 {
		t.Fatalf("cache keys = %v, want none for non-preset densities", cache.Keys())
	}
	if _, err := svc.Layers(ctx, 0); err != nil {
		t.Fatalf("Layers(0): %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache keys = %v, want only the configured density", cache.Keys())
	}
}

func TestServiceLayersRejectsBadDensity(t *testing.T) {
	svc := newTestService()
	for _, deg := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := svc.Layers(context.Background(), deg); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("Layers(%v) err = %v, want ErrInvalidArgument", deg, err)
		}
	}
}

func TestServiceLayersLandFailure(t *testing.T) {
	svc := NewService(staticLand{err: land.ErrMalformedDataset}, nil, testOptions())
	_, err := svc.Layers(context.Background(), 1)
	if !errors.Is(err, land.ErrMalformedDataset) {
		t.Fatalf("err = %v, want ErrMalformedDataset", err)
	}
}

func TestServicePins(t *testing.T) {
	pins := newTestService().Pins()
	if len(pins) != 2 {
		t.Fatalf("pins = %d, want 2", len(pins))
	}
	centre := pins[0]
	// lon -90 lat 0 sits on +z, facing the default camera
	if centre.Anchor[2] < 0.999 || !centre.Visible {
		t.Fatalf("centre pin = %+v", centre)
	}
	if want := "<b>Centre</b><br/>1 Main St<br/>Suite 2<br/>"; centre.LabelHTML != want {
		t.Fatalf("label html = %q, want %q", centre.LabelHTML, want)
	}
	if pins[1].LabelHTML != "" || pins[1].Visible {
		t.Fatalf("unlabelled pin = %+v", pins[1])
	}
}

func TestRequestIDInterceptorUsesMetadata(t *testing.T) {
	icpt := RequestIDUnaryServerInterceptor(nil)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "req-42"))

	var seen string
	var hasLogger bool
	_, err := icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: MethodListPins}, func(ctx context.Context, _ interface{}) (interface{}, error) {
		seen = logging.RequestID(ctx)
		hasLogger = logging.FromContext(ctx, nil) != nil
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen != "req-42" || !hasLogger {
		t.Fatalf("request id = %q, logger %v", seen, hasLogger)
	}
}

func TestTracingInterceptorPassesErrors(t *testing.T) {
	icpt := TracingUnaryServerInterceptor()
	want := status.Error(codes.InvalidArgument, "bad")
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MethodGetEdgeLayer}, func(context.Context, interface{}) (interface{}, error) {
		return nil, want
	})
	if err != want {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
