package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/tessellate"
)

const requestIDHeader = "X-Request-ID"

// NewRouter builds the HTTP surface:
//
//	GET /healthz
//	GET /metrics
//	GET /api/v1/layers/{tileDeg}        point counts
//	GET /api/v1/layers/{tileDeg}/edge   float32 LE xyz
//	GET /api/v1/layers/{tileDeg}/fill   float32 LE xyz
//	GET /api/v1/pins
//	GET /api/v1/snapshot.png?width=&height=&tile_deg=&rotation=
func NewRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDWithLogging(svc.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(svc.observeHTTP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if svc.metrics != nil {
		r.Handle("/metrics", svc.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/layers/{tileDeg}", svc.handleLayerSummary)
		r.Get("/layers/{tileDeg}/edge", svc.handleLayerBuffer(tessellate.KindEdge))
		r.Get("/layers/{tileDeg}/fill", svc.handleLayerBuffer(tessellate.KindFill))
		r.Get("/pins", svc.handlePins)
		r.Get("/snapshot.png", svc.handleSnapshot)
	})
	return r
}

// requestIDWithLogging carries X-Request-ID into the logging context and
// echoes it on the response.
func requestIDWithLogging(base logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := logging.WithRequest(r.Context(), base, r.Header.Get(requestIDHeader), logging.String("path", r.URL.Path))
			id := logging.RequestID(ctx)
			r.Header.Set(requestIDHeader, id)
			w.Header().Set(requestIDHeader, id)
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Service) observeHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		s.metrics.ObserveHTTP(route, code)
	})
}

// LayerSummary describes the layers built for one density.
type LayerSummary struct {
	TileDeg    float64 `json:"tile_deg"`
	EdgePoints int     `json:"edge_points"`
	FillPoints int     `json:"fill_points"`
}

func (s *Service) handleLayerSummary(w http.ResponseWriter, r *http.Request) {
	deg, err := parseFloat(chi.URLParam(r, "tileDeg"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	layers, err := s.Layers(r.Context(), deg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	deg, _, _ = s.resolveTileDeg(deg)
	writeJSON(w, http.StatusOK, LayerSummary{
		TileDeg:    deg,
		EdgePoints: layers.Edge.Points(),
		FillPoints: layers.Fill.Points(),
	})
}

func (s *Service) handleLayerBuffer(kind tessellate.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deg, err := parseFloat(chi.URLParam(r, "tileDeg"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		layers, err := s.Layers(r.Context(), deg)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		buf := layers.Edge
		if kind == tessellate.KindFill {
			buf = layers.Fill
		}
		data, err := buf.MarshalBinary()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Point-Count", strconv.Itoa(buf.Points()))
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func (s *Service) handlePins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Pins())
}

func (s *Service) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req SnapshotRequest
	var err error
	if req.Width, err = parseInt(q.Get("width")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Height, err = parseInt(q.Get("height")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.TileDeg, err = parseFloat(q.Get("tile_deg")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Rotation, err = parseFloat(q.Get("rotation")); err != nil {
		s.writeError(w, r, err)
		return
	}

	// render fully before writing so failures still get an error status
	var buf bytes.Buffer
	if err := s.Snapshot(r.Context(), &buf, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	log := loggerFrom(r.Context(), s.log)
	if code >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", logging.Int("status", code), logging.Err(err))
	} else {
		log.Debug(r.Context(), "request rejected", logging.Int("status", code), logging.Err(err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	json.NewEncoder(w).Encode(data)
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, raw)
	}
	return v, nil
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidArgument, raw)
	}
	return v, nil
}
