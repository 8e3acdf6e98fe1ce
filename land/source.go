package land

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/internal/observability"
)

//go:embed assets/land.topo.json
var embedded []byte

// Source loads a landmass dataset once and hands out the same *Land to
// every caller afterwards. A failed load is retried on the next call.
type Source struct {
	name string
	load func() ([]byte, error)
	log  logging.Logger

	mu   sync.Mutex
	land *Land
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for load reporting.
func WithLogger(l logging.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSource builds a source over an in-memory TopoJSON document.
func NewSource(name string, data []byte, opts ...Option) *Source {
	return newSource(name, func() ([]byte, error) { return data, nil }, opts...)
}

// NewFileSource builds a source that reads path on first use.
func NewFileSource(path string, opts ...Option) *Source {
	return newSource(path, func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read land dataset %s: %w", path, err)
		}
		return data, nil
	}, opts...)
}

func newSource(name string, load func() ([]byte, error), opts ...Option) *Source {
	s := &Source{name: name, load: load, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Land returns the decoded landmass, decoding it on the first call.
// Concurrent first callers wait for the same decode.
func (s *Source) Land(ctx context.Context) (*Land, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.land != nil {
		return s.land, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "land.Load")
	defer span.End()

	start := time.Now()
	data, err := s.load()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	l, err := Decode(data)
	if err != nil {
		span.RecordError(err)
		s.log.Error(ctx, "land dataset rejected",
			logging.String("dataset", s.name),
			logging.Err(err),
		)
		return nil, err
	}
	s.land = l
	s.log.Info(ctx, "land dataset loaded",
		logging.String("dataset", s.name),
		logging.Int("polygons", l.Len()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return l, nil
}

var (
	defaultMu  sync.Mutex
	defaultSrc *Source
)

// Default returns the process-wide source. Unless SetDefault replaced it,
// it serves the landmass bundled into the binary.
func Default() *Source {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSrc == nil {
		defaultSrc = NewSource("embedded", embedded)
	}
	return defaultSrc
}

// SetDefault installs s as the process-wide source. Call it during
// startup, before the first mount.
func SetDefault(s *Source) {
	defaultMu.Lock()
	defaultSrc = s
	defaultMu.Unlock()
}

// Get loads the process-wide landmass.
func Get(ctx context.Context) (*Land, error) {
	return Default().Land(ctx)
}

// Embedded returns the bundled TopoJSON document.
func Embedded() []byte {
	return embedded
}
