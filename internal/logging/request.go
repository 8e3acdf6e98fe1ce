package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// MaxRequestIDLen bounds inbound request IDs; they are echoed in response
// headers and span attributes.
const MaxRequestIDLen = 64

// requestScope is what a request carries through the globe handlers: its
// ID and a logger already annotated with it.
type requestScope struct {
	id  string
	log Logger
}

type scopeKey struct{}

// WithRequest attaches a request scope to ctx. The ID is taken from id when
// it is acceptable, else from a scope already on ctx, else freshly
// generated. The returned logger is base annotated with request_id and
// fields.
func WithRequest(ctx context.Context, base Logger, id string, fields ...Field) (context.Context, Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	if base == nil {
		base = Noop()
	}
	id = acceptRequestID(id)
	if id == "" {
		id = RequestID(ctx)
	}
	if id == "" {
		id = NewRequestID()
	}
	l := base.With(append([]Field{String("request_id", id)}, fields...)...)
	return context.WithValue(ctx, scopeKey{}, requestScope{id: id, log: l}), l
}

// RequestID returns the ID of the request scope on ctx, or "".
func RequestID(ctx context.Context) string {
	if sc, ok := scopeFrom(ctx); ok {
		return sc.id
	}
	return ""
}

// FromContext returns the request logger on ctx, or fallback when ctx
// carries none.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if sc, ok := scopeFrom(ctx); ok && sc.log != nil {
		return sc.log
	}
	return fallback
}

func scopeFrom(ctx context.Context) (requestScope, bool) {
	if ctx == nil {
		return requestScope{}, false
	}
	sc, ok := ctx.Value(scopeKey{}).(requestScope)
	return sc, ok
}

// NewRequestID returns 12 random bytes hex encoded. If the system source
// fails it falls back to a timestamp so IDs stay non-empty.
func NewRequestID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "t" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}

// acceptRequestID returns id if it is short printable ASCII, else "".
func acceptRequestID(id string) string {
	if id == "" || len(id) > MaxRequestIDLen {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return id
}
