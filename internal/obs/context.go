package obs

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/tenant"
)

type routePatternKey struct{}

// WithRoutePattern pins the route template reported for a request. It wins
// over the pattern chi matched.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the pinned route template, else the one
// chi has matched so far, e.g. "/api/v1/orders/{id}/reconcile".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// RouteOf is RoutePatternFromContext with a fallback for unrouted requests.
// Templates keep order and item ids out of metric labels and span names.
func RouteOf(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	return fallback
}

// requestScope is shared between the outer logging middleware and Annotate,
// which runs after the tenant and operator are known.
type requestScope struct {
	mu       sync.Mutex
	tenant   string
	operator string
}

type scopeKey struct{}

func withScope(ctx context.Context) (context.Context, *requestScope) {
	if sc, ok := ctx.Value(scopeKey{}).(*requestScope); ok {
		return ctx, sc
	}
	sc := &requestScope{}
	return context.WithValue(ctx, scopeKey{}, sc), sc
}

func (sc *requestScope) get() (tenantID, operator string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.tenant, sc.operator
}

// Annotate reports the request's tenant and operator to the enclosing
// request log and server span. Mount it after tenant resolution.
func Annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tid, _ := tenant.From(ctx)
		op, _ := common.Operator(ctx)
		if sc, ok := ctx.Value(scopeKey{}).(*requestScope); ok {
			sc.mu.Lock()
			sc.tenant, sc.operator = tid, op
			sc.mu.Unlock()
		}
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			if tid != "" {
				span.SetAttributes(attribute.String("tenant.id", tid))
			}
			if op != "" {
				span.SetAttributes(attribute.String("pos.operator", op))
			}
		}
		next.ServeHTTP(w, r)
	})
}
