package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type ctxKeyRoute struct{}

// WithRoutePattern pins the matched chi pattern on the context so metrics and
// spans label by route template instead of raw paths (which would explode
// cardinality with every admin slug and booking id).
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyRoute{}, pattern)
}

// RoutePatternFromContext returns the pinned pattern or "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKeyRoute{}).(string); ok {
		return v
	}
	return ""
}

// RouteFor resolves the route template for a request, falling back to the
// live chi routing context when nothing was pinned yet.
func RouteFor(r *http.Request) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
