package theme

import "context"

type resolverKey struct{}

// NewContext returns a copy of ctx carrying r.
func NewContext(ctx context.Context, r *Resolver) context.Context {
	return context.WithValue(ctx, resolverKey{}, r)
}

// FromContext returns the Resolver carried by ctx.
func FromContext(ctx context.Context) (*Resolver, bool) {
	r, ok := ctx.Value(resolverKey{}).(*Resolver)
	return r, ok && r != nil
}

// MustFromContext returns the Resolver carried by ctx and panics when there
// is none. A missing resolver means the handler was mounted outside the theme
// provider middleware.
func MustFromContext(ctx context.Context) *Resolver {
	r, ok := FromContext(ctx)
	if !ok {
		panic("theme: no Resolver in request context; mount the handler behind the theme provider middleware")
	}
	return r
}
