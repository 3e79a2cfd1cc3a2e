package credentials

import "context"

type overrideKey struct{}

// Override is a request-scoped credential overlay. Lookups through
// Resolve consult the overlay before the process-wide store; the
// overlay dies with the request context.
type Override struct {
	store *Store
}

// WithOverride installs request-provided keys on the context. Each
// provider's list replaces the process-wide list for the lifetime of
// the request only.
func WithOverride(ctx context.Context, keys map[string][]string) context.Context {
	if len(keys) == 0 {
		return ctx
	}
	s := NewStore(nil)
	for provider, list := range keys {
		for _, k := range list {
			s.Add(provider, k)
		}
	}
	return context.WithValue(ctx, overrideKey{}, &Override{store: s})
}

func overrideFrom(ctx context.Context) *Override {
	o, _ := ctx.Value(overrideKey{}).(*Override)
	return o
}

// Resolve returns the credential for a provider, consulting the
// request overlay first.
func Resolve(ctx context.Context, base *Store, provider string) (string, bool) {
	if o := overrideFrom(ctx); o != nil && o.store.TotalKeys(provider) > 0 {
		return o.store.Get(provider)
	}
	return base.Get(provider)
}

// ResolveRotate rotates within the store the credential came from.
func ResolveRotate(ctx context.Context, base *Store, provider string) bool {
	if o := overrideFrom(ctx); o != nil && o.store.TotalKeys(provider) > 0 {
		return o.store.Rotate(provider)
	}
	return base.Rotate(provider)
}

// ResolveAvailable checks availability through the overlay then the
// process-wide store.
func ResolveAvailable(ctx context.Context, base *Store, provider string) bool {
	if o := overrideFrom(ctx); o != nil && o.store.TotalKeys(provider) > 0 {
		return o.store.IsAvailable(provider)
	}
	return base.IsAvailable(provider)
}
