package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasar/internal/config"
)

func TestStoreRotation(t *testing.T) {
	s := NewStore(nil)
	s.Add(config.ProviderCerebras, "key-1")
	s.Add(config.ProviderCerebras, "key-2")
	s.Add(config.ProviderCerebras, "key-3")

	key, ok := s.Get(config.ProviderCerebras)
	require.True(t, ok)
	assert.Equal(t, "key-1", key)

	require.True(t, s.Rotate(config.ProviderCerebras))
	key, ok = s.Get(config.ProviderCerebras)
	require.True(t, ok)
	assert.Equal(t, "key-2", key)

	require.True(t, s.Rotate(config.ProviderCerebras))
	key, _ = s.Get(config.ProviderCerebras)
	assert.Equal(t, "key-3", key)

	// Last key exhausted: the provider goes dark.
	require.False(t, s.Rotate(config.ProviderCerebras))
	_, ok = s.Get(config.ProviderCerebras)
	assert.False(t, ok)
	assert.False(t, s.IsAvailable(config.ProviderCerebras))
}

func TestRotatedKeysStayInactive(t *testing.T) {
	s := NewStore(nil)
	s.Add(config.ProviderGroq, "g1")
	s.Add(config.ProviderGroq, "g2")

	require.True(t, s.Rotate(config.ProviderGroq))
	require.False(t, s.Rotate(config.ProviderGroq))

	st := s.Status()[config.ProviderGroq]
	assert.Equal(t, 2, st.TotalKeys)
	assert.Equal(t, 0, st.ActiveKeys)
	assert.False(t, st.Available)
}

func TestOllamaNeedsNoCredentials(t *testing.T) {
	s := NewStore(nil)

	key, ok := s.Get(config.ProviderOllama)
	assert.True(t, ok)
	assert.Empty(t, key)
	assert.True(t, s.IsAvailable(config.ProviderOllama))
	assert.False(t, s.Rotate(config.ProviderOllama), "local provider has nothing to rotate")
}

func TestUnknownProvider(t *testing.T) {
	s := NewStore(nil)
	_, ok := s.Get("unknown")
	assert.False(t, ok)
	assert.False(t, s.IsAvailable("unknown"))
	assert.False(t, s.Rotate("unknown"))
}

func TestHasAnyCredentials(t *testing.T) {
	s := NewStore(nil)
	assert.False(t, s.HasAnyCredentials())
	s.Add(config.ProviderGroq, "g1")
	assert.True(t, s.HasAnyCredentials())
}

func TestNewStoreFromEnvSlots(t *testing.T) {
	t.Setenv("CEREBRAS_API_KEY_1", "c1")
	t.Setenv("CEREBRAS_API_KEY_2", "c2")
	t.Setenv("CEREBRAS_API_KEY_4", "c4") // gap at 3: never read
	t.Setenv("GROQ_API_KEY_1", "g1")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID_1", "acct")
	t.Setenv("CLOUDFLARE_API_TOKEN_1", "tok")

	s := NewStoreFromEnv(nil)

	assert.Equal(t, 2, s.TotalKeys(config.ProviderCerebras))
	assert.Equal(t, 1, s.TotalKeys(config.ProviderGroq))
	assert.Equal(t, 1, s.TotalKeys(config.ProviderCloudflare))

	key, ok := s.Get(config.ProviderCloudflare)
	require.True(t, ok)
	assert.Equal(t, "acct:tok", key)
}

func TestRequestScopedOverride(t *testing.T) {
	base := NewStore(nil)
	base.Add(config.ProviderCerebras, "process-key")

	ctx := WithOverride(context.Background(), map[string][]string{
		config.ProviderCerebras: {"user-key-1", "user-key-2"},
	})

	key, ok := Resolve(ctx, base, config.ProviderCerebras)
	require.True(t, ok)
	assert.Equal(t, "user-key-1", key)

	// Rotating the override never touches the process store.
	require.True(t, ResolveRotate(ctx, base, config.ProviderCerebras))
	key, _ = Resolve(ctx, base, config.ProviderCerebras)
	assert.Equal(t, "user-key-2", key)

	processKey, ok := base.Get(config.ProviderCerebras)
	require.True(t, ok)
	assert.Equal(t, "process-key", processKey)
}

func TestOverrideOnlyCoversListedProviders(t *testing.T) {
	base := NewStore(nil)
	base.Add(config.ProviderGroq, "process-groq")

	ctx := WithOverride(context.Background(), map[string][]string{
		config.ProviderCerebras: {"user-cerebras"},
	})

	key, ok := Resolve(ctx, base, config.ProviderGroq)
	require.True(t, ok)
	assert.Equal(t, "process-groq", key, "providers without an override fall through to the process store")
	assert.True(t, ResolveAvailable(ctx, base, config.ProviderGroq))
}

func TestResolveWithoutOverride(t *testing.T) {
	base := NewStore(nil)
	base.Add(config.ProviderGroq, "g1")

	key, ok := Resolve(context.Background(), base, config.ProviderGroq)
	require.True(t, ok)
	assert.Equal(t, "g1", key)
}
