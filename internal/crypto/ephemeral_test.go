package crypto

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"secure-file-service/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(clock *fakeClock) *EphemeralKeyStore {
	kem := NewKeyEncapsulationService(NewMLKEMCapability())
	return NewEphemeralKeyStore(kem, DefaultEphemeralTTL, WithClock(clock.Now))
}

func TestEphemeralKeyStore_IssueAndLookup(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	key, err := store.Issue()
	require.NoError(t, err)
	require.NotEmpty(t, key.KeyID)
	require.NotEmpty(t, key.PublicKey)
	require.Equal(t, domain.AlgorithmMLKEM768, key.Algorithm)

	priv, alg, err := store.PrivateKey(key.KeyID)
	require.NoError(t, err)
	require.NotEmpty(t, priv)
	require.Equal(t, key.Algorithm, alg)

	_, _, err = store.PrivateKey("unknown")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEphemeralKeyStore_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	old, err := store.Issue()
	require.NoError(t, err)

	clock.Advance(DefaultEphemeralTTL)
	_, _, err = store.PrivateKey(old.KeyID)
	require.NoError(t, err, "still valid exactly at the TTL boundary")

	clock.Advance(time.Second)
	_, _, err = store.PrivateKey(old.KeyID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// 期限切れのエントリは次の発行時に掃除される
	require.Equal(t, 1, store.Len())
	_, err = store.Issue()
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())
}

func TestEphemeralKeyStore_ConcurrentIssue(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	const n = 16
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := store.Issue()
			if err == nil {
				ids <- key.KeyID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		seen[id] = true
	}
	require.Len(t, seen, n)
	require.Equal(t, n, store.Len())
}
