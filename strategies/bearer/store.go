package bearer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/andrebq/chainmail/principal"
)

type (
	// TokenStore maps opaque tokens to the principal they were issued to.
	// Issuing tokens is someone else's job, the strategy only reads.
	TokenStore interface {
		Save(ctx context.Context, token string, p principal.Principal) error
		Lookup(ctx context.Context, token string) (principal.Principal, bool, error)
	}

	memStore struct {
		cache *bigcache.BigCache
	}
)

// InMemoryTokenStore keeps tokens in memory, entries expire after ttl.
// Tokens are lost when the process restarts or the entry is evicted.
func InMemoryTokenStore(ttl time.Duration) (TokenStore, error) {
	cache, err := bigcache.NewBigCache(bigcache.DefaultConfig(ttl))
	if err != nil {
		return nil, fmt.Errorf("unable to create token cache, cause %w", err)
	}
	return &memStore{
		cache: cache,
	}, nil
}

func (m *memStore) Save(ctx context.Context, token string, p principal.Principal) error {
	buf, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("unable to encode principal %v, cause %w", p.Subject, err)
	}
	return m.cache.Set(token, buf)
}

func (m *memStore) Lookup(ctx context.Context, token string) (principal.Principal, bool, error) {
	var p principal.Principal
	buf, err := m.cache.Get(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return p, false, nil
	} else if err != nil {
		return p, false, err
	}
	err = json.Unmarshal(buf, &p)
	if err != nil {
		return p, false, fmt.Errorf("unable to decode principal from token store, cause %w", err)
	}
	return p, true, nil
}
