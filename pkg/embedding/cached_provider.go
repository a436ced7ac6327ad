package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedProvider memoizes vectors per model and text. Re-asking over the same
// documents skips re-embedding unchanged chunks.
type CachedProvider struct {
	inner EmbeddingProvider
	model string
	cache *cache.Cache
}

func NewCachedProvider(inner EmbeddingProvider, model string, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		model: model,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (p *CachedProvider) key(text string) string {
	sum := sha256.Sum256([]byte(p.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (p *CachedProvider) Generate(ctx context.Context, text string) (*EmbeddingResponse, error) {
	k := p.key(text)
	if x, found := p.cache.Get(k); found {
		return x.(*EmbeddingResponse), nil
	}

	res, err := p.inner.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Set(k, res, cache.DefaultExpiration)
	return res, nil
}

func (p *CachedProvider) Ping(ctx context.Context) error {
	if pinger, ok := p.inner.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Len reports how many vectors are cached.
func (p *CachedProvider) Len() int {
	return p.cache.ItemCount()
}
