package memory

import (
	"sync"
	"time"

	"docqa-be/pkg/rag/preparation"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// CoordinatorRegistry keeps one preparation coordinator per owner. Idle
// coordinators expire; every lookup pushes the expiry forward.
type CoordinatorRegistry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	ttl     time.Duration
	factory func(owner uuid.UUID) *preparation.Coordinator
}

func NewCoordinatorRegistry(ttl time.Duration, factory func(owner uuid.UUID) *preparation.Coordinator) *CoordinatorRegistry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	c := cache.New(ttl, 10*time.Minute)
	c.OnEvicted(func(_ string, v interface{}) {
		if coord, ok := v.(*preparation.Coordinator); ok {
			coord.Cancel()
		}
	})
	return &CoordinatorRegistry{
		cache:   c,
		ttl:     ttl,
		factory: factory,
	}
}

// Get returns the owner's coordinator, creating it on first use.
func (r *CoordinatorRegistry) Get(owner uuid.UUID) *preparation.Coordinator {
	key := owner.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(key); found {
		coord := x.(*preparation.Coordinator)
		// Refresh expiry without firing OnEvicted.
		r.cache.Set(key, coord, r.ttl)
		return coord
	}

	coord := r.factory(owner)
	r.cache.Set(key, coord, r.ttl)
	return coord
}

// Peek returns the coordinator only if one exists.
func (r *CoordinatorRegistry) Peek(owner uuid.UUID) (*preparation.Coordinator, bool) {
	if x, found := r.cache.Get(owner.String()); found {
		return x.(*preparation.Coordinator), true
	}
	return nil, false
}

func (r *CoordinatorRegistry) Len() int {
	return r.cache.ItemCount()
}
