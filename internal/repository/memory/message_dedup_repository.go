package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// MessageDedupRepository remembers recently handled inbound message ids so
// a gateway redelivery is answered only once.
type MessageDedupRepository struct {
	cache *cache.Cache
}

func NewMessageDedupRepository(ttl time.Duration) *MessageDedupRepository {
	return &MessageDedupRepository{
		cache: cache.New(ttl, 2*ttl),
	}
}

// FirstSeen records id and reports whether it was new. Empty ids are
// always treated as new.
func (r *MessageDedupRepository) FirstSeen(id string) bool {
	if id == "" {
		return true
	}
	return r.cache.Add(id, struct{}{}, cache.DefaultExpiration) == nil
}

func (r *MessageDedupRepository) Forget(id string) {
	r.cache.Delete(id)
}
