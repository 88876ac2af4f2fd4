package oracle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/quant-ninja/internal/metrics"
	"github.com/yourusername/quant-ninja/internal/models"
)

// FrameKey identifies one extraction: the frame contents and the model that read it
type FrameKey struct {
	Digest string
	Model  string
}

// NewFrameKey hashes frame bytes into a cache key
func NewFrameKey(frame []byte, model string) FrameKey {
	sum := sha256.Sum256(frame)
	return FrameKey{Digest: hex.EncodeToString(sum[:]), Model: model}
}

// String returns string representation of cache key
func (k FrameKey) String() string {
	return fmt.Sprintf("%s:%s", k.Model, k.Digest)
}

// ExtractionCache keeps recent screenshot extractions so an unchanged
// viewport is not sent to the oracle again
type ExtractionCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewExtractionCache creates a new extraction cache
func NewExtractionCache(ttl time.Duration, maxSize int) *ExtractionCache {
	return &ExtractionCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a copy of a cached extraction
func (ec *ExtractionCache) Get(key FrameKey) (*Extraction, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if result, found := ec.cache.Get(key.String()); found {
		if extraction, ok := result.(*Extraction); ok {
			ec.hitCount++
			ec.updateMetrics()
			return copyExtraction(extraction), true
		}
	}

	ec.missCount++
	ec.updateMetrics()
	return nil, false
}

// Set stores an extraction
func (ec *ExtractionCache) Set(key FrameKey, extraction *Extraction) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.cache.ItemCount() >= ec.maxSize {
		ec.cache.DeleteExpired()
		if ec.cache.ItemCount() >= ec.maxSize {
			ec.cache.Flush()
		}
	}

	ec.cache.Set(key.String(), copyExtraction(extraction), ec.ttl)
}

// Stats returns cache statistics
func (ec *ExtractionCache) Stats() (hits, misses uint64, ratio float64) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.stats()
}

func (ec *ExtractionCache) stats() (hits, misses uint64, ratio float64) {
	hits = ec.hitCount
	misses = ec.missCount
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (ec *ExtractionCache) ItemCount() int {
	return ec.cache.ItemCount()
}

// updateMetrics must be called with mu held
func (ec *ExtractionCache) updateMetrics() {
	_, _, ratio := ec.stats()
	metrics.UpdateFrameCacheHitRatio(ratio)
}

func copyExtraction(e *Extraction) *Extraction {
	out := *e
	if e.Candidates != nil {
		out.Candidates = make([]models.Observation, len(e.Candidates))
		for i, c := range e.Candidates {
			c.Sources = append([]models.Source(nil), c.Sources...)
			out.Candidates[i] = c
		}
	}
	return &out
}
