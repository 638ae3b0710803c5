package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/MikeSquared-Agency/Priority/internal/metrics"
	"github.com/MikeSquared-Agency/Priority/internal/store"
)

// hashView is the part of a snapshot that determines results. Timestamps
// are left out so rewriting the same judgment does not change the key.
type hashView struct {
	Project      string          `json:"p"`
	Criteria     [][2]string     `json:"c"`
	Alternatives []string        `json:"a"`
	Evaluators   []hashEvaluator `json:"e"`
	Comparisons  []hashJudgment  `json:"j"`
	Threshold    float64         `json:"t"`
}

type hashEvaluator struct {
	ID     string  `json:"id"`
	Weight float64 `json:"w"`
}

type hashJudgment struct {
	Evaluator string  `json:"e"`
	Parent    string  `json:"p"`
	A         string  `json:"a"`
	B         string  `json:"b"`
	Value     float64 `json:"v"`
}

// SnapshotHash returns the hex SHA-256 of the result-relevant content of
// snap. Store snapshots are already ordered, so equal content hashes equally.
func SnapshotHash(snap *store.Snapshot, threshold float64) string {
	v := hashView{Project: snap.Project.ID.String(), Threshold: threshold}
	for _, c := range snap.Criteria {
		v.Criteria = append(v.Criteria, [2]string{c.ID, c.ParentID})
	}
	for _, a := range snap.Alternatives {
		v.Alternatives = append(v.Alternatives, a.ID)
	}
	for _, e := range snap.Evaluators {
		v.Evaluators = append(v.Evaluators, hashEvaluator{ID: e.ID, Weight: e.Weight})
	}
	for _, c := range snap.Comparisons {
		v.Comparisons = append(v.Comparisons, hashJudgment{
			Evaluator: c.EvaluatorID,
			Parent:    c.ParentID,
			A:         c.ElementA,
			B:         c.ElementB,
			Value:     c.Value,
		})
	}
	data, _ := json.Marshal(v)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CacheStats describes the memo cache.
type CacheStats struct {
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

type cacheEntry struct {
	hash    string
	results *Results
	used    uint64
}

// resultCache holds the latest results per project, keyed by snapshot hash.
// When full the least recently used project is evicted. A capacity of zero
// disables caching.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*cacheEntry
	clock    uint64
	hits     uint64
	misses   uint64
}

func newResultCache(capacity int) *resultCache {
	return &resultCache{capacity: capacity, entries: make(map[string]*cacheEntry)}
}

func (c *resultCache) get(projectID, hash string) (*Results, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[projectID]
	if !ok || e.hash != hash {
		c.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}
	c.clock++
	e.used = c.clock
	c.hits++
	metrics.CacheHits.Inc()
	return e.results, true
}

func (c *resultCache) put(projectID, hash string, r *Results) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[projectID]; !ok && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.clock++
	c.entries[projectID] = &cacheEntry{hash: hash, results: r, used: c.clock}
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

func (c *resultCache) evictOldest() {
	var oldest string
	var oldestUse uint64
	for id, e := range c.entries {
		if oldest == "" || e.used < oldestUse {
			oldest, oldestUse = id, e.used
		}
	}
	delete(c.entries, oldest)
}

func (c *resultCache) invalidate(projectID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[projectID]
	delete(c.entries, projectID)
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return ok
}

func (c *resultCache) flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*cacheEntry)
	metrics.CacheEntries.Set(0)
	return n
}

func (c *resultCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries:  len(c.entries),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}
