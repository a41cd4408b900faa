package p2p

import (
	"sync"
	"time"

	log "github.com/koinos/koinos-log-golang"
	"github.com/multiformats/go-multihash"
)

type void struct{}

// RejectionCacheItem is an item in the rejection cache
type RejectionCacheItem struct {
	transactionID string
	timeAdded     time.Time
}

// RejectionCache remembers recently rejected transactions so repeated
// deliveries can be dropped without verifying them again
type RejectionCache struct {
	transactionMap   map[string]void
	transactionItems []*RejectionCacheItem
	cacheDuration    time.Duration
	mu               sync.Mutex
}

// NewRejectionCache creates a new rejection cache. A zero duration disables the cache.
func NewRejectionCache(cacheDuration time.Duration) *RejectionCache {
	return &RejectionCache{
		transactionMap:   make(map[string]void),
		transactionItems: make([]*RejectionCacheItem, 0),
		cacheDuration:    cacheDuration,
	}
}

func (rc *RejectionCache) addItem(item *RejectionCacheItem) {
	// Items are kept sorted by time added so pruning can stop at the first live item
	numItems := len(rc.transactionItems)
	if numItems != 0 && item.timeAdded.Before(rc.transactionItems[numItems-1].timeAdded) {
		panic("RejectionCache.addItem: transaction is older than the last transaction")
	}

	rc.transactionMap[item.transactionID] = void{}
	rc.transactionItems = append(rc.transactionItems, item)
}

// Add records a rejected transaction
func (rc *RejectionCache) Add(id multihash.Multihash) {
	if rc.cacheDuration <= 0 {
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	rc.prune(now)

	if _, ok := rc.transactionMap[string(id)]; ok {
		return
	}

	rc.addItem(&RejectionCacheItem{
		transactionID: string(id),
		timeAdded:     now,
	})

	log.Debugf("Items currently in rejection cache: %d", len(rc.transactionItems))
}

// Contains returns true if the transaction was rejected within the cache duration
func (rc *RejectionCache) Contains(id multihash.Multihash) bool {
	if rc.cacheDuration <= 0 {
		return false
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.prune(time.Now())

	_, ok := rc.transactionMap[string(id)]
	return ok
}

// Len returns the number of transactions in the cache
func (rc *RejectionCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return len(rc.transactionItems)
}

func (rc *RejectionCache) prune(pruneTime time.Time) {
	pruneCount := 0
	for _, item := range rc.transactionItems {
		if pruneTime.Sub(item.timeAdded) <= rc.cacheDuration {
			break
		}
		delete(rc.transactionMap, item.transactionID)
		pruneCount++
	}

	if pruneCount > 0 {
		rc.transactionItems = rc.transactionItems[pruneCount:]
		log.Debugf("RejectionCache.prune: pruned %d transactions", pruneCount)
	}
}
