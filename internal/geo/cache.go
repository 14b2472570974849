package geo

import (
	"container/list"
	"sync"

	"github.com/paulmach/orb/geojson"
)

// ZoneCache buffers one dataset and keeps the zones of recent distances in an
// LRU, so repeated "create buffer" actions at the same distance skip the
// geometry work. Returned slices are shared and must not be modified.
type ZoneCache struct {
	dataset *geojson.FeatureCollection
	cache   *lruCache
}

// NewZoneCache creates a cache over dataset holding up to maxEntries
// distances.
func NewZoneCache(dataset *geojson.FeatureCollection, maxEntries int) *ZoneCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &ZoneCache{
		dataset: dataset,
		cache:   newLRUCache(maxEntries),
	}
}

// Dataset returns the source features.
func (c *ZoneCache) Dataset() *geojson.FeatureCollection {
	return c.dataset
}

// Zones returns the buffered zones for distance meters.
func (c *ZoneCache) Zones(distance float64) ([]Zone, error) {
	if err := ValidateDistance(distance); err != nil {
		return nil, err
	}
	if zones, ok := c.cache.get(distance); ok {
		return zones, nil
	}
	zones, err := BufferFeatures(c.dataset, distance)
	if err != nil {
		return nil, err
	}
	c.cache.put(distance, zones)
	return zones, nil
}

// lruCache holds zone sets keyed by distance. The front of order is the most
// recently used distance.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	byDist   map[float64]*list.Element
}

type cached struct {
	distance float64
	zones    []Zone
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		byDist:   make(map[float64]*list.Element),
	}
}

func (c *lruCache) get(distance float64) ([]Zone, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byDist[distance]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).zones, true
}

func (c *lruCache) put(distance float64, zones []Zone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byDist[distance]; ok {
		el.Value.(*cached).zones = zones
		c.order.MoveToFront(el)
		return
	}
	c.byDist[distance] = c.order.PushFront(&cached{distance: distance, zones: zones})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.byDist, oldest.Value.(*cached).distance)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
