package darkness

import (
	"image"
	"sync"

	"github.com/elliotchance/orderedmap/v2"
)

// DefaultCacheSize bounds the number of decoded images held at once.
const DefaultCacheSize = 32

// Cache holds decoded images keyed by record id. When full, the image
// inserted first is evicted. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	images   *orderedmap.OrderedMap[int64, image.Image]
}

// NewCache creates a cache holding up to capacity images.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		images:   orderedmap.NewOrderedMap[int64, image.Image](),
	}
}

// Get returns the cached image for a record.
func (c *Cache) Get(id int64) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images.Get(id)
}

// Put stores an image, evicting the oldest entries beyond capacity.
func (c *Cache) Put(id int64, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.images.Delete(id)
	c.images.Set(id, img)
	for c.images.Len() > c.capacity {
		oldest := c.images.Front()
		c.images.Delete(oldest.Key)
	}
}

// Invalidate drops a record's image, e.g. after its file was deleted.
func (c *Cache) Invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images.Delete(id)
}

// Len is the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images.Len()
}
