// Package tilecache provides a memory-bounded tile cache that keeps tile
// samples in files of a cache directory.
//
// The cache is an optimization only: a tile that cannot be stored or read
// back is treated as a miss, never as an error. All operations are
// serialized by a single lock; the cost of tile I/O dominates.
package tilecache

import (
	"cmp"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/zeebo/blake3"
)

const DefaultThreshold = 0.75

var ErrInvalidConfig = errors.New("rasterpyramid: invalid cache config")

// Owner is an opaque handle for the producer that owns a set of tiles.
// Handles are minted by Register and invalidated by Release.
type Owner struct {
	id string
}

func (o Owner) ID() string { return o.id }

// Entry describes one cached tile.
type Entry struct {
	Owner      string
	Tile       raster.TileID
	Layout     raster.Layout
	Rect       image.Rectangle
	Size       int64
	LastAccess time.Time
	Cost       float64

	seq  uint64
	path string
}

// Stats holds cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Rejected  int64 // tiles not cached because they did not fit
	Entries   int
	Usage     int64
	Budget    int64
}

type key struct {
	owner string
	tile  raster.TileID
}

type cacheConfig struct {
	threshold float64
	order     func(a, b *Entry) int
	logger    *slog.Logger
}

type Option func(*cacheConfig)

// WithThreshold sets the fraction of the capacity the cache is trimmed to.
func WithThreshold(threshold float64) Option {
	return func(c *cacheConfig) { c.threshold = threshold }
}

// WithOrder sets the eviction order. Entries comparing lower are evicted
// first. The default evicts the least recently used entry first.
func WithOrder(order func(a, b *Entry) int) Option {
	return func(c *cacheConfig) { c.order = order }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *cacheConfig) { c.logger = logger }
}

// Cache is a memory-bounded, disk-spilling tile cache.
type Cache struct {
	mu sync.Mutex

	dir       string
	capacity  int64
	threshold float64
	order     func(a, b *Entry) int
	logger    *slog.Logger

	usage   int64
	seq     uint64
	entries map[key]*Entry
	owners  map[string]string // owner id -> name
	minted  uint64
	stats   Stats
}

// New creates a cache of capacity bytes that stores tile files in dir.
// The directory is created if it does not exist.
func New(dir string, capacity int64, opts ...Option) (*Cache, error) {
	config := cacheConfig{
		threshold: DefaultThreshold,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	if dir == "" {
		return nil, fmt.Errorf("%w: empty cache directory", ErrInvalidConfig)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrInvalidConfig, capacity)
	}
	if err := validThreshold(config.threshold); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:       dir,
		capacity:  capacity,
		threshold: config.threshold,
		order:     config.order,
		logger:    config.logger,
		entries:   make(map[key]*Entry),
		owners:    make(map[string]string),
	}, nil
}

func validThreshold(threshold float64) error {
	if !(threshold > 0 && threshold <= 1) {
		return fmt.Errorf("%w: threshold %v", ErrInvalidConfig, threshold)
	}
	return nil
}

// Register mints a new owner handle. The id is derived from the name, a
// high-resolution timestamp and a registration counter, so that files of
// different runs sharing a directory do not collide.
func (c *Cache) Register(name string) Owner {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.minted++
	buffer := []byte(name)
	buffer = binary.BigEndian.AppendUint64(buffer, uint64(time.Now().UnixNano()))
	buffer = binary.BigEndian.AppendUint64(buffer, c.minted)
	digest := blake3.Sum256(buffer)

	id := hex.EncodeToString(digest[:8])
	c.owners[id] = name
	return Owner{id: id}
}

// Release removes every entry of the owner and invalidates the handle.
// Further calls with the handle are no-ops.
func (c *Cache) Release(owner Owner) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeAll(owner)
	delete(c.owners, owner.id)
}

// Add caches a tile. If the owner already has an entry for the tile, its
// file is overwritten. A tile that does not fit the budget even after
// eviction is silently not cached.
func (c *Cache) Add(owner Owner, id raster.TileID, tile *raster.Raster) {
	c.AddWithCost(owner, id, tile, 0)
}

// AddWithCost is Add with a cost metric recorded for custom eviction orders.
func (c *Cache) AddWithCost(owner Owner, id raster.TileID, tile *raster.Raster, cost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.owners[owner.id]; !ok {
		return
	}

	k := key{owner: owner.id, tile: id}
	size := int64(len(tile.Data))

	// A tile larger than the whole budget is never cached and evicts
	// nothing but its own stale entry.
	if size > c.budget() {
		if entry, ok := c.entries[k]; ok {
			c.evict(entry)
		}
		c.stats.Rejected++
		c.logger.Debug("tilecache: tile not cached", "owner", owner.id, "tile", id, "size", size)
		return
	}

	if entry, ok := c.entries[k]; ok {
		if err := c.writeFile(entry.path, tile.Data); err != nil {
			c.unregister(entry)
			return
		}
		c.usage += size - entry.Size
		entry.Size = size
		entry.Layout = tile.Layout
		entry.Rect = tile.Rect
		entry.Cost = cost
		c.touch(entry)
		if c.usage > c.budget() {
			c.memoryControl(0)
		}
		return
	}

	if c.usage+size > c.budget() {
		c.memoryControl(size)
	}
	if c.usage+size > c.budget() {
		c.stats.Rejected++
		c.logger.Debug("tilecache: tile not cached", "owner", owner.id, "tile", id, "size", size)
		return
	}

	entry := &Entry{
		Owner:  owner.id,
		Tile:   id,
		Layout: tile.Layout,
		Rect:   tile.Rect,
		Size:   size,
		Cost:   cost,
		path:   filepath.Join(c.dir, fmt.Sprintf("%s-%d-%d", owner.id, id.X, id.Y)),
	}
	if err := c.writeFile(entry.path, tile.Data); err != nil {
		return
	}
	c.touch(entry)
	c.entries[k] = entry
	c.usage += size
}

// writeFile writes data to path; on failure the partial file is deleted.
func (c *Cache) writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		c.logger.Debug("tilecache: write failed", "path", path, "error", err)
		os.Remove(path)
		return err
	}
	return nil
}

func (c *Cache) touch(entry *Entry) {
	c.seq++
	entry.seq = c.seq
	entry.LastAccess = time.Now()
}

// Get returns a cached tile. Misses and read failures both report false.
func (c *Cache) Get(owner Owner, id raster.TileID) (*raster.Raster, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key{owner: owner.id, tile: id}]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.path)
	if err == nil && int64(len(data)) != entry.Size {
		err = fmt.Errorf("size %d, want %d", len(data), entry.Size)
	}
	if err != nil {
		c.logger.Debug("tilecache: read failed", "path", entry.path, "error", err)
		c.evict(entry)
		c.stats.Misses++
		return nil, false
	}

	c.touch(entry)
	c.stats.Hits++
	return &raster.Raster{Layout: entry.Layout, Rect: entry.Rect, Data: data}, true
}

// Remove deletes one tile of the owner.
func (c *Cache) Remove(owner Owner, id raster.TileID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key{owner: owner.id, tile: id}]; ok {
		c.evict(entry)
	}
}

// RemoveAll deletes every tile of the owner.
func (c *Cache) RemoveAll(owner Owner) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeAll(owner)
}

func (c *Cache) removeAll(owner Owner) {
	for k, entry := range c.entries {
		if k.owner == owner.id {
			c.evict(entry)
		}
	}
}

// MemoryControl evicts entries until usage is at most capacity*threshold.
func (c *Cache) MemoryControl() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.memoryControl(0)
}

// memoryControl evicts entries in eviction order until usage+reserve fits
// the budget or the cache is empty.
func (c *Cache) memoryControl(reserve int64) {
	budget := c.budget()
	if c.usage+reserve <= budget {
		return
	}

	victims := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		victims = append(victims, entry)
	}
	slices.SortFunc(victims, c.compare)

	evicted := 0
	for _, entry := range victims {
		if c.usage+reserve <= budget {
			break
		}
		c.evict(entry)
		c.stats.Evictions++
		evicted++
	}
	c.logger.Debug("tilecache: memory control", "evicted", evicted, "usage", c.usage, "budget", budget)
}

func (c *Cache) compare(a, b *Entry) int {
	if c.order != nil {
		if r := c.order(a, b); r != 0 {
			return r
		}
	}
	return cmp.Compare(a.seq, b.seq)
}

// evict deletes the entry and its file. Removal of an already missing
// file is not an error.
func (c *Cache) evict(entry *Entry) {
	if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
		c.logger.Debug("tilecache: remove failed", "path", entry.path, "error", err)
	}
	c.unregister(entry)
}

func (c *Cache) unregister(entry *Entry) {
	k := key{owner: entry.Owner, tile: entry.Tile}
	if c.entries[k] == entry {
		delete(c.entries, k)
		c.usage -= entry.Size
	}
}

// Flush evicts everything.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries {
		c.evict(entry)
	}
}

// SetCapacity changes the capacity. Shrinking evicts immediately.
func (c *Cache) SetCapacity(capacity int64) error {
	if capacity < 0 {
		return fmt.Errorf("%w: capacity %d", ErrInvalidConfig, capacity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	shrink := capacity < c.capacity
	c.capacity = capacity
	if shrink {
		c.memoryControl(0)
	}
	return nil
}

// SetThreshold changes the threshold. Shrinking evicts immediately.
func (c *Cache) SetThreshold(threshold float64) error {
	if err := validThreshold(threshold); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	shrink := threshold < c.threshold
	c.threshold = threshold
	if shrink {
		c.memoryControl(0)
	}
	return nil
}

func (c *Cache) budget() int64 {
	return int64(float64(c.capacity) * c.threshold)
}

func (c *Cache) Capacity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

func (c *Cache) Threshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threshold
}

// Usage returns the number of bytes currently cached.
func (c *Cache) Usage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	stats.Usage = c.usage
	stats.Budget = c.budget()
	return stats
}

// Entries returns a snapshot of all entries in eviction order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, c.compare)

	result := make([]Entry, len(entries))
	for i, entry := range entries {
		result[i] = *entry
	}
	return result
}
