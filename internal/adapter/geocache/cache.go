// Package geocache persists geocoding results between runs so repeat
// locations never hit the network twice, across any number of pipeline
// invocations.
package geocache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aerowatch/uas-sighting-etl/internal/domain"
	"github.com/aerowatch/uas-sighting-etl/internal/observability"
)

var clock = clockwork.NewRealClock()

// SetClock replaces the package clock, for tests.
func SetClock(c clockwork.Clock) {
	clock = c
}

// entry is the on-disk shape of one cached location.
type entry struct {
	Lon        float64   `json:"lon"`
	Lat        float64   `json:"lat"`
	InsertedAt time.Time `json:"inserted_at"`
}

func (e entry) valid() bool {
	return !math.IsNaN(e.Lon) && !math.IsInf(e.Lon, 0) &&
		!math.IsNaN(e.Lat) && !math.IsInf(e.Lat, 0) &&
		e.Lon >= -180 && e.Lon <= 180 &&
		e.Lat >= -90 && e.Lat <= 90
}

// Cache maps normalized location keys to coordinates, backed by a JSON file.
// Safe for concurrent use.
type Cache struct {
	path    string
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]entry
}

// Load opens the cache at path. A missing file yields an empty cache; a
// corrupt or unreadable one is logged and likewise treated as empty, since
// losing the cache only costs repeat lookups. Invalid entries are dropped.
func Load(path string, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	c := &Cache{
		path:    path,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]entry),
	}

	dropped := 0
	for key, e := range readEntries(path, logger) {
		if key == "" || !e.valid() {
			dropped++
			continue
		}
		c.entries[key] = e
	}
	if dropped > 0 {
		logger.Warn("dropped invalid cache entries", "count", dropped, "path", path)
		metrics.CacheDroppedRows.Add(float64(dropped))
	}
	logger.Info("geocode cache loaded", "entries", len(c.entries), "path", path)
	return c
}

func readEntries(path string, logger *slog.Logger) map[string]entry {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		logger.Warn("cache file unreadable, starting empty", "path", path, "error", err)
		return nil
	}
	var raw map[string]entry
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("cache file corrupt, starting empty", "path", path, "error", err)
		return nil
	}
	return raw
}

// Lookup returns the cached coordinate for a key.
func (c *Cache) Lookup(key string) (domain.Coordinate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return domain.Coordinate{Lon: e.Lon, Lat: e.Lat}, true
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()
	return domain.Coordinate{}, false
}

// Store records a freshly geocoded coordinate. The entry is kept in memory
// until Save is called.
func (c *Cache) Store(key string, coord domain.Coordinate) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{Lon: coord.Lon, Lat: coord.Lat, InsertedAt: clock.Now().UTC()}
}

// Len returns the number of cached locations.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save writes the cache back to disk. Entries another process wrote since
// Load are merged in first, with in-memory entries winning on conflict. The
// file is written atomically with owner-only permissions.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Disk entries pass the same validation Load applies, so a foreign
	// writer's garbage is not persisted back.
	merged := make(map[string]entry, len(c.entries))
	for key, e := range readEntries(c.path, c.logger) {
		if key == "" || !e.valid() {
			continue
		}
		merged[key] = e
	}
	for key, e := range c.entries {
		merged[key] = e
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal geocode cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace geocode cache: %w", err)
	}
	c.logger.Info("geocode cache saved", "entries", len(merged), "path", c.path)
	return nil
}
