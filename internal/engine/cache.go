package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

// sourceKey identifies one version of a file on disk.
type sourceKey struct {
	path    string
	size    int64
	modTime int64
}

// Cache memoizes file loads by path, size and modification time. A changed
// file is reloaded on the next Get.
type Cache struct {
	loader Loader
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
	// loads counts actual parses; exposed for metrics and tests
	loads int
	// OnLoad, when set, observes every completed parse.
	OnLoad func(path string, rows int, took time.Duration)
}

type cacheEntry struct {
	key sourceKey
	ds  *Dataset
}

// NewCache returns an empty cache that parses with loader.
func NewCache(loader Loader, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New("engine")
		logger.SetLevel(log.OFF)
	}
	return &Cache{
		loader:  loader,
		logger:  logger,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the dataset for path, parsing it only when the file changed
// since the last call.
func (c *Cache) Get(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &SourceNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	key := sourceKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[path]; ok && e.key == key {
		return e.ds, nil
	}

	start := time.Now()
	c.logger.Infof("Loading %s ...", path)
	ds, err := c.loader.LoadFile(path)
	if err != nil {
		c.logger.Errorf("Load %s failed: %v", path, err)
		return nil, err
	}
	took := time.Since(start)
	c.entries[path] = cacheEntry{key: key, ds: ds}
	c.loads++
	c.logger.Infof("Load Complete. Rows: %d. Time: %v", ds.Len(), took)
	if c.OnLoad != nil {
		c.OnLoad(path, ds.Len(), took)
	}
	return ds, nil
}

// Invalidate forgets path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Loads returns how many times a file was actually parsed.
func (c *Cache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}
