package dataset

import (
	"fmt"

	"github.com/hupe1980/ipintel/internal/format"
)

// CollectionConfig controls how one collection is held when the data file is
// read from disk.
type CollectionConfig struct {
	// Loaded is the number of leading records read into memory at load.
	// Values at or above the record count load the whole collection.
	Loaded uint32 `yaml:"loaded"`
	// CacheSize is the number of other records kept in an LRU cache.
	CacheSize int `yaml:"cache_size"`
	// Concurrency is the number of file handles the collection may use at
	// once. The dataset's handle pool is sized by the largest value.
	Concurrency int `yaml:"concurrency"`
}

// Config selects how a data file is held.
type Config struct {
	// AllInMemory holds the whole file in memory.
	AllInMemory bool
	// UseMmap maps the file read-only instead of reading it. Requires
	// AllInMemory.
	UseMmap bool
	// UseTempFile reads a private copy of the file, so the original may be
	// replaced while the dataset is in use.
	UseTempFile bool
	// TempDir holds temp copies. Empty uses the system temp directory.
	TempDir string
	// Collections configures each collection by its position in the file
	// header. The Graphs entry also applies to the graph node sections.
	Collections [format.NumCollections]CollectionConfig
}

// MaxConcurrency returns the largest collection concurrency.
func (c *Config) MaxConcurrency() int {
	n := 0
	for _, cc := range c.Collections {
		n = max(n, cc.Concurrency)
	}
	return n
}

// Validate reports inconsistent settings as format.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.UseMmap && !c.AllInMemory {
		return fmt.Errorf("%w: mmap requires all in memory", format.ErrInvalidConfig)
	}
	if c.UseTempFile && c.AllInMemory {
		return fmt.Errorf("%w: temp file copies are only read in file mode", format.ErrInvalidConfig)
	}
	for i, cc := range c.Collections {
		if cc.CacheSize < 0 {
			return fmt.Errorf("%w: %s cache size %d", format.ErrInvalidConfig, format.Collection(i), cc.CacheSize)
		}
		if !c.AllInMemory && cc.Concurrency <= 0 {
			return fmt.Errorf("%w: %s concurrency %d in file mode", format.ErrInvalidConfig, format.Collection(i), cc.Concurrency)
		}
	}
	return nil
}
