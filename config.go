package ipintel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/hupe1980/ipintel/internal/dataset"
	"github.com/hupe1980/ipintel/internal/format"
	"gopkg.in/yaml.v3"
)

// Config selects how the data file is held: fully in memory, memory mapped,
// or read from disk with per-collection resident prefixes and caches.
type Config = dataset.Config

// CollectionConfig controls one collection in file mode.
type CollectionConfig = dataset.CollectionConfig

// DefaultConcurrency is the number of file handles a collection may use in
// the built-in presets.
const DefaultConcurrency = 10

// Preset names accepted by PresetConfig and the "preset" key of a config file.
const (
	PresetInMemory        = "in-memory"
	PresetHighPerformance = "high-performance"
	PresetLowMemory       = "low-memory"
	PresetSingleLoaded    = "single-loaded"
	PresetBalanced        = "balanced"
	PresetBalancedTemp    = "balanced-temp"
	PresetDefault         = "default"
)

func uniform(loaded uint32, cacheSize int) Config {
	var c Config
	for i := range c.Collections {
		c.Collections[i] = CollectionConfig{Loaded: loaded, CacheSize: cacheSize, Concurrency: DefaultConcurrency}
	}
	return c
}

// InMemoryConfig reads the whole file into memory.
func InMemoryConfig() Config {
	return Config{AllInMemory: true}
}

// MmapConfig maps the whole file read-only.
func MmapConfig() Config {
	return Config{AllInMemory: true, UseMmap: true}
}

// HighPerformanceConfig loads every collection into memory at load time but
// keeps the file handles of file mode.
func HighPerformanceConfig() Config {
	return uniform(math.MaxUint32, 0)
}

// LowMemoryConfig reads every record from the file on access.
func LowMemoryConfig() Config {
	return uniform(0, 0)
}

// SingleLoadedConfig keeps the first record of every collection resident
// and reads the rest from the file.
func SingleLoadedConfig() Config {
	return uniform(1, 0)
}

// BalancedConfig keeps small collections resident and caches the most
// used records of the large ones.
func BalancedConfig() Config {
	c := uniform(math.MaxUint32, 0)
	c.Collections[format.Strings] = CollectionConfig{Loaded: 100, CacheSize: 10000, Concurrency: DefaultConcurrency}
	c.Collections[format.Properties] = CollectionConfig{Loaded: math.MaxUint32, Concurrency: DefaultConcurrency}
	c.Collections[format.Values] = CollectionConfig{Loaded: 500, CacheSize: 1000, Concurrency: DefaultConcurrency}
	c.Collections[format.Profiles] = CollectionConfig{Loaded: 100, CacheSize: 1000, Concurrency: DefaultConcurrency}
	c.Collections[format.Graphs] = CollectionConfig{Loaded: 1000, CacheSize: 10000, Concurrency: DefaultConcurrency}
	c.Collections[format.ProfileGroups] = CollectionConfig{Loaded: 100, CacheSize: 10000, Concurrency: DefaultConcurrency}
	c.Collections[format.ProfileOffsets] = CollectionConfig{Loaded: 100, CacheSize: 1000, Concurrency: DefaultConcurrency}
	return c
}

// DefaultConfig is BalancedConfig.
func DefaultConfig() Config {
	return BalancedConfig()
}

// BalancedTempConfig is BalancedConfig reading a private temp copy of the
// file, so the original can be replaced by an update while in use.
func BalancedTempConfig() Config {
	c := BalancedConfig()
	c.UseTempFile = true
	return c
}

// PresetConfig returns the preset with the given name.
func PresetConfig(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetInMemory:
		return InMemoryConfig(), nil
	case "mmap":
		return MmapConfig(), nil
	case PresetHighPerformance:
		return HighPerformanceConfig(), nil
	case PresetLowMemory:
		return LowMemoryConfig(), nil
	case PresetSingleLoaded:
		return SingleLoadedConfig(), nil
	case PresetBalanced, PresetDefault, "":
		return BalancedConfig(), nil
	case PresetBalancedTemp:
		return BalancedTempConfig(), nil
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
}

// fileConfig is the YAML form of Config. Pointer fields distinguish "not
// set" from zero values so that only given keys override the preset.
type fileConfig struct {
	Preset      string                        `yaml:"preset"`
	AllInMemory *bool                         `yaml:"all_in_memory"`
	UseMmap     *bool                         `yaml:"use_mmap"`
	UseTempFile *bool                         `yaml:"use_temp_file"`
	TempDir     *string                       `yaml:"temp_dir"`
	Collections map[string]collectionOverride `yaml:"collections"`
}

type collectionOverride struct {
	Loaded      *uint32 `yaml:"loaded"`
	CacheSize   *int    `yaml:"cache_size"`
	Concurrency *int    `yaml:"concurrency"`
}

// ParseConfig reads a YAML configuration:
//
//	preset: balanced
//	use_temp_file: true
//	temp_dir: /var/tmp/ipintel
//	collections:
//	  strings:
//	    loaded: 1000
//	    cache_size: 50000
//
// Collection names are those of the file header (strings, components, maps,
// properties, values, profiles, graphs, profileGroups, profileOffsets). The
// result is validated.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg, err := PresetConfig(fc.Preset)
	if err != nil {
		return Config{}, err
	}
	if fc.AllInMemory != nil {
		cfg.AllInMemory = *fc.AllInMemory
	}
	if fc.UseMmap != nil {
		cfg.UseMmap = *fc.UseMmap
	}
	if fc.UseTempFile != nil {
		cfg.UseTempFile = *fc.UseTempFile
	}
	if fc.TempDir != nil {
		cfg.TempDir = *fc.TempDir
	}
	for name, o := range fc.Collections {
		c, ok := collectionByName(name)
		if !ok {
			return Config{}, fmt.Errorf("%w: unknown collection %q", ErrInvalidConfig, name)
		}
		cc := &cfg.Collections[c]
		if o.Loaded != nil {
			cc.Loaded = *o.Loaded
		}
		if o.CacheSize != nil {
			cc.CacheSize = *o.CacheSize
		}
		if o.Concurrency != nil {
			cc.Concurrency = *o.Concurrency
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file. See ParseConfig.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Config{}, fmt.Errorf("%w: %w", ErrFileIO, err)
	}
	return ParseConfig(data)
}

func collectionByName(name string) (format.Collection, bool) {
	for i := range format.NumCollections {
		c := format.Collection(i)
		if strings.EqualFold(c.String(), name) {
			return c, true
		}
	}
	return 0, false
}
