package ipintel

import (
	"log/slog"

	ipfs "github.com/hupe1980/ipintel/internal/fs"
)

// FileSystem abstracts the file operations used to load data files.
// Memory mapping always uses the operating system directly.
type FileSystem = ipfs.FileSystem

// DefaultValueSeparator joins values in ValuesString.
const DefaultValueSeparator = "|"

type options struct {
	config           Config
	properties       []string
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	ioLimit          int64
	maxWorkers       int64
	fs               FileSystem
	tempDir          string
	maxValues        int
	separator        string
}

// Option configures Engine constructor and reload behavior.
type Option func(*options)

// WithConfig sets how the data file is held. The default is DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithProperties restricts the engine to the named properties. Names are
// matched case-insensitively; names missing from the data file are
// ignored, but at least one must exist. Without this option every property
// is available.
func WithProperties(names ...string) Option {
	return func(o *options) {
		o.properties = append([]string(nil), names...)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ipintel.BasicMetricsCollector{}
//	eng, _ := ipintel.Open("ipi.dat", ipintel.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Lookups: %d, Avg latency: %dns\n", stats.LookupCount, stats.LookupAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := ipintel.NewJSONLogger(slog.LevelInfo)
//	eng, _ := ipintel.Open("ipi.dat", ipintel.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryLimit caps the bytes held by memory-resident collections and
// record caches. Loads that would exceed it fail with
// ErrInsufficientMemory. Zero only tracks usage.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles reads from the data file to bytes per second.
// Zero is unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithMaxBackgroundWorkers sets how many collections are built in parallel
// during a load. Defaults to 4.
func WithMaxBackgroundWorkers(n int) Option {
	return func(o *options) {
		o.maxWorkers = int64(n)
	}
}

// WithFileSystem replaces the file system used to open data files.
func WithFileSystem(fsys FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithTempDir sets the directory of temp file copies. It overrides the
// TempDir of the configuration.
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// WithMaxValues limits the number of values Results.Values returns for a
// property. A property with more values yields a *NoValueError with
// NoValueReasonTooManyValues. Zero is unlimited.
func WithMaxValues(n int) Option {
	return func(o *options) {
		o.maxValues = n
	}
}

// WithValueSeparator sets the default separator of Results.ValuesString.
func WithValueSeparator(sep string) Option {
	return func(o *options) {
		o.separator = sep
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		config:           DefaultConfig(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		maxWorkers:       4,
		separator:        DefaultValueSeparator,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.tempDir != "" {
		o.config.TempDir = o.tempDir
	}
	return o
}
