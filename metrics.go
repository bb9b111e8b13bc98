package ipintel

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    lookupCounter   prometheus.Counter
//	    lookupHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordLookup(duration time.Duration, err error) {
//	    p.lookupCounter.Inc()
//	    p.lookupHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordLoad is called after the initial load of a data file.
	RecordLoad(duration time.Duration, err error)

	// RecordReload is called after each reload attempt.
	RecordReload(duration time.Duration, err error)

	// RecordLookup is called after each address resolution.
	RecordLookup(duration time.Duration, err error)

	// RecordValues is called after each property value read.
	// count is the number of weighted values returned.
	RecordValues(count int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(time.Duration, error)        {}
func (NoopMetricsCollector) RecordReload(time.Duration, error)      {}
func (NoopMetricsCollector) RecordLookup(time.Duration, error)      {}
func (NoopMetricsCollector) RecordValues(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	ReloadCount      atomic.Int64
	ReloadErrors     atomic.Int64
	LookupCount      atomic.Int64
	LookupErrors     atomic.Int64
	LookupTotalNanos atomic.Int64
	ValuesCount      atomic.Int64
	ValuesItems      atomic.Int64
	ValuesMisses     atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordReload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReload(duration time.Duration, err error) {
	b.ReloadCount.Add(1)
	if err != nil {
		b.ReloadErrors.Add(1)
	}
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(duration time.Duration, err error) {
	b.LookupCount.Add(1)
	b.LookupTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LookupErrors.Add(1)
	}
}

// RecordValues implements MetricsCollector.
func (b *BasicMetricsCollector) RecordValues(count int, duration time.Duration, err error) {
	b.ValuesCount.Add(1)
	b.ValuesItems.Add(int64(count))
	if err != nil {
		b.ValuesMisses.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		ReloadCount:    b.ReloadCount.Load(),
		ReloadErrors:   b.ReloadErrors.Load(),
		LookupCount:    b.LookupCount.Load(),
		LookupErrors:   b.LookupErrors.Load(),
		LookupAvgNanos: b.getAvgLookupNanos(),
		ValuesCount:    b.ValuesCount.Load(),
		ValuesItems:    b.ValuesItems.Load(),
		ValuesMisses:   b.ValuesMisses.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgLookupNanos() int64 {
	count := b.LookupCount.Load()
	if count == 0 {
		return 0
	}
	return b.LookupTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount      int64
	LoadErrors     int64
	ReloadCount    int64
	ReloadErrors   int64
	LookupCount    int64
	LookupErrors   int64
	LookupAvgNanos int64
	ValuesCount    int64
	ValuesItems    int64
	ValuesMisses   int64
}
