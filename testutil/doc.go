// Package testutil provides testing utilities for ipintel.
//
// This package is intended for use in tests and benchmarks only.
// It writes synthetic data files in the binary layout the engine reads,
// and generates random addresses for equality and determinism checks.
//
// # Data Files
//
//	b := testutil.NewBuilder()
//	loc := b.Component(1, "Location")
//	country := b.Property(loc, "Country", format.ValueTypeString)
//	us := b.Profile(loc, 1001, map[int][]string{country: {"US"}})
//	b.Graph(4, loc, testutil.Null()).Range("8.8.8.0/24", testutil.Single(us))
//	path := b.WriteFile(t)
//
// NewFixture returns a small complete data file used across the tests.
// Compress and WriteCompressed produce the compressed distributions.
//
// # Random Addresses
//
//	rng := testutil.NewRNG(seed)
//	addrs := rng.Addrs(1000, testutil.FixturePrefixes()...)
package testutil
