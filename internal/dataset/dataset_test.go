package dataset

import (
	"bytes"
	"context"
	"math"
	"net/netip"
	"os"
	"runtime"
	"testing"

	"github.com/hupe1980/ipintel/internal/compress"
	"github.com/hupe1980/ipintel/internal/format"
	ipfs "github.com/hupe1980/ipintel/internal/fs"
	"github.com/hupe1980/ipintel/internal/resource"
	"github.com/hupe1980/ipintel/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileConfig(loaded uint32, cacheSize int) Config {
	var c Config
	for i := range c.Collections {
		c.Collections[i] = CollectionConfig{Loaded: loaded, CacheSize: cacheSize, Concurrency: 2}
	}
	return c
}

// country resolves the Country of ip through the dataset.
func country(t *testing.T, d *Dataset, ip string) []string {
	t.Helper()
	ctx := context.Background()
	idx := d.RequiredIndex(testutil.PropCountry)
	require.GreaterOrEqual(t, idx, 0)
	prop := d.Available()[idx]

	comp := d.Components()[prop.ComponentIndex]
	ref, ok, err := d.Graphs().Evaluate(ctx, comp.ID, netip.MustParseAddr(ip).AsSlice())
	require.NoError(t, err)
	require.True(t, ok)

	vals, _, err := d.Resolver().Values(ctx, ref, prop.Record, nil)
	require.NoError(t, err)
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		name, err := d.ValueName(ctx, v.ValueIndex)
		require.NoError(t, err)
		out = append(out, name)
	}
	return out
}

func TestLoadMemory(t *testing.T) {
	d, err := LoadMemory(context.Background(), testutil.NewFixture().MustBuild(t), Options{})
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, SourceMemory, d.Source())
	assert.Equal(t, KindMemory, d.Kind())
	assert.True(t, d.Resident())
	assert.Equal(t, uint8(1), d.Header().VersionMajor)
	assert.Equal(t, uint8(2), d.Header().VersionMinor)
	assert.Equal(t, "2026-01-05", d.Header().Published.Time().Format("2006-01-02"))
	assert.NotZero(t, d.Fingerprint())
	assert.Len(t, d.Graphs(), 4)

	assert.Equal(t, []string{
		"AccuracyRadius", "AsnRank", "Country", "CountryJavaScript", "IpRangeEnd",
		"IpRangeStart", "IsEu", "Latitude", "RegisteredName",
	}, d.AvailableNames())
	assert.Equal(t, 2, d.RequiredIndex("country"))
	assert.Equal(t, -1, d.RequiredIndex("Missing"))
	assert.Equal(t, []uint8{0, 1}, d.AvailableComponents())

	require.Len(t, d.Components(), 2)
	assert.Equal(t, "Location", d.Components()[0].Name)
	assert.False(t, d.Components()[0].IsDynamic())
	assert.True(t, d.Components()[1].IsDynamic())

	js := d.EvidenceProperties(d.RequiredIndex(testutil.PropCountry))
	require.Len(t, js, 1)
	assert.Equal(t, testutil.PropCountryJavaScript, d.Properties()[js[0]].Name)
	assert.Empty(t, d.EvidenceProperties(d.RequiredIndex(testutil.PropLatitude)))
	assert.Nil(t, d.EvidenceProperties(99))

	assert.Equal(t, []string{"US"}, country(t, d, "8.8.8.8"))
	assert.Equal(t, []string{"GB", "DE"}, country(t, d, "81.2.3.4"))
	assert.Empty(t, country(t, d, "1.2.3.4"))
}

func TestLoadMemory_RequiredProperties(t *testing.T) {
	data := testutil.NewFixture().MustBuild(t)

	d, err := LoadMemory(context.Background(), data, Options{Properties: []string{"country", " Latitude ", "Nope"}})
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, []string{"Country", "Latitude"}, d.AvailableNames())
	assert.True(t, d.ComponentAvailable(0))
	assert.False(t, d.ComponentAvailable(1))

	_, err = LoadMemory(context.Background(), data, Options{Properties: []string{"Nope"}})
	assert.ErrorIs(t, err, format.ErrInvalidConfig)
}

func TestLoadFile_Backings(t *testing.T) {
	path := testutil.NewFixture().WriteFile(t)

	tests := []struct {
		name     string
		cfg      Config
		kind     string
		resident bool
	}{
		{"in memory", Config{AllInMemory: true}, KindMemory, true},
		{"low memory", fileConfig(0, 0), KindFile, false},
		{"single loaded", fileConfig(1, 0), KindFile, false},
		{"balanced", fileConfig(2, 8), KindFile, false},
		{"high performance", fileConfig(math.MaxUint32, 0), KindFile, true},
	}
	if runtime.GOOS != "windows" {
		tests = append(tests, struct {
			name     string
			cfg      Config
			kind     string
			resident bool
		}{"mmap", Config{AllInMemory: true, UseMmap: true}, KindMmap, true})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := resource.NewController(resource.Config{MaxLoaders: 4})
			ffs := ipfs.NewFaultyFS(nil)

			d, err := LoadFile(context.Background(), path, Options{Config: tt.cfg, FS: ffs, Resources: rc})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind())
			assert.Equal(t, tt.resident, d.Resident())
			assert.Equal(t, path, d.Source())

			for range 2 {
				assert.Equal(t, []string{"US"}, country(t, d, "8.8.8.8"))
				assert.Equal(t, []string{"US"}, country(t, d, "2001:4860::8888"))
				assert.Equal(t, []string{"GB"}, country(t, d, "10.1.1.1"))
			}

			require.NoError(t, d.Close())
			assert.Zero(t, rc.MemoryUsage())
			assert.Zero(t, ffs.OpenFiles())
			assert.Zero(t, d.OpenHandles())
		})
	}
}

func TestLoadFile_CacheStats(t *testing.T) {
	path := testutil.NewFixture().WriteFile(t)
	d, err := LoadFile(context.Background(), path, Options{Config: fileConfig(0, 64)})
	require.NoError(t, err)
	defer d.Close()

	country(t, d, "8.8.8.8")
	first := d.CacheStats()
	country(t, d, "8.8.8.8")
	second := d.CacheStats()

	assert.Positive(t, first.Misses)
	assert.Equal(t, first.Misses, second.Misses)
	assert.Greater(t, second.Hits, first.Hits)
}

func TestLoadFile_TempCopy(t *testing.T) {
	path := testutil.NewFixture().WriteFile(t)
	dir := t.TempDir()
	cfg := fileConfig(0, 0)
	cfg.UseTempFile = true
	cfg.TempDir = dir

	d, err := LoadFile(context.Background(), path, Options{Config: cfg})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "ipintel-")

	// The original may be replaced while the copy is read.
	require.NoError(t, os.Remove(path))
	assert.Equal(t, []string{"US"}, country(t, d, "8.8.8.8"))

	require.NoError(t, d.Close())
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadFile_Compressed(t *testing.T) {
	for _, alg := range []compress.Algorithm{compress.Zstd, compress.Gzip, compress.S2, compress.LZ4} {
		t.Run(alg.String(), func(t *testing.T) {
			path := testutil.NewFixture().WriteCompressed(t, alg)
			rc := resource.NewController(resource.Config{})

			d, err := LoadFile(context.Background(), path, Options{Config: fileConfig(0, 0), Resources: rc})
			require.NoError(t, err)
			assert.Equal(t, KindMemory, d.Kind())
			assert.Equal(t, d.Size(), rc.MemoryUsage())
			assert.Equal(t, []string{"US"}, country(t, d, "8.8.8.8"))

			require.NoError(t, d.Close())
			assert.Zero(t, rc.MemoryUsage())
		})
	}
}

func TestLoadReader(t *testing.T) {
	data := testutil.NewFixture().MustBuild(t)
	gz := testutil.Compress(t, compress.Gzip, data)

	for name, src := range map[string][]byte{"plain": data, "gzip": gz} {
		t.Run(name, func(t *testing.T) {
			d, err := LoadReader(context.Background(), "s3://bucket/ipi.dat", bytes.NewReader(src), Options{})
			require.NoError(t, err)
			defer d.Close()
			assert.Equal(t, int64(len(data)), d.Size())
			assert.Equal(t, []string{"US"}, country(t, d, "8.8.8.8"))
		})
	}
}

func TestLoadBuffer(t *testing.T) {
	data := testutil.NewFixture().MustBuild(t)
	lz := testutil.Compress(t, compress.LZ4, data)

	for name, src := range map[string][]byte{"plain": data, "lz4": lz} {
		t.Run(name, func(t *testing.T) {
			rc := resource.NewController(resource.Config{})
			d, err := LoadBuffer(context.Background(), "blob://ipi.dat", src, Options{Resources: rc})
			require.NoError(t, err)
			assert.Equal(t, KindMemory, d.Kind())
			assert.Equal(t, int64(len(data)), rc.MemoryUsage())
			assert.Equal(t, []string{"US"}, country(t, d, "8.8.8.8"))
			require.NoError(t, d.Close())
			assert.Zero(t, rc.MemoryUsage())
		})
	}

	t.Run("memory limit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: int64(len(data) - 1)})
		_, err := LoadBuffer(context.Background(), "blob://ipi.dat", data, Options{Resources: rc})
		assert.ErrorIs(t, err, format.ErrInsufficientMemory)
		assert.Zero(t, rc.MemoryUsage())
	})
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewFixture().MustBuild(t)

	t.Run("version", func(t *testing.T) {
		f := testutil.NewFixture()
		f.VersionMinor = 3
		_, err := LoadMemory(ctx, f.MustBuild(t), Options{})
		assert.ErrorIs(t, err, format.ErrIncorrectVersion)
		var ve *format.VersionError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, uint8(3), ve.Minor)
	})

	t.Run("short header", func(t *testing.T) {
		_, err := LoadMemory(ctx, data[:50], Options{})
		assert.ErrorIs(t, err, format.ErrCorruptData)
	})

	t.Run("truncated nodes", func(t *testing.T) {
		_, err := LoadMemory(ctx, data[:len(data)-3], Options{})
		assert.ErrorIs(t, err, format.ErrCorruptData)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(ctx, t.TempDir()+"/none.dat", Options{Config: fileConfig(0, 0)})
		assert.ErrorIs(t, err, format.ErrFileNotFound)
	})

	t.Run("invalid config", func(t *testing.T) {
		path := testutil.WriteBytes(t, data)
		_, err := LoadFile(ctx, path, Options{Config: Config{UseMmap: true}})
		assert.ErrorIs(t, err, format.ErrInvalidConfig)
		_, err = LoadMemory(ctx, data, Options{Config: Config{UseTempFile: true}})
		assert.ErrorIs(t, err, format.ErrInvalidConfig)
	})

	t.Run("memory limit", func(t *testing.T) {
		path := testutil.WriteBytes(t, data)
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
		_, err := LoadFile(ctx, path, Options{Config: Config{AllInMemory: true}, Resources: rc})
		assert.ErrorIs(t, err, format.ErrInsufficientMemory)
		assert.Zero(t, rc.MemoryUsage())
	})
}

func TestLoadFile_FailureReleasesEverything(t *testing.T) {
	path := testutil.NewFixture().WriteFile(t)
	dir := t.TempDir()

	rc := resource.NewController(resource.Config{MaxLoaders: 2})
	ffs := ipfs.NewFaultyFS(nil)
	ffs.AddRule("ipintel-", ipfs.Fault{FailAfterReads: 3})

	cfg := fileConfig(math.MaxUint32, 0)
	cfg.UseTempFile = true
	cfg.TempDir = dir

	_, err := LoadFile(context.Background(), path, Options{Config: cfg, FS: ffs, Resources: rc})
	require.Error(t, err)
	assert.ErrorIs(t, err, ipfs.ErrInjected)
	assert.ErrorIs(t, err, format.ErrFileIO)

	assert.Zero(t, rc.MemoryUsage())
	assert.Zero(t, ffs.OpenFiles())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDataset_RefCount(t *testing.T) {
	d, err := LoadMemory(context.Background(), testutil.NewFixture().MustBuild(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Refs())

	require.True(t, d.TryIncRef())
	assert.Equal(t, int64(2), d.Refs())

	require.NoError(t, d.Close())
	assert.Equal(t, int64(1), d.Refs())
	assert.Equal(t, []string{"US"}, country(t, d, "8.8.8.8"))

	d.Release()
	assert.Zero(t, d.Refs())
	assert.False(t, d.TryIncRef())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{AllInMemory: true}).Validate())
	assert.NoError(t, (&Config{AllInMemory: true, UseMmap: true}).Validate())

	cfg := fileConfig(0, 0)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.MaxConcurrency())

	cfg.Collections[format.Values].Concurrency = 0
	assert.ErrorIs(t, cfg.Validate(), format.ErrInvalidConfig)

	cfg = fileConfig(0, -1)
	assert.ErrorIs(t, cfg.Validate(), format.ErrInvalidConfig)

	assert.ErrorIs(t, (&Config{UseMmap: true}).Validate(), format.ErrInvalidConfig)
	assert.ErrorIs(t, (&Config{AllInMemory: true, UseTempFile: true}).Validate(), format.ErrInvalidConfig)
}
