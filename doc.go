// Package ipintel resolves IP addresses to properties such as country,
// coordinates or registered network owner using a binary IP intelligence
// data file.
//
// The data file holds one compressed binary trie (graph) per component and
// IP version. Walking the graph for an address yields a profile reference:
// either a single profile, or a weighted group of profiles when the data
// is ambiguous. Each profile lists value indexes, which are read back as
// weighted values per property.
//
// # Quick Start
//
//	eng, err := ipintel.Open("ipi.dat")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	res, err := eng.Process("8.8.8.8")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer res.Release()
//
//	vals, err := res.ValuesByName("Country")
//	if err != nil {
//	    var nv *ipintel.NoValueError
//	    if errors.As(err, &nv) {
//	        log.Println(nv.Reason.Message())
//	    }
//	}
//	for _, v := range vals {
//	    fmt.Println(v.Value, v.Weight())
//	}
//
// # Memory Configuration
//
// The configuration decides how much of the file is held in memory:
//
//   - InMemoryConfig: the whole file is read into memory (or mapped with
//     MmapConfig).
//   - HighPerformanceConfig: every collection is loaded at start but read
//     through file mode.
//   - LowMemoryConfig: every record is read from disk on access.
//   - BalancedConfig (the default): small collections are resident, large
//     ones keep an LRU cache of recently read records.
//   - BalancedTempConfig: as Balanced, reading a private copy so the
//     original file can be replaced by an update.
//
// Configurations can also be read from YAML with LoadConfigFile.
//
// # Reloading
//
// Reload, ReloadMemory and ReloadStore replace the data file without
// interrupting lookups. Results created before the reload keep the data
// file they were created with until released. A failed reload keeps the
// current data file.
//
// # Object Storage
//
// OpenStore loads the data file from a blobstore.BlobStore such as the S3
// or MinIO stores in the blobstore subpackages. Data files compressed with
// zstd, gzip, s2 or lz4 are decompressed transparently.
package ipintel
