package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hupe1980/ipintel/internal/collection"
	"github.com/hupe1980/ipintel/internal/compress"
	"github.com/hupe1980/ipintel/internal/format"
	ipfs "github.com/hupe1980/ipintel/internal/fs"
	"github.com/hupe1980/ipintel/internal/graph"
	"github.com/hupe1980/ipintel/internal/profile"
	"github.com/hupe1980/ipintel/internal/resource"
	"golang.org/x/sync/errgroup"
)

// SourceMemory is the Source of datasets loaded from a buffer.
const SourceMemory = "memory"

// Options are the inputs of a load besides the data itself.
type Options struct {
	Config Config
	// Properties lists the required property names. Empty requires all.
	Properties []string
	FS         ipfs.FileSystem
	Resources  *resource.Controller
	Logger     *slog.Logger
}

func (o *Options) defaults() {
	if o.FS == nil {
		o.FS = ipfs.Default
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// LoadFile loads the data file at path. Compressed files are decompressed
// into memory regardless of the configuration.
func LoadFile(ctx context.Context, path string, opts Options) (*Dataset, error) {
	opts.defaults()
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	b, err := openBacking(path, &opts.Config, opts.FS, opts.Resources)
	if err != nil {
		return nil, err
	}
	return build(ctx, path, b, opts)
}

// LoadMemory loads a data file held in data. The buffer is used in place and
// must not be modified while the dataset is in use. Collection settings are
// ignored: every collection is memory resident.
func LoadMemory(ctx context.Context, data []byte, opts Options) (*Dataset, error) {
	opts.defaults()
	if opts.Config.UseTempFile {
		return nil, fmt.Errorf("%w: temp file copies need a file source", format.ErrInvalidConfig)
	}
	return build(ctx, SourceMemory, memoryBacking(data, opts.Resources, 0), opts)
}

// LoadReader reads r to the end, decompressing it if needed, and loads the
// result into memory. The bytes count against the memory limit.
func LoadReader(ctx context.Context, source string, r io.Reader, opts Options) (*Dataset, error) {
	opts.defaults()
	if opts.Config.UseTempFile {
		return nil, fmt.Errorf("%w: temp file copies need a file source", format.ErrInvalidConfig)
	}
	b, err := decodeReader(r, opts.Resources)
	if err != nil {
		return nil, err
	}
	return build(ctx, source, b, opts)
}

// LoadBuffer loads a data file the caller hands over, such as a blob
// downloaded from object storage. Unlike LoadMemory the dataset owns data:
// it counts against the memory limit and compressed input is decoded.
func LoadBuffer(ctx context.Context, source string, data []byte, opts Options) (*Dataset, error) {
	opts.defaults()
	if opts.Config.UseTempFile {
		return nil, fmt.Errorf("%w: temp file copies need a file source", format.ErrInvalidConfig)
	}
	if compress.Detect(data[:min(len(data), compress.MagicLen)]) != compress.None {
		b, err := decodeReader(bytes.NewReader(data), opts.Resources)
		if err != nil {
			return nil, err
		}
		return build(ctx, source, b, opts)
	}
	if err := opts.Resources.ReserveMemory(int64(len(data))); err != nil {
		return nil, err
	}
	return build(ctx, source, memoryBacking(data, opts.Resources, int64(len(data))), opts)
}

// build turns a backing into a dataset. The backing is closed on failure.
func build(ctx context.Context, source string, b *backing, opts Options) (_ *Dataset, err error) {
	start := time.Now()
	d := &Dataset{
		id:       uuid.New(),
		source:   source,
		cfg:      opts.Config,
		required: opts.Properties,
		backing:  b,
		logger:   opts.Logger,
	}
	defer func() {
		if err != nil {
			if cerr := closeAll(d.cols, d.graphs, b); cerr != nil {
				opts.Logger.Warn("Failed to release partial dataset", "source", source, "error", cerr)
			}
		}
	}()

	hb, err := b.headerBytes(ctx)
	if err != nil {
		return nil, err
	}
	if d.header, err = format.ParseHeader(hb, b.size); err != nil {
		return nil, err
	}
	d.fingerprint = xxhash.Sum64(hb)

	if err := d.openCollections(ctx, opts.Resources); err != nil {
		return nil, err
	}
	if err := d.openGraphs(ctx, opts.Resources); err != nil {
		return nil, err
	}
	d.resolver = profile.NewResolver(d.cols[format.ProfileOffsets], d.cols[format.ProfileGroups], d.cols[format.Profiles])

	if d.components, err = readComponents(ctx, d.cols[format.Components], d.cols[format.Strings]); err != nil {
		return nil, err
	}
	if d.properties, err = readProperties(ctx, d.cols[format.Properties], d.cols[format.Strings], len(d.components)); err != nil {
		return nil, err
	}
	if d.available, d.componentsAvailable, err = requiredProperties(d.properties, opts.Properties); err != nil {
		return nil, err
	}

	d.refs.Store(1)
	opts.Logger.Debug("Dataset loaded",
		"source", source,
		"kind", b.kind,
		"version", fmt.Sprintf("%d.%d", d.header.VersionMajor, d.header.VersionMinor),
		"published", d.header.Published.Time().Format(time.DateOnly),
		"collections", format.NumCollections+len(d.graphs),
		"properties", len(d.available),
		"duration", time.Since(start))
	return d, nil
}

// openCollections builds the nine collections concurrently, one loader slot
// each.
func (d *Dataset) openCollections(ctx context.Context, rc *resource.Controller) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range d.cols {
		name := format.Collection(i)
		g.Go(func() error {
			if err := rc.AcquireLoader(gctx); err != nil {
				return err
			}
			defer rc.ReleaseLoader()

			c, err := d.backing.open(gctx, name, d.header.Collections[name], collection.LayoutOf(name), d.cfg.Collections[name])
			if err != nil {
				return err
			}
			d.cols[name] = c
			return nil
		})
	}
	return g.Wait()
}

// openGraphs builds the graph array from the Graphs collection.
func (d *Dataset) openGraphs(ctx context.Context, rc *resource.Controller) error {
	infos := d.cols[format.Graphs]
	d.graphs = make(graph.Graphs, infos.Count())

	g, gctx := errgroup.WithContext(ctx)
	for i := range infos.Count() {
		g.Go(func() error {
			if err := rc.AcquireLoader(gctx); err != nil {
				return err
			}
			defer rc.ReleaseLoader()

			it, err := infos.Get(gctx, i)
			if err != nil {
				return err
			}
			info := format.ParseGraphInfo(it.Data)
			it.Release()

			if info.RecordSize == 0 || info.RecordSize > 8 {
				return format.Corruptf("graph %d: record size %d", i, info.RecordSize)
			}
			layout := collection.Fixed(int(info.RecordSize))
			if uint64(info.Nodes.Count)*uint64(info.RecordSize) != uint64(info.Nodes.Length) {
				return format.Corruptf("graph %d: %d nodes in %d bytes", i, info.Nodes.Count, info.Nodes.Length)
			}
			nodes, err := d.backing.open(gctx, format.Graphs, info.Nodes, layout, d.cfg.Collections[format.Graphs])
			if err != nil {
				return fmt.Errorf("graph %d: %w", i, err)
			}
			gr, err := graph.New(info, nodes)
			if err != nil {
				_ = nodes.Close()
				return err
			}
			d.graphs[i] = gr
			return nil
		})
	}
	return g.Wait()
}
