package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hupe1980/ipintel/internal/collection"
	"github.com/hupe1980/ipintel/internal/compress"
	"github.com/hupe1980/ipintel/internal/filepool"
	"github.com/hupe1980/ipintel/internal/format"
	ipfs "github.com/hupe1980/ipintel/internal/fs"
	"github.com/hupe1980/ipintel/internal/mmap"
	"github.com/hupe1980/ipintel/internal/resource"
)

// Backing kinds.
const (
	KindMemory = "memory"
	KindMmap   = "mmap"
	KindFile   = "file"
)

// backing is the storage a dataset's collections read from.
type backing struct {
	kind string
	size int64

	// memory and mmap
	data    []byte
	mapping *mmap.Mapping

	// file
	files *filepool.Pool

	fsys     ipfs.FileSystem
	tempPath string

	rc       *resource.Controller
	reserved int64
}

func memoryBacking(data []byte, rc *resource.Controller, reserved int64) *backing {
	return &backing{kind: KindMemory, size: int64(len(data)), data: data, rc: rc, reserved: reserved}
}

// openBacking prepares the storage for the file at path according to cfg.
func openBacking(path string, cfg *Config, fsys ipfs.FileSystem, rc *resource.Controller) (*backing, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", format.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", format.ErrFileIO, path, err)
	}

	alg, err := sniff(fsys, path)
	if err != nil {
		return nil, err
	}
	if alg != compress.None {
		return decodeFile(fsys, path, rc)
	}

	switch {
	case cfg.AllInMemory && cfg.UseMmap:
		m, err := mmap.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: map %s: %w", format.ErrFileIO, path, err)
		}
		_ = m.Advise(mmap.AccessRandom)
		return &backing{kind: KindMmap, size: int64(m.Size()), data: m.Bytes(), mapping: m, rc: rc}, nil

	case cfg.AllInMemory:
		return readFile(fsys, path, info.Size(), rc)

	default:
		b := &backing{kind: KindFile, fsys: fsys, rc: rc}
		src := path
		if cfg.UseTempFile {
			if src, err = tempCopy(fsys, path, cfg.TempDir); err != nil {
				return nil, err
			}
			b.tempPath = src
		}
		files, err := filepool.New(fsys, src, cfg.MaxConcurrency(), rc)
		if err != nil {
			_ = b.close()
			return nil, err
		}
		b.files = files
		b.size = files.Size()
		return b, nil
	}
}

func sniff(fsys ipfs.FileSystem, path string) (compress.Algorithm, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return compress.None, fmt.Errorf("%w: open %s: %w", format.ErrFileIO, path, err)
	}
	defer f.Close()

	magic := make([]byte, compress.MagicLen)
	n, err := io.ReadFull(f, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return compress.None, fmt.Errorf("%w: read %s: %w", format.ErrFileIO, path, err)
	}
	return compress.Detect(magic[:n]), nil
}

func readFile(fsys ipfs.FileSystem, path string, size int64, rc *resource.Controller) (*backing, error) {
	if err := rc.ReserveMemory(size); err != nil {
		return nil, err
	}
	f, err := fsys.Open(path)
	if err != nil {
		rc.ReleaseMemory(size)
		return nil, fmt.Errorf("%w: open %s: %w", format.ErrFileIO, path, err)
	}
	defer f.Close()

	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		rc.ReleaseMemory(size)
		return nil, fmt.Errorf("%w: read %s: %w", format.ErrFileIO, path, err)
	}
	return memoryBacking(data, rc, size), nil
}

// decodeFile decompresses a distributed data file into memory.
func decodeFile(fsys ipfs.FileSystem, path string, rc *resource.Controller) (*backing, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", format.ErrFileIO, path, err)
	}
	defer f.Close()
	return decodeReader(f, rc)
}

func decodeReader(r io.Reader, rc *resource.Controller) (*backing, error) {
	var limit int64
	if l := rc.MemoryLimit(); l > 0 {
		limit = max(l-rc.MemoryUsage(), 0)
		if limit == 0 {
			return nil, fmt.Errorf("%w: memory limit reached", format.ErrInsufficientMemory)
		}
	}
	data, _, err := compress.Decode(r, limit)
	if err != nil {
		return nil, err
	}
	if err := rc.ReserveMemory(int64(len(data))); err != nil {
		return nil, err
	}
	return memoryBacking(data, rc, int64(len(data))), nil
}

// tempCopy copies path to a uniquely named file in dir.
func tempCopy(fsys ipfs.FileSystem, path, dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: temp dir %s: %w", format.ErrFileIO, dir, err)
	}
	dst := filepath.Join(dir, "ipintel-"+uuid.NewString()+filepath.Ext(path))
	if _, err := ipfs.Copy(fsys, dst, path); err != nil {
		return "", fmt.Errorf("%w: copy %s to %s: %w", format.ErrFileIO, path, dst, err)
	}
	return dst, nil
}

// headerBytes returns the first format.HeaderSize bytes of the source.
func (b *backing) headerBytes(ctx context.Context) ([]byte, error) {
	if b.size < format.HeaderSize {
		return nil, format.Corruptf("source of %d bytes is shorter than the header", b.size)
	}
	if b.data != nil {
		return b.data[:format.HeaderSize], nil
	}
	buf := make([]byte, format.HeaderSize)
	if err := b.files.ReadAt(ctx, buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// open creates the collection located by h.
func (b *backing) open(ctx context.Context, name format.Collection, h format.CollectionHeader,
	layout collection.Layout, cfg CollectionConfig) (collection.Collection, error) {
	if h.End() > uint64(b.size) {
		return nil, format.Corruptf("%s ends at %d beyond source size %d", name, h.End(), b.size)
	}
	if b.files == nil {
		return collection.NewMemory(name, h, layout, b.data[h.Offset:h.End():h.End()])
	}
	return collection.NewFile(ctx, name, h, layout, b.files,
		collection.Config{Loaded: cfg.Loaded, CacheSize: cfg.CacheSize}, b.rc)
}

func (b *backing) openHandles() int64 {
	if b.files == nil {
		return 0
	}
	return b.files.OpenHandles()
}

// close releases the storage. It is called once, after every collection
// over it is closed.
func (b *backing) close() error {
	var errs []error
	if b.files != nil {
		errs = append(errs, b.files.Close())
		b.files = nil
	}
	if b.mapping != nil {
		errs = append(errs, b.mapping.Close())
		b.mapping = nil
	}
	b.data = nil
	if b.reserved > 0 {
		b.rc.ReleaseMemory(b.reserved)
		b.reserved = 0
	}
	if b.tempPath != "" {
		if err := b.fsys.Remove(b.tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		b.tempPath = ""
	}
	return errors.Join(errs...)
}
