package intervalfile

import (
	"context"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bioindex/encoding/tabix"
	"github.com/grailbio/bioindex/interval"
)

// IndexSuffix is appended to a source path to name its index file.
const IndexSuffix = ".gtbi"

// Opts configures a Reader.  The zero value picks the format from the file
// extension, keeps the index at path+IndexSuffix, skips malformed lines, and
// shares tabix.DefaultCache.
type Opts struct {
	// Format parses record lines.  Nil means FormatFromPath.
	Format Parser
	// IndexPath overrides the index location.
	IndexPath string
	// Build configures index construction.
	Build tabix.BuildOpts
	// Query configures chunk merging.
	Query tabix.QueryOpts
	// Policy decides what to do with malformed lines.
	Policy Policy
	// Mmap maps the source into memory instead of seeking.  Local files only.
	Mmap bool
	// Cache holds loaded indexes.  Nil means tabix.DefaultCache.
	Cache *tabix.Cache
	// NoCache disables the index cache.
	NoCache bool
}

func (o Opts) indexPath(path string) string {
	if o.IndexPath != "" {
		return o.IndexPath
	}
	return path + IndexSuffix
}

func (o Opts) cache() *tabix.Cache {
	if o.NoCache {
		return nil
	}
	if o.Cache != nil {
		return o.Cache
	}
	return tabix.DefaultCache
}

// Reader gives lazy, indexed access to one interval file.  A Reader is not
// safe for concurrent use; open one per goroutine.
type Reader struct {
	ctx     context.Context
	path    string
	opts    Opts
	parser  Parser
	rr      RangeReader
	size    int64
	modTime time.Time
	idx     *tabix.Index
}

// Open opens the interval file at path.  The index is not touched until it is
// needed.
func Open(ctx context.Context, path string, opts Opts) (*Reader, error) {
	parser := opts.Format
	if parser == nil {
		var err error
		if parser, err = FormatFromPath(path); err != nil {
			return nil, err
		}
	}
	info, err := file.Stat(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	var rr RangeReader
	if opts.Mmap {
		rr, err = NewMmapRangeReader(path)
	} else {
		rr, err = NewSeekRangeReader(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	return &Reader{
		ctx:     ctx,
		path:    path,
		opts:    opts,
		parser:  parser,
		rr:      rr,
		size:    info.Size(),
		modTime: info.ModTime(),
	}, nil
}

// Path returns the source path.
func (r *Reader) Path() string { return r.path }

// Format returns the record parser.
func (r *Reader) Format() Parser { return r.parser }

func (r *Reader) cacheKey() tabix.CacheKey {
	return tabix.CacheKey{Path: r.path, ModTime: r.modTime, Size: r.size}
}

// Index returns the index for the source, from the cache, from the index
// file, or by scanning the source.  An index file that is stale or unreadable
// is rebuilt and replaced.
func (r *Reader) Index() (*tabix.Index, error) {
	if r.idx != nil {
		return r.idx, nil
	}
	cache := r.opts.cache()
	if cache != nil {
		if idx, ok := cache.Get(r.cacheKey()); ok {
			r.idx = idx
			return idx, nil
		}
	}
	idx := r.loadIndex()
	if idx == nil {
		var err error
		if idx, err = r.buildIndex(); err != nil {
			return nil, err
		}
		if err := tabix.WriteIndexFile(r.ctx, r.opts.indexPath(r.path), idx); err != nil {
			log.Error.Printf("%s: failed to save index: %v", r.path, err)
		}
	}
	if cache != nil {
		cache.Put(r.cacheKey(), idx)
	}
	r.idx = idx
	return idx, nil
}

// loadIndex reads the index file if it exists and matches the source.
func (r *Reader) loadIndex() *tabix.Index {
	indexPath := r.opts.indexPath(r.path)
	if _, err := file.Stat(r.ctx, indexPath); err != nil {
		return nil
	}
	idx, err := tabix.ReadIndexFile(r.ctx, indexPath)
	if err != nil {
		log.Error.Printf("%v: rebuilding", err)
		return nil
	}
	if err := idx.CheckFresh(r.path, r.size, r.modTime); err != nil {
		log.Printf("%v: rebuilding", err)
		return nil
	}
	return idx
}

// buildIndex scans the whole source once.
func (r *Reader) buildIndex() (*tabix.Index, error) {
	log.Debug.Printf("%s: building index", r.path)
	b := tabix.NewBuilder(r.opts.Build)
	it := r.Iterator()
	for it.Scan() {
		rec := it.Record()
		iv, err := rec.Interval()
		if err != nil {
			if r.opts.Policy == Strict {
				_ = it.Close()
				return nil, err
			}
			log.Error.Printf("%v: skipping record", err)
			continue
		}
		// Scan stops right after the record's line, terminator included.
		if err := b.Add(iv.Chrom(), iv.Start(), iv.End(), rec.offset, it.off); err != nil {
			_ = it.Close()
			return nil, err
		}
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return b.Finish(r.size, r.modTime)
}

// Iterator returns a fresh iterator over every record in file order.
func (r *Reader) Iterator() *Iterator {
	return &Iterator{
		r:      r,
		chunks: []tabix.Chunk{{Begin: 0, End: uint64(r.rr.Size())}},
	}
}

// Query returns an iterator over the records overlapping [start, end) on
// chrom, in ascending start order.  Building the index, if needed, happens
// here and blocks.  Errors are reported by the iterator.
func (r *Reader) Query(chrom string, start, end int) *Iterator {
	idx, err := r.Index()
	if err != nil {
		return newErrIterator(err)
	}
	chunks, err := idx.Chunks(chrom, start, end, r.opts.Query)
	if err != nil {
		return newErrIterator(err)
	}
	return &Iterator{
		r:         r,
		chunks:    chunks,
		query:     true,
		chrom:     chrom,
		start:     start,
		end:       end,
		prevStart: -1,
	}
}

// Chromosomes lists the chromosomes of the source in file order.
func (r *Reader) Chromosomes() ([]string, error) {
	idx, err := r.Index()
	if err != nil {
		return nil, err
	}
	return idx.Chromosomes(), nil
}

// Count returns the number of record lines.  Lines are not parsed.
func (r *Reader) Count() (int, error) {
	n := 0
	it := r.Iterator()
	for it.Scan() {
		n++
	}
	return n, it.Close()
}

// LoadAll parses every record into memory.
func (r *Reader) LoadAll() ([]interval.Interval, error) {
	var all []interval.Interval
	it := r.Iterator()
	for it.Scan() {
		iv, err := it.Record().Interval()
		if err != nil {
			if r.opts.Policy == Strict {
				_ = it.Close()
				return nil, err
			}
			log.Error.Printf("%v: skipping record", err)
			continue
		}
		all = append(all, iv)
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return all, nil
}

// Close releases the source file.  Iterators must not be used afterwards.
func (r *Reader) Close() error {
	return r.rr.Close()
}
