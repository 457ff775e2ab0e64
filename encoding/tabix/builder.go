package tabix

import (
	"fmt"
	"sort"
	"time"

	"github.com/grailbio/base/log"
)

// BuildOpts controls index construction.
type BuildOpts struct {
	// Scheme is the binning hierarchy.  The zero value means DefaultScheme().
	Scheme Scheme
	// ChunkGap is the largest byte distance between the end of a bin's open
	// chunk and the next record of the same bin for which the record is
	// coalesced into that chunk instead of starting a new one.  Zero coalesces
	// only records that are adjacent in the file.
	ChunkGap uint64
}

const unsetOffset = ^uint64(0)

// refBuilder accumulates one chromosome.
type refBuilder struct {
	name      string
	bins      map[uint32][]Chunk
	linear    []uint64
	maxEnd    int
	prevStart int
}

func (r *refBuilder) finish() Reference {
	ref := Reference{Name: r.name, MaxEnd: r.maxEnd, Bins: make([]Bin, 0, len(r.bins))}
	for id, chunks := range r.bins {
		ref.Bins = append(ref.Bins, Bin{ID: id, Chunks: chunks})
	}
	sort.Slice(ref.Bins, func(i, j int) bool { return ref.Bins[i].ID < ref.Bins[j].ID })
	// A window without records takes the offset of the next populated window:
	// any record overlapping a position in an empty window starts after it.
	next := unsetOffset
	for w := len(r.linear) - 1; w >= 0; w-- {
		if r.linear[w] == unsetOffset {
			r.linear[w] = next
		} else {
			next = r.linear[w]
		}
	}
	ref.Linear = r.linear
	return ref
}

// Builder constructs an Index from records presented in file order.  The
// records must be sorted by start within each chromosome, and all records of
// a chromosome must be contiguous.
//
// Example:
//   b := NewBuilder(BuildOpts{})
//   for ... {
//     if err := b.Add(chrom, start, end, begin, end); err != nil {
//       return err
//     }
//   }
//   idx, err := b.Finish(size, modTime)
type Builder struct {
	opts    BuildOpts
	refs    []Reference
	seen    map[string]bool
	cur     *refBuilder
	lastEnd uint64
	nRecs   int
	err     error
}

// NewBuilder creates a Builder.
func NewBuilder(opts BuildOpts) *Builder {
	opts.Scheme = opts.Scheme.withDefaults()
	b := &Builder{opts: opts, seen: make(map[string]bool)}
	if err := opts.Scheme.Validate(); err != nil {
		b.err = err
	}
	return b
}

// Add registers one record: its interval [start, end) on chrom, and the byte
// range [begin, end) it occupies in the source.  After Add fails, the Builder
// is unusable and every further call returns the same error.
func (b *Builder) Add(chrom string, start, end int, beginOff, endOff uint64) error {
	if b.err != nil {
		return b.err
	}
	if endOff < beginOff || beginOff < b.lastEnd {
		b.err = fmt.Errorf("tabix: record %d: bad offsets [%d, %d) after %d", b.nRecs, beginOff, endOff, b.lastEnd)
		return b.err
	}
	s := b.opts.Scheme
	bin, err := s.BinOf(start, end)
	if err != nil {
		b.err = err
		return err
	}
	if b.cur == nil || chrom != b.cur.name {
		if b.seen[chrom] {
			b.err = &SortOrderError{Chrom: chrom, Split: true}
			return b.err
		}
		b.flush()
		b.seen[chrom] = true
		b.cur = &refBuilder{name: chrom, bins: make(map[uint32][]Chunk)}
	} else if start < b.cur.prevStart {
		b.err = &SortOrderError{Chrom: chrom, PrevStart: b.cur.prevStart, Start: start}
		return b.err
	}
	r := b.cur
	r.prevStart = start
	b.lastEnd = endOff
	b.nRecs++

	chunks := r.bins[bin]
	if n := len(chunks); n > 0 && beginOff <= chunks[n-1].End+b.opts.ChunkGap {
		if endOff > chunks[n-1].End {
			chunks[n-1].End = endOff
		}
	} else {
		chunks = append(chunks, Chunk{Begin: beginOff, End: endOff})
	}
	r.bins[bin] = chunks

	first, last, _ := s.normalize(start, end)
	firstW, lastW := s.window(first), s.window(last)
	for len(r.linear) <= lastW {
		r.linear = append(r.linear, unsetOffset)
	}
	for w := firstW; w <= lastW; w++ {
		if r.linear[w] == unsetOffset {
			r.linear[w] = beginOff
		}
	}
	if end > r.maxEnd {
		r.maxEnd = end
	}
	return nil
}

func (b *Builder) flush() {
	if b.cur != nil {
		b.refs = append(b.refs, b.cur.finish())
		b.cur = nil
	}
}

// Finish returns the index.  size and modTime describe the source file and
// are used later to detect staleness.
func (b *Builder) Finish(size int64, modTime time.Time) (*Index, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.flush()
	idx := &Index{
		Scheme:        b.opts.Scheme,
		SourceSize:    size,
		SourceModTime: modTime,
		Refs:          b.refs,
	}
	idx.initRefIdx()
	log.Debug.Printf("tabix: indexed %d records on %d chromosomes", b.nRecs, len(idx.Refs))
	b.err = fmt.Errorf("tabix: Builder.Finish already called")
	return idx, nil
}
