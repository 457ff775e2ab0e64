package tabix

import (
	"sort"

	"github.com/grailbio/bioindex/interval"
)

// DefaultMergeGap is the default QueryOpts.MergeGap.  Reading a few KiB past
// the end of a chunk is cheaper than a seek.
const DefaultMergeGap = 4 << 10

// QueryOpts controls Index.Chunks.
type QueryOpts struct {
	// MergeGap merges two chunks when the second begins at most MergeGap bytes
	// after the first ends.  Overlapping and adjacent chunks are always merged.
	// Zero means DefaultMergeGap; a negative value disables gap merging.
	MergeGap int64
}

func (o QueryOpts) mergeGap() uint64 {
	switch {
	case o.MergeGap == 0:
		return DefaultMergeGap
	case o.MergeGap < 0:
		return 0
	}
	return uint64(o.MergeGap)
}

// Chunks returns the byte ranges of the source file that may contain records
// on chrom overlapping [start, end).  The chunks are disjoint and sorted by
// Begin, and together they cover every overlapping record; they may also
// contain records that do not overlap, which the caller must filter out.
//
// An unknown chromosome or a zero-length range yields no chunks and no error.
// end < start yields *interval.InvalidIntervalError.
func (idx *Index) Chunks(chrom string, start, end int, opts QueryOpts) ([]Chunk, error) {
	bins, err := idx.Scheme.CandidateBins(start, end)
	if err != nil {
		return nil, err
	}
	ref := idx.Ref(chrom)
	if ref == nil || start == end {
		return nil, nil
	}
	minOff := uint64(0)
	if len(ref.Linear) > 0 {
		w := idx.Scheme.window(start)
		if w >= len(ref.Linear) {
			// No record on chrom reaches this window.
			return nil, nil
		}
		minOff = ref.Linear[w]
	}
	var chunks []Chunk
	for _, id := range bins {
		bin := ref.bin(id)
		if bin == nil {
			continue
		}
		for _, c := range bin.Chunks {
			if c.End > minOff {
				chunks = append(chunks, c)
			}
		}
	}
	return mergeChunks(chunks, opts.mergeGap()), nil
}

// mergeChunks sorts the chunks by start offset and merges chunks that overlap
// or are separated by at most gap bytes.
func mergeChunks(chunks []Chunk, gap uint64) []Chunk {
	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Begin != chunks[j].Begin {
			return chunks[i].Begin < chunks[j].Begin
		}
		return chunks[i].End < chunks[j].End
	})
	merged := chunks[:1]
	for _, c := range chunks[1:] {
		last := &merged[len(merged)-1]
		if c.Begin <= last.End+gap {
			if c.End > last.End {
				last.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// Overlapping reports whether a record is a true hit for the query: it must
// be on chrom and overlap [start, end).
func Overlapping(iv interval.Interval, chrom string, start, end int) bool {
	return iv.Chrom() == chrom && interval.Overlaps(iv, start, end)
}
