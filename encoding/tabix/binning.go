package tabix

import (
	"fmt"

	"github.com/grailbio/bioindex/interval"
)

const (
	// DefaultMinShift is the log2 of the finest bin size (16 KiB), the same as
	// tabix and BAI.
	DefaultMinShift = 14
	// DefaultDepth is the number of levels below the root bin.
	DefaultDepth = 5
	// MaxDepth is the deepest scheme whose bin ids, up to (8^(depth+1)-1)/7,
	// fit in a uint32.
	MaxDepth = 10

	// levelShift is log2 of the fan-out between adjacent levels.
	levelShift  = 3
	maxSpanBits = 62
)

// Scheme describes a binning hierarchy.  The zero value selects
// DefaultMinShift and DefaultDepth.
type Scheme struct {
	// MinShift is log2 of the finest-level bin size.
	MinShift uint
	// Depth is the number of levels below the root.  Level l has 8^l bins.
	Depth uint
	// Strict rejects coordinates at or past MaxPos() with an
	// *interval.InvalidIntervalError.  Otherwise such coordinates are clamped to
	// MaxPos()-1, for both indexing and queries.
	Strict bool
}

// DefaultScheme returns the scheme used when none is specified.
func DefaultScheme() Scheme {
	return Scheme{MinShift: DefaultMinShift, Depth: DefaultDepth}
}

func (s Scheme) withDefaults() Scheme {
	if s.MinShift == 0 {
		s.MinShift = DefaultMinShift
	}
	if s.Depth == 0 {
		s.Depth = DefaultDepth
	}
	return s
}

// Validate checks that the scheme's coordinate span is representable and
// that every bin id fits in a uint32.
func (s Scheme) Validate() error {
	s = s.withDefaults()
	if s.MinShift+levelShift*s.Depth > maxSpanBits {
		return fmt.Errorf("tabix: binning scheme minshift=%d depth=%d spans more than 2^%d", s.MinShift, s.Depth, maxSpanBits)
	}
	if s.Depth > MaxDepth {
		return fmt.Errorf("tabix: binning scheme depth=%d exceeds %d; bin ids would overflow 32 bits", s.Depth, MaxDepth)
	}
	return nil
}

// MaxPos returns the exclusive upper bound of coordinates covered by the root
// bin.
func (s Scheme) MaxPos() int {
	s = s.withDefaults()
	return 1 << (s.MinShift + levelShift*s.Depth)
}

// NumBins returns the total number of bins across all levels.
func (s Scheme) NumBins() int {
	s = s.withDefaults()
	return levelOffset(s.Depth + 1)
}

// levelOffset returns the id of the first bin at the given level:
// (8^level - 1) / 7.
func levelOffset(level uint) int {
	return ((1 << (levelShift * level)) - 1) / 7
}

// Level returns the level of the bin, 0 being the root.
func (s Scheme) Level(bin uint32) int {
	s = s.withDefaults()
	for l := s.Depth; l > 0; l-- {
		if int(bin) >= levelOffset(l) {
			return int(l)
		}
	}
	return 0
}

// BinRange returns the half-open coordinate range covered by bin.
func (s Scheme) BinRange(bin uint32) (start, end int) {
	s = s.withDefaults()
	l := uint(s.Level(bin))
	size := 1 << (s.MinShift + levelShift*(s.Depth-l))
	i := int(bin) - levelOffset(l)
	return i * size, (i + 1) * size
}

// Parent returns the bin one level up.  The root is its own parent.
func Parent(bin uint32) uint32 {
	if bin == 0 {
		return 0
	}
	return (bin - 1) >> levelShift
}

// normalize validates [start, end) and applies the clamp/strict policy.  The
// returned last is the last covered coordinate; a zero-length interval is
// treated as covering its start.
func (s Scheme) normalize(start, end int) (first, last int, err error) {
	if err = interval.Validate(start, end); err != nil {
		return
	}
	maxPos := s.MaxPos()
	if end > maxPos || start >= maxPos {
		if s.Strict {
			err = &interval.InvalidIntervalError{
				Start: start, End: end,
				Reason: fmt.Sprintf("coordinate past binning span %d", maxPos),
			}
			return
		}
		if start >= maxPos {
			start = maxPos - 1
		}
		if end > maxPos {
			end = maxPos
		}
	}
	first, last = start, end-1
	if last < first {
		last = first
	}
	return
}

// BinOf returns the smallest bin whose range fully contains [start, end).
func (s Scheme) BinOf(start, end int) (uint32, error) {
	s = s.withDefaults()
	beg, last, err := s.normalize(start, end)
	if err != nil {
		return 0, err
	}
	shift := s.MinShift
	for l := s.Depth; l > 0; l-- {
		if beg>>shift == last>>shift {
			return uint32(levelOffset(l) + beg>>shift), nil
		}
		shift += levelShift
	}
	return 0, nil
}

// CandidateBins returns, in ascending order, every bin that can hold a record
// overlapping [start, end): at each level, the bins intersecting the range.
// That is the finest bins intersecting the range plus their ancestors, which
// include the ancestor chain of start.  A zero-length range yields the bins
// containing start.
func (s Scheme) CandidateBins(start, end int) ([]uint32, error) {
	s = s.withDefaults()
	beg, last, err := s.normalize(start, end)
	if err != nil {
		return nil, err
	}
	var bins []uint32
	shift := s.MinShift + levelShift*s.Depth
	for l := uint(0); l <= s.Depth; l++ {
		off := levelOffset(l)
		for b := off + beg>>shift; b <= off+last>>shift; b++ {
			bins = append(bins, uint32(b))
		}
		shift -= levelShift
	}
	return bins, nil
}

// window returns the linear-index window holding pos.  Positions past the
// binning span map to the last window.
func (s Scheme) window(pos int) int {
	s = s.withDefaults()
	if maxPos := s.MaxPos(); pos >= maxPos {
		pos = maxPos - 1
	}
	return pos >> s.MinShift
}
