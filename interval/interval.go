package interval

import (
	"fmt"
	"math"
)

// MaxPos is the largest coordinate accepted anywhere in this module.  Region
// strings that name a whole chromosome end here.
const MaxPos = math.MaxInt32

// Interval is implemented by every record that has genomic coordinates.
// Start and End are zero-based, half-open.
type Interval interface {
	Chrom() string
	Start() int
	End() int
	// String renders the record in the canonical text form of its format.
	String() string
}

// Entry represents a single interval, with 0-based coordinates.  It is the
// payload-free Interval.
type Entry struct {
	ChrName string
	Start0  int
	// Limit is the exclusive end.
	Limit int
}

// NewEntry creates an Entry after validating the coordinates.
func NewEntry(chrName string, start0, end int) (Entry, error) {
	if err := Validate(start0, end); err != nil {
		return Entry{}, err
	}
	return Entry{ChrName: chrName, Start0: start0, Limit: end}, nil
}

// Chrom implements Interval.
func (e Entry) Chrom() string { return e.ChrName }

// Start implements Interval.
func (e Entry) Start() int { return e.Start0 }

// End implements Interval.
func (e Entry) End() int { return e.Limit }

// String renders e as a three-column BED line.
func (e Entry) String() string {
	return fmt.Sprintf("%s\t%d\t%d", e.ChrName, e.Start0, e.Limit)
}

// Overlaps reports whether iv overlaps the half-open range [start, end).
// A zero-length query range overlaps nothing.
func Overlaps(iv Interval, start, end int) bool {
	return start < end && iv.Start() < end && iv.End() > start
}

// InvalidIntervalError is returned for negative coordinates, for end < start,
// and, in strict binning mode, for coordinates past the binning scheme's span.
type InvalidIntervalError struct {
	Start, End int
	Reason     string
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval [%d, %d): %s", e.Start, e.End, e.Reason)
}

// Validate checks the half-open interval [start, end).
func Validate(start, end int) error {
	if start < 0 || end < 0 {
		return &InvalidIntervalError{Start: start, End: end, Reason: "negative coordinate"}
	}
	if end < start {
		return &InvalidIntervalError{Start: start, End: end, Reason: "end precedes start"}
	}
	return nil
}
