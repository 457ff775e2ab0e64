package intervalfile

import "github.com/grailbio/bioindex/interval"

// Accumulator receives the records of a region, in ascending start order.
type Accumulator interface {
	Add(iv interval.Interval)
}

// Summary is an Accumulator of simple region statistics.
type Summary struct {
	// Count is the number of records.
	Count int
	// Bases is the sum of record lengths, overlaps counted repeatedly.
	Bases int64
	// MinStart and MaxEnd bound the records seen.  Both are -1 when Count is
	// zero.
	MinStart, MaxEnd int
}

// NewSummary creates an empty Summary.
func NewSummary() *Summary {
	return &Summary{MinStart: -1, MaxEnd: -1}
}

// Add implements Accumulator.
func (s *Summary) Add(iv interval.Interval) {
	if s.Count == 0 || iv.Start() < s.MinStart {
		s.MinStart = iv.Start()
	}
	if iv.End() > s.MaxEnd {
		s.MaxEnd = iv.End()
	}
	s.Count++
	s.Bases += int64(iv.End() - iv.Start())
}

// Aggregate feeds every record overlapping [start, end) on chrom to acc.
// Malformed records follow the reader's Policy.
func (r *Reader) Aggregate(chrom string, start, end int, acc Accumulator) error {
	it := r.Query(chrom, start, end)
	for it.Scan() {
		iv, err := it.Record().Interval()
		if err != nil {
			// Query iterators only return records that parsed.
			_ = it.Close()
			return err
		}
		acc.Add(iv)
	}
	return it.Close()
}
