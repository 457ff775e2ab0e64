// Package intervalfile reads sorted, line-oriented genomic interval files
// (BED, bedGraph, GeneTrack) either front to back or by region, using a
// binned index from package tabix that is kept next to the source file.
//
// Typical use:
//
//	r, err := intervalfile.Open(ctx, "peaks.bed", intervalfile.Opts{})
//	...
//	defer r.Close()
//	it := r.Query("chr1", 10000, 20000)
//	for it.Scan() {
//		iv, err := it.Record().Interval()
//		...
//	}
//	if err := it.Close(); err != nil {
//		...
//	}
//
// The index is created on first query if it is missing or no longer matches
// the source's size and modification time.  Sources must be sorted by
// chromosome (each chromosome in one contiguous block) and then by start;
// see SortFile.
package intervalfile
