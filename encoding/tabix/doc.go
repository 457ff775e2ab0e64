// Package tabix implements a tabix-style hierarchical binning index for
// sorted, line-oriented interval files.
//
// Records are assigned to the smallest bin of a fixed hierarchy that fully
// contains them.  Level 0 is a single bin spanning the whole coordinate
// space; every following level splits each bin of the previous level into
// eight.  For each (chromosome, bin) pair the index keeps a list of byte
// ranges (chunks) of the source file.  A query collects the chunks of every
// bin that could hold an overlapping record, merges them, and returns them in
// ascending file order.  The result is a superset cover: the caller scans the
// chunks and applies the exact overlap test.
//
// The index also keeps a linear index (tabix calls it the "ioff" array): for
// each finest-level window, the file offset of the first record overlapping
// the window.  Queries use it to drop chunks that end before any possible
// hit.
//
// Example:
//   b := tabix.NewBuilder(tabix.BuildOpts{})
//   for each record in file order {
//     if err := b.Add(chrom, start, end, beginOffset, endOffset); err != nil { ... }
//   }
//   idx, err := b.Finish(size, modTime)
//   err = tabix.WriteIndexFile(ctx, path+".gtbi", idx)
//   ...
//   chunks, err := idx.Chunks("chr1", 10000, 20000, tabix.QueryOpts{})
package tabix
