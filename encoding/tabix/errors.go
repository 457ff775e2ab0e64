package tabix

import (
	"fmt"
	"time"
)

// SortOrderError is reported by Builder.Add when records are not sorted by
// (chromosome block, start).  Split is set when a chromosome reappears after
// records of another chromosome.
type SortOrderError struct {
	Chrom     string
	PrevStart int
	Start     int
	Split     bool
}

func (e *SortOrderError) Error() string {
	if e.Split {
		return fmt.Sprintf("tabix: unsorted input (split chromosome %v)", e.Chrom)
	}
	return fmt.Sprintf("tabix: unsorted input: %v start %d follows start %d", e.Chrom, e.Start, e.PrevStart)
}

// UnknownChromosomeError is returned by explicit per-chromosome lookups.
// Queries against an unknown chromosome are not errors; they yield nothing.
type UnknownChromosomeError struct {
	Chrom string
	// Suggestion is the closest known chromosome name, if any.
	Suggestion string
}

func (e *UnknownChromosomeError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("tabix: unknown chromosome %q (did you mean %q?)", e.Chrom, e.Suggestion)
	}
	return fmt.Sprintf("tabix: unknown chromosome %q", e.Chrom)
}

// IndexStaleError means the source file changed after the index was built.
// Readers respond by rebuilding the index.
type IndexStaleError struct {
	Path                        string
	IndexSize, SourceSize       int64
	IndexModTime, SourceModTime time.Time
}

func (e *IndexStaleError) Error() string {
	return fmt.Sprintf("tabix: index for %s is stale: indexed size %d mtime %v, file size %d mtime %v",
		e.Path, e.IndexSize, e.IndexModTime, e.SourceSize, e.SourceModTime)
}
