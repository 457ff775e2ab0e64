// Package linesort sorts text files by line with bounded memory.
//
// Input is split into batches that are sorted in memory and spilled to
// compressed temporary chunk files.  The chunks are then merged with a k-way
// merge.  When there are more chunks than open files allowed, consecutive
// groups are merged into new chunks first, over as many passes as needed.
// The sort is stable: lines that compare equal keep their input order.
package linesort
