package linesort

import (
	"github.com/biogo/store/llrb"
	"v.io/x/lib/vlog"
)

// mergeLeaf is one chunk being merged.
type mergeLeaf struct {
	// seq is the position of the chunk in input order; it breaks ties so that
	// the merge is stable.
	seq    int
	reader *chunkReader
	// key is the key of reader.line.
	key  []byte
	cmp  Compare
	done bool
}

func (l *mergeLeaf) Compare(c1 llrb.Comparable) int {
	l1 := c1.(*mergeLeaf)
	if c := l.cmp(l.key, l1.key); c != 0 {
		return c
	}
	return l.seq - l1.seq
}

// mergeChunks merges readers, given in input order, and calls emit for every
// line in sorted order.  keyOf is applied once to every line read.  It returns
// the first error from emit or the readers.
func mergeChunks(readers []*chunkReader, cmp Compare, keyOf KeyFunc, emit func(line []byte) error) error {
	// A binary tree rather than a heap: the smallest leaf tends to stay on top
	// for many lines, which the tree handles in amortized O(1).
	leafs := llrb.Tree{}
	for i, r := range readers {
		if r.scan() {
			leafs.Insert(&mergeLeaf{seq: i, reader: r, key: keyOf(r.line), cmp: cmp})
		} else if r.err != nil {
			return r.err
		}
	}
	vlog.VI(1).Infof("Merging %d chunks, %d leafs active", len(readers), leafs.Len())
	for leafs.Len() > 0 {
		nthiter := 0
		// top is the smallest leaf, next the second smallest or nil.
		var top, next *mergeLeaf
		leafs.Do(func(item llrb.Comparable) bool {
			nthiter++
			switch nthiter {
			case 1:
				top = item.(*mergeLeaf)
				return false
			default:
				next = item.(*mergeLeaf)
				return true
			}
		})
		// Read from top until it becomes larger than next.
		for {
			if err := emit(top.reader.line); err != nil {
				return err
			}
			if top.done = !top.reader.scan(); !top.done {
				top.key = keyOf(top.reader.line)
			}
			if top.done || (next != nil && next.Compare(top) < 0) {
				break
			}
		}
		leafs.DeleteMin()
		if top.done {
			if top.reader.err != nil {
				return top.reader.err
			}
			continue
		}
		leafs.Insert(top)
	}
	return nil
}
