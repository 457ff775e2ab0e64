package intervalfile

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/grailbio/bioindex/linesort"
)

// Key tags.  Skipped and unparsable lines sort before every record.
const (
	keyHeader byte = iota
	keyRecord
)

// SortKey returns the linesort key extractor for p.  Keys order lines the way
// readers of p expect under bytes.Compare: header and other skipped lines
// first, in input order, then records by chromosome name and start position.
// Lines that fail to parse are kept with the headers.
//
// A record key is the tag byte, the chromosome name, a zero byte, and the
// start as a big-endian uint32.  The zero byte makes "chr1" sort before
// "chr10", as strings.Compare does.
func SortKey(p Parser) linesort.KeyFunc {
	header := []byte{keyHeader}
	return func(line []byte) []byte {
		if p.Skip(line) {
			return header
		}
		iv, err := p.Parse(line)
		if err != nil {
			return header
		}
		chrom := iv.Chrom()
		key := make([]byte, 0, len(chrom)+6)
		key = append(key, keyRecord)
		key = append(key, chrom...)
		key = append(key, 0)
		var start [4]byte
		binary.BigEndian.PutUint32(start[:], uint32(iv.Start()))
		return append(key, start[:]...)
	}
}

// SortFile sorts the interval file at inPath into outPath so that it can be
// indexed.  opts.Key is replaced by SortKey(p).
func SortFile(ctx context.Context, inPath, outPath string, p Parser, opts linesort.Options) error {
	opts.Key = SortKey(p)
	return linesort.SortFile(ctx, inPath, outPath, bytes.Compare, opts)
}
