package intervalfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bioindex/encoding/tabix"
)

const iteratorBufSize = 64 << 10

// Iterator walks records of a Reader, either the whole file in file order or
// the records overlapping one region in ascending start order.  Thread
// compatible.
//
//	it := r.Query("chr1", 0, 1000)
//	for it.Scan() {
//		rec := it.Record()
//		...
//	}
//	err := it.Close()
type Iterator struct {
	r      *Reader
	chunks []tabix.Chunk
	in     *bufio.Reader

	// inChunk is set while in holds the unread rest of a chunk.
	inChunk bool
	off     uint64

	// lineno is the current line number in full-scan mode, zero otherwise.
	lineno int

	query      bool
	chrom      string
	start, end int
	prevStart  int

	rec  *Record
	done bool
	err  error
}

func newErrIterator(err error) *Iterator {
	return &Iterator{done: true, err: err}
}

// Scan advances to the next record.  It returns false at the end of the
// iteration or on error; see Err.
//
// REQUIRES: Close has not been called.
func (it *Iterator) Scan() bool {
	it.rec = nil
	if it.done {
		return false
	}
	for {
		raw, off, ok := it.nextLine()
		if !ok {
			it.done = true
			return false
		}
		if it.r.parser.Skip(raw) {
			continue
		}
		rec := &Record{raw: raw, offset: off, line: it.lineno, path: it.r.path, parser: it.r.parser}
		if !it.query {
			it.rec = rec
			return true
		}
		iv, err := rec.Interval()
		if err != nil {
			if it.r.opts.Policy == Strict {
				it.err = err
				it.done = true
				return false
			}
			log.Error.Printf("%v: skipping record", err)
			continue
		}
		if iv.Chrom() != it.chrom {
			// Merged chunks may reach into a neighboring chromosome.
			continue
		}
		if iv.Start() >= it.end {
			// Records are sorted by start, so nothing later can overlap.
			it.done = true
			return false
		}
		if !tabix.Overlapping(iv, it.chrom, it.start, it.end) {
			continue
		}
		if iv.Start() < it.prevStart {
			it.err = fmt.Errorf("intervalfile: %s: record at offset %d (start %d) precedes an earlier result (start %d); is the file sorted?",
				it.r.path, off, iv.Start(), it.prevStart)
			it.done = true
			return false
		}
		it.prevStart = iv.Start()
		it.rec = rec
		return true
	}
}

// nextLine returns the next line of the remaining chunks along with its file
// offset.
func (it *Iterator) nextLine() ([]byte, uint64, bool) {
	for {
		if !it.inChunk {
			if len(it.chunks) == 0 {
				return nil, 0, false
			}
			c := it.chunks[0]
			it.chunks = it.chunks[1:]
			rd, err := it.r.rr.ReadRange(c.Begin, c.End)
			if err != nil {
				it.err = err
				return nil, 0, false
			}
			if it.in == nil {
				it.in = bufio.NewReaderSize(rd, iteratorBufSize)
			}
			it.in.Reset(rd)
			it.inChunk = true
			it.off = c.Begin
		}
		line, err := it.in.ReadBytes('\n')
		if len(line) > 0 {
			off := it.off
			it.off += uint64(len(line))
			if !it.query {
				it.lineno++
			}
			return trimEOL(line), off, true
		}
		if err == io.EOF {
			it.inChunk = false
			continue
		}
		if err != nil {
			it.err = errors.E(err, it.r.path)
			return nil, 0, false
		}
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}

// Record returns the current record.  It must be called only after Scan
// returns true.  The record stays valid after the iterator advances.
func (it *Iterator) Record() *Record { return it.rec }

// Err returns the error that ended the iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Close releases the iterator and returns Err().  The Reader stays open.
func (it *Iterator) Close() error {
	it.done = true
	it.chunks = nil
	it.in = nil
	it.inChunk = false
	it.rec = nil
	return it.err
}
