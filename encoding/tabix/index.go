package tabix

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"time"

	"github.com/antzucaro/matchr"
	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// Chunk is a half-open byte range [Begin, End) in the source file.
type Chunk struct {
	Begin uint64
	End   uint64
}

// Len returns the number of bytes in the chunk.
func (c Chunk) Len() uint64 { return c.End - c.Begin }

func (c Chunk) String() string {
	return fmt.Sprintf("[%d-%d]", c.Begin, c.End)
}

// Bin holds the chunks of one bin, in ascending offset order.
type Bin struct {
	ID     uint32
	Chunks []Chunk
}

// Reference is the per-chromosome part of an Index.
type Reference struct {
	Name string
	// Bins is sorted by ID. Only populated bins are present.
	Bins []Bin
	// Linear[w] is the smallest begin offset of a record overlapping window w
	// (a finest-level bin).  Windows without records take the value of the
	// next populated window.
	Linear []uint64
	// MaxEnd is the largest record end seen on this chromosome.
	MaxEnd int
}

// bin returns the Bin with the given id, or nil.
func (r *Reference) bin(id uint32) *Bin {
	lo, hi := 0, len(r.Bins)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if r.Bins[mid].ID < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(r.Bins) && r.Bins[lo].ID == id {
		return &r.Bins[lo]
	}
	return nil
}

// Index maps chromosome -> bin -> chunks for one source file.  It is
// immutable once built and safe for concurrent queries.
type Index struct {
	Scheme Scheme
	// SourceSize and SourceModTime identify the version of the source file
	// the index was built from.
	SourceSize    int64
	SourceModTime time.Time
	// Refs are in the order the chromosomes first appear in the source.
	Refs []Reference

	refIdx map[string]int
}

func (idx *Index) initRefIdx() {
	idx.refIdx = make(map[string]int, len(idx.Refs))
	for i := range idx.Refs {
		idx.refIdx[idx.Refs[i].Name] = i
	}
}

// Ref returns the Reference for chrom, or nil if the chromosome is absent.
func (idx *Index) Ref(chrom string) *Reference {
	i, ok := idx.refIdx[chrom]
	if !ok {
		return nil
	}
	return &idx.Refs[i]
}

// Chromosomes lists the indexed chromosome names in first-seen order.
func (idx *Index) Chromosomes() []string {
	names := make([]string, len(idx.Refs))
	for i := range idx.Refs {
		names[i] = idx.Refs[i].Name
	}
	return names
}

// ChromLength returns the largest record end seen on chrom.  For an unknown
// chromosome, it returns *UnknownChromosomeError naming the closest known
// chromosome.
func (idx *Index) ChromLength(chrom string) (int, error) {
	if ref := idx.Ref(chrom); ref != nil {
		return ref.MaxEnd, nil
	}
	err := &UnknownChromosomeError{Chrom: chrom}
	best := -1
	for i := range idx.Refs {
		d := matchr.Levenshtein(chrom, idx.Refs[i].Name)
		if best < 0 || d < best {
			best = d
			err.Suggestion = idx.Refs[i].Name
		}
	}
	return 0, err
}

// CheckFresh returns *IndexStaleError unless the index was built from a
// source with the given size and modification time.
func (idx *Index) CheckFresh(path string, size int64, modTime time.Time) error {
	if idx.SourceSize == size && idx.SourceModTime.UnixNano() == modTime.UnixNano() {
		return nil
	}
	return &IndexStaleError{
		Path:          path,
		IndexSize:     idx.SourceSize,
		SourceSize:    size,
		IndexModTime:  idx.SourceModTime,
		SourceModTime: modTime,
	}
}

var indexMagic = [4]byte{'G', 'T', 'B', 'I'}

// IndexVersion is the version of the persisted layout written by WriteIndex.
const IndexVersion uint32 = 1

// The persisted index is a gzip stream of:
//
//   magic    [4]byte "GTBI"
//   version  uint32
//   minShift uint32, depth uint32, strict uint32
//   srcSize  int64, srcMtime int64 (unix nanoseconds)
//   nRef     uint32
//   nRef times:
//     nameLen uint32, name [nameLen]byte
//     maxEnd  int64
//     nBin    uint32
//     nBin times:
//       id uint32, nChunk uint32, nChunk times {begin uint64, end uint64}
//     nLinear uint32, nLinear times {offset uint64}
//   fingerprint uint64 (farm.Fingerprint64 of everything above)
//
// All integers are little endian.

type indexEncoder struct {
	buf bytes.Buffer
	tmp [8]byte
}

func (e *indexEncoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.tmp[:4], v)
	e.buf.Write(e.tmp[:4])
}

func (e *indexEncoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.tmp[:], v)
	e.buf.Write(e.tmp[:])
}

// WriteIndex serializes idx to w.
func WriteIndex(w io.Writer, idx *Index) error {
	e := &indexEncoder{}
	e.buf.Write(indexMagic[:])
	e.u32(IndexVersion)
	scheme := idx.Scheme.withDefaults()
	e.u32(uint32(scheme.MinShift))
	e.u32(uint32(scheme.Depth))
	if scheme.Strict {
		e.u32(1)
	} else {
		e.u32(0)
	}
	e.u64(uint64(idx.SourceSize))
	e.u64(uint64(idx.SourceModTime.UnixNano()))
	e.u32(uint32(len(idx.Refs)))
	for i := range idx.Refs {
		ref := &idx.Refs[i]
		e.u32(uint32(len(ref.Name)))
		e.buf.WriteString(ref.Name)
		e.u64(uint64(ref.MaxEnd))
		e.u32(uint32(len(ref.Bins)))
		for _, bin := range ref.Bins {
			e.u32(bin.ID)
			e.u32(uint32(len(bin.Chunks)))
			for _, c := range bin.Chunks {
				e.u64(c.Begin)
				e.u64(c.End)
			}
		}
		e.u32(uint32(len(ref.Linear)))
		for _, off := range ref.Linear {
			e.u64(off)
		}
	}
	e.u64(farm.Fingerprint64(e.buf.Bytes()))

	gz := gzip.NewWriter(w)
	if _, err := gz.Write(e.buf.Bytes()); err != nil {
		return err
	}
	return gz.Close()
}

type indexDecoder struct {
	data []byte
	err  error
}

func (d *indexDecoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = errors.E(errors.Integrity, fmt.Sprintf("tabix: corrupt index: "+format, args...))
	}
}

func (d *indexDecoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.data) < n {
		d.fail("truncated (want %d bytes, have %d)", n, len(d.data))
		return nil
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

func (d *indexDecoder) u32() uint32 {
	if b := d.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *indexDecoder) u64() uint64 {
	if b := d.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// count reads a length prefix and checks that at least count*elemSize bytes
// remain, so that corrupt input cannot trigger huge allocations.
func (d *indexDecoder) count(elemSize int) int {
	n := int(d.u32())
	if d.err == nil && n*elemSize > len(d.data) {
		d.fail("count %d exceeds remaining %d bytes", n, len(d.data))
		return 0
	}
	return n
}

// ReadIndex parses an index written by WriteIndex.  A corrupt or truncated
// index yields an error of kind errors.Integrity.
func ReadIndex(r io.Reader) (*Index, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.E(errors.Integrity, "tabix: index is not gzip-compressed", err)
	}
	data, err := ioutil.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	if len(data) < len(indexMagic)+8 {
		return nil, errors.E(errors.Integrity, "tabix: index too short")
	}
	body, trailer := data[:len(data)-8], data[len(data)-8:]
	if !bytes.Equal(body[:4], indexMagic[:]) {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("tabix: index invalid magic: %v", body[:4]))
	}
	if got, want := farm.Fingerprint64(body), binary.LittleEndian.Uint64(trailer); got != want {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("tabix: index fingerprint mismatch: %x, want %x", got, want))
	}
	d := &indexDecoder{data: body[4:]}
	if v := d.u32(); v != IndexVersion {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("tabix: wrong index version %d; expect %d", v, IndexVersion))
	}
	idx := &Index{}
	idx.Scheme.MinShift = uint(d.u32())
	idx.Scheme.Depth = uint(d.u32())
	idx.Scheme.Strict = d.u32() != 0
	if d.err == nil {
		if err := idx.Scheme.Validate(); err != nil {
			return nil, errors.E(errors.Integrity, err)
		}
	}
	idx.SourceSize = int64(d.u64())
	idx.SourceModTime = time.Unix(0, int64(d.u64()))
	nBinsTotal := idx.Scheme.NumBins()
	nRef := d.count(4)
	idx.Refs = make([]Reference, nRef)
	for i := 0; i < nRef && d.err == nil; i++ {
		ref := &idx.Refs[i]
		ref.Name = string(d.next(d.count(1)))
		ref.MaxEnd = int(d.u64())
		nBin := d.count(8)
		ref.Bins = make([]Bin, nBin)
		for j := 0; j < nBin && d.err == nil; j++ {
			bin := &ref.Bins[j]
			bin.ID = d.u32()
			if int(bin.ID) >= nBinsTotal || (j > 0 && bin.ID <= ref.Bins[j-1].ID) {
				d.fail("chromosome %v: bad bin id %d", ref.Name, bin.ID)
			}
			nChunk := d.count(16)
			bin.Chunks = make([]Chunk, nChunk)
			for k := 0; k < nChunk && d.err == nil; k++ {
				c := Chunk{Begin: d.u64(), End: d.u64()}
				if c.End < c.Begin {
					d.fail("chromosome %v bin %d: bad chunk %v", ref.Name, bin.ID, c)
				}
				bin.Chunks[k] = c
			}
		}
		nLinear := d.count(8)
		ref.Linear = make([]uint64, nLinear)
		for j := 0; j < nLinear; j++ {
			ref.Linear[j] = d.u64()
		}
	}
	if d.err == nil && len(d.data) != 0 {
		d.fail("%d trailing bytes", len(d.data))
	}
	if d.err != nil {
		return nil, d.err
	}
	idx.initRefIdx()
	return idx, nil
}

// WriteIndexFile persists idx at path.  The index is first written to
// path+".tmp" and renamed into place, so a failed write never replaces an
// existing index.  The temporary file is removed on failure.  path must be on
// the local filesystem.
func WriteIndexFile(ctx context.Context, path string, idx *Index) (err error) {
	tmpPath := path + ".tmp"
	out, err := file.Create(ctx, tmpPath)
	if err != nil {
		return errors.E(err, tmpPath)
	}
	if err = WriteIndex(out.Writer(ctx), idx); err != nil {
		err = errors.E(err, tmpPath)
	}
	if cerr := out.Close(ctx); cerr != nil && err == nil {
		err = errors.E(cerr, tmpPath)
	}
	if err == nil {
		if rerr := os.Rename(tmpPath, path); rerr != nil {
			err = errors.E(rerr, path)
		}
	}
	if err != nil {
		_ = file.Remove(ctx, tmpPath)
	}
	return err
}

// ReadIndexFile reads an index written by WriteIndexFile.
func ReadIndexFile(ctx context.Context, path string) (idx *Index, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	if idx, err = ReadIndex(in.Reader(ctx)); err != nil {
		return nil, errors.E(err, path)
	}
	return idx, nil
}
