package intervalfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// RangeReader gives access to byte ranges of a source file.
type RangeReader interface {
	// ReadRange returns a reader over the bytes [begin, end).  Each reader has
	// its own position, so readers of overlapping or interleaved ranges may be
	// used together.  Readers are valid until Close.
	ReadRange(begin, end uint64) (io.Reader, error)
	// Size is the file size.
	Size() int64
	Close() error
}

type seekRangeReader struct {
	ctx  context.Context
	path string
	f    file.File
	r    io.ReadSeeker
	size int64
	// pos is the position of r, or -1 after a failed seek or read.
	pos int64
}

// NewSeekRangeReader opens path with grailbio/base/file and serves ranges by
// seeking.  Works for any path the file package supports.
func NewSeekRangeReader(ctx context.Context, path string) (RangeReader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	info, err := f.Stat(ctx)
	if err != nil {
		_ = f.Close(ctx)
		return nil, errors.E(err, path)
	}
	return &seekRangeReader{ctx: ctx, path: path, f: f, r: f.Reader(ctx), size: info.Size()}, nil
}

func (s *seekRangeReader) ReadRange(begin, end uint64) (io.Reader, error) {
	if begin > end || end > uint64(s.size) {
		return nil, fmt.Errorf("intervalfile: %s: range [%d, %d) outside file of size %d", s.path, begin, end, s.size)
	}
	return &seekSection{s: s, off: int64(begin), end: int64(end)}, nil
}

// seekSection reads [off, end) of a seekRangeReader, seeking back to its own
// position whenever another section moved the shared file offset.
type seekSection struct {
	s        *seekRangeReader
	off, end int64
}

func (r *seekSection) Read(p []byte) (int, error) {
	if r.off >= r.end {
		return 0, io.EOF
	}
	if rem := r.end - r.off; int64(len(p)) > rem {
		p = p[:rem]
	}
	s := r.s
	if s.pos != r.off {
		if _, err := s.r.Seek(r.off, io.SeekStart); err != nil {
			s.pos = -1
			return 0, errors.E(err, s.path)
		}
		s.pos = r.off
	}
	n, err := s.r.Read(p)
	r.off += int64(n)
	s.pos += int64(n)
	if err == io.EOF {
		if r.off < r.end {
			return n, errors.E(io.ErrUnexpectedEOF, s.path)
		}
		err = nil
	}
	if err != nil {
		s.pos = -1
		return n, errors.E(err, s.path)
	}
	return n, nil
}

func (s *seekRangeReader) Size() int64 { return s.size }

func (s *seekRangeReader) Close() error {
	return s.f.Close(s.ctx)
}

type mmapRangeReader struct {
	path string
	m    mmap.MMap
	// data aliases m; it stays nil for an empty file, which cannot be mapped.
	data []byte
}

// NewMmapRangeReader maps the local file at path into memory.
func NewMmapRangeReader(path string) (RangeReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, path)
	}
	defer f.Close() // nolint: errcheck
	info, err := f.Stat()
	if err != nil {
		return nil, errors.E(err, path)
	}
	r := &mmapRangeReader{path: path}
	if info.Size() == 0 {
		return r, nil
	}
	if r.m, err = mmap.Map(f, mmap.RDONLY, 0); err != nil {
		return nil, errors.E(err, "mmap", path)
	}
	r.data = []byte(r.m)
	return r, nil
}

func (m *mmapRangeReader) ReadRange(begin, end uint64) (io.Reader, error) {
	if begin > end || end > uint64(len(m.data)) {
		return nil, fmt.Errorf("intervalfile: %s: range [%d, %d) outside file of size %d", m.path, begin, end, len(m.data))
	}
	return bytes.NewReader(m.data[begin:end]), nil
}

func (m *mmapRangeReader) Size() int64 { return int64(len(m.data)) }

func (m *mmapRangeReader) Close() error {
	m.data = nil
	if m.m == nil {
		return nil
	}
	err := m.m.Unmap()
	m.m = nil
	return err
}
