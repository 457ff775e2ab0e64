package linesort

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// A chunk file is a sequence of blocks, each holding whole newline-terminated
// lines:
//
//   rawLen    uint32
//   storedLen uint32 (0: the block is stored uncompressed)
//   data      [storedLen or rawLen]byte
//
// Integers are little endian.

const (
	chunkBlockSize       = 1 << 20
	chunkBlockHeaderSize = 8
	chunkBufSize         = 256 << 10
)

type chunkWriter struct {
	w     *bufio.Writer
	codec Codec
	raw   []byte
	comp  []byte
	hdr   [chunkBlockHeaderSize]byte
}

func newChunkWriter(w io.Writer, codec Codec) *chunkWriter {
	return &chunkWriter{
		w:     bufio.NewWriterSize(w, chunkBufSize),
		codec: codec,
		raw:   make([]byte, 0, chunkBlockSize+4096),
	}
}

// add appends one line, which must not contain a newline.
func (w *chunkWriter) add(line []byte) error {
	w.raw = append(w.raw, line...)
	w.raw = append(w.raw, '\n')
	if len(w.raw) >= chunkBlockSize {
		return w.flushBlock()
	}
	return nil
}

func (w *chunkWriter) flushBlock() error {
	if len(w.raw) == 0 {
		return nil
	}
	var stored []byte
	switch w.codec {
	case Snappy:
		w.comp = snappy.Encode(w.comp[:cap(w.comp)], w.raw)
		stored = w.comp
	case LZ4:
		if bound := lz4.CompressBlockBound(len(w.raw)); cap(w.comp) < bound {
			w.comp = make([]byte, bound)
		}
		n, err := lz4.CompressBlock(w.raw, w.comp[:cap(w.comp)], nil)
		if err != nil {
			return err
		}
		// n == 0 means incompressible.
		stored = w.comp[:n]
	}
	binary.LittleEndian.PutUint32(w.hdr[0:], uint32(len(w.raw)))
	binary.LittleEndian.PutUint32(w.hdr[4:], uint32(len(stored)))
	if _, err := w.w.Write(w.hdr[:]); err != nil {
		return err
	}
	data := stored
	if len(stored) == 0 {
		data = w.raw
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	w.raw = w.raw[:0]
	return nil
}

// finish flushes buffered lines.  The underlying writer is not closed.
func (w *chunkWriter) finish() error {
	if err := w.flushBlock(); err != nil {
		return err
	}
	return w.w.Flush()
}

// chunkReader reads the lines of one chunk file in order.
type chunkReader struct {
	path  string
	f     *os.File
	r     *bufio.Reader
	codec Codec
	hdr   [chunkBlockHeaderSize]byte
	comp  []byte
	block []byte
	pos   int
	line  []byte
	err   error
}

func openChunk(path string, codec Codec) (*chunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &chunkReader{path: path, f: f, r: bufio.NewReaderSize(f, chunkBufSize), codec: codec}, nil
}

// scan advances to the next line.  It returns false at the end of the chunk
// or on error.
func (c *chunkReader) scan() bool {
	if c.err != nil {
		return false
	}
	if c.pos >= len(c.block) {
		if !c.readBlock() {
			return false
		}
	}
	i := bytes.IndexByte(c.block[c.pos:], '\n')
	if i < 0 {
		c.err = fmt.Errorf("linesort: %s: unterminated line in chunk", c.path)
		return false
	}
	c.line = c.block[c.pos : c.pos+i]
	c.pos += i + 1
	return true
}

func (c *chunkReader) readBlock() bool {
	if _, err := io.ReadFull(c.r, c.hdr[:]); err != nil {
		if err != io.EOF {
			c.err = fmt.Errorf("linesort: %s: %v", c.path, err)
		}
		return false
	}
	rawLen := int(binary.LittleEndian.Uint32(c.hdr[0:]))
	storedLen := int(binary.LittleEndian.Uint32(c.hdr[4:]))
	if cap(c.block) < rawLen {
		c.block = make([]byte, rawLen)
	}
	c.block = c.block[:rawLen]
	c.pos = 0
	if storedLen == 0 {
		if _, err := io.ReadFull(c.r, c.block); err != nil {
			c.err = fmt.Errorf("linesort: %s: %v", c.path, err)
			return false
		}
		return true
	}
	if cap(c.comp) < storedLen {
		c.comp = make([]byte, storedLen)
	}
	c.comp = c.comp[:storedLen]
	if _, err := io.ReadFull(c.r, c.comp); err != nil {
		c.err = fmt.Errorf("linesort: %s: %v", c.path, err)
		return false
	}
	var n int
	var err error
	switch c.codec {
	case Snappy:
		var out []byte
		if out, err = snappy.Decode(c.block, c.comp); err == nil {
			n = len(out)
			c.block = out
		}
	case LZ4:
		n, err = lz4.UncompressBlock(c.comp, c.block)
	default:
		err = fmt.Errorf("compressed block in uncompressed chunk")
	}
	if err == nil && n != rawLen {
		err = fmt.Errorf("block size mismatch: %d, want %d", n, rawLen)
	}
	if err != nil {
		c.err = fmt.Errorf("linesort: %s: %v", c.path, err)
		return false
	}
	return true
}

func (c *chunkReader) close() error {
	return c.f.Close()
}
