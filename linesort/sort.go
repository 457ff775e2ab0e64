package linesort

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"v.io/x/lib/vlog"
)

// Compare returns a negative number, zero, or a positive number when line a
// sorts before, together with, or after line b.  Lines (or their keys, see
// Options.Key) are passed without their terminators and must not be retained.
type Compare func(a, b []byte) int

// sortEntry is a line with its precomputed key.
type sortEntry struct {
	key  []byte
	line []byte
}

// lineOverhead approximates the memory cost of one buffered line beyond its
// bytes.
const lineOverhead = 32

const ioBufSize = 1 << 20

type sorter struct {
	opts   Options
	cmp    Compare
	chunks []string
	// tmp holds every chunk file that has not been removed yet.
	tmp map[string]struct{}
	// finalNewline is false if the input's last line was unterminated.
	finalNewline bool
	nLines       int
}

// keyOf returns the key of line, which is the line itself without
// Options.Key.
func (s *sorter) keyOf(line []byte) []byte {
	if s.opts.Key == nil {
		return line
	}
	return s.opts.Key(line)
}

// Sort reads lines from in, sorts them with cmp, and writes them to out.
// Every output line is newline-terminated unless the input's last line was
// not, in which case the last output line is not either; so sorting an
// already sorted input reproduces it byte for byte.  Temporary files are
// removed before Sort returns, whether it succeeds or not.
func Sort(ctx context.Context, in io.Reader, out io.Writer, cmp Compare, opts Options) (err error) {
	s := &sorter{
		opts:         opts.withDefaults(),
		cmp:          cmp,
		tmp:          make(map[string]struct{}),
		finalNewline: true,
	}
	defer s.cleanup()
	vlog.VI(1).Infof("Sorting with options %+v", s.opts)

	var (
		batch      []sortEntry
		batchBytes int64
		br         = bufio.NewReaderSize(in, ioBufSize)
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, rerr := br.ReadBytes('\n')
		if len(line) > 0 {
			if line[len(line)-1] == '\n' {
				line = line[:len(line)-1]
			} else {
				s.finalNewline = false
			}
			if len(batch) > 0 && s.batchFull(len(batch), batchBytes) {
				if err := s.spill(batch); err != nil {
					return err
				}
				batch, batchBytes = nil, 0
			}
			e := sortEntry{key: s.keyOf(line), line: line}
			batch = append(batch, e)
			batchBytes += int64(len(line)) + lineOverhead
			if s.opts.Key != nil {
				batchBytes += int64(len(e.key))
			}
			s.nLines++
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	w := newLineWriter(out)
	if len(s.chunks) == 0 {
		// Everything fit in memory.
		s.sortBatch(batch)
		for _, e := range batch {
			if err := w.write(e.line); err != nil {
				return err
			}
		}
		return w.finish(s.finalNewline)
	}
	if len(batch) > 0 {
		if err := s.spill(batch); err != nil {
			return err
		}
	}
	if err := s.reduce(ctx); err != nil {
		return err
	}
	if err := s.merge(s.chunks, w.write); err != nil {
		return err
	}
	return w.finish(s.finalNewline)
}

func (s *sorter) batchFull(nLines int, nBytes int64) bool {
	if s.opts.BatchLines > 0 && nLines >= s.opts.BatchLines {
		return true
	}
	return nBytes >= s.opts.BatchBytes
}

func (s *sorter) sortBatch(batch []sortEntry) {
	sort.SliceStable(batch, func(i, j int) bool {
		return s.cmp(batch[i].key, batch[j].key) < 0
	})
}

// newChunk creates an empty temporary chunk file.
func (s *sorter) newChunk() (*os.File, error) {
	f, err := ioutil.TempFile(s.opts.TmpDir, "linesort")
	if err != nil {
		return nil, err
	}
	s.tmp[f.Name()] = struct{}{}
	return f, nil
}

func (s *sorter) removeChunk(path string) {
	if err := os.Remove(path); err != nil {
		vlog.Errorf("linesort: failed to remove tmp file %v: %v", path, err)
	}
	delete(s.tmp, path)
}

func (s *sorter) cleanup() {
	for path := range s.tmp {
		s.removeChunk(path)
	}
}

// spill sorts batch and writes it to a new chunk file.
func (s *sorter) spill(batch []sortEntry) error {
	vlog.VI(1).Infof("Sorting %d lines into chunk %d", len(batch), len(s.chunks))
	s.sortBatch(batch)
	f, err := s.newChunk()
	if err != nil {
		return err
	}
	s.chunks = append(s.chunks, f.Name())
	w := newChunkWriter(f, s.opts.Codec)
	e := errors.Once{}
	for _, entry := range batch {
		if err := w.add(entry.line); err != nil {
			e.Set(err)
			break
		}
	}
	e.Set(w.finish())
	e.Set(f.Close())
	return e.Err()
}

// reduce merges consecutive groups of chunks until at most MaxOpenFiles
// remain.  Merging consecutive groups keeps chunks in input order, so
// stability is preserved across passes.
func (s *sorter) reduce(ctx context.Context) error {
	fanIn := s.opts.MaxOpenFiles
	for pass := 1; len(s.chunks) > fanIn; pass++ {
		vlog.VI(1).Infof("Merge pass %d: %d chunks, fan-in %d", pass, len(s.chunks), fanIn)
		var next []string
		for i := 0; i < len(s.chunks); i += fanIn {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := i + fanIn
			if end > len(s.chunks) {
				end = len(s.chunks)
			}
			group := s.chunks[i:end]
			if len(group) == 1 {
				next = append(next, group[0])
				continue
			}
			path, err := s.mergeToChunk(group)
			if err != nil {
				return err
			}
			for _, p := range group {
				s.removeChunk(p)
			}
			next = append(next, path)
		}
		s.chunks = next
	}
	return nil
}

func (s *sorter) mergeToChunk(group []string) (string, error) {
	f, err := s.newChunk()
	if err != nil {
		return "", err
	}
	w := newChunkWriter(f, s.opts.Codec)
	e := errors.Once{}
	e.Set(s.merge(group, w.add))
	e.Set(w.finish())
	e.Set(f.Close())
	return f.Name(), e.Err()
}

// merge opens the chunks at paths and merges them into emit.
func (s *sorter) merge(paths []string, emit func([]byte) error) (err error) {
	readers := make([]*chunkReader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			if cerr := r.close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()
	for _, path := range paths {
		r, err := openChunk(path, s.opts.Codec)
		if err != nil {
			return err
		}
		readers = append(readers, r)
	}
	return mergeChunks(readers, s.cmp, s.keyOf, emit)
}

// lineWriter writes newline-separated lines, holding back the newline after
// the last line until finish.
type lineWriter struct {
	w       *bufio.Writer
	started bool
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: bufio.NewWriterSize(w, ioBufSize)}
}

func (w *lineWriter) write(line []byte) error {
	if w.started {
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	w.started = true
	_, err := w.w.Write(line)
	return err
}

func (w *lineWriter) finish(finalNewline bool) error {
	if w.started && finalNewline {
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

// SortFile sorts the lines of inPath into outPath, which must be a different
// file.  On failure the partial output is removed.
func SortFile(ctx context.Context, inPath, outPath string, cmp Compare, opts Options) (err error) {
	if filepath.Clean(inPath) == filepath.Clean(outPath) {
		return fmt.Errorf("linesort: input and output are the same file: %s", inPath)
	}
	in, err := file.Open(ctx, inPath)
	if err != nil {
		return errors.E(err, inPath)
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return errors.E(err, outPath)
	}
	err = Sort(ctx, in.Reader(ctx), out.Writer(ctx), cmp, opts)
	if cerr := out.Close(ctx); cerr != nil && err == nil {
		err = errors.E(cerr, outPath)
	}
	if err != nil {
		if rerr := file.Remove(ctx, outPath); rerr != nil {
			vlog.Errorf("linesort: failed to remove partial output %v: %v", outPath, rerr)
		}
	}
	return err
}
