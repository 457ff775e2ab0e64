package linesort

import (
	"bytes"
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// textSniffSize is how much of a file IsASCIIText looks at.
const textSniffSize = 4096

// CountLines returns the number of lines in the file at path, like "wc -l"
// except that an unterminated last line is counted too.
func CountLines(ctx context.Context, path string) (n int, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return 0, errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	r := in.Reader(ctx)
	buf := make([]byte, ioBufSize)
	last := byte('\n')
	for {
		m, rerr := r.Read(buf)
		if m > 0 {
			n += bytes.Count(buf[:m], []byte{'\n'})
			last = buf[m-1]
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, errors.E(rerr, path)
		}
	}
	if last != '\n' {
		n++
	}
	return n, nil
}

// IsASCIIText reports whether the first few KiB of the file at path are
// 7-bit ASCII.
func IsASCIIText(ctx context.Context, path string) (_ bool, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return false, errors.E(err, path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	buf := make([]byte, textSniffSize)
	m, err := io.ReadFull(in.Reader(ctx), buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, errors.E(err, path)
	}
	for _, c := range buf[:m] {
		if c >= 0x80 {
			return false, nil
		}
	}
	return true, nil
}
