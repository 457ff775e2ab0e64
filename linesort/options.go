package linesort

import "fmt"

// DefaultBatchBytes is the default value of Options.BatchBytes.
const DefaultBatchBytes = 64 << 20

// Codec selects the compression of temporary chunk files.
type Codec int

const (
	// Snappy compresses chunk blocks with github.com/golang/snappy.
	Snappy Codec = iota
	// LZ4 compresses chunk blocks with github.com/pierrec/lz4.
	LZ4
	// NoCompression stores chunk blocks as is.
	NoCompression
)

func (c Codec) String() string {
	switch c {
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case NoCompression:
		return "none"
	}
	return fmt.Sprintf("Codec(%d)", int(c))
}

// ParseCodec is the inverse of Codec.String.
func ParseCodec(name string) (Codec, error) {
	for _, c := range []Codec{Snappy, LZ4, NoCompression} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("linesort: unknown codec %q", name)
}

// Options controls Sort.  The zero value is usable.
type Options struct {
	// BatchBytes bounds the approximate memory held by one in-memory batch.
	// Zero means DefaultBatchBytes.
	BatchBytes int64
	// BatchLines, if positive, also bounds the number of lines per batch.
	BatchLines int
	// MaxOpenFiles bounds how many chunk files are merged at once.  Zero
	// means a value derived from the process's open file limit.  Values below
	// 2 are raised to 2.
	MaxOpenFiles int
	// TmpDir holds the chunk files.  "" means the system default.
	TmpDir string
	// Codec compresses chunk files.
	Codec Codec
	// Key, if set, maps each line to the key that the Compare function sees.
	// It is called once per line when batching and once per line per merge
	// pass, instead of on every comparison.  The key may alias the line.
	Key KeyFunc
}

// KeyFunc extracts a sort key from a line passed without its terminator.
type KeyFunc func(line []byte) []byte

func (o Options) withDefaults() Options {
	if o.BatchBytes <= 0 {
		o.BatchBytes = DefaultBatchBytes
	}
	if o.MaxOpenFiles == 0 {
		o.MaxOpenFiles = defaultMaxOpenFiles()
	}
	if o.MaxOpenFiles < 2 {
		o.MaxOpenFiles = 2
	}
	return o
}

// maxDefaultOpenFiles caps the fan-in derived from the file limit.
const maxDefaultOpenFiles = 1024

// fanInFromLimit keeps half of the file limit for the rest of the process.
func fanInFromLimit(limit uint64) int {
	n := limit / 2
	if n > maxDefaultOpenFiles {
		n = maxDefaultOpenFiles
	}
	if n < 2 {
		n = 2
	}
	return int(n)
}
