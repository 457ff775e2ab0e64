package intervalfile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/fileio"
	"github.com/grailbio/bioindex/interval"
	"github.com/pkg/errors"
)

// BEDRecord is one line of a BED file.  Columns past the sixth are kept only
// in the raw line.
type BEDRecord struct {
	interval.Entry
	Name string
	// Score is valid if HasScore is set.
	Score    float64
	HasScore bool
	// Strand is '+', '-', '.' or 0 if absent.
	Strand byte
}

// String renders r as a BED line with as many columns as were parsed.
func (r *BEDRecord) String() string {
	var b strings.Builder
	b.WriteString(r.Entry.String())
	if r.Name == "" && !r.HasScore && r.Strand == 0 {
		return b.String()
	}
	b.WriteByte('\t')
	b.WriteString(r.Name)
	if r.HasScore || r.Strand != 0 {
		b.WriteByte('\t')
		b.WriteString(strconv.FormatFloat(r.Score, 'g', -1, 64))
	}
	if r.Strand != 0 {
		b.WriteByte('\t')
		b.WriteByte(r.Strand)
	}
	return b.String()
}

// BedGraphRecord is one line of a bedGraph file.
type BedGraphRecord struct {
	interval.Entry
	Value float64
}

func (r *BedGraphRecord) String() string {
	return r.Entry.String() + "\t" + strconv.FormatFloat(r.Value, 'g', -1, 64)
}

// GeneTrackRecord is one line of a GeneTrack file: a 1-based base position
// with forward and reverse strand read counts.  It covers [Index-1, Index).
type GeneTrackRecord struct {
	interval.Entry
	Index            int
	Forward, Reverse float64
}

func (r *GeneTrackRecord) String() string {
	return fmt.Sprintf("%s\t%d\t%s\t%s", r.ChrName, r.Index,
		strconv.FormatFloat(r.Forward, 'g', -1, 64),
		strconv.FormatFloat(r.Reverse, 'g', -1, 64))
}

type bedParser struct{}

func (bedParser) Name() string { return "bed" }

func (bedParser) Skip(line []byte) bool { return skipCommon(line) }

func (bedParser) Parse(line []byte) (interval.Interval, error) {
	var tokens [6][]byte
	n := getTokens(tokens[:], line)
	if n < 3 {
		return nil, lineError(fmt.Sprintf("expected at least 3 columns, found %d", n))
	}
	e, err := parseRange(tokens[:])
	if err != nil {
		return nil, err
	}
	r := &BEDRecord{Entry: e}
	if n > 3 {
		r.Name = string(tokens[3])
	}
	if n > 4 {
		if r.Score, err = parseFloat(tokens[4], "score"); err != nil {
			return nil, err
		}
		r.HasScore = true
	}
	if n > 5 {
		if len(tokens[5]) != 1 || bytes.IndexByte([]byte("+-."), tokens[5][0]) < 0 {
			return nil, lineError(fmt.Sprintf("bad strand %q", tokens[5]))
		}
		r.Strand = tokens[5][0]
	}
	return r, nil
}

type bedGraphParser struct{}

func (bedGraphParser) Name() string { return "bedgraph" }

func (bedGraphParser) Skip(line []byte) bool { return skipCommon(line) }

func (bedGraphParser) Parse(line []byte) (interval.Interval, error) {
	var tokens [4][]byte
	if n := getTokens(tokens[:], line); n != 4 {
		return nil, lineError(fmt.Sprintf("expected 4 columns, found %d", n))
	}
	e, err := parseRange(tokens[:])
	if err != nil {
		return nil, err
	}
	v, err := parseFloat(tokens[3], "value")
	if err != nil {
		return nil, err
	}
	return &BedGraphRecord{Entry: e, Value: v}, nil
}

type geneTrackParser struct{}

func (geneTrackParser) Name() string { return "genetrack" }

// Skip also drops the "chrom index forward reverse" column header.
func (geneTrackParser) Skip(line []byte) bool {
	return skipCommon(line) || bytes.HasPrefix(line, []byte("chrom\t"))
}

func (geneTrackParser) Parse(line []byte) (interval.Interval, error) {
	var tokens [4][]byte
	if n := getTokens(tokens[:], line); n != 4 {
		return nil, lineError(fmt.Sprintf("expected 4 columns, found %d", n))
	}
	index, err := parseCoord(tokens[1], "index")
	if err != nil {
		return nil, err
	}
	if index == 0 {
		return nil, lineError("index must be 1-based")
	}
	r := &GeneTrackRecord{
		Entry: interval.Entry{ChrName: string(tokens[0]), Start0: index - 1, Limit: index},
		Index: index,
	}
	if r.Forward, err = parseFloat(tokens[2], "forward count"); err != nil {
		return nil, err
	}
	if r.Reverse, err = parseFloat(tokens[3], "reverse count"); err != nil {
		return nil, err
	}
	return r, nil
}

var (
	// BED parses BED3 to BED6 lines.
	BED Parser = bedParser{}
	// BedGraph parses four-column bedGraph lines.
	BedGraph Parser = bedGraphParser{}
	// GeneTrack parses GeneTrack lines.
	GeneTrack Parser = geneTrackParser{}
)

var formats = map[string]Parser{
	"bed":       BED,
	"bedgraph":  BedGraph,
	"bg":        BedGraph,
	"genetrack": GeneTrack,
	"gtrack":    GeneTrack,
}

// FormatByName returns the parser for a format name, case-insensitively.
func FormatByName(name string) (Parser, error) {
	p, ok := formats[strings.ToLower(name)]
	if !ok {
		return nil, errors.Errorf("intervalfile: unknown format %q", name)
	}
	return p, nil
}

// FormatFromPath picks a parser from the file extension.  Compressed files
// are rejected since queries need to seek in the uncompressed text.
func FormatFromPath(path string) (Parser, error) {
	if fileio.DetermineType(path) == fileio.Gzip {
		return nil, errors.Errorf("intervalfile: %s: compressed sources are not supported", path)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, errors.Errorf("intervalfile: %s: no file extension to infer the format from", path)
	}
	return FormatByName(ext)
}
