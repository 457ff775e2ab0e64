package intervalfile

import (
	"bytes"
	"fmt"
	"strconv"

	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/bioindex/interval"
)

// Parser converts the lines of one text format into intervals.  Parsers are
// stateless and safe for concurrent use.
type Parser interface {
	// Name is the short format name accepted by FormatByName.
	Name() string
	// Skip reports whether line carries no record: blank lines, comments and
	// headers.
	Skip(line []byte) bool
	// Parse parses one record line, without its line terminator.
	Parse(line []byte) (interval.Interval, error)
}

// Policy decides what happens to a record line that fails to parse.
type Policy int

const (
	// Lenient logs the bad line and skips it.
	Lenient Policy = iota
	// Strict stops with a *ParseError.
	Strict
)

// ParseError describes a malformed record line.  Line is 1-based; it is zero
// when the line was reached through an index, where line numbers are unknown.
type ParseError struct {
	Path   string
	Line   int
	Offset uint64
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s@%d: %s", e.Path, e.Offset, e.Msg)
}

// lineError is what parsers return; the reader turns it into a ParseError
// once the location is known.
type lineError string

func (e lineError) Error() string { return string(e) }

// getTokens splits curLine on whitespace into tokens, stopping after
// len(tokens) of them.  It returns the number of tokens found.  The last token
// does not extend past the next whitespace character, so extra columns are
// ignored.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

func isBlank(line []byte) bool {
	for _, c := range line {
		if c > ' ' {
			return false
		}
	}
	return true
}

// skipCommon reports comment, track, browser and blank lines.
func skipCommon(line []byte) bool {
	return isBlank(line) ||
		line[0] == '#' ||
		bytes.HasPrefix(line, []byte("track")) ||
		bytes.HasPrefix(line, []byte("browser"))
}

func parseCoord(tok []byte, what string) (int, error) {
	v, err := strconv.Atoi(gunsafe.BytesToString(tok))
	if err != nil {
		return 0, lineError(fmt.Sprintf("bad %s %q", what, tok))
	}
	if v < 0 || v > interval.MaxPos {
		return 0, lineError(fmt.Sprintf("%s %d out of range", what, v))
	}
	return v, nil
}

func parseFloat(tok []byte, what string) (float64, error) {
	v, err := strconv.ParseFloat(gunsafe.BytesToString(tok), 64)
	if err != nil {
		return 0, lineError(fmt.Sprintf("bad %s %q", what, tok))
	}
	return v, nil
}

// parseRange parses the chrom, start and end columns shared by BED-like
// formats.
func parseRange(tokens [][]byte) (interval.Entry, error) {
	start, err := parseCoord(tokens[1], "start")
	if err != nil {
		return interval.Entry{}, err
	}
	end, err := parseCoord(tokens[2], "end")
	if err != nil {
		return interval.Entry{}, err
	}
	e, err := interval.NewEntry(string(tokens[0]), start, end)
	if err != nil {
		return interval.Entry{}, lineError(err.Error())
	}
	return e, nil
}
