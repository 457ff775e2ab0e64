package intervalfile

import "github.com/grailbio/bioindex/interval"

// Record is one record line of a source file.  The line is parsed the first
// time Interval is called; the result, or the parse error, is kept.
type Record struct {
	raw    []byte
	offset uint64
	line   int
	path   string
	parser Parser

	parsed bool
	iv     interval.Interval
	err    error
}

// Raw returns the line without its terminator.  The caller must not modify it.
func (r *Record) Raw() []byte { return r.raw }

// Offset is the byte offset of the start of the line in the source file.
func (r *Record) Offset() uint64 { return r.offset }

// Interval parses the record.  Parse failures are reported as *ParseError.
func (r *Record) Interval() (interval.Interval, error) {
	if !r.parsed {
		r.parsed = true
		r.iv, r.err = r.parser.Parse(r.raw)
		if r.err != nil {
			r.iv = nil
			r.err = &ParseError{Path: r.path, Line: r.line, Offset: r.offset, Msg: r.err.Error()}
		}
	}
	return r.iv, r.err
}
