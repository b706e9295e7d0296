// Package csvline splits single delimiter-separated text lines into fields.
//
// It is deliberately smaller than encoding/csv: a line never spans newlines,
// quote characters stay in the field text, and a quote in the middle of an
// unquoted field is accepted instead of being reported as a bare quote. The
// only rule is quote parity: a delimiter separates fields when the number of
// quotes seen in the current field is even.
package csvline

import "strings"

const quote = '"'

// Options controls tokenization of one line.
type Options struct {
	// Delimiter separates fields. If 0, ',' is used.
	Delimiter byte
	// DropCR discards carriage returns anywhere in the line. Data rows set it,
	// header rows leave it off so stray "\r" cells can be detected.
	DropCR bool
}

func (o Options) delim() byte {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// Scanner walks the fields of one line lazily. Reset starts it over on a new
// (or the same) line, so a single Scanner can be reused across a whole file.
type Scanner struct {
	opt   Options
	line  string
	pos   int
	done  bool
	field string
	buf   strings.Builder
}

// NewScanner returns a Scanner positioned at the start of line.
func NewScanner(line string, opt Options) *Scanner {
	s := &Scanner{opt: opt}
	s.Reset(line)
	return s
}

// Reset positions the scanner at the start of line.
func (s *Scanner) Reset(line string) {
	s.line = line
	s.pos = 0
	s.done = false
	s.field = ""
}

// Next advances to the next field and reports whether one was available.
// A line always has at least one field, and a trailing delimiter produces a
// trailing empty field.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	delim := s.opt.delim()
	s.buf.Reset()
	inQuotes := false
	for s.pos < len(s.line) {
		c := s.line[s.pos]
		s.pos++
		switch {
		case c == quote:
			inQuotes = !inQuotes
		case c == delim && !inQuotes:
			s.field = s.buf.String()
			return true
		case c == '\r' && s.opt.DropCR:
			continue
		}
		s.buf.WriteByte(c)
	}
	s.field = s.buf.String()
	s.done = true
	return true
}

// Field returns the field produced by the last successful Next.
func (s *Scanner) Field() string { return s.field }

// Split returns every field of line.
func Split(line string, opt Options) []string {
	s := NewScanner(line, opt)
	out := make([]string, 0, strings.Count(line, string(opt.delim()))+1)
	for s.Next() {
		out = append(out, s.Field())
	}
	return out
}

// Join is the inverse of Split for lines without carriage returns.
func Join(fields []string, delim byte) string {
	if delim == 0 {
		delim = ','
	}
	return strings.Join(fields, string(delim))
}
