// Package treepath addresses nodes in the note tree.
//
// A Path is a sequence of components, one per tree level. On disk every
// component is a directory named with its decimal value; for humans the
// path is written compactly, with components 0..25 as the letters A..Z and
// larger components as decimal numbers:
//
//	[0 1 2]      -> "ABC"
//	[0 30 31 2]  -> "A30/31C"
//
// A '/' is only needed between two adjacent numeric components.
package treepath

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Sentinel is the reserved component used as a parking slot while nodes are
// reordered. Ordinary nodes never use it.
const Sentinel uint32 = math.MaxUint32

// letters is the number of components rendered as a single letter.
const letters = 26

// ErrParse is matched (via errors.Is) by every *ParseError.
var ErrParse = errors.New("invalid path")

// ParseError reports malformed human or directory path input.
type ParseError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Input, e.Pos, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Path identifies a node's position in the tree. The empty path is the root.
type Path []uint32

// Root returns the empty path.
func Root() Path { return Path{} }

// Of builds a path from components.
func Of(components ...uint32) Path {
	return Path(slices.Clone(components))
}

func (p Path) Len() int { return len(p) }

func (p Path) IsRoot() bool { return len(p) == 0 }

// Parent drops the last component. The root has no parent; ok is false then.
func (p Path) Parent() (parent Path, ok bool) {
	if len(p) == 0 {
		return Path{}, false
	}
	return slices.Clone(p[:len(p)-1]), true
}

// Append returns a new path extended by one level.
func (p Path) Append(c uint32) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, c)
}

// Last returns the final component. It must not be called on the root.
func (p Path) Last() uint32 {
	return p[len(p)-1]
}

func (p Path) Clone() Path {
	if p == nil {
		return Path{}
	}
	return slices.Clone(p)
}

func (p Path) Equal(o Path) bool {
	return slices.Equal(p, o)
}

// StartsWith reports whether prefix is an ancestor-or-self of p.
func (p Path) StartsWith(prefix Path) bool {
	return len(p) >= len(prefix) && slices.Equal(p[:len(prefix)], prefix)
}

// Rebase replaces the from-prefix of p with to. p must start with from.
func (p Path) Rebase(from, to Path) Path {
	out := make(Path, 0, len(to)+len(p)-len(from))
	out = append(out, to...)
	return append(out, p[len(from):]...)
}

// HasSentinel reports whether any component is the reserved Sentinel.
func (p Path) HasSentinel() bool {
	return slices.Contains(p, Sentinel)
}

// Compare orders paths component-wise; a strict prefix sorts first.
func Compare(a, b Path) int {
	return slices.Compare(a, b)
}

// Human renders the compact human-readable form.
func (p Path) Human() string {
	var b strings.Builder
	prevNumeric := false
	for _, c := range p {
		if c < letters {
			b.WriteByte(byte('A' + c))
			prevNumeric = false
			continue
		}
		if prevNumeric {
			b.WriteByte('/')
		}
		b.WriteString(strconv.FormatUint(uint64(c), 10))
		prevNumeric = true
	}
	return b.String()
}

func (p Path) String() string { return p.Human() }

// ParseHuman decodes the compact form produced by Human. The empty string
// is the root.
func ParseHuman(s string) (Path, error) {
	out := Path{}
	prevNumeric := false
	i := 0
	for i < len(s) {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			out = append(out, uint32(ch-'A'))
			prevNumeric = false
			i++
		case isDigit(ch):
			v, next, err := parseNumber(s, i)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			prevNumeric = true
			i = next
		case ch == '/':
			if !prevNumeric {
				return nil, &ParseError{Input: s, Pos: i, Reason: "'/' may only separate two numeric components"}
			}
			if i+1 >= len(s) || !isDigit(s[i+1]) {
				return nil, &ParseError{Input: s, Pos: i, Reason: "'/' must be followed by a number"}
			}
			v, next, err := parseNumber(s, i+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			i = next
		default:
			return nil, &ParseError{Input: s, Pos: i, Reason: fmt.Sprintf("unexpected character %q", ch)}
		}
	}
	return out, nil
}

// MustParseHuman is ParseHuman for constants in tests and fixtures.
func MustParseHuman(s string) Path {
	p, err := ParseHuman(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseNumber(s string, start int) (uint32, int, error) {
	end := start
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	tok := s[start:end]
	if len(tok) > 1 && tok[0] == '0' {
		return 0, 0, &ParseError{Input: s, Pos: start, Reason: "leading zero in numeric component"}
	}
	v, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, 0, &ParseError{Input: s, Pos: start, Reason: "numeric component out of range"}
	}
	if v < letters {
		return 0, 0, &ParseError{Input: s, Pos: start, Reason: "components below 26 are written as letters"}
	}
	return uint32(v), end, nil
}

// Dir returns the relative directory holding the node, "" for the root.
func (p Path) Dir() string {
	segs := make([]string, len(p))
	for i, c := range p {
		segs[i] = strconv.FormatUint(uint64(c), 10)
	}
	return filepath.Join(segs...)
}

// FromDirectory parses a relative directory whose segments are the decimal
// components. "" and "." are the root.
func FromDirectory(rel string) (Path, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == "" {
		return Path{}, nil
	}
	out := Path{}
	pos := 0
	for _, seg := range strings.Split(rel, "/") {
		c, err := ParseSegment(seg)
		if err != nil {
			return nil, &ParseError{Input: rel, Pos: pos, Reason: err.(*ParseError).Reason}
		}
		out = append(out, c)
		pos += len(seg) + 1
	}
	return out, nil
}

// ParseSegment parses a single directory name into a component.
func ParseSegment(seg string) (uint32, error) {
	if seg == "" {
		return 0, &ParseError{Input: seg, Reason: "empty segment"}
	}
	for i := 0; i < len(seg); i++ {
		if !isDigit(seg[i]) {
			return 0, &ParseError{Input: seg, Pos: i, Reason: "segment is not a number"}
		}
	}
	if len(seg) > 1 && seg[0] == '0' {
		return 0, &ParseError{Input: seg, Reason: "leading zero in segment"}
	}
	v, err := strconv.ParseUint(seg, 10, 32)
	if err != nil {
		return 0, &ParseError{Input: seg, Reason: "segment out of range"}
	}
	return uint32(v), nil
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
