package writeback

import (
	"path/filepath"
	"strings"

	"github.com/agentic-research/florg/internal/treepath"
)

// Edit session files put a breadcrumb above the node text. Everything up to
// the first separator line is discarded when the edit is read back.
const (
	EditInstruction = "Content after the next line. First line = new title"
	EditSeparator   = "\n--\n"
	EditSuffix      = ".temp.adoc"
)

// EditFileName is the session file for p, inside p's own directory.
func EditFileName(p treepath.Path) string {
	name := p.Human()
	if name == "" {
		name = "root"
	}
	return filepath.Join(p.Dir(), name+EditSuffix)
}

// EditText renders the session file for p. title returns the title stored at
// a prefix of p, or "".
func EditText(p treepath.Path, title func(treepath.Path) string, raw string) string {
	var b strings.Builder
	if p.IsRoot() {
		b.WriteString("(root)\n")
	}
	for i, c := range p {
		b.WriteString(treepath.Of(c).Human())
		b.WriteByte(' ')
		b.WriteString(strings.Repeat(" ", i))
		b.WriteString(title(p[:i]))
		b.WriteByte('\n')
	}
	b.WriteString(EditInstruction)
	b.WriteString(EditSeparator)
	b.WriteByte('\n')
	b.WriteString(raw)
	return b.String()
}

// EditLine is the 1-based line where the node text starts in EditText's
// output, for editors that accept a "+line" argument.
func EditLine(p treepath.Path) int {
	header := len(p)
	if p.IsRoot() {
		header = 1
	}
	return header + 4
}

// ParseEditText returns the node text from a session file: everything after
// the first separator line, trimmed. Text without a separator is taken whole.
func ParseEditText(text string) string {
	if _, content, ok := strings.Cut(text, EditSeparator); ok {
		return strings.TrimSpace(content)
	}
	return text
}
