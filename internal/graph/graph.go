package graph

import (
	"strings"

	"github.com/agentic-research/florg/internal/treepath"
)

const (
	// EmptyTitle is the title of synthesized ancestor entries.
	EmptyTitle = "(empty node)"
	// PlaceholderMarker is the content written for a node whose first edit
	// is still in progress.
	PlaceholderMarker = "(placeholder)"
)

// Header is derived from a node's raw text and never stored separately.
type Header struct {
	Title          string `json:"title"`
	FirstParagraph string `json:"first_paragraph"`
	HasMoreContent bool   `json:"has_more_content"`
}

// Node is the content stored at one tree path.
// Synthesized nodes exist only in memory to complete an ancestor chain.
type Node struct {
	Path        treepath.Path
	Header      Header
	Raw         string
	Synthesized bool
}

// NewNode builds a node and derives its header.
func NewNode(p treepath.Path, raw string) Node {
	return Node{
		Path:   p.Clone(),
		Header: ExtractHeader(raw),
		Raw:    raw,
	}
}

// Placeholder returns the synthesized entry used for a missing ancestor.
func Placeholder(p treepath.Path) Node {
	return Node{
		Path:        p.Clone(),
		Header:      Header{Title: EmptyTitle},
		Synthesized: true,
	}
}

// IsMarker reports whether the node holds the in-progress edit marker.
func (n Node) IsMarker() bool {
	return !n.Synthesized && n.Raw == PlaceholderMarker
}

// Clone returns a copy that shares no path storage with n.
func (n Node) Clone() Node {
	n.Path = n.Path.Clone()
	return n
}

// ExtractHeader derives title and first paragraph from raw note text.
//
// The title is the first line with a leading markup marker ("= ", "## ")
// removed. Without a blank line the whole text is the first paragraph.
// Otherwise the paragraph is the rest of the first block when that block has
// more than the title line, or the following block when it does not.
func ExtractHeader(raw string) Header {
	firstLine, _, _ := strings.Cut(raw, "\n")
	h := Header{Title: stripMarker(firstLine)}

	head, rest, found := strings.Cut(raw, "\n\n")
	if !found {
		h.FirstParagraph = raw
		return h
	}
	if _, body, multi := strings.Cut(head, "\n"); multi {
		h.FirstParagraph = strings.TrimSpace(body)
		h.HasMoreContent = strings.TrimSpace(rest) != ""
		return h
	}
	para, tail, _ := strings.Cut(rest, "\n\n")
	h.FirstParagraph = strings.TrimSpace(para)
	h.HasMoreContent = strings.TrimSpace(tail) != ""
	return h
}

func stripMarker(line string) string {
	line = strings.TrimRight(line, "\r")
	marks := len(line) - len(strings.TrimLeft(line, "=#"))
	if marks > 0 && marks < len(line) && line[marks] == ' ' {
		return strings.TrimSpace(line[marks:])
	}
	return strings.TrimSpace(line)
}
