// Package api holds the views handed to consumers of the note store. Every
// path in them uses the human-readable form ("A30/31C").
package api

import "time"

// Header mirrors the derived header of a node.
type Header struct {
	Title          string `json:"title"`
	FirstParagraph string `json:"first_paragraph"`
	HasMoreContent bool   `json:"has_more_content"`
}

// Node is one stored note.
type Node struct {
	// Path of the note.
	Path   string `json:"path"`
	Header Header `json:"header"`
	// Raw is the full note text.
	Raw string `json:"raw"`
	// Placeholder is set for synthesized ancestors without content.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Level is one breadcrumb step.
type Level struct {
	// Component is the human form of this single step ("A", "30").
	Component string `json:"component"`
	Title     string `json:"title"`
}

// NodeView is what a reader needs to show one position of the tree.
type NodeView struct {
	// Node is nil when nothing is stored at the path.
	Node     *Node   `json:"node"`
	Levels   []Level `json:"levels"`
	Children []Node  `json:"children"`
}

// SearchLine is one matching line of a note.
type SearchLine struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// SearchResult is one note with matching lines.
type SearchResult struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	// ParentTitles runs from the nearest ancestor up to the root.
	ParentTitles []string     `json:"parent_titles"`
	Lines        []SearchLine `json:"lines"`
}

// HistoryEntry is one recorded change.
type HistoryEntry struct {
	Hash    string    `json:"hash"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

// EditSession describes an open edit file.
type EditSession struct {
	Path string `json:"path"`
	File string `json:"file"`
	Line int    `json:"line"`
}
