// Package service exposes the store to consumers that address notes by their
// human-readable path ("A30/31C") and want JSON-ready views back.
package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/agentic-research/florg/api"
	"github.com/agentic-research/florg/internal/graph"
	"github.com/agentic-research/florg/internal/ingest"
	"github.com/agentic-research/florg/internal/search"
	"github.com/agentic-research/florg/internal/store"
	"github.com/agentic-research/florg/internal/treepath"
	"github.com/agentic-research/florg/internal/writeback"
)

// Service is the human-path facade over one Storage.
type Service struct {
	st       *store.Storage
	searcher search.Searcher
}

// New wraps st. A nil searcher uses rg as configured in settings.
func New(st *store.Storage, searcher search.Searcher) *Service {
	return &Service{st: st, searcher: searcher}
}

// Storage returns the wrapped store.
func (s *Service) Storage() *store.Storage { return s.st }

func nodeView(n graph.Node) api.Node {
	return api.Node{
		Path: n.Path.Human(),
		Header: api.Header{
			Title:          n.Header.Title,
			FirstParagraph: n.Header.FirstParagraph,
			HasMoreContent: n.Header.HasMoreContent,
		},
		Raw:         n.Raw,
		Placeholder: n.Synthesized,
	}
}

// GetNode returns the node at h with its breadcrumbs and children. A missing
// node is not an error; the view just has no Node.
func (s *Service) GetNode(h string) (*api.NodeView, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return nil, err
	}
	view := &api.NodeView{Levels: []api.Level{}, Children: []api.Node{}}
	if n, ok := s.st.Get(p); ok {
		v := nodeView(n)
		view.Node = &v
	}
	for _, l := range s.st.Ancestors(p) {
		view.Levels = append(view.Levels, api.Level{
			Component: treepath.Of(l.Component).Human(),
			Title:     l.Title,
		})
	}
	for _, c := range s.st.ChildrenOf(p) {
		view.Children = append(view.Children, nodeView(c))
	}
	return view, nil
}

// ChangeNodeText stores text at h and commits.
func (s *Service) ChangeNodeText(ctx context.Context, h, text string) (*api.Node, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return nil, err
	}
	n, err := s.st.ReplaceNode(ctx, graph.NewNode(p, text), true)
	if err != nil {
		return nil, err
	}
	v := nodeView(n)
	return &v, nil
}

// FindNextEmptyChild returns the first free child path below h.
func (s *Service) FindNextEmptyChild(h string) (string, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return "", err
	}
	next, err := s.st.FindNextEmptyChild(p)
	if err != nil {
		return "", err
	}
	return next.Human(), nil
}

func (s *Service) DeleteNode(ctx context.Context, h string) error {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return err
	}
	return s.st.DeleteNode(ctx, p, true)
}

func (s *Service) MoveNode(ctx context.Context, from, to string) error {
	a, err := treepath.ParseHuman(from)
	if err != nil {
		return err
	}
	b, err := treepath.ParseHuman(to)
	if err != nil {
		return err
	}
	return s.st.MoveNode(ctx, a, b, true)
}

func (s *Service) SwapPrevious(ctx context.Context, h string) error {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return err
	}
	return s.st.SwapWithPrevious(ctx, p)
}

func (s *Service) SwapNext(ctx context.Context, h string) error {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return err
	}
	return s.st.SwapWithNext(ctx, p)
}

// SortChildren orders the children of h by title and returns how many moved.
func (s *Service) SortChildren(ctx context.Context, h string) (int, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return 0, err
	}
	return s.st.SortChildren(ctx, p)
}

// CompactChildren closes the gaps between the children of h.
func (s *Service) CompactChildren(ctx context.Context, h string) (int, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return 0, err
	}
	return s.st.CompactChildren(ctx, p)
}

// History lists recorded changes, newest first. limit <= 0 means all.
func (s *Service) History(ctx context.Context, limit int) ([]api.HistoryEntry, error) {
	commits, err := s.st.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]api.HistoryEntry, 0, len(commits))
	for _, c := range commits {
		out = append(out, api.HistoryEntry{Hash: c.Hash, Date: c.Date, Message: c.Message})
	}
	return out, nil
}

func (s *Service) Undo(ctx context.Context, hash string) error {
	return s.st.Undo(ctx, hash)
}

func (s *Service) GetCached(h string) (string, bool, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return "", false, err
	}
	payload, ok := s.st.GetCached(p)
	return payload, ok, nil
}

func (s *Service) SetCached(h, raw, payload string) error {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return err
	}
	return s.st.SetCached(p, raw, payload)
}

// Search finds term in the notes at and below h.
func (s *Service) Search(ctx context.Context, h, term string) ([]api.SearchResult, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return nil, err
	}
	searcher := s.searcher
	if searcher == nil {
		cfg := s.st.Settings()
		searcher = &search.Ripgrep{Binary: cfg.SearchBinary()}
	}
	hits, err := searcher.Search(ctx, filepath.Join(s.st.Root(), p.Dir()), term)
	if err != nil {
		return nil, err
	}
	return search.Annotate(p, hits, s.st), nil
}

// CreateCalendar fills h with month and day notes for year.
func (s *Service) CreateCalendar(ctx context.Context, h string, year int) (int, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return 0, err
	}
	return s.st.CreateCalendar(ctx, p, year)
}

// DateToPath returns the path of date relative to a calendar node.
func DateToPath(date time.Time) string {
	return store.DateToPath(date).Human()
}

func (s *Service) BeginEdit(ctx context.Context, h string) (*api.EditSession, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return nil, err
	}
	session, err := s.st.BeginEdit(ctx, p)
	if err != nil {
		return nil, err
	}
	return &api.EditSession{Path: session.Path.Human(), File: session.File, Line: session.Line}, nil
}

// EditFile returns where BeginEdit writes the edit file for h.
func (s *Service) EditFile(h string) (string, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.st.Root(), writeback.EditFileName(p)), nil
}

func (s *Service) FinishEdit(ctx context.Context, h, text string, ok bool) (bool, error) {
	p, err := treepath.ParseHuman(h)
	if err != nil {
		return false, err
	}
	return s.st.FinishEdit(ctx, p, text, ok)
}

func (s *Service) HistoryGet(name string) ([]string, error) {
	return s.st.HistoryGet(name)
}

func (s *Service) HistoryStore(name string, entries []string) error {
	return s.st.HistoryStore(name, entries)
}

// Settings returns the raw text of the active settings.
func (s *Service) Settings() string {
	return s.st.Settings().Raw
}

func (s *Service) StoreSettings(ctx context.Context, raw string) error {
	return s.st.StoreSettings(ctx, raw)
}

func (s *Service) Reload() (*ingest.Report, error) {
	return s.st.Reload()
}

// Recover moves nodes left in parking slots back into the tree.
func (s *Service) Recover(ctx context.Context) (int, error) {
	return s.st.RecoverSentinels(ctx)
}

// Export writes the node catalog to a SQLite database at dbPath.
func (s *Service) Export(dbPath string) (int, error) {
	return s.st.Export(dbPath)
}
