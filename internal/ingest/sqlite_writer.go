package ingest

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/agentic-research/florg/internal/graph"
	_ "modernc.org/sqlite"
)

// SQLiteWriter exports nodes into a SQLite catalog so other tools can query
// the tree without parsing the data root.
type SQLiteWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmtNode  *sql.Stmt
	batchSize int
	count     int
	mu        sync.Mutex
}

// NewSQLiteWriter creates the database file and the nodes table.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		path TEXT PRIMARY KEY,
		parent TEXT,
		depth INTEGER NOT NULL,
		component INTEGER,
		dir TEXT NOT NULL,
		title TEXT NOT NULL,
		first_paragraph TEXT NOT NULL,
		has_more INTEGER NOT NULL,
		synthesized INTEGER NOT NULL,
		raw TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &SQLiteWriter{db: db, batchSize: 5000}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmtNode, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO nodes
			(path, parent, depth, component, dir, title, first_paragraph, has_more, synthesized, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	return err
}

func (w *SQLiteWriter) commitTx() error {
	if w.stmtNode != nil {
		_ = w.stmtNode.Close()
	}
	return w.tx.Commit()
}

// AddNode writes one node row. The root has NULL parent and component.
func (w *SQLiteWriter) AddNode(n graph.Node) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var parent, component any
	if p, ok := n.Path.Parent(); ok {
		parent = p.Human()
		component = int64(n.Path.Last())
	}

	_, err := w.stmtNode.Exec(
		n.Path.Human(),
		parent,
		n.Path.Len(),
		component,
		n.Path.Dir(),
		n.Header.Title,
		n.Header.FirstParagraph,
		n.Header.HasMoreContent,
		n.Synthesized,
		n.Raw,
	)
	if err != nil {
		return fmt.Errorf("insert %q: %w", n.Path.Human(), err)
	}

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		w.count = 0
	}
	return nil
}

// Close commits outstanding rows and builds the parent lookup index.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	if _, err := w.db.Exec(`CREATE INDEX IF NOT EXISTS idx_parent ON nodes(parent, component)`); err != nil {
		_ = w.db.Close()
		return fmt.Errorf("create index: %w", err)
	}
	return w.db.Close()
}

// Export writes every node of nodes into a fresh catalog at dbPath.
func Export(dbPath string, nodes []graph.Node) (int, error) {
	w, err := NewSQLiteWriter(dbPath)
	if err != nil {
		return 0, err
	}
	for _, n := range nodes {
		if err := w.AddNode(n); err != nil {
			_ = w.Close()
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return len(nodes), nil
}
