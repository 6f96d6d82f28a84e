// Package writeback writes node files to the data root.
package writeback

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const tempPrefix = ".florg-write-"

// WriteFile replaces name with data atomically: the bytes go to a temp file
// in the same directory, which is then renamed over name. Missing parent
// directories are created.
func WriteFile(fs billy.Filesystem, name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := util.TempFile(fs, dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	// osfs reports an absolute name; keep it relative to the filesystem.
	tmpName := filepath.Join(dir, filepath.Base(tmp.Name()))

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}

	// temp files are created 0600
	if ch, ok := fs.(billy.Chmod); ok {
		if err := ch.Chmod(tmpName, 0o644); err != nil {
			_ = fs.Remove(tmpName) // best-effort cleanup
			return fmt.Errorf("chmod temp: %w", err)
		}
	}

	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", name, err)
	}
	return nil
}
