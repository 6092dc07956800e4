package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
)

// Trash moves deleted photos into a trash directory instead of removing them.
type Trash struct {
	root string
	dir  string
	// DryRun only reports what would be moved.
	DryRun bool
	// Logf receives one line per moved file. Optional.
	Logf func(format string, args ...any)
}

// NewTrash creates a deleter that only accepts files below root.
func NewTrash(root, dir string) *Trash {
	return &Trash{root: filepath.Clean(root), dir: filepath.Clean(dir)}
}

// Dir returns the trash directory.
func (t *Trash) Dir() string {
	return t.dir
}

// Delete implements analysis.Deleter. Every uri is attempted; failures are joined.
// When some files were moved before a failure the error is an
// *analysis.PartialDeleteError listing them.
func (t *Trash) Delete(ctx context.Context, uris []string) error {
	if !t.DryRun {
		if err := os.MkdirAll(t.dir, 0o755); err != nil {
			return fmt.Errorf("failed to create trash directory: %w", err)
		}
	}

	var (
		moved []string
		errs  []error
	)
	for _, uri := range uris {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		dest, err := t.move(uri)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		moved = append(moved, uri)
		if t.Logf != nil {
			t.Logf("%s -> %s", uri, dest)
		}
	}

	err := errors.Join(errs...)
	if err != nil && len(moved) > 0 {
		return &analysis.PartialDeleteError{Deleted: moved, Err: err}
	}
	return err
}

func (t *Trash) move(src string) (string, error) {
	src = filepath.Clean(src)
	rel, err := filepath.Rel(t.root, src)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the gallery %s", src, t.root)
	}
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", src, err)
	}

	dest := t.destination(filepath.Base(src))
	if t.DryRun {
		return dest, nil
	}

	// Try rename first, fall back to copy+delete for cross-device moves.
	if err := os.Rename(src, dest); err != nil {
		if err := copyFile(src, dest); err != nil {
			return "", fmt.Errorf("failed to move %s: %w", src, err)
		}
		if err := os.Remove(src); err != nil {
			return "", fmt.Errorf("failed to remove %s: %w", src, err)
		}
	}
	return dest, nil
}

// destination returns a free path for name inside the trash directory.
func (t *Trash) destination(name string) string {
	dest := filepath.Join(t.dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, err := os.Lstat(dest); errors.Is(err, os.ErrNotExist) {
			return dest
		}
		dest = filepath.Join(t.dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return err
	}
	return dstFile.Close()
}
