package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned for paths that resolve outside the workspace.
var ErrPathEscape = errors.New("security restriction: path escapes workspace")

// ErrPathRequired is returned for empty paths.
var ErrPathRequired = errors.New("path is required")

// Guard confines file access to a workspace root. Relative paths resolve
// against the root; absolute paths are accepted only inside it. Symlinks
// that point outside the root are rejected.
type Guard struct {
	root     string
	realRoot string
}

// NewGuard creates a guard rooted at root, which must be an existing
// directory.
func NewGuard(root string) (*Guard, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Guard{root: abs, realRoot: resolved}, nil
}

// Root returns the absolute workspace root.
func (g *Guard) Root() string {
	return g.root
}

// Resolve returns the absolute, cleaned form of path, or an error wrapping
// ErrPathEscape when it leaves the workspace.
func (g *Guard) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", ErrPathRequired
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(g.root, clean)
	}
	if !within(g.root, target) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, path)
	}

	// The deepest existing ancestor decides where symlinks really lead.
	existing := target
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			if !within(g.realRoot, resolved) {
				return "", fmt.Errorf("%w: %s", ErrPathEscape, path)
			}
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	return target, nil
}

// Rel returns abs relative to the root, using forward slashes.
func (g *Guard) Rel(abs string) string {
	rel, err := filepath.Rel(g.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
