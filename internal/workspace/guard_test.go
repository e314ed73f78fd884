package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGuard_Resolve(t *testing.T) {
	root := t.TempDir()
	guard, err := NewGuard(root)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{"relative", "notes/a.txt", filepath.Join(guard.Root(), "notes", "a.txt"), nil},
		{"dot segments inside", "notes/../b.txt", filepath.Join(guard.Root(), "b.txt"), nil},
		{"absolute inside", filepath.Join(guard.Root(), "c.txt"), filepath.Join(guard.Root(), "c.txt"), nil},
		{"root itself", ".", guard.Root(), nil},
		{"parent escape", "../../etc/passwd", "", ErrPathEscape},
		{"absolute outside", "/etc/passwd", "", ErrPathEscape},
		{"empty", "  ", "", ErrPathRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := guard.Resolve(tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestGuard_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	guard, err := NewGuard(root)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := guard.Resolve("link/secret.txt"); !errors.Is(err, ErrPathEscape) {
		t.Errorf("err = %v, want ErrPathEscape", err)
	}
}

func TestGuard_ErrorNamesSecurityRestriction(t *testing.T) {
	guard, err := NewGuard(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = guard.Resolve("../x")
	if err == nil || err.Error() != "security restriction: path escapes workspace: ../x" {
		t.Errorf("err = %v", err)
	}
}

func TestNewGuard_RequiresDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewGuard(file); err == nil {
		t.Error("expected error for file root")
	}
	if _, err := NewGuard(filepath.Join(file, "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestGuard_Rel(t *testing.T) {
	guard, err := NewGuard(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got := guard.Rel(filepath.Join(guard.Root(), "a", "b.txt")); got != "a/b.txt" {
		t.Errorf("Rel = %q", got)
	}
}
