// Package fsio provides sandboxed file access for tool implementations.
//
// A Sandbox confines every operation to a single root directory: relative
// paths are validated against parent traversal and symlink escapes before
// any I/O happens. Policy violations surface as PathError, a compact JSON
// error body suitable for returning to the model as a tool result.
package fsio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathError is a machine-readable error body for policy violations.
type PathError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep tool_result
// payloads small.
func (e PathError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Sandbox roots all file operations at a single directory.
type Sandbox struct {
	root string
}

// NewSandbox resolves root to an absolute, symlink-free path and ensures the
// directory exists.
func NewSandbox(root string) (*Sandbox, error) {
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs(%q): %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	// Resolve symlinks up front so later boundary checks are reliable.
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return &Sandbox{root: abs}, nil
}

// Root returns the absolute sandbox root.
func (s *Sandbox) Root() string { return s.root }

// Resolve maps a relative path to an absolute path inside the sandbox. It
// rejects absolute inputs, parent traversal, and symlink escapes, and denies
// access under .git/.
func (s *Sandbox) Resolve(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", PathError{Code: "ERR_PATH_OUTSIDE_SANDBOX", Message: "absolute paths are not allowed"}
	}

	cleaned := filepath.Clean(relPath)
	if cleaned == "" {
		cleaned = "."
	}
	candidate := filepath.Join(s.root, cleaned)

	// Best-effort symlink resolution: the whole candidate when it exists,
	// otherwise its deepest existing ancestor rejoined with the leaf. This
	// reveals escapes via a symlinked parent even for not-yet-created files.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else {
		parent := filepath.Dir(candidate)
		if resolvedParent, err2 := filepath.EvalSymlinks(parent); err2 == nil {
			candidate = filepath.Join(resolvedParent, filepath.Base(candidate))
		}
	}

	rel, err := filepath.Rel(s.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", PathError{Code: "ERR_PATH_OUTSIDE_SANDBOX", Message: "requested path resolves outside the sandbox root"}
	}

	relClean := filepath.ToSlash(rel)
	if relClean == ".git" || strings.HasPrefix(relClean, ".git/") {
		return "", PathError{Code: "ERR_DENIED", Message: "access under .git/ is not allowed"}
	}

	return candidate, nil
}

// ReadFile reads a regular file addressed by a relative path.
func (s *Sandbox) ReadFile(relPath string) (string, error) {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", PathError{Code: "ERR_NOT_A_FILE", Message: "path is a directory"}
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteFile writes content to a relative path, creating parent directories
// as needed.
func (s *Sandbox) WriteFile(relPath, content string) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, []byte(content), 0o644)
}

// List returns the entry names of a directory, non-recursive, with
// directories suffixed by "/".
func (s *Sandbox) List(relDir string) ([]string, error) {
	if relDir == "" {
		relDir = "."
	}
	abs, err := s.Resolve(relDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return names, nil
}

// Stat reports the file info at a relative path.
func (s *Sandbox) Stat(relPath string) (os.FileInfo, error) {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	return os.Stat(abs)
}

// Remove deletes the file or directory tree at a relative path.
func (s *Sandbox) Remove(relPath string) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}
	if abs == s.root {
		return PathError{Code: "ERR_DENIED", Message: "cannot delete the sandbox root"}
	}
	return os.RemoveAll(abs)
}

// Rename moves a file or directory to a new relative path, creating parent
// directories for the destination as needed.
func (s *Sandbox) Rename(oldRel, newRel string) error {
	oldAbs, err := s.Resolve(oldRel)
	if err != nil {
		return err
	}
	newAbs, err := s.Resolve(newRel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return err
	}
	return os.Rename(oldAbs, newAbs)
}
