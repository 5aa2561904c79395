// Package memory provides a local filesystem backend for the memory builtin
// tool. Memories live under a sandboxed directory and are addressed by the
// tool's /memories/... paths.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fennelworks/claude-go/internal/fsio"
	"github.com/fennelworks/claude-go/tools"
)

const pathPrefix = "/memories"

var _ tools.MemoryBackend = (*Store)(nil)

// Store implements tools.MemoryBackend over a fsio sandbox.
type Store struct {
	sb *fsio.Sandbox
}

// NewStore roots a memory store at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	sb, err := fsio.NewSandbox(dir)
	if err != nil {
		return nil, err
	}
	return &Store{sb: sb}, nil
}

// rel strips the /memories prefix and returns the sandbox-relative path.
func (s *Store) rel(path string) (string, error) {
	if path != pathPrefix && !strings.HasPrefix(path, pathPrefix+"/") {
		return "", fmt.Errorf("path must start with %s, got: %s", pathPrefix, path)
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(path, pathPrefix), "/")
	if rel == "" {
		rel = "."
	}
	return rel, nil
}

func (s *Store) View(ctx context.Context, path string, viewRange []int) (string, error) {
	rel, err := s.rel(path)
	if err != nil {
		return "", err
	}

	fi, err := s.sb.Stat(rel)
	if err != nil {
		return "", fmt.Errorf("path not found: %s", path)
	}

	if fi.IsDir() {
		names, err := s.sb.List(rel)
		if err != nil {
			return "", fmt.Errorf("cannot read directory %s: %w", path, err)
		}
		sort.Strings(names)
		var b strings.Builder
		fmt.Fprintf(&b, "Directory: %s", path)
		for _, n := range names {
			if strings.HasPrefix(n, ".") {
				continue
			}
			fmt.Fprintf(&b, "\n- %s", n)
		}
		return b.String(), nil
	}

	content, err := s.sb.ReadFile(rel)
	if err != nil {
		return "", fmt.Errorf("cannot read file %s: %w", path, err)
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	startNum := 1
	if len(viewRange) == 2 {
		start := viewRange[0]
		if start < 1 {
			start = 1
		}
		end := viewRange[1]
		if end == -1 || end > len(lines) {
			end = len(lines)
		}
		if start-1 > len(lines) {
			start = len(lines) + 1
		}
		if end < start-1 {
			return "", fmt.Errorf("invalid view_range [%d, %d]", viewRange[0], viewRange[1])
		}
		lines = lines[start-1 : end]
		startNum = start
	}
	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = fmt.Sprintf("%4d: %s", i+startNum, line)
	}
	return strings.Join(numbered, "\n"), nil
}

func (s *Store) Create(ctx context.Context, path, fileText string) (string, error) {
	rel, err := s.rel(path)
	if err != nil {
		return "", err
	}
	if err := s.sb.WriteFile(rel, fileText); err != nil {
		return "", err
	}
	return fmt.Sprintf("File created successfully at %s", path), nil
}

func (s *Store) StrReplace(ctx context.Context, path, oldStr, newStr string) (string, error) {
	rel, err := s.rel(path)
	if err != nil {
		return "", err
	}
	content, err := s.sb.ReadFile(rel)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	count := strings.Count(content, oldStr)
	if count == 0 {
		return "", fmt.Errorf("text not found in %s", path)
	}
	if count > 1 {
		return "", fmt.Errorf("text appears %d times in %s; must be unique", count, path)
	}
	if err := s.sb.WriteFile(rel, strings.Replace(content, oldStr, newStr, 1)); err != nil {
		return "", err
	}
	return fmt.Sprintf("File %s has been edited", path), nil
}

func (s *Store) Insert(ctx context.Context, path string, insertLine int, insertText string) (string, error) {
	rel, err := s.rel(path)
	if err != nil {
		return "", err
	}
	content, err := s.sb.ReadFile(rel)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if insertLine < 0 || insertLine > len(lines) {
		return "", fmt.Errorf("invalid insert_line %d; must be 0-%d", insertLine, len(lines))
	}
	inserted := append(lines[:insertLine:insertLine], append([]string{strings.TrimRight(insertText, "\n")}, lines[insertLine:]...)...)
	if err := s.sb.WriteFile(rel, strings.Join(inserted, "\n")+"\n"); err != nil {
		return "", err
	}
	return fmt.Sprintf("Text inserted at line %d in %s", insertLine, path), nil
}

func (s *Store) Delete(ctx context.Context, path string) (string, error) {
	rel, err := s.rel(path)
	if err != nil {
		return "", err
	}
	if path == pathPrefix {
		return "", fmt.Errorf("cannot delete the %s directory itself", pathPrefix)
	}
	fi, err := s.sb.Stat(rel)
	if err != nil {
		return "", fmt.Errorf("path not found: %s", path)
	}
	if err := s.sb.Remove(rel); err != nil {
		return "", err
	}
	if fi.IsDir() {
		return fmt.Sprintf("Directory deleted: %s", path), nil
	}
	return fmt.Sprintf("File deleted: %s", path), nil
}

func (s *Store) Rename(ctx context.Context, oldPath, newPath string) (string, error) {
	oldRel, err := s.rel(oldPath)
	if err != nil {
		return "", err
	}
	newRel, err := s.rel(newPath)
	if err != nil {
		return "", err
	}
	if _, err := s.sb.Stat(oldRel); err != nil {
		return "", fmt.Errorf("source path not found: %s", oldPath)
	}
	if _, err := s.sb.Stat(newRel); err == nil {
		return "", fmt.Errorf("destination already exists: %s", newPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := s.sb.Rename(oldRel, newRel); err != nil {
		return "", err
	}
	return fmt.Sprintf("Renamed %s to %s", oldPath, newPath), nil
}

// Clear removes every stored memory, leaving the root in place.
func (s *Store) Clear() error {
	names, err := s.sb.List(".")
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := s.sb.Remove(filepath.Clean(strings.TrimSuffix(n, "/"))); err != nil {
			return err
		}
	}
	return nil
}
