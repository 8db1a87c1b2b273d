package importer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// InboxDir is the workspace subdirectory scanned for statements.
const InboxDir = "import"

// ProcessedDir receives statements once they are committed.
const ProcessedDir = "import/processed"

// FileInfo describes a statement waiting in the inbox.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// Scan returns the CSV files directly inside <root>/import, sorted by name.
// A missing inbox is not an error.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, InboxDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading inbox: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// MarkProcessed moves <root>/import/<name> into <root>/import/processed.
func MarkProcessed(root, name string) error {
	dst := filepath.Join(root, ProcessedDir)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}
	if err := os.Rename(filepath.Join(root, InboxDir, name), filepath.Join(dst, name)); err != nil {
		return fmt.Errorf("moving %s to processed: %w", name, err)
	}
	return nil
}
