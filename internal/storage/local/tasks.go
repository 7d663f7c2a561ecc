package local

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// BlockPaths returns the task, output and image locations of worker id under dir.
func BlockPaths(dir string, id int) crawler.BlockPaths {
	base := filepath.Join(dir, strconv.Itoa(id))
	return crawler.BlockPaths{
		TaskFile:   base + ".txt",
		OutputFile: base + "_out.jsonl",
		ImageDir:   base + "_images",
	}
}

// WriteTaskFile writes one URL per line to path.
func WriteTaskFile(path string, urls []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: create task dir: %w", crawler.ErrPersistence, err)
	}
	f, err := os.Create(path) //nolint:gosec // path built from configured output root
	if err != nil {
		return fmt.Errorf("%w: create task file %s: %w", crawler.ErrPersistence, path, err)
	}
	w := bufio.NewWriter(f)
	for _, u := range urls {
		if _, err := w.WriteString(u + "\n"); err != nil {
			_ = f.Close()
			return fmt.Errorf("%w: write task file %s: %w", crawler.ErrPersistence, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: flush task file %s: %w", crawler.ErrPersistence, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close task file %s: %w", crawler.ErrPersistence, path, err)
	}
	return nil
}

// ReadTaskFile returns the non-blank, trimmed lines of the task file at path.
func ReadTaskFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path built from configured output root
	if err != nil {
		return nil, fmt.Errorf("open task file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if u := strings.TrimSpace(sc.Text()); u != "" {
			urls = append(urls, u)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read task file %s: %w", path, err)
	}
	return urls, nil
}
